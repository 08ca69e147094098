// Package bind_group implements explicit bind group layouts and populated
// bind groups. A Layout is an ordered mapping from stable field keys to
// expected resource kinds; binding numbers are assigned by position at
// construction time. A Group pairs a layout with one concrete resource per
// field and defers all binding-number logic to its layout.
package bind_group

import (
	"fmt"

	"github.com/Carmen-Shannon/loom-go/engine/device"
	"github.com/Carmen-Shannon/loom-go/engine/resolver"
	"github.com/Carmen-Shannon/loom-go/engine/schema"
	"github.com/cogentcore/webgpu/wgpu"
)

// Entry is one field of a bind group layout. Either Type or Resource must
// be set: Type describes the expected data shape for entries populated
// later through a Group, while Resource pins the entry to one concrete
// bindable at layout construction.
type Entry struct {
	// Key is the stable field key the entry is looked up by.
	Key string

	// Usage is the expected binding usage. Vertex usage is not a bind
	// group kind and is rejected.
	Usage resolver.BindingUsage

	// Type is the expected data type. Optional when Resource is set.
	Type schema.DataType

	// Resource optionally pins the entry to a concrete bindable.
	Resource resolver.BindableResource
}

// Layout is an explicit bind group layout. It implements the resolution
// engine's layout interface so resolution can place covered bindables at
// the layout's binding numbers, and it unwraps into a native layout handle
// exactly once.
type Layout interface {
	resolver.BindGroupLayout

	// Entries returns the layout's entries in binding-number order.
	//
	// Returns:
	//   - []Entry: the entries
	Entries() []Entry

	// Bound returns the resolvable for a field key: the pinned resource if
	// the entry has one, otherwise a placeholder that declares the binding
	// at this layout's group index. Panics on an unknown key.
	//
	// Parameters:
	//   - key: the field key to look up
	//
	// Returns:
	//   - resolver.Resolvable: the field's resolvable
	Bound(key string) resolver.Resolvable

	// Unwrap returns the native bind group layout handle, creating it on
	// first call.
	//
	// Parameters:
	//   - dev: the device to create the layout on
	//
	// Returns:
	//   - device.BindGroupLayout: the native layout handle
	//   - error: an error if creation fails
	Unwrap(dev device.Device) (device.BindGroupLayout, error)

	// Release frees the native layout handle if one was created.
	Release()
}

// layout is the implementation of the Layout interface.
type layout struct {
	label   string
	entries []Entry
	handle  device.BindGroupLayout
}

var _ Layout = &layout{}

// NewLayout creates a bind group layout from ordered entries; the binding
// number of each entry is its position. Panics if no entries are given, if
// an entry has neither a type nor a resource, or if an entry declares
// vertex usage.
//
// Parameters:
//   - label: the layout's name, used in errors and debug labels
//   - entries: the ordered entries
//
// Returns:
//   - Layout: the constructed layout
func NewLayout(label string, entries ...Entry) Layout {
	if len(entries) == 0 {
		panic(fmt.Sprintf("bind_group: layout %q must have at least one entry", label))
	}
	for _, e := range entries {
		if e.Type == nil && e.Resource == nil {
			panic(fmt.Sprintf("bind_group: layout %q entry %q needs a type or a resource", label, e.Key))
		}
		usage := e.Usage
		if e.Resource != nil {
			usage = e.Resource.Usage()
		}
		if usage == resolver.UsageVertex {
			panic(fmt.Sprintf("bind_group: layout %q entry %q: vertex buffers do not bind through bind groups", label, e.Key))
		}
	}
	return &layout{label: label, entries: entries}
}

// NewLayoutFor creates a layout pinned to concrete bindables, keyed by
// their labels. Useful when the caller wants explicit control over the
// group index of bindables that would otherwise land in the catch-all.
//
// Parameters:
//   - label: the layout's name
//   - bindables: the bindables to cover, in binding-number order
//
// Returns:
//   - Layout: the constructed layout
func NewLayoutFor(label string, bindables ...resolver.BindableResource) Layout {
	entries := make([]Entry, len(bindables))
	for i, b := range bindables {
		entries[i] = Entry{Key: b.Label(), Usage: b.Usage(), Resource: b}
	}
	return NewLayout(label, entries...)
}

func (l *layout) Label() string    { return l.label }
func (l *layout) Entries() []Entry { return l.entries }

// Covers reports whether one of the layout's entries pins the bindable.
func (l *layout) Covers(b resolver.BindableResource) (int, bool) {
	for i, e := range l.entries {
		if e.Resource == b && b != nil {
			return i, true
		}
	}
	return 0, false
}

func (l *layout) Bound(key string) resolver.Resolvable {
	for i, e := range l.entries {
		if e.Key == key {
			if e.Resource != nil {
				return e.Resource
			}
			return &boundEntry{layout: l, index: i}
		}
	}
	panic(fmt.Sprintf("bind_group: layout %q has no entry %q", l.label, key))
}

func (l *layout) Unwrap(dev device.Device) (device.BindGroupLayout, error) {
	if l.handle != nil {
		return l.handle, nil
	}
	entries := make([]wgpu.BindGroupLayoutEntry, len(l.entries))
	for i, e := range l.entries {
		usage := e.Usage
		size := uint64(0)
		if e.Type != nil {
			size = e.Type.Size()
		}
		if e.Resource != nil {
			usage = e.Resource.Usage()
			size = e.Resource.MinBindingSize()
		}
		entries[i] = LayoutEntry(uint32(i), usage, size)
	}
	handle, err := dev.CreateBindGroupLayout(l.label, entries)
	if err != nil {
		return nil, fmt.Errorf("bind_group: creating layout %q: %w", l.label, err)
	}
	l.handle = handle
	return handle, nil
}

func (l *layout) Release() {
	if l.handle != nil {
		l.handle.Release()
		l.handle = nil
	}
}

// boundEntry resolves an unpinned layout field into its @group/@binding
// declaration at the owning layout's group index.
type boundEntry struct {
	layout *layout
	index  int
}

var _ resolver.Resolvable = &boundEntry{}

func (b *boundEntry) Label() string { return b.layout.entries[b.index].Key }

func (b *boundEntry) Resolve(ctx *resolver.Context) (string, error) {
	name, seen := ctx.VisitShared(b)
	if seen {
		return name, nil
	}
	group, ok := ctx.GroupIndexOf(b.layout)
	if !ok {
		return "", fmt.Errorf("bind_group: layout %q was not supplied to this resolution pass", b.layout.label)
	}
	entry := b.layout.entries[b.index]
	for _, s := range schema.Declarations(entry.Type) {
		ctx.DeclareOnce(s, s.WGSL())
	}
	ctx.AppendDeclaration(fmt.Sprintf("@group(%d) @binding(%d) %s %s: %s;",
		group, b.index, entry.Usage.AddressSpace(), name, entry.Type.Name()))
	return name, nil
}

// LayoutEntry builds the wgpu layout entry for a buffer binding. Mutable
// storage is not visible to the vertex stage, matching WebGPU validation
// rules.
//
// Parameters:
//   - binding: the binding index
//   - usage: the binding usage
//   - minSize: the minimum binding size in bytes
//
// Returns:
//   - wgpu.BindGroupLayoutEntry: the layout entry descriptor
func LayoutEntry(binding uint32, usage resolver.BindingUsage, minSize uint64) wgpu.BindGroupLayoutEntry {
	entry := wgpu.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: wgpu.ShaderStageCompute | wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
	}
	entry.Buffer.MinBindingSize = minSize
	switch usage {
	case resolver.UsageUniform:
		entry.Buffer.Type = wgpu.BufferBindingTypeUniform
	case resolver.UsageReadOnlyStorage:
		entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
	case resolver.UsageMutableStorage:
		entry.Buffer.Type = wgpu.BufferBindingTypeStorage
		entry.Visibility = wgpu.ShaderStageCompute | wgpu.ShaderStageFragment
	}
	return entry
}
