package bind_group

import (
	"fmt"

	"github.com/Carmen-Shannon/loom-go/engine/device"
	"github.com/Carmen-Shannon/loom-go/engine/resolver"
)

// DeviceBindable is a bindable that can produce its native buffer handle.
// The buffer package's bindables satisfy it.
type DeviceBindable interface {
	resolver.BindableResource

	// Unwrap returns the native buffer handle backing the bindable.
	//
	// Parameters:
	//   - dev: the device to create the buffer on
	//
	// Returns:
	//   - device.Buffer: the native buffer handle
	//   - error: an error if allocation fails
	Unwrap(dev device.Device) (device.Buffer, error)
}

// Group is a bind group layout populated with one concrete resource per
// field. It carries no binding-number logic of its own; positions come from
// the layout. The native bind group is created once on first Unwrap.
type Group interface {
	// Label returns the group's debug label.
	//
	// Returns:
	//   - string: the label
	Label() string

	// Layout returns the layout the group instantiates.
	//
	// Returns:
	//   - Layout: the layout
	Layout() Layout

	// Unwrap returns the native bind group handle, creating it (and the
	// layout handle and every member buffer) on first call.
	//
	// Parameters:
	//   - dev: the device to create the group on
	//
	// Returns:
	//   - device.BindGroup: the native group handle
	//   - error: an error if creation fails
	Unwrap(dev device.Device) (device.BindGroup, error)

	// Release frees the native group handle if one was created.
	Release()
}

// group is the implementation of the Group interface.
type group struct {
	label     string
	layout    Layout
	resources []DeviceBindable
	handle    device.BindGroup
}

var _ Group = &group{}

// NewGroup populates a layout with concrete resources keyed by the layout's
// field keys. Entries pinned to a resource at layout construction need no
// entry in the map. Every field must end up populated, and each resource's
// usage must match its entry.
//
// Parameters:
//   - label: the group's debug label
//   - l: the layout to populate
//   - resources: field key to resource assignments
//
// Returns:
//   - Group: the populated group
//   - error: an error if a field is unpopulated or a usage mismatches
func NewGroup(label string, l Layout, resources map[string]DeviceBindable) (Group, error) {
	entries := l.Entries()
	ordered := make([]DeviceBindable, len(entries))
	for i, e := range entries {
		r := resources[e.Key]
		if r == nil && e.Resource != nil {
			pinned, ok := e.Resource.(DeviceBindable)
			if !ok {
				return nil, fmt.Errorf("bind_group: group %q entry %q: pinned resource has no device buffer", label, e.Key)
			}
			r = pinned
		}
		if r == nil {
			return nil, fmt.Errorf("bind_group: group %q is missing a resource for %q", label, e.Key)
		}
		expected := e.Usage
		if e.Resource != nil {
			expected = e.Resource.Usage()
		}
		if r.Usage() != expected {
			return nil, fmt.Errorf("bind_group: group %q entry %q expects %s usage, got %s",
				label, e.Key, expected, r.Usage())
		}
		ordered[i] = r
	}
	return &group{label: label, layout: l, resources: ordered}, nil
}

func (g *group) Label() string  { return g.label }
func (g *group) Layout() Layout { return g.layout }

func (g *group) Unwrap(dev device.Device) (device.BindGroup, error) {
	if g.handle != nil {
		return g.handle, nil
	}
	layoutHandle, err := g.layout.Unwrap(dev)
	if err != nil {
		return nil, err
	}
	entries := make([]device.BindGroupEntry, len(g.resources))
	for i, r := range g.resources {
		buf, err := r.Unwrap(dev)
		if err != nil {
			return nil, fmt.Errorf("bind_group: group %q entry %d: %w", g.label, i, err)
		}
		entries[i] = device.BindGroupEntry{
			Binding: uint32(i),
			Buffer:  buf,
			Size:    r.MinBindingSize(),
		}
	}
	handle, err := dev.CreateBindGroup(g.label, layoutHandle, entries)
	if err != nil {
		return nil, fmt.Errorf("bind_group: creating group %q: %w", g.label, err)
	}
	g.handle = handle
	return handle, nil
}

func (g *group) Release() {
	if g.handle != nil {
		g.handle.Release()
		g.handle = nil
	}
}
