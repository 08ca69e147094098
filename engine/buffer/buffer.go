// Package buffer implements typed GPU buffers and their bindables. A Buffer
// pairs a label with a schema data type and the set of usages it permits;
// requesting a bindable under an unauthorized usage fails at construction
// time, before any resolution pass runs. Bindables are memoized per
// (buffer, usage) pair, so reference equality implies equality of meaning.
package buffer

import (
	"fmt"

	"github.com/Carmen-Shannon/loom-go/engine/device"
	"github.com/Carmen-Shannon/loom-go/engine/resolver"
	"github.com/Carmen-Shannon/loom-go/engine/schema"
	"github.com/cogentcore/webgpu/wgpu"
)

// UnauthorizedUsageError reports a bindable request under a usage the buffer
// was not configured to permit. Non-retryable; the buffer must be recreated
// with the usage authorized.
type UnauthorizedUsageError struct {
	// Label is the offending buffer's label.
	Label string

	// Usage is the requested usage.
	Usage resolver.BindingUsage
}

func (e *UnauthorizedUsageError) Error() string {
	return fmt.Sprintf("buffer: buffer %q does not permit %s usage", e.Label, e.Usage)
}

// UnsupportedDataShapeError reports a vertex bindable request over a data
// type that cannot feed the vertex fetch stage.
type UnsupportedDataShapeError struct {
	// Label is the offending buffer's label.
	Label string

	// TypeName is the WGSL name of the rejected type.
	TypeName string
}

func (e *UnsupportedDataShapeError) Error() string {
	return fmt.Sprintf("buffer: buffer %q has type %s, which cannot be used as vertex data", e.Label, e.TypeName)
}

// Buffer is a typed GPU buffer. The native buffer handle is created lazily
// on first Unwrap and cached for the buffer's lifetime.
type Buffer interface {
	// Label returns the buffer's label.
	//
	// Returns:
	//   - string: the label
	Label() string

	// Type returns the buffer's data type.
	//
	// Returns:
	//   - schema.DataType: the data type
	Type() schema.DataType

	// Size returns the buffer's byte size. For runtime-sized array types
	// this reflects the element count the buffer was sized for.
	//
	// Returns:
	//   - uint64: the byte size
	Size() uint64

	// Allows reports whether the buffer permits the given usage.
	//
	// Parameters:
	//   - usage: the usage to test
	//
	// Returns:
	//   - bool: true if the usage was authorized at construction
	Allows(usage resolver.BindingUsage) bool

	// AsUniform returns the buffer's uniform bindable, memoized so repeated
	// calls return the same instance.
	//
	// Returns:
	//   - Bindable: the uniform bindable
	//   - error: an UnauthorizedUsageError if uniform usage is not permitted
	AsUniform() (Bindable, error)

	// AsReadonly returns the buffer's read-only storage bindable, memoized.
	//
	// Returns:
	//   - Bindable: the read-only storage bindable
	//   - error: an UnauthorizedUsageError if the usage is not permitted
	AsReadonly() (Bindable, error)

	// AsMutable returns the buffer's read-write storage bindable, memoized.
	//
	// Returns:
	//   - Bindable: the mutable storage bindable
	//   - error: an UnauthorizedUsageError if the usage is not permitted
	AsMutable() (Bindable, error)

	// AsVertex returns the buffer's vertex bindable, memoized. The vertex
	// buffer layout (stride and attributes) is derived from the buffer's
	// element type at construction of the bindable.
	//
	// Returns:
	//   - Bindable: the vertex bindable
	//   - error: an UnauthorizedUsageError if vertex usage is not permitted,
	//     or an UnsupportedDataShapeError if the type has no vertex layout
	AsVertex() (Bindable, error)

	// Unwrap returns the native buffer handle, creating it on first call
	// and uploading any initial data.
	//
	// Parameters:
	//   - dev: the device to create the buffer on
	//
	// Returns:
	//   - device.Buffer: the native buffer handle
	//   - error: an error if allocation or the initial upload fails
	Unwrap(dev device.Device) (device.Buffer, error)

	// Write stages data into the buffer at offset 0, creating the native
	// buffer first if needed.
	//
	// Parameters:
	//   - dev: the device owning the buffer
	//   - data: the bytes to write
	//
	// Returns:
	//   - error: an error if creation or the write fails
	Write(dev device.Device, data []byte) error

	// Release frees the native buffer handle if one was created.
	Release()
}

// buffer is the implementation of the Buffer interface.
type buffer struct {
	label   string
	typ     schema.DataType
	size    uint64
	usages  map[resolver.BindingUsage]bool
	initial []byte

	handle    device.Buffer
	bindables map[resolver.BindingUsage]*bindable
}

var _ Buffer = &buffer{}

func (b *buffer) Label() string         { return b.label }
func (b *buffer) Type() schema.DataType { return b.typ }
func (b *buffer) Size() uint64          { return b.size }

func (b *buffer) Allows(usage resolver.BindingUsage) bool { return b.usages[usage] }

func (b *buffer) AsUniform() (Bindable, error) {
	return b.as(resolver.UsageUniform)
}

func (b *buffer) AsReadonly() (Bindable, error) {
	return b.as(resolver.UsageReadOnlyStorage)
}

func (b *buffer) AsMutable() (Bindable, error) {
	return b.as(resolver.UsageMutableStorage)
}

func (b *buffer) AsVertex() (Bindable, error) {
	return b.as(resolver.UsageVertex)
}

// as returns the memoized bindable for the usage, creating it on first
// request. Vertex bindables derive their layout here so shape errors
// surface at construction.
func (b *buffer) as(usage resolver.BindingUsage) (Bindable, error) {
	if !b.usages[usage] {
		return nil, &UnauthorizedUsageError{Label: b.label, Usage: usage}
	}
	if existing, ok := b.bindables[usage]; ok {
		return existing, nil
	}
	bound := &bindable{owner: b, usage: usage}
	if usage == resolver.UsageVertex {
		layout, err := vertexLayoutFor(b.label, b.typ)
		if err != nil {
			return nil, err
		}
		bound.vertexLayout = layout
	}
	b.bindables[usage] = bound
	return bound, nil
}

func (b *buffer) Unwrap(dev device.Device) (device.Buffer, error) {
	if b.handle != nil {
		return b.handle, nil
	}
	handle, err := dev.CreateBuffer(b.label, b.size, b.bufferUsageFlags())
	if err != nil {
		return nil, fmt.Errorf("buffer: creating buffer %q: %w", b.label, err)
	}
	if len(b.initial) > 0 {
		if err := dev.WriteBuffer(handle, 0, b.initial); err != nil {
			handle.Release()
			return nil, fmt.Errorf("buffer: uploading initial data for %q: %w", b.label, err)
		}
	}
	b.handle = handle
	return handle, nil
}

func (b *buffer) Write(dev device.Device, data []byte) error {
	handle, err := b.Unwrap(dev)
	if err != nil {
		return err
	}
	return dev.WriteBuffer(handle, 0, data)
}

func (b *buffer) Release() {
	if b.handle != nil {
		b.handle.Release()
		b.handle = nil
	}
}

// bufferUsageFlags unions the wgpu usage bits for every authorized usage.
// CopyDst is always included so Write works.
func (b *buffer) bufferUsageFlags() wgpu.BufferUsage {
	flags := wgpu.BufferUsageCopyDst
	if b.usages[resolver.UsageUniform] {
		flags |= wgpu.BufferUsageUniform
	}
	if b.usages[resolver.UsageReadOnlyStorage] || b.usages[resolver.UsageMutableStorage] {
		flags |= wgpu.BufferUsageStorage
	}
	if b.usages[resolver.UsageVertex] {
		flags |= wgpu.BufferUsageVertex
	}
	return flags
}
