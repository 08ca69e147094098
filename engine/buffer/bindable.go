package buffer

import (
	"fmt"

	"github.com/Carmen-Shannon/loom-go/engine/device"
	"github.com/Carmen-Shannon/loom-go/engine/resolver"
	"github.com/Carmen-Shannon/loom-go/engine/schema"
	"github.com/cogentcore/webgpu/wgpu"
)

// Bindable is a buffer paired with one declared usage, eligible for
// placement into a bind group (or a vertex buffer slot for vertex usage).
// Bindables resolve into @group/@binding declarations and are memoized per
// (buffer, usage) pair by the owning Buffer.
type Bindable interface {
	resolver.BindableResource

	// Buffer returns the owning buffer.
	//
	// Returns:
	//   - Buffer: the owner
	Buffer() Buffer

	// Unwrap returns the owning buffer's native handle.
	//
	// Parameters:
	//   - dev: the device to create the buffer on
	//
	// Returns:
	//   - device.Buffer: the native buffer handle
	//   - error: an error if allocation fails
	Unwrap(dev device.Device) (device.Buffer, error)

	// VertexLayout returns the derived vertex buffer layout. Only
	// meaningful for vertex-usage bindables; zero value otherwise.
	//
	// Returns:
	//   - wgpu.VertexBufferLayout: the stride and attribute layout
	VertexLayout() wgpu.VertexBufferLayout
}

// bindable is the implementation of the Bindable interface.
type bindable struct {
	owner        *buffer
	usage        resolver.BindingUsage
	vertexLayout wgpu.VertexBufferLayout
}

var _ Bindable = &bindable{}

func (b *bindable) Label() string                { return b.owner.label }
func (b *bindable) Usage() resolver.BindingUsage { return b.usage }
func (b *bindable) MinBindingSize() uint64       { return b.owner.size }
func (b *bindable) Buffer() Buffer               { return b.owner }

func (b *bindable) VertexLayout() wgpu.VertexBufferLayout { return b.vertexLayout }

func (b *bindable) Unwrap(dev device.Device) (device.Buffer, error) {
	return b.owner.Unwrap(dev)
}

// Resolve registers the bindable with the context and emits its module
// scope declaration, preceded by any struct declarations its type needs.
// Vertex bindables occupy a vertex buffer slot instead and emit nothing.
func (b *bindable) Resolve(ctx *resolver.Context) (string, error) {
	name, seen := ctx.VisitShared(b)
	if seen {
		return name, nil
	}
	if b.usage == resolver.UsageVertex {
		ctx.RegisterVertexBuffer(b)
		return name, nil
	}
	placement, err := ctx.PlaceBinding(b)
	if err != nil {
		return "", err
	}
	for _, s := range schema.Declarations(b.owner.typ) {
		ctx.DeclareOnce(s, s.WGSL())
	}
	ctx.AppendDeclaration(fmt.Sprintf("@group(%d) @binding(%d) %s %s: %s;",
		placement.Group, placement.Binding, b.usage.AddressSpace(), name, b.owner.typ.Name()))
	return name, nil
}

// vertexFormatMap maps WGSL type names to wgpu vertex formats for types
// that can appear as vertex attributes.
var vertexFormatMap = map[string]wgpu.VertexFormat{
	"f32":       wgpu.VertexFormatFloat32,
	"vec2<f32>": wgpu.VertexFormatFloat32x2,
	"vec3<f32>": wgpu.VertexFormatFloat32x3,
	"vec4<f32>": wgpu.VertexFormatFloat32x4,
	"i32":       wgpu.VertexFormatSint32,
	"vec2<i32>": wgpu.VertexFormatSint32x2,
	"vec3<i32>": wgpu.VertexFormatSint32x3,
	"vec4<i32>": wgpu.VertexFormatSint32x4,
	"u32":       wgpu.VertexFormatUint32,
	"vec2<u32>": wgpu.VertexFormatUint32x2,
	"vec3<u32>": wgpu.VertexFormatUint32x3,
	"vec4<u32>": wgpu.VertexFormatUint32x4,
	"vec2<f16>": wgpu.VertexFormatFloat16x2,
	"vec4<f16>": wgpu.VertexFormatFloat16x4,
}

// vertexLayoutFor derives the vertex buffer layout for typ: the element
// type's fields become attributes with sequential shader locations, and the
// stride comes from the element size (array strides include alignment
// padding). Types that are neither scalars, vectors, structs of those, nor
// homogeneous arrays are rejected.
func vertexLayoutFor(label string, typ schema.DataType) (wgpu.VertexBufferLayout, error) {
	elem := typ
	stride := typ.Size()
	if arr, ok := typ.(*schema.Array); ok {
		elem = arr.Elem()
		stride = arr.Stride()
	}

	var attributes []wgpu.VertexAttribute
	switch e := elem.(type) {
	case *schema.Struct:
		for i, f := range e.Fields() {
			format, ok := vertexFormatMap[f.Type.Name()]
			if !ok {
				return wgpu.VertexBufferLayout{}, &UnsupportedDataShapeError{Label: label, TypeName: f.Type.Name()}
			}
			attributes = append(attributes, wgpu.VertexAttribute{
				Format:         format,
				Offset:         e.Offset(i),
				ShaderLocation: uint32(i),
			})
		}
	case *schema.Array:
		return wgpu.VertexBufferLayout{}, &UnsupportedDataShapeError{Label: label, TypeName: typ.Name()}
	default:
		format, ok := vertexFormatMap[elem.Name()]
		if !ok {
			return wgpu.VertexBufferLayout{}, &UnsupportedDataShapeError{Label: label, TypeName: elem.Name()}
		}
		attributes = []wgpu.VertexAttribute{{Format: format, Offset: 0, ShaderLocation: 0}}
	}

	return wgpu.VertexBufferLayout{
		ArrayStride: stride,
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes:  attributes,
	}, nil
}
