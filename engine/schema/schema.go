// Package schema describes the GPU-visible data types that loom buffers carry.
// Every type knows its WGSL name plus its byte size and alignment per the WGSL
// memory layout rules, which is all the resolution engine needs to derive
// buffer sizes, vertex strides, and binding declarations.
//
// Reference: https://www.w3.org/TR/WGSL/#alignment-and-size
package schema

import "fmt"

// DataType is the interface implemented by every GPU-visible data type.
// Implementations are immutable after construction and safe to share.
type DataType interface {
	// Name returns the WGSL type name, e.g. "f32", "vec3<f32>", "Particle".
	//
	// Returns:
	//   - string: the WGSL type name
	Name() string

	// Size returns the byte size of the type per WGSL layout rules.
	// For runtime-sized arrays this is the element stride (the minimum
	// useful binding size of a single element).
	//
	// Returns:
	//   - uint64: the byte size
	Size() uint64

	// Align returns the required byte alignment of the type.
	//
	// Returns:
	//   - uint64: the byte alignment
	Align() uint64
}

// scalarType is a fixed-layout primitive, vector, or matrix type.
type scalarType struct {
	name  string
	size  uint64
	align uint64
}

func (t scalarType) Name() string  { return t.name }
func (t scalarType) Size() uint64  { return t.size }
func (t scalarType) Align() uint64 { return t.align }

// Primitive scalar, vector, and matrix types with sizes and alignments
// per the WGSL specification.
var (
	F32  DataType = scalarType{"f32", 4, 4}
	I32  DataType = scalarType{"i32", 4, 4}
	U32  DataType = scalarType{"u32", 4, 4}
	F16  DataType = scalarType{"f16", 2, 2}
	Bool DataType = scalarType{"bool", 4, 4}

	Vec2f DataType = scalarType{"vec2<f32>", 8, 8}
	Vec3f DataType = scalarType{"vec3<f32>", 12, 16}
	Vec4f DataType = scalarType{"vec4<f32>", 16, 16}

	Vec2i DataType = scalarType{"vec2<i32>", 8, 8}
	Vec3i DataType = scalarType{"vec3<i32>", 12, 16}
	Vec4i DataType = scalarType{"vec4<i32>", 16, 16}

	Vec2u DataType = scalarType{"vec2<u32>", 8, 8}
	Vec3u DataType = scalarType{"vec3<u32>", 12, 16}
	Vec4u DataType = scalarType{"vec4<u32>", 16, 16}

	Mat2x2f DataType = scalarType{"mat2x2<f32>", 16, 8}
	Mat3x3f DataType = scalarType{"mat3x3<f32>", 48, 16}
	Mat4x4f DataType = scalarType{"mat4x4<f32>", 64, 16}

	AtomicU32 DataType = scalarType{"atomic<u32>", 4, 4}
	AtomicI32 DataType = scalarType{"atomic<i32>", 4, 4}
)

// Array is a homogeneous array type. A Count of zero denotes a runtime-sized
// array, which is only valid as the sole or last member of a storage buffer.
type Array struct {
	elem  DataType
	count uint64
}

// NewArray creates a fixed-size array type of count elements.
//
// Parameters:
//   - elem: the element type
//   - count: the number of elements (must be > 0)
//
// Returns:
//   - *Array: the array type
func NewArray(elem DataType, count uint64) *Array {
	if elem == nil {
		panic("schema: NewArray requires a non-nil element type")
	}
	if count == 0 {
		panic("schema: NewArray requires count > 0; use NewRuntimeArray for runtime-sized arrays")
	}
	return &Array{elem: elem, count: count}
}

// NewRuntimeArray creates a runtime-sized array type.
//
// Parameters:
//   - elem: the element type
//
// Returns:
//   - *Array: the runtime-sized array type
func NewRuntimeArray(elem DataType) *Array {
	if elem == nil {
		panic("schema: NewRuntimeArray requires a non-nil element type")
	}
	return &Array{elem: elem}
}

// Elem returns the element type of the array.
//
// Returns:
//   - DataType: the element type
func (a *Array) Elem() DataType { return a.elem }

// Count returns the element count, or 0 for a runtime-sized array.
//
// Returns:
//   - uint64: the element count
func (a *Array) Count() uint64 { return a.count }

// Runtime reports whether the array is runtime-sized.
//
// Returns:
//   - bool: true if the array has no fixed count
func (a *Array) Runtime() bool { return a.count == 0 }

// Stride returns the byte distance between consecutive elements:
// the element size rounded up to the element alignment.
//
// Returns:
//   - uint64: the element stride
func (a *Array) Stride() uint64 {
	return roundUpAlign(a.elem.Align(), a.elem.Size())
}

func (a *Array) Name() string {
	if a.count == 0 {
		return fmt.Sprintf("array<%s>", a.elem.Name())
	}
	return fmt.Sprintf("array<%s, %d>", a.elem.Name(), a.count)
}

func (a *Array) Size() uint64 {
	if a.count == 0 {
		// Runtime-sized array: the stride is the minimum useful binding
		// size (one element); callers scale by instance count.
		return a.Stride()
	}
	return a.count * a.Stride()
}

func (a *Array) Align() uint64 { return a.elem.Align() }

// SizeFor returns the byte size of a runtime-sized array holding count
// elements. For fixed-size arrays the declared size is returned regardless
// of count.
//
// Parameters:
//   - count: the number of elements to size for
//
// Returns:
//   - uint64: the byte size
func (a *Array) SizeFor(count uint64) uint64 {
	if a.count != 0 {
		return a.Size()
	}
	return count * a.Stride()
}

// roundUpAlign rounds value up to the next multiple of alignment.
// Alignment must be a power of two.
func roundUpAlign(alignment, value uint64) uint64 {
	if alignment == 0 {
		return value
	}
	return (value + alignment - 1) &^ (alignment - 1)
}
