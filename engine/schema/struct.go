package schema

import (
	"fmt"
	"strings"
)

// Field is a single named member of a Struct.
type Field struct {
	// Name is the WGSL field name.
	Name string

	// Type is the field's data type.
	Type DataType
}

// Struct is a named WGSL struct type with fields laid out per the WGSL
// struct layout rules: each field at the next offset aligned to the field
// type, total size rounded up to the struct alignment (max field alignment).
//
// A runtime-sized array is only permitted as the final field; the struct
// size then reports the fixed-size prefix.
type Struct struct {
	name    string
	fields  []Field
	offsets []uint64
	size    uint64
	align   uint64
}

// NewStruct creates a Struct type with the given name and fields.
// Panics if the name or field list is empty, or if a runtime-sized array
// appears anywhere but the last field.
//
// Parameters:
//   - name: the WGSL struct name used in generated declarations
//   - fields: the ordered struct fields
//
// Returns:
//   - *Struct: the constructed struct type
func NewStruct(name string, fields ...Field) *Struct {
	if name == "" {
		panic("schema: NewStruct requires a non-empty name")
	}
	if len(fields) == 0 {
		panic(fmt.Sprintf("schema: struct %q must have at least one field", name))
	}

	s := &Struct{
		name:    name,
		fields:  fields,
		offsets: make([]uint64, len(fields)),
		align:   1,
	}

	offset := uint64(0)
	for i, f := range fields {
		if f.Type == nil {
			panic(fmt.Sprintf("schema: struct %q field %q has a nil type", name, f.Name))
		}
		if arr, ok := f.Type.(*Array); ok && arr.Runtime() && i != len(fields)-1 {
			panic(fmt.Sprintf("schema: struct %q field %q: runtime-sized array must be the last field", name, f.Name))
		}

		offset = roundUpAlign(f.Type.Align(), offset)
		s.offsets[i] = offset
		if f.Type.Align() > s.align {
			s.align = f.Type.Align()
		}

		if arr, ok := f.Type.(*Array); ok && arr.Runtime() {
			// Runtime-sized tail: size is the fixed prefix rounded up,
			// or one element stride if the struct has no fixed prefix.
			if offset == 0 {
				s.size = arr.Stride()
			} else {
				s.size = roundUpAlign(s.align, offset)
			}
			return s
		}
		offset += f.Type.Size()
	}

	s.size = roundUpAlign(s.align, offset)
	return s
}

// Fields returns the ordered struct fields.
//
// Returns:
//   - []Field: the fields in declaration order
func (s *Struct) Fields() []Field { return s.fields }

// Offset returns the byte offset of field i.
//
// Parameters:
//   - i: the field index
//
// Returns:
//   - uint64: the byte offset of the field
func (s *Struct) Offset(i int) uint64 { return s.offsets[i] }

func (s *Struct) Name() string  { return s.name }
func (s *Struct) Size() uint64  { return s.size }
func (s *Struct) Align() uint64 { return s.align }

// WGSL returns the canonical WGSL declaration of the struct, suitable for
// emission ahead of any binding that references it.
//
// Returns:
//   - string: the WGSL struct declaration
func (s *Struct) WGSL() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "struct %s {\n", s.name)
	for _, f := range s.fields {
		fmt.Fprintf(&sb, "    %s: %s,\n", f.Name, f.Type.Name())
	}
	sb.WriteString("}")
	return sb.String()
}

// innerStructs returns every Struct reachable from t, depth-first, so
// dependencies can be declared before dependents. The result includes t
// itself when t is a Struct.
func innerStructs(t DataType) []*Struct {
	switch tt := t.(type) {
	case *Struct:
		var out []*Struct
		for _, f := range tt.fields {
			out = append(out, innerStructs(f.Type)...)
		}
		return append(out, tt)
	case *Array:
		return innerStructs(tt.elem)
	default:
		return nil
	}
}

// Declarations returns the WGSL struct declarations required to use t,
// in dependency order (inner structs first). Non-struct types yield nil.
//
// Parameters:
//   - t: the data type to collect declarations for
//
// Returns:
//   - []*Struct: the structs to declare, dependencies first
func Declarations(t DataType) []*Struct {
	structs := innerStructs(t)
	seen := make(map[*Struct]bool, len(structs))
	out := structs[:0]
	for _, s := range structs {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
