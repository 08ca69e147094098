package buffer

import (
	"github.com/Carmen-Shannon/loom-go/engine/resolver"
	"github.com/Carmen-Shannon/loom-go/engine/schema"
)

// BufferBuilderOption is a functional option used to configure a Buffer during construction.
type BufferBuilderOption func(*buffer)

// NewBuffer creates a typed buffer. The byte size defaults to the data
// type's size; runtime-sized array buffers should set their element count
// with WithCount. Panics if typ is nil.
//
// Parameters:
//   - label: the buffer's name, used in errors and derived identifiers
//   - typ: the buffer's data type
//   - opts: a variadic list of BufferBuilderOption functions to configure the buffer
//
// Returns:
//   - Buffer: the constructed buffer
func NewBuffer(label string, typ schema.DataType, opts ...BufferBuilderOption) Buffer {
	if typ == nil {
		panic("buffer: NewBuffer requires a non-nil data type")
	}
	b := &buffer{
		label:     label,
		typ:       typ,
		size:      typ.Size(),
		usages:    make(map[resolver.BindingUsage]bool),
		bindables: make(map[resolver.BindingUsage]*bindable),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// WithUsages authorizes the given usages on the buffer. Usages not listed
// here fail with an UnauthorizedUsageError when requested.
//
// Parameters:
//   - usages: the usages to authorize
//
// Returns:
//   - BufferBuilderOption: a function that authorizes the usages
func WithUsages(usages ...resolver.BindingUsage) BufferBuilderOption {
	return func(b *buffer) {
		for _, usage := range usages {
			b.usages[usage] = true
		}
	}
}

// WithCount sizes the buffer for count elements of its runtime-sized array
// type. Ignored for types that are not runtime-sized arrays.
//
// Parameters:
//   - count: the element count to size for
//
// Returns:
//   - BufferBuilderOption: a function that sets the buffer size
func WithCount(count uint64) BufferBuilderOption {
	return func(b *buffer) {
		if arr, ok := b.typ.(*schema.Array); ok && arr.Runtime() {
			b.size = arr.SizeFor(count)
		}
	}
}

// WithInitialData stages data to upload when the native buffer is first
// created. The buffer size grows to fit the data if needed.
//
// Parameters:
//   - data: the bytes to upload on first unwrap
//
// Returns:
//   - BufferBuilderOption: a function that sets the initial data
func WithInitialData(data []byte) BufferBuilderOption {
	return func(b *buffer) {
		b.initial = data
		if uint64(len(data)) > b.size {
			b.size = uint64(len(data))
		}
	}
}
