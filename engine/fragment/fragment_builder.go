package fragment

import (
	"github.com/Carmen-Shannon/loom-go/engine/resolver"
	"github.com/Carmen-Shannon/loom-go/engine/resolver/transpiler"
)

// FnBuilderOption is a functional option used to configure an Fn during construction.
type FnBuilderOption func(*fn)

// NewFn creates a shader function fragment from a WGSL fn implementation.
// Panics if the implementation source is empty.
//
// Parameters:
//   - label: the fragment's name, used to derive its shader identifier
//   - source: the WGSL fn declaration text
//   - opts: a variadic list of FnBuilderOption functions to configure the fragment
//
// Returns:
//   - Fn: the constructed fragment
func NewFn(label, source string, opts ...FnBuilderOption) Fn {
	if source == "" {
		panic("fragment: NewFn requires a non-empty implementation source")
	}
	f := &fn{
		label:     label,
		impl:      source,
		externals: make(map[string]resolver.Resolvable),
		tp:        transpiler.New(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// WithExternals binds external names to resolvable entities at construction.
// Nil bindings are ignored.
//
// Parameters:
//   - bindings: the name to Resolvable bindings
//
// Returns:
//   - FnBuilderOption: a function that merges the bindings into the fragment
func WithExternals(bindings map[string]resolver.Resolvable) FnBuilderOption {
	return func(f *fn) {
		f.ApplyExternals(bindings)
	}
}

// WithLiteralTemplate marks the implementation as a literal template:
// bound externals are substituted where they appear, and unbound
// identifiers are left untouched instead of failing the pass.
//
// Returns:
//   - FnBuilderOption: a function that enables literal-template resolution
func WithLiteralTemplate() FnBuilderOption {
	return func(f *fn) {
		f.literal = true
	}
}

// WithTranspiler replaces the default WGSL transpiler, mainly for tests.
// A nil transpiler is ignored.
//
// Parameters:
//   - t: the transpiler to use
//
// Returns:
//   - FnBuilderOption: a function that sets the transpiler
func WithTranspiler(t transpiler.Transpiler) FnBuilderOption {
	return func(f *fn) {
		if t != nil {
			f.tp = t
		}
	}
}

// WithWorkgroupSize declares the compute workgroup size for the fragment,
// overriding any @workgroup_size attribute in the implementation.
//
// Parameters:
//   - x: the x dimension
//   - y: the y dimension
//   - z: the z dimension
//
// Returns:
//   - FnBuilderOption: a function that sets the workgroup size
func WithWorkgroupSize(x, y, z uint32) FnBuilderOption {
	return func(f *fn) {
		f.workgroup = [3]uint32{x, y, z}
		f.hasWorkgroup = true
	}
}
