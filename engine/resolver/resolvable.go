// Package resolver implements the resolution pass that turns a graph of
// typed shader fragments into a single deduplicated, dependency-ordered WGSL
// module plus the bind group layout metadata a GPU pipeline needs.
//
// A resolution pass walks the dependency graph from an entry Resolvable,
// assigning each visited entity a unique identifier, appending its
// declaration after those of its dependencies, and collecting referenced
// buffer bindings into bind group layouts (explicit ones supplied by the
// caller, or an automatically constructed catch-all).
package resolver

// Resolvable is any entity that can emit a shader declaration and return a
// reference identifier during a resolution pass. Implementations include
// shader functions, buffer bindings, slots, and raw identifiers.
type Resolvable interface {
	// Label returns the user-facing name of the entity, used to derive its
	// shader identifier and to make error messages traceable.
	//
	// Returns:
	//   - string: the label, possibly empty
	Label() string

	// Resolve emits the entity's declaration into the context (if it has
	// one) after recursively resolving its dependencies, and returns the
	// identifier or value text by which the entity is referenced.
	//
	// Parameters:
	//   - ctx: the active resolution context
	//
	// Returns:
	//   - string: the reference identifier or substitution text
	//   - error: an error if the entity or any dependency cannot resolve
	Resolve(ctx *Context) (string, error)
}

// Ident is a raw shader identifier. It resolves to itself and emits no
// declaration, allowing fragments to reference names that already exist in
// the output (WGSL builtins, entry point parameters, etc.).
type Ident string

// Label returns the identifier text.
func (id Ident) Label() string { return string(id) }

// Resolve returns the identifier text unchanged.
func (id Ident) Resolve(ctx *Context) (string, error) { return string(id), nil }

// BindingUsage declares how a buffer is accessed by a shader. It is a closed
// set; resolution matches exhaustively over these values.
type BindingUsage int

const (
	// UsageUniform binds the buffer as a uniform.
	UsageUniform BindingUsage = iota

	// UsageReadOnlyStorage binds the buffer as read-only storage.
	UsageReadOnlyStorage

	// UsageMutableStorage binds the buffer as read-write storage.
	UsageMutableStorage

	// UsageVertex feeds the buffer to the vertex fetch stage. Vertex
	// bindings do not appear in bind groups.
	UsageVertex
)

// String returns the usage name for error messages and labels.
func (u BindingUsage) String() string {
	switch u {
	case UsageUniform:
		return "uniform"
	case UsageReadOnlyStorage:
		return "readonly-storage"
	case UsageMutableStorage:
		return "mutable-storage"
	case UsageVertex:
		return "vertex"
	default:
		return "unknown"
	}
}

// AddressSpace returns the WGSL var<> declaration syntax for the usage, or
// an empty string for usages that do not declare module-scope variables.
func (u BindingUsage) AddressSpace() string {
	switch u {
	case UsageUniform:
		return "var<uniform>"
	case UsageReadOnlyStorage:
		return "var<storage, read>"
	case UsageMutableStorage:
		return "var<storage, read_write>"
	default:
		return ""
	}
}

// BindableResource is the view of a buffer binding the resolution context
// needs in order to place it into a bind group layout. It is implemented by
// the buffer package's bindable type.
type BindableResource interface {
	Resolvable

	// Usage returns the declared binding usage.
	Usage() BindingUsage

	// MinBindingSize returns the minimum buffer size in bytes the binding
	// requires, derived from the buffer's data type.
	MinBindingSize() uint64
}

// BindGroupLayout is the view of an explicit bind group layout the
// resolution context consults when placing bindings. Concrete layouts live
// in the bind_group package.
type BindGroupLayout interface {
	// Label returns the layout's debug label.
	Label() string

	// Covers reports whether the layout claims the given bindable,
	// returning the binding index assigned to it at layout construction.
	//
	// Parameters:
	//   - b: the bindable to test
	//
	// Returns:
	//   - int: the binding index within the layout
	//   - bool: true if the layout covers the bindable
	Covers(b BindableResource) (int, bool)
}
