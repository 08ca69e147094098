package resolver

import (
	"fmt"
	"strings"
)

// Placement locates a binding within the resolved bind group list.
type Placement struct {
	// Group is the bind group index.
	Group int

	// Binding is the binding index within the group.
	Binding int
}

// CatchAllGroup is the automatically constructed bind group layout covering
// every bindable the caller did not place into an explicit layout. Binding
// numbers follow first-reference order during the dependency walk.
type CatchAllGroup struct {
	// Index is the bind group index assigned to the catch-all, one higher
	// than the last explicit layout (0 when there are none).
	Index int

	// Bindings holds the covered bindables in binding-number order.
	Bindings []BindableResource
}

var _ BindGroupLayout = &CatchAllGroup{}

// Label returns the fixed catch-all label.
func (c *CatchAllGroup) Label() string { return "catchall" }

// Covers reports whether the catch-all holds the given bindable.
func (c *CatchAllGroup) Covers(b BindableResource) (int, bool) {
	for i, bound := range c.Bindings {
		if bound == b {
			return i, true
		}
	}
	return 0, false
}

// Result is the outcome of one resolution pass: the concatenated shader
// source plus the binding metadata needed to build a pipeline around it.
type Result struct {
	// Source is the dependency-ordered concatenation of all emitted
	// declarations.
	Source string

	// Layouts lists every bind group layout the pass referenced: the
	// explicit layouts in caller order, then the catch-all if one was
	// created. Group indices equal positions in this list.
	Layouts []BindGroupLayout

	// CatchAll is the auto-built group, or nil if every binding was
	// covered explicitly.
	CatchAll *CatchAllGroup

	// VertexBuffers lists vertex-usage bindables in first-reference order.
	// They occupy vertex buffer slots, not bind group entries.
	VertexBuffers []BindableResource
}

// visitKey identifies one resolution of a Resolvable: the entity itself plus
// the slot environment it resolved under. The same entity under two
// different slot environments resolves twice, into two declarations.
type visitKey struct {
	resolvable Resolvable
	env        string
}

// Context orchestrates a single resolution pass. It owns the identifier
// registry, the slot environment stack, the visited set, the ordered
// declaration list, and the binding placement tables. A Context is not safe
// for concurrent use.
type Context struct {
	names   *nameRegistry
	slots   []SlotBinding
	visited map[visitKey]string

	decls    []string
	declared map[any]bool

	layouts    []BindGroupLayout
	placements map[BindableResource]Placement
	catchAll   *CatchAllGroup

	vertexIndex   map[BindableResource]int
	vertexBuffers []BindableResource
}

// ContextOption configures a Context at construction.
type ContextOption func(*Context)

// WithBindGroupLayouts supplies the explicit bind group layouts for the
// pass, in the caller's group-index order. Bindings covered by one of these
// layouts are placed there; everything else goes to the catch-all.
//
// Parameters:
//   - layouts: the explicit layouts, group index 0 first
//
// Returns:
//   - ContextOption: the option
func WithBindGroupLayouts(layouts ...BindGroupLayout) ContextOption {
	return func(ctx *Context) {
		ctx.layouts = append(ctx.layouts, layouts...)
	}
}

// WithSlotBindings seeds the slot environment with bindings that stay in
// effect for the context's whole lifetime, beneath any scoped bindings.
//
// Parameters:
//   - bindings: the initial slot bindings
//
// Returns:
//   - ContextOption: the option
func WithSlotBindings(bindings ...SlotBinding) ContextOption {
	return func(ctx *Context) {
		ctx.slots = append(ctx.slots, bindings...)
	}
}

// NewContext creates an empty resolution context.
//
// Parameters:
//   - opts: optional configuration
//
// Returns:
//   - *Context: the context
func NewContext(opts ...ContextOption) *Context {
	ctx := &Context{
		names:       newNameRegistry(),
		visited:     make(map[visitKey]string),
		declared:    make(map[any]bool),
		placements:  make(map[BindableResource]Placement),
		vertexIndex: make(map[BindableResource]int),
	}
	for _, opt := range opts {
		opt(ctx)
	}
	return ctx
}

// Resolve runs the pass from the given entry and returns the accumulated
// result. Resolve may be called more than once on the same context; already
// resolved entities are reused, not re-emitted.
//
// Parameters:
//   - entry: the entry Resolvable, typically a shader entry function
//
// Returns:
//   - *Result: the resolved source and binding metadata
//   - error: an error if the entry or any dependency fails to resolve
func (ctx *Context) Resolve(entry Resolvable) (*Result, error) {
	if _, err := entry.Resolve(ctx); err != nil {
		return nil, err
	}
	return ctx.Result(), nil
}

// Result snapshots the context's accumulated output without resolving
// anything further.
//
// Returns:
//   - *Result: the resolved source and binding metadata so far
func (ctx *Context) Result() *Result {
	layouts := make([]BindGroupLayout, 0, len(ctx.layouts)+1)
	layouts = append(layouts, ctx.layouts...)
	if ctx.catchAll != nil {
		layouts = append(layouts, ctx.catchAll)
	}
	var source string
	if len(ctx.decls) > 0 {
		source = strings.Join(ctx.decls, "\n\n") + "\n"
	}
	return &Result{
		Source:        source,
		Layouts:       layouts,
		CatchAll:      ctx.catchAll,
		VertexBuffers: ctx.vertexBuffers,
	}
}

// Visit looks up or assigns the identifier for r under the current slot
// environment. The first visit under a given environment allocates a fresh
// identifier and reports seen=false, telling the caller to emit r's
// declaration; later visits under the same environment return the same
// identifier with seen=true.
//
// Parameters:
//   - r: the entity being resolved
//
// Returns:
//   - string: the assigned identifier
//   - bool: true if r was already resolved under this environment
func (ctx *Context) Visit(r Resolvable) (string, bool) {
	return ctx.visit(r, ctx.envSignature())
}

// VisitShared is Visit without slot-environment sensitivity, for entities
// whose declaration cannot depend on slot values (module-scope bindings).
// Resolving such an entity from differently scoped call sites yields one
// shared declaration.
//
// Parameters:
//   - r: the entity being resolved
//
// Returns:
//   - string: the assigned identifier
//   - bool: true if r was already resolved in this pass
func (ctx *Context) VisitShared(r Resolvable) (string, bool) {
	return ctx.visit(r, "")
}

func (ctx *Context) visit(r Resolvable, env string) (string, bool) {
	key := visitKey{resolvable: r, env: env}
	if name, ok := ctx.visited[key]; ok {
		return name, true
	}
	name := ctx.names.newName(r.Label())
	ctx.visited[key] = name
	return name, false
}

// AppendDeclaration appends a declaration to the output. Callers must have
// resolved all of the declaration's dependencies first so the concatenated
// source stays forward-reference free.
//
// Parameters:
//   - decl: the declaration text, without trailing newline
func (ctx *Context) AppendDeclaration(decl string) {
	ctx.decls = append(ctx.decls, decl)
}

// DeclareOnce appends decl only the first time key is seen, for shared
// declarations like struct types referenced by several bindings.
//
// Parameters:
//   - key: the identity of the declaration (e.g. a struct type value)
//   - decl: the declaration text
//
// Returns:
//   - bool: true if the declaration was emitted by this call
func (ctx *Context) DeclareOnce(key any, decl string) bool {
	if ctx.declared[key] {
		return false
	}
	ctx.declared[key] = true
	ctx.decls = append(ctx.decls, decl)
	return true
}

// PlaceBinding assigns b a (group, binding) position. Bindings covered by
// an explicit layout take that layout's position; everything else lands in
// the catch-all, created lazily at the next unused group index. Placement
// is memoized per bindable.
//
// Parameters:
//   - b: the bindable to place
//
// Returns:
//   - Placement: the assigned group and binding indices
//   - error: an error if b is a vertex bindable, which has no group slot
func (ctx *Context) PlaceBinding(b BindableResource) (Placement, error) {
	if b.Usage() == UsageVertex {
		return Placement{}, fmt.Errorf("resolver: vertex bindable %q cannot be placed into a bind group", b.Label())
	}
	if p, ok := ctx.placements[b]; ok {
		return p, nil
	}
	for group, layout := range ctx.layouts {
		if binding, ok := layout.Covers(b); ok {
			p := Placement{Group: group, Binding: binding}
			ctx.placements[b] = p
			return p, nil
		}
	}
	if ctx.catchAll == nil {
		ctx.catchAll = &CatchAllGroup{Index: len(ctx.layouts)}
	}
	p := Placement{Group: ctx.catchAll.Index, Binding: len(ctx.catchAll.Bindings)}
	ctx.catchAll.Bindings = append(ctx.catchAll.Bindings, b)
	ctx.placements[b] = p
	return p, nil
}

// GroupIndexOf returns the group index assigned to an explicit layout
// supplied to this context, which is its position in the supplied order.
//
// Parameters:
//   - layout: the layout to look up
//
// Returns:
//   - int: the group index
//   - bool: false if the layout was not supplied to this context
func (ctx *Context) GroupIndexOf(layout BindGroupLayout) (int, bool) {
	for i, l := range ctx.layouts {
		if l == layout {
			return i, true
		}
	}
	return 0, false
}

// RegisterVertexBuffer records a vertex-usage bindable, assigning it the
// next vertex buffer slot. Repeated registration of the same bindable
// returns its original slot.
//
// Parameters:
//   - b: the vertex bindable
//
// Returns:
//   - int: the vertex buffer slot index
func (ctx *Context) RegisterVertexBuffer(b BindableResource) int {
	if slot, ok := ctx.vertexIndex[b]; ok {
		return slot
	}
	slot := len(ctx.vertexBuffers)
	ctx.vertexIndex[b] = slot
	ctx.vertexBuffers = append(ctx.vertexBuffers, b)
	return slot
}

// SlotValue looks up the current value of s, walking the slot environment
// from the most recent binding to the oldest and falling back to the slot's
// default.
//
// Parameters:
//   - s: the slot to look up
//
// Returns:
//   - any: the bound or default value
//   - bool: false if s is unbound and has no default
func (ctx *Context) SlotValue(s *Slot) (any, bool) {
	for i := len(ctx.slots) - 1; i >= 0; i-- {
		if ctx.slots[i].Slot == s {
			return ctx.slots[i].Value, true
		}
	}
	if s.hasDefault {
		return s.def, true
	}
	return nil, false
}

func (ctx *Context) pushSlots(bindings []SlotBinding) {
	ctx.slots = append(ctx.slots, bindings...)
}

func (ctx *Context) popSlots(n int) {
	ctx.slots = ctx.slots[:len(ctx.slots)-n]
}

// envSignature renders the current slot environment stack as a cache key.
// Slots key by identity; values key by identity when they have one and by
// formatted contents otherwise.
func (ctx *Context) envSignature() string {
	if len(ctx.slots) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, binding := range ctx.slots {
		fmt.Fprintf(&sb, "%p=%s;", binding.Slot, valueKey(binding.Value))
	}
	return sb.String()
}
