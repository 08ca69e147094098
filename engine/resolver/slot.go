package resolver

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Slot is an identity-keyed compile-time parameter cell. It is not itself
// shader-visible; whatever value the slot environment currently binds to it
// substitutes into resolution. A slot with no bound value falls back to its
// default, and a slot with neither fails the pass.
type Slot struct {
	label      string
	def        any
	hasDefault bool
}

var _ Resolvable = &Slot{}

// NewSlot creates a slot with no default value.
//
// Parameters:
//   - label: the slot's name, used in errors and derived identifiers
//
// Returns:
//   - *Slot: the slot
func NewSlot(label string) *Slot {
	return &Slot{label: label}
}

// NewSlotWithDefault creates a slot that resolves to def whenever the slot
// environment does not bind it.
//
// Parameters:
//   - label: the slot's name
//   - def: the default value (a Resolvable, or a plain value formatted as a
//     shader literal)
//
// Returns:
//   - *Slot: the slot
func NewSlotWithDefault(label string, def any) *Slot {
	return &Slot{label: label, def: def, hasDefault: true}
}

// Label returns the slot's name.
func (s *Slot) Label() string { return s.label }

// Resolve substitutes the slot's currently bound value. A Resolvable value
// is resolved recursively; any other value is formatted as a WGSL literal.
func (s *Slot) Resolve(ctx *Context) (string, error) {
	value, ok := ctx.SlotValue(s)
	if !ok {
		return "", fmt.Errorf("resolver: slot %q has no bound value and no default", s.label)
	}
	if r, isResolvable := value.(Resolvable); isResolvable {
		return r.Resolve(ctx)
	}
	return formatValue(value), nil
}

// SlotBinding pairs a slot with the value it should take for the duration of
// a scope.
type SlotBinding struct {
	// Slot is the slot being bound.
	Slot *Slot

	// Value is the bound value. Resolvables resolve in place; other values
	// are formatted as shader literals.
	Value any
}

// scoped wraps a Resolvable so that a set of slot bindings is in effect
// while it (and everything it references) resolves, and strictly not after.
type scoped struct {
	inner    Resolvable
	bindings []SlotBinding
}

var _ Resolvable = &scoped{}

// WithSlots returns a Resolvable that resolves inner with the given slot
// bindings pushed onto the slot environment. Bindings are popped when the
// resolution of inner returns, on success and failure alike.
//
// Parameters:
//   - inner: the Resolvable to scope
//   - bindings: the slot bindings to put in effect
//
// Returns:
//   - Resolvable: the scoped wrapper
func WithSlots(inner Resolvable, bindings ...SlotBinding) Resolvable {
	return &scoped{inner: inner, bindings: bindings}
}

func (s *scoped) Label() string { return s.inner.Label() }

func (s *scoped) Resolve(ctx *Context) (string, error) {
	ctx.pushSlots(s.bindings)
	defer ctx.popSlots(len(s.bindings))
	return s.inner.Resolve(ctx)
}

// formatValue renders a plain Go value as a WGSL literal.
func formatValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float32:
		return formatFloat(float64(v))
	case float64:
		return formatFloat(v)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// formatFloat renders a float so WGSL reads it as a float literal rather
// than an abstract integer.
func formatFloat(v float64) string {
	out := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(out, ".eE") {
		out += ".0"
	}
	return out
}

// valueKey produces the cache-key fragment for a bound slot value. Values
// with identity (pointers, Resolvables) key by identity; plain comparable
// values key by their formatted contents.
func valueKey(value any) string {
	if value == nil {
		return "<nil>"
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Chan, reflect.Map, reflect.Func, reflect.UnsafePointer:
		return fmt.Sprintf("@%x", rv.Pointer())
	default:
		return fmt.Sprintf("%T=%v", value, value)
	}
}
