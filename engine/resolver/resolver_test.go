package resolver

import (
	"fmt"
	"strings"
	"testing"
)

// stubFn emits one function declaration whose body embeds the resolved
// value of each dependency, in order.
type stubFn struct {
	label string
	deps  []Resolvable
}

func (f *stubFn) Label() string { return f.label }

func (f *stubFn) Resolve(ctx *Context) (string, error) {
	name, seen := ctx.Visit(f)
	if seen {
		return name, nil
	}
	parts := make([]string, 0, len(f.deps))
	for _, dep := range f.deps {
		resolved, err := dep.Resolve(ctx)
		if err != nil {
			return "", err
		}
		parts = append(parts, resolved)
	}
	ctx.AppendDeclaration(fmt.Sprintf("fn %s() { use(%s); }", name, strings.Join(parts, ", ")))
	return name, nil
}

// stubBindable registers itself as a binding and declares its placement.
type stubBindable struct {
	label string
	usage BindingUsage
}

func (b *stubBindable) Label() string          { return b.label }
func (b *stubBindable) Usage() BindingUsage    { return b.usage }
func (b *stubBindable) MinBindingSize() uint64 { return 16 }

func (b *stubBindable) Resolve(ctx *Context) (string, error) {
	name, seen := ctx.VisitShared(b)
	if seen {
		return name, nil
	}
	p, err := ctx.PlaceBinding(b)
	if err != nil {
		return "", err
	}
	ctx.AppendDeclaration(fmt.Sprintf("@group(%d) @binding(%d) %s %s: T;", p.Group, p.Binding, b.usage.AddressSpace(), name))
	return name, nil
}

// stubLayout covers a fixed set of bindables by position.
type stubLayout struct {
	label   string
	covered []BindableResource
}

func (l *stubLayout) Label() string { return l.label }

func (l *stubLayout) Covers(b BindableResource) (int, bool) {
	for i, c := range l.covered {
		if c == b {
			return i, true
		}
	}
	return 0, false
}

func TestIdentifierAssignmentIsIdempotent(t *testing.T) {
	ctx := NewContext()
	f := &stubFn{label: "main"}

	first, seen := ctx.Visit(f)
	if seen {
		t.Fatal("first Visit reported seen")
	}
	second, seen := ctx.Visit(f)
	if !seen {
		t.Error("second Visit did not report seen")
	}
	if first != second {
		t.Errorf("Visit returned %q then %q, want identical", first, second)
	}
}

func TestIdentifierCollisionsGetSuffixes(t *testing.T) {
	ctx := NewContext()
	a, _ := ctx.Visit(&stubFn{label: "helper"})
	b, _ := ctx.Visit(&stubFn{label: "helper"})
	c, _ := ctx.Visit(&stubFn{label: "helper"})

	if a != "helper" {
		t.Errorf("first name = %q, want helper", a)
	}
	if b != "helper_1" || c != "helper_2" {
		t.Errorf("collision names = %q, %q, want helper_1, helper_2", b, c)
	}
}

func TestUnlabeledEntitiesGetGeneratedNames(t *testing.T) {
	ctx := NewContext()
	a, _ := ctx.Visit(&stubFn{label: ""})
	b, _ := ctx.Visit(&stubFn{label: "---"})
	if a == b {
		t.Errorf("distinct entities share generated name %q", a)
	}
	if a == "" || b == "" {
		t.Error("generated names must not be empty")
	}
}

func TestResolveIsDeterministicWithinContext(t *testing.T) {
	counts := &stubBindable{label: "counts", usage: UsageMutableStorage}
	params := &stubBindable{label: "params", usage: UsageUniform}
	entry := &stubFn{label: "main", deps: []Resolvable{params, counts}}

	ctx := NewContext()
	first, err := ctx.Resolve(entry)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	second, err := ctx.Resolve(entry)
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}

	if first.Source != second.Source {
		t.Errorf("source changed between passes:\n%s\nvs\n%s", first.Source, second.Source)
	}
	if len(first.Layouts) != len(second.Layouts) {
		t.Fatalf("layout counts differ: %d vs %d", len(first.Layouts), len(second.Layouts))
	}
	for i := range first.Layouts {
		if first.Layouts[i] != second.Layouts[i] {
			t.Errorf("layout %d identity changed between passes", i)
		}
	}
}

func TestDependencyDeclarationsPrecedeDependents(t *testing.T) {
	counts := &stubBindable{label: "counts", usage: UsageMutableStorage}
	entry := &stubFn{label: "main", deps: []Resolvable{counts}}

	result, err := NewContext().Resolve(entry)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	countsAt := strings.Index(result.Source, "counts")
	mainAt := strings.Index(result.Source, "fn main")
	if countsAt < 0 || mainAt < 0 {
		t.Fatalf("missing declarations in source:\n%s", result.Source)
	}
	if countsAt > mainAt {
		t.Errorf("dependency declared after dependent:\n%s", result.Source)
	}
}

func TestCatchAllCoversAllBindablesAtGroupZero(t *testing.T) {
	a := &stubBindable{label: "a", usage: UsageUniform}
	b := &stubBindable{label: "b", usage: UsageReadOnlyStorage}
	c := &stubBindable{label: "c", usage: UsageMutableStorage}
	entry := &stubFn{label: "main", deps: []Resolvable{a, b, c}}

	result, err := NewContext().Resolve(entry)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if result.CatchAll == nil {
		t.Fatal("no catch-all group was created")
	}
	if result.CatchAll.Index != 0 {
		t.Errorf("catch-all index = %d, want 0", result.CatchAll.Index)
	}
	if len(result.CatchAll.Bindings) != 3 {
		t.Fatalf("catch-all holds %d bindings, want 3", len(result.CatchAll.Bindings))
	}
	// First-reference order assigns binding numbers.
	want := []BindableResource{a, b, c}
	for i, bound := range result.CatchAll.Bindings {
		if bound != want[i] {
			t.Errorf("binding %d = %q, want %q", i, bound.Label(), want[i].Label())
		}
	}
	if len(result.Layouts) != 1 || result.Layouts[0] != BindGroupLayout(result.CatchAll) {
		t.Error("layout list should hold exactly the catch-all")
	}
}

func TestExplicitLayoutPushesCatchAllToNextIndex(t *testing.T) {
	a := &stubBindable{label: "a", usage: UsageUniform}
	b := &stubBindable{label: "b", usage: UsageReadOnlyStorage}
	c := &stubBindable{label: "c", usage: UsageMutableStorage}
	explicit := &stubLayout{label: "explicit", covered: []BindableResource{a, b}}
	entry := &stubFn{label: "main", deps: []Resolvable{a, b, c}}

	ctx := NewContext(WithBindGroupLayouts(explicit))
	result, err := ctx.Resolve(entry)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if result.CatchAll == nil {
		t.Fatal("no catch-all group was created")
	}
	if result.CatchAll.Index != 1 {
		t.Errorf("catch-all index = %d, want 1", result.CatchAll.Index)
	}
	if len(result.CatchAll.Bindings) != 1 || result.CatchAll.Bindings[0] != BindableResource(c) {
		t.Errorf("catch-all should hold only %q", c.label)
	}
	if !strings.Contains(result.Source, "@group(0) @binding(1)") {
		t.Errorf("covered bindable not placed in explicit layout:\n%s", result.Source)
	}
	if !strings.Contains(result.Source, "@group(1) @binding(0)") {
		t.Errorf("uncovered bindable not placed in catch-all:\n%s", result.Source)
	}
}

func TestSlotResolvesBoundValueOverDefault(t *testing.T) {
	slot := NewSlotWithDefault("threshold", 3)
	ctx := NewContext()

	got, err := slot.Resolve(ctx)
	if err != nil {
		t.Fatalf("Resolve with default: %v", err)
	}
	if got != "3" {
		t.Errorf("default value resolved to %q, want 3", got)
	}

	scoped := WithSlots(slot, SlotBinding{Slot: slot, Value: 7})
	got, err = scoped.Resolve(ctx)
	if err != nil {
		t.Fatalf("Resolve with binding: %v", err)
	}
	if got != "7" {
		t.Errorf("bound value resolved to %q, want 7", got)
	}
}

func TestUnboundSlotWithoutDefaultFails(t *testing.T) {
	slot := NewSlot("missing")
	if _, err := slot.Resolve(NewContext()); err == nil {
		t.Error("expected error for unbound slot with no default")
	}
}

func TestSlotBindingsPopOnExit(t *testing.T) {
	slot := NewSlot("mode")
	ctx := NewContext()

	inner := WithSlots(slot, SlotBinding{Slot: slot, Value: 1})
	if _, err := inner.Resolve(ctx); err != nil {
		t.Fatalf("scoped Resolve: %v", err)
	}
	if _, err := slot.Resolve(ctx); err == nil {
		t.Error("slot binding leaked past its scope")
	}
}

func TestSlotEnvironmentKeysSeparateDeclarations(t *testing.T) {
	slot := NewSlot("factor")
	f := &stubFn{label: "scale", deps: []Resolvable{slot}}
	ctx := NewContext()

	nameA, err := WithSlots(f, SlotBinding{Slot: slot, Value: 2}).Resolve(ctx)
	if err != nil {
		t.Fatalf("Resolve under A: %v", err)
	}
	nameB, err := WithSlots(f, SlotBinding{Slot: slot, Value: 5}).Resolve(ctx)
	if err != nil {
		t.Fatalf("Resolve under B: %v", err)
	}

	if nameA == nameB {
		t.Errorf("same identifier %q under different slot values", nameA)
	}
	source := ctx.Result().Source
	if !strings.Contains(source, "use(2)") || !strings.Contains(source, "use(5)") {
		t.Errorf("expected two independent declarations:\n%s", source)
	}

	// Re-resolving under an already seen binding reuses the declaration.
	nameA2, err := WithSlots(f, SlotBinding{Slot: slot, Value: 2}).Resolve(ctx)
	if err != nil {
		t.Fatalf("repeat Resolve under A: %v", err)
	}
	if nameA2 != nameA {
		t.Errorf("repeat resolution renamed %q to %q", nameA, nameA2)
	}
	if got := strings.Count(ctx.Result().Source, "use(2)"); got != 1 {
		t.Errorf("declaration re-emitted %d times under identical binding", got)
	}
}

func TestFormatValueRendersFloatsAsFloats(t *testing.T) {
	if got := formatValue(float32(2)); got != "2.0" {
		t.Errorf("formatValue(2.0f) = %q, want 2.0", got)
	}
	if got := formatValue(1.5); got != "1.5" {
		t.Errorf("formatValue(1.5) = %q", got)
	}
	if got := formatValue(true); got != "true" {
		t.Errorf("formatValue(true) = %q", got)
	}
}

func TestVertexBindablesOccupySlotsNotGroups(t *testing.T) {
	v := &stubBindable{label: "verts", usage: UsageVertex}
	ctx := NewContext()

	if _, err := ctx.PlaceBinding(v); err == nil {
		t.Error("PlaceBinding accepted a vertex bindable")
	}
	if slot := ctx.RegisterVertexBuffer(v); slot != 0 {
		t.Errorf("first vertex slot = %d, want 0", slot)
	}
	if slot := ctx.RegisterVertexBuffer(v); slot != 0 {
		t.Errorf("repeat registration moved slot to %d", slot)
	}
	if got := len(ctx.Result().VertexBuffers); got != 1 {
		t.Errorf("vertex buffer list holds %d entries, want 1", got)
	}
}
