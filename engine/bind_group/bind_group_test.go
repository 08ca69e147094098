package bind_group

import (
	"strings"
	"testing"

	"github.com/Carmen-Shannon/loom-go/engine/device"
	"github.com/Carmen-Shannon/loom-go/engine/resolver"
	"github.com/Carmen-Shannon/loom-go/engine/schema"
	"github.com/cogentcore/webgpu/wgpu"
)

// fakeBindable stands in for a buffer bindable. It satisfies DeviceBindable
// so group construction can be tested without a device.
type fakeBindable struct {
	label string
	usage resolver.BindingUsage
	size  uint64
}

func (f *fakeBindable) Label() string                { return f.label }
func (f *fakeBindable) Usage() resolver.BindingUsage { return f.usage }
func (f *fakeBindable) MinBindingSize() uint64       { return f.size }

func (f *fakeBindable) Resolve(ctx *resolver.Context) (string, error) {
	name, seen := ctx.VisitShared(f)
	if seen {
		return name, nil
	}
	if _, err := ctx.PlaceBinding(f); err != nil {
		return "", err
	}
	return name, nil
}

func (f *fakeBindable) Unwrap(dev device.Device) (device.Buffer, error) {
	return nil, nil
}

func expectPanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s did not panic", name)
		}
	}()
	fn()
}

func TestNewLayoutRejectsBadEntries(t *testing.T) {
	expectPanic(t, "empty layout", func() {
		NewLayout("empty")
	})
	expectPanic(t, "entry without type or resource", func() {
		NewLayout("bare", Entry{Key: "params", Usage: resolver.UsageUniform})
	})
	expectPanic(t, "vertex entry", func() {
		NewLayout("verts", Entry{
			Key:   "mesh",
			Usage: resolver.UsageVertex,
			Type:  schema.NewRuntimeArray(schema.Vec2f),
		})
	})
}

func TestCoversReportsPinnedPositions(t *testing.T) {
	counts := &fakeBindable{label: "counts", usage: resolver.UsageMutableStorage, size: 256}
	params := &fakeBindable{label: "params", usage: resolver.UsageUniform, size: 16}
	other := &fakeBindable{label: "other", usage: resolver.UsageUniform, size: 16}

	l := NewLayoutFor("scene", counts, params)
	if binding, ok := l.Covers(counts); !ok || binding != 0 {
		t.Errorf("Covers(counts) = %d, %v, want 0, true", binding, ok)
	}
	if binding, ok := l.Covers(params); !ok || binding != 1 {
		t.Errorf("Covers(params) = %d, %v, want 1, true", binding, ok)
	}
	if _, ok := l.Covers(other); ok {
		t.Error("Covers claimed an uncovered bindable")
	}
}

func TestBoundReturnsPinnedResource(t *testing.T) {
	counts := &fakeBindable{label: "counts", usage: resolver.UsageMutableStorage, size: 256}
	l := NewLayoutFor("scene", counts)

	if got := l.Bound("counts"); got != resolver.Resolvable(counts) {
		t.Error("Bound did not return the pinned resource")
	}
	expectPanic(t, "unknown key", func() {
		l.Bound("missing")
	})
}

func TestBoundEntryDeclaresAtLayoutGroup(t *testing.T) {
	params := schema.NewStruct("Params",
		schema.Field{Name: "bins", Type: schema.U32},
	)
	first := NewLayout("first", Entry{Key: "scale", Usage: resolver.UsageUniform, Type: schema.F32})
	second := NewLayout("second", Entry{Key: "params", Usage: resolver.UsageUniform, Type: params})

	ctx := resolver.NewContext(resolver.WithBindGroupLayouts(first, second))
	name, err := second.Bound("params").Resolve(ctx)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	source := ctx.Result().Source
	decl := "@group(1) @binding(0) var<uniform> " + name + ": Params;"
	if !strings.Contains(source, decl) {
		t.Errorf("missing %q in:\n%s", decl, source)
	}
	if !strings.Contains(source, "struct Params") {
		t.Errorf("struct declaration missing:\n%s", source)
	}
}

func TestBoundEntryRequiresLayoutInContext(t *testing.T) {
	l := NewLayout("scene", Entry{Key: "scale", Usage: resolver.UsageUniform, Type: schema.F32})
	if _, err := l.Bound("scale").Resolve(resolver.NewContext()); err == nil {
		t.Error("expected error when the layout was not supplied to the context")
	}
}

func TestNewGroupRequiresEveryField(t *testing.T) {
	l := NewLayout("scene",
		Entry{Key: "counts", Usage: resolver.UsageMutableStorage, Type: schema.NewRuntimeArray(schema.AtomicU32)},
		Entry{Key: "params", Usage: resolver.UsageUniform, Type: schema.F32},
	)
	counts := &fakeBindable{label: "counts", usage: resolver.UsageMutableStorage, size: 256}

	_, err := NewGroup("partial", l, map[string]DeviceBindable{"counts": counts})
	if err == nil {
		t.Fatal("expected error for unpopulated field")
	}
	if !strings.Contains(err.Error(), "params") {
		t.Errorf("error does not name the missing field: %v", err)
	}
}

func TestNewGroupRejectsUsageMismatch(t *testing.T) {
	l := NewLayout("scene",
		Entry{Key: "params", Usage: resolver.UsageUniform, Type: schema.F32},
	)
	wrong := &fakeBindable{label: "params", usage: resolver.UsageMutableStorage, size: 16}

	if _, err := NewGroup("bad", l, map[string]DeviceBindable{"params": wrong}); err == nil {
		t.Error("expected error for usage mismatch")
	}
}

func TestNewGroupAutoFillsPinnedEntries(t *testing.T) {
	counts := &fakeBindable{label: "counts", usage: resolver.UsageMutableStorage, size: 256}
	l := NewLayoutFor("scene", counts)

	g, err := NewGroup("auto", l, nil)
	if err != nil {
		t.Fatalf("NewGroup: %v", err)
	}
	if g.Layout() != l {
		t.Error("group does not report its layout")
	}
	if g.Label() != "auto" {
		t.Errorf("Label = %q", g.Label())
	}
}

func TestLayoutEntryMapsUsages(t *testing.T) {
	uniform := LayoutEntry(0, resolver.UsageUniform, 16)
	if uniform.Buffer.Type != wgpu.BufferBindingTypeUniform {
		t.Errorf("uniform binding type = %v", uniform.Buffer.Type)
	}
	if uniform.Buffer.MinBindingSize != 16 {
		t.Errorf("uniform min size = %d", uniform.Buffer.MinBindingSize)
	}
	if uniform.Visibility&wgpu.ShaderStageVertex == 0 {
		t.Error("uniform entry should be visible to the vertex stage")
	}

	readonly := LayoutEntry(1, resolver.UsageReadOnlyStorage, 0)
	if readonly.Buffer.Type != wgpu.BufferBindingTypeReadOnlyStorage {
		t.Errorf("readonly binding type = %v", readonly.Buffer.Type)
	}

	mutable := LayoutEntry(2, resolver.UsageMutableStorage, 0)
	if mutable.Binding != 2 {
		t.Errorf("mutable binding index = %d", mutable.Binding)
	}
	if mutable.Buffer.Type != wgpu.BufferBindingTypeStorage {
		t.Errorf("mutable binding type = %v", mutable.Buffer.Type)
	}
	if mutable.Visibility&wgpu.ShaderStageVertex != 0 {
		t.Error("mutable storage must not be visible to the vertex stage")
	}
}
