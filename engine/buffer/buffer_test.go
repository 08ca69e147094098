package buffer

import (
	"errors"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/loom-go/engine/resolver"
	"github.com/Carmen-Shannon/loom-go/engine/schema"
	"github.com/cogentcore/webgpu/wgpu"
)

func TestBindablesAreMemoizedPerUsage(t *testing.T) {
	buf := NewBuffer("counts", schema.NewRuntimeArray(schema.AtomicU32),
		WithUsages(resolver.UsageMutableStorage, resolver.UsageReadOnlyStorage),
		WithCount(64),
	)

	first, err := buf.AsMutable()
	if err != nil {
		t.Fatalf("AsMutable: %v", err)
	}
	second, err := buf.AsMutable()
	if err != nil {
		t.Fatalf("second AsMutable: %v", err)
	}
	if first != second {
		t.Error("repeated AsMutable returned distinct instances")
	}

	readonly, err := buf.AsReadonly()
	if err != nil {
		t.Fatalf("AsReadonly: %v", err)
	}
	if readonly == first {
		t.Error("distinct usages share a bindable instance")
	}
}

func TestUnauthorizedUsageFailsAtConstruction(t *testing.T) {
	buf := NewBuffer("params", schema.Vec4f, WithUsages(resolver.UsageUniform))

	_, err := buf.AsMutable()
	if err == nil {
		t.Fatal("expected unauthorized-usage error")
	}
	var unauthorized *UnauthorizedUsageError
	if !errors.As(err, &unauthorized) {
		t.Fatalf("error type = %T", err)
	}
	if unauthorized.Label != "params" || unauthorized.Usage != resolver.UsageMutableStorage {
		t.Errorf("error fields = %+v", unauthorized)
	}
	if !strings.Contains(err.Error(), "params") {
		t.Errorf("error does not identify the buffer: %v", err)
	}
}

func TestRuntimeArrayBufferSizing(t *testing.T) {
	buf := NewBuffer("samples", schema.NewRuntimeArray(schema.F32),
		WithUsages(resolver.UsageReadOnlyStorage),
		WithCount(100),
	)
	if got := buf.Size(); got != 400 {
		t.Errorf("Size() = %d, want 400", got)
	}
}

func TestResolveEmitsBindingDeclaration(t *testing.T) {
	params := schema.NewStruct("Params",
		schema.Field{Name: "bins", Type: schema.U32},
		schema.Field{Name: "scale", Type: schema.F32},
	)
	buf := NewBuffer("params", params, WithUsages(resolver.UsageUniform))
	bindable, err := buf.AsUniform()
	if err != nil {
		t.Fatalf("AsUniform: %v", err)
	}

	ctx := resolver.NewContext()
	name, err := bindable.Resolve(ctx)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	source := ctx.Result().Source

	structAt := strings.Index(source, "struct Params")
	declAt := strings.Index(source, "@group(0) @binding(0) var<uniform> "+name+": Params;")
	if structAt < 0 || declAt < 0 {
		t.Fatalf("missing declarations:\n%s", source)
	}
	if structAt > declAt {
		t.Errorf("struct declared after its binding:\n%s", source)
	}

	// Re-resolution reuses the declaration.
	again, err := bindable.Resolve(ctx)
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if again != name {
		t.Errorf("identifier changed from %q to %q", name, again)
	}
	if strings.Count(ctx.Result().Source, "@group(0)") != 1 {
		t.Error("binding declaration emitted twice")
	}
}

func TestVertexLayoutFromStruct(t *testing.T) {
	vertex := schema.NewStruct("Vertex",
		schema.Field{Name: "position", Type: schema.Vec3f},
		schema.Field{Name: "uv", Type: schema.Vec2f},
	)
	buf := NewBuffer("mesh", schema.NewRuntimeArray(vertex),
		WithUsages(resolver.UsageVertex),
		WithCount(3),
	)
	bindable, err := buf.AsVertex()
	if err != nil {
		t.Fatalf("AsVertex: %v", err)
	}

	layout := bindable.VertexLayout()
	if layout.ArrayStride != vertex.Size() {
		t.Errorf("ArrayStride = %d, want %d", layout.ArrayStride, vertex.Size())
	}
	if len(layout.Attributes) != 2 {
		t.Fatalf("attribute count = %d, want 2", len(layout.Attributes))
	}
	if layout.Attributes[0].Format != wgpu.VertexFormatFloat32x3 {
		t.Errorf("attribute 0 format = %v", layout.Attributes[0].Format)
	}
	if layout.Attributes[1].Offset != 16 {
		t.Errorf("attribute 1 offset = %d, want 16", layout.Attributes[1].Offset)
	}
	if layout.Attributes[1].ShaderLocation != 1 {
		t.Errorf("attribute 1 location = %d", layout.Attributes[1].ShaderLocation)
	}
}

func TestVertexRejectsUnsupportedShapes(t *testing.T) {
	nested := schema.NewArray(schema.NewArray(schema.F32, 4), 4)
	buf := NewBuffer("bad", nested, WithUsages(resolver.UsageVertex))

	_, err := buf.AsVertex()
	if err == nil {
		t.Fatal("expected unsupported-data-shape error")
	}
	var shape *UnsupportedDataShapeError
	if !errors.As(err, &shape) {
		t.Fatalf("error type = %T", err)
	}
	if shape.Label != "bad" {
		t.Errorf("Label = %q", shape.Label)
	}
}

func TestVertexBindableRegistersSlotNotGroup(t *testing.T) {
	buf := NewBuffer("mesh", schema.NewRuntimeArray(schema.Vec2f),
		WithUsages(resolver.UsageVertex),
		WithCount(3),
	)
	bindable, err := buf.AsVertex()
	if err != nil {
		t.Fatalf("AsVertex: %v", err)
	}

	ctx := resolver.NewContext()
	if _, err := bindable.Resolve(ctx); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	result := ctx.Result()
	if result.CatchAll != nil {
		t.Error("vertex bindable landed in a bind group")
	}
	if len(result.VertexBuffers) != 1 {
		t.Errorf("vertex buffer list holds %d entries, want 1", len(result.VertexBuffers))
	}
	if strings.Contains(result.Source, "@group") {
		t.Errorf("vertex bindable emitted a binding declaration:\n%s", result.Source)
	}
}
