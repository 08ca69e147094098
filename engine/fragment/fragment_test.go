package fragment

import (
	"errors"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/loom-go/engine/resolver"
	"github.com/Carmen-Shannon/loom-go/engine/resolver/transpiler"
)

// countingTranspiler wraps the real transpiler and counts calls so tests
// can verify the artifact is cached.
type countingTranspiler struct {
	inner transpiler.Transpiler
	calls int
}

func (c *countingTranspiler) Transpile(source string) (*transpiler.Transpiled, error) {
	c.calls++
	return c.inner.Transpile(source)
}

const doubleSource = `fn double(x: f32) -> f32 {
	return x * scale;
}`

func TestResolveLinksExternals(t *testing.T) {
	f := NewFn("double", doubleSource,
		WithExternals(map[string]resolver.Resolvable{"scale": resolver.Ident("globalScale")}),
	)
	ctx := resolver.NewContext()

	name, err := f.Resolve(ctx)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if name != "double" {
		t.Errorf("identifier = %q, want double", name)
	}
	source := ctx.Result().Source
	if !strings.Contains(source, "x * globalScale") {
		t.Errorf("external not substituted:\n%s", source)
	}
	if strings.Contains(source, "scale;") {
		t.Errorf("original external token left behind:\n%s", source)
	}
}

func TestCollidingExternalNamesSubstituteIndependently(t *testing.T) {
	src := `fn chain() -> f32 {
	return a + b;
}`
	// a's replacement collides with b's token name; each occurrence must be
	// rewritten from the original source exactly once.
	f := NewFn("chain", src, WithExternals(map[string]resolver.Resolvable{
		"a": resolver.Ident("b"),
		"b": resolver.Ident("c"),
	}))

	for i := 0; i < 64; i++ {
		ctx := resolver.NewContext()
		if _, err := f.Resolve(ctx); err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		source := ctx.Result().Source
		if !strings.Contains(source, "return b + c;") {
			t.Fatalf("iteration %d: replacement was rewritten again:\n%s", i, source)
		}
	}
}

func TestMissingExternalsReportedTogether(t *testing.T) {
	src := `fn mix_three() -> f32 {
	return a + b + c;
}`
	f := NewFn("mix_three", src,
		WithExternals(map[string]resolver.Resolvable{"a": resolver.Ident("a")}),
	)

	_, err := f.Resolve(resolver.NewContext())
	if err == nil {
		t.Fatal("expected missing-links error")
	}
	var missing *MissingLinksError
	if !errors.As(err, &missing) {
		t.Fatalf("error type = %T, want *MissingLinksError", err)
	}
	if missing.Label != "mix_three" {
		t.Errorf("Label = %q", missing.Label)
	}
	if len(missing.Missing) != 2 || missing.Missing[0] != "b" || missing.Missing[1] != "c" {
		t.Errorf("Missing = %v, want [b c]", missing.Missing)
	}
}

func TestApplyExternalsAddsWithoutClearing(t *testing.T) {
	f := NewFn("double", doubleSource).(*fn)
	f.ApplyExternals(map[string]resolver.Resolvable{"scale": resolver.Ident("first")})
	f.ApplyExternals(map[string]resolver.Resolvable{"scale": nil})

	if f.externals["scale"] != resolver.Ident("first") {
		t.Error("nil binding cleared an existing external")
	}

	f.ApplyExternals(map[string]resolver.Resolvable{"scale": resolver.Ident("second")})
	if f.externals["scale"] != resolver.Ident("second") {
		t.Error("non-nil binding did not replace the external")
	}
}

func TestTranspileArtifactIsCached(t *testing.T) {
	counting := &countingTranspiler{inner: transpiler.New()}
	f := NewFn("double", doubleSource,
		WithTranspiler(counting),
		WithExternals(map[string]resolver.Resolvable{"scale": resolver.Ident("s")}),
	)

	if _, err := f.Resolve(resolver.NewContext()); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, err := f.Resolve(resolver.NewContext()); err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if counting.calls != 1 {
		t.Errorf("transpiler called %d times, want 1", counting.calls)
	}
}

func TestDependentFragmentsDeclareInOrder(t *testing.T) {
	helper := NewFn("helper", `fn helper(v: f32) -> f32 {
	return v + offset;
}`, WithExternals(map[string]resolver.Resolvable{"offset": resolver.Ident("1.0")}))

	entry := NewFn("main", `fn main() {
	let r = helper(2.0);
}`, WithExternals(map[string]resolver.Resolvable{"helper": helper}))

	ctx := resolver.NewContext()
	if _, err := entry.ResolveEntry(ctx, "@compute @workgroup_size(1, 1, 1)"); err != nil {
		t.Fatalf("ResolveEntry: %v", err)
	}
	source := ctx.Result().Source
	helperAt := strings.Index(source, "fn helper")
	mainAt := strings.Index(source, "fn main")
	if helperAt < 0 || mainAt < 0 {
		t.Fatalf("missing declarations:\n%s", source)
	}
	if helperAt > mainAt {
		t.Errorf("helper declared after main:\n%s", source)
	}
	if !strings.Contains(source, "@compute @workgroup_size(1, 1, 1)\nfn main") {
		t.Errorf("entry attributes missing:\n%s", source)
	}
}

func TestLiteralTemplateLeavesUnknownsAlone(t *testing.T) {
	f := NewFn("blit", `fn blit() {
	let c = textureSample(tex, smp, uv);
}`, WithLiteralTemplate(),
		WithExternals(map[string]resolver.Resolvable{"tex": resolver.Ident("atlas")}),
	)

	ctx := resolver.NewContext()
	if _, err := f.Resolve(ctx); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	source := ctx.Result().Source
	if !strings.Contains(source, "atlas, smp, uv") {
		t.Errorf("literal substitution incomplete:\n%s", source)
	}
}

func TestWorkgroupSizeFallbacks(t *testing.T) {
	explicit := NewFn("a", doubleSource, WithWorkgroupSize(8, 4, 2))
	if got := explicit.WorkgroupSize(); got != [3]uint32{8, 4, 2} {
		t.Errorf("WorkgroupSize = %v", got)
	}

	parsed := NewFn("b", "@compute @workgroup_size(64) fn run() { }")
	if got := parsed.WorkgroupSize(); got != [3]uint32{64, 1, 1} {
		t.Errorf("parsed WorkgroupSize = %v", got)
	}

	fallback := NewFn("c", doubleSource)
	if got := fallback.WorkgroupSize(); got != [3]uint32{1, 1, 1} {
		t.Errorf("default WorkgroupSize = %v", got)
	}
}
