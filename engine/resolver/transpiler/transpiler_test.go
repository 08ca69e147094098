package transpiler

import (
	"reflect"
	"testing"
)

const histogramSource = `
// bin the input samples
fn count_bins(@builtin(global_invocation_id) gid: vec3<u32>) {
	let i = gid.x;
	if (i >= arrayLength(&samples)) {
		return;
	}
	/* clamp into range, then
	   bump the matching bin */
	let bin = clamp(u32(samples[i] * binScale), 0u, binCount - 1u);
	atomicAdd(&counts[bin], 1u);
}
`

func TestTranspileCollectsExternalsInFirstUseOrder(t *testing.T) {
	artifact, err := New().Transpile(histogramSource)
	if err != nil {
		t.Fatalf("Transpile: %v", err)
	}
	if artifact.Name != "count_bins" {
		t.Errorf("Name = %q, want count_bins", artifact.Name)
	}
	if !reflect.DeepEqual(artifact.ArgNames, []string{"gid"}) {
		t.Errorf("ArgNames = %v, want [gid]", artifact.ArgNames)
	}
	want := []string{"samples", "binScale", "binCount", "counts"}
	if !reflect.DeepEqual(artifact.ExternalNames, want) {
		t.Errorf("ExternalNames = %v, want %v", artifact.ExternalNames, want)
	}
}

func TestTranspileIsDeterministic(t *testing.T) {
	tp := New()
	first, err := tp.Transpile(histogramSource)
	if err != nil {
		t.Fatalf("Transpile: %v", err)
	}
	second, err := tp.Transpile(histogramSource)
	if err != nil {
		t.Fatalf("second Transpile: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("repeated transpilation produced different artifacts")
	}
}

func TestTranspileExcludesLocalsArgsAndMembers(t *testing.T) {
	src := `fn f(a: f32, b: vec2<f32>) -> f32 {
	var acc = a;
	let scaled = acc * b.x;
	return scaled + params.bias;
}`
	artifact, err := New().Transpile(src)
	if err != nil {
		t.Fatalf("Transpile: %v", err)
	}
	if !reflect.DeepEqual(artifact.ArgNames, []string{"a", "b"}) {
		t.Errorf("ArgNames = %v", artifact.ArgNames)
	}
	if !reflect.DeepEqual(artifact.ExternalNames, []string{"params"}) {
		t.Errorf("ExternalNames = %v, want [params]", artifact.ExternalNames)
	}
}

func TestTranspileStripsCommentsFromSource(t *testing.T) {
	artifact, err := New().Transpile(histogramSource)
	if err != nil {
		t.Fatalf("Transpile: %v", err)
	}
	for _, fragment := range []string{"//", "/*", "*/"} {
		if contains(artifact.Source, fragment) {
			t.Errorf("artifact source still contains %q:\n%s", fragment, artifact.Source)
		}
	}
}

func TestTranspileRejectsNonFunctions(t *testing.T) {
	if _, err := New().Transpile("struct S { a: f32, }"); err == nil {
		t.Error("expected error for source with no fn")
	}
	if _, err := New().Transpile("fn broken() {"); err == nil {
		t.Error("expected error for unterminated body")
	}
}

func TestParseWorkgroupSize(t *testing.T) {
	size, ok := ParseWorkgroupSize("@compute @workgroup_size(64) fn main() {}")
	if !ok || size != [3]uint32{64, 1, 1} {
		t.Errorf("ParseWorkgroupSize = %v, %v", size, ok)
	}
	size, ok = ParseWorkgroupSize("@workgroup_size(8, 8, 2)")
	if !ok || size != [3]uint32{8, 8, 2} {
		t.Errorf("ParseWorkgroupSize = %v, %v", size, ok)
	}
	if _, ok = ParseWorkgroupSize("fn main() {}"); ok {
		t.Error("ParseWorkgroupSize reported a size with no attribute")
	}
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
