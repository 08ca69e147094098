// Package fragment implements the typed shader function core: a labeled
// WGSL function implementation plus the map of external names it links
// against. During resolution a fragment transpiles its implementation (once,
// cached), verifies every free identifier is linked, resolves its externals
// recursively, and emits its own declaration after theirs.
package fragment

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/Carmen-Shannon/loom-go/engine/resolver"
	"github.com/Carmen-Shannon/loom-go/engine/resolver/transpiler"
)

// MissingLinksError reports every external name a function implementation
// references that has no binding in its externals map. All missing names
// are enumerated so the caller can fix them in one pass.
type MissingLinksError struct {
	// Label is the owning function's label.
	Label string

	// Missing holds the unbound external names, in first-use order.
	Missing []string
}

func (e *MissingLinksError) Error() string {
	return fmt.Sprintf("fragment: function %q has unlinked externals: %s",
		e.Label, strings.Join(e.Missing, ", "))
}

// Fn is a typed shader function fragment. It resolves into a single WGSL
// function declaration, linking each free identifier in its body to the
// resolved form of the bound external.
type Fn interface {
	resolver.Resolvable

	// ApplyExternals merges additional name to Resolvable bindings into the
	// externals map. Existing bindings are replaced only by non-nil values;
	// nil values are ignored so a binding can never be silently cleared.
	//
	// Parameters:
	//   - bindings: the bindings to merge
	ApplyExternals(bindings map[string]resolver.Resolvable)

	// ResolveEntry resolves the fragment as a pipeline entry point,
	// prefixing its declaration with the given stage attributes
	// (e.g. "@compute @workgroup_size(64)").
	//
	// Parameters:
	//   - ctx: the active resolution context
	//   - attributePrefix: the stage attribute text, or empty
	//
	// Returns:
	//   - string: the assigned entry point identifier
	//   - error: an error if transpilation, linking, or a dependency fails
	ResolveEntry(ctx *resolver.Context, attributePrefix string) (string, error)

	// WorkgroupSize returns the compute workgroup size declared for the
	// fragment, either via option, parsed from the implementation's own
	// @workgroup_size attribute, or the default of 1x1x1.
	//
	// Returns:
	//   - [3]uint32: the x, y, z workgroup dimensions
	WorkgroupSize() [3]uint32
}

// fn is the implementation of the Fn interface.
type fn struct {
	label     string
	impl      string
	literal   bool
	externals map[string]resolver.Resolvable

	tp     transpiler.Transpiler
	cached *transpiler.Transpiled

	workgroup    [3]uint32
	hasWorkgroup bool
}

var _ Fn = &fn{}

// Label returns the fragment's label.
func (f *fn) Label() string { return f.label }

// Resolve resolves the fragment as a plain (non-entry) function.
func (f *fn) Resolve(ctx *resolver.Context) (string, error) {
	return f.resolve(ctx, "")
}

// ResolveEntry resolves the fragment with stage attributes prefixed.
func (f *fn) ResolveEntry(ctx *resolver.Context, attributePrefix string) (string, error) {
	return f.resolve(ctx, attributePrefix)
}

// ApplyExternals merges bindings into the externals map.
func (f *fn) ApplyExternals(bindings map[string]resolver.Resolvable) {
	for name, r := range bindings {
		if r == nil {
			continue
		}
		f.externals[name] = r
	}
}

// WorkgroupSize returns the declared workgroup size, falling back to one
// parsed from the implementation, then to 1x1x1.
func (f *fn) WorkgroupSize() [3]uint32 {
	if f.hasWorkgroup {
		return f.workgroup
	}
	if size, ok := transpiler.ParseWorkgroupSize(f.impl); ok {
		return size
	}
	return [3]uint32{1, 1, 1}
}

func (f *fn) resolve(ctx *resolver.Context, attributePrefix string) (string, error) {
	source := f.impl
	var externalOrder []string

	if f.literal {
		externalOrder = orderedReferences(source, f.externals)
	} else {
		artifact, err := f.transpiled()
		if err != nil {
			return "", err
		}
		var missing []string
		for _, name := range artifact.ExternalNames {
			if _, ok := f.externals[name]; !ok {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			return "", &MissingLinksError{Label: f.label, Missing: missing}
		}
		source = artifact.Source
		externalOrder = artifact.ExternalNames
	}

	name, seen := ctx.Visit(f)
	if seen {
		return name, nil
	}

	// Dependencies resolve first so their declarations precede this one.
	replacements := make(map[string]string, len(externalOrder))
	for _, external := range externalOrder {
		resolved, err := f.externals[external].Resolve(ctx)
		if err != nil {
			return "", fmt.Errorf("fragment: resolving external %q of function %q: %w",
				external, f.label, err)
		}
		replacements[external] = resolved
	}

	decl := substituteTokens(source, replacements)
	decl = renameFn(decl, name)
	if attributePrefix != "" {
		decl = attributePrefix + "\n" + decl
	}
	ctx.AppendDeclaration(decl)
	return name, nil
}

// transpiled returns the cached transpilation artifact, producing it on
// first use.
func (f *fn) transpiled() (*transpiler.Transpiled, error) {
	if f.cached != nil {
		return f.cached, nil
	}
	artifact, err := f.tp.Transpile(f.impl)
	if err != nil {
		return nil, fmt.Errorf("fragment: transpiling function %q: %w", f.label, err)
	}
	f.cached = artifact
	return artifact, nil
}

// fnNameRegex captures the declared function name for renaming.
var fnNameRegex = regexp.MustCompile(`\bfn\s+(\w+)`)

// renameFn replaces the declared function name with the assigned identifier.
func renameFn(decl, name string) string {
	loc := fnNameRegex.FindStringSubmatchIndex(decl)
	if loc == nil {
		return decl
	}
	return decl[:loc[2]] + name + decl[loc[3]:]
}

// substituteTokens replaces each key with its replacement at identifier
// boundaries only, leaving member accesses and longer identifiers intact.
// All tokens substitute in one left-to-right pass over the original source,
// so a replacement can never be rewritten again when it collides with
// another token's name.
func substituteTokens(source string, replacements map[string]string) string {
	if len(replacements) == 0 {
		return source
	}
	tokens := make([]string, 0, len(replacements))
	for token := range replacements {
		tokens = append(tokens, regexp.QuoteMeta(token))
	}
	sort.Strings(tokens)
	re := regexp.MustCompile(`\b(?:` + strings.Join(tokens, "|") + `)\b`)

	out := make([]byte, 0, len(source))
	last := 0
	for _, idx := range re.FindAllStringIndex(source, -1) {
		if idx[0] > 0 && source[idx[0]-1] == '.' {
			continue
		}
		out = append(out, source[last:idx[0]]...)
		out = append(out, replacements[source[idx[0]:idx[1]]]...)
		last = idx[1]
	}
	out = append(out, source[last:]...)
	return string(out)
}

// orderedReferences returns the bound external names that appear in source,
// in first-occurrence order. Used by the literal-template path, which
// substitutes known externals and verifies nothing.
func orderedReferences(source string, externals map[string]resolver.Resolvable) []string {
	type hit struct {
		name string
		pos  int
	}
	var hits []hit
	for name := range externals {
		re := regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\b`)
		if idx := re.FindStringIndex(source); idx != nil {
			hits = append(hits, hit{name: name, pos: idx[0]})
		}
	}
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].pos < hits[j-1].pos; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
	names := make([]string, len(hits))
	for i, h := range hits {
		names[i] = h.name
	}
	return names
}
