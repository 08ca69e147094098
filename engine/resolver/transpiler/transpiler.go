// Package transpiler turns a raw WGSL function implementation into a
// structured artifact the resolution engine can link: the declared function
// name, its ordered argument names, the ordered set of free identifiers the
// body references ("externals"), and the cleaned declaration text.
//
// The default implementation is regex-based and purely textual. It is
// deterministic for identical input, which the function-core caching layer
// relies on.
package transpiler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Transpiled is the artifact produced from one WGSL function implementation.
type Transpiled struct {
	// Name is the function name as declared in the source.
	Name string

	// ArgNames holds the declared parameter names, in signature order.
	ArgNames []string

	// ExternalNames holds the distinct free identifiers the body references,
	// in first-use order. Every one of these must be linked to a resolvable
	// entity before the function can be emitted.
	ExternalNames []string

	// Source is the full function declaration with comments stripped,
	// from the "fn" keyword through the closing brace.
	Source string
}

// Transpiler converts a WGSL function implementation into a Transpiled
// artifact. Implementations must be deterministic: the same input yields
// the same artifact on every call.
type Transpiler interface {
	// Transpile parses a single WGSL function declaration.
	//
	// Parameters:
	//   - source: WGSL text containing exactly one fn declaration, with or
	//     without leading attributes
	//
	// Returns:
	//   - *Transpiled: the parsed artifact
	//   - error: an error if the source does not contain a parseable fn
	Transpile(source string) (*Transpiled, error)
}

// wgslTranspiler is the default regex-based Transpiler implementation.
type wgslTranspiler struct{}

var _ Transpiler = &wgslTranspiler{}

// New creates the default WGSL transpiler.
//
// Returns:
//   - Transpiler: the transpiler
func New() Transpiler {
	return &wgslTranspiler{}
}

var (
	// fnDeclRegex matches a function declaration header up to the opening
	// parenthesis; the parameter list is extracted by paren matching since
	// attributes like @builtin(...) nest parentheses inside it.
	fnDeclRegex = regexp.MustCompile(`\bfn\s+(\w+)\s*\(`)

	// argNameRegex captures the parameter name preceding the type colon,
	// skipping any @builtin/@location attributes (which contain no colons).
	argNameRegex = regexp.MustCompile(`(\w+)\s*:`)

	// localDeclRegex captures identifiers introduced by let/var/const
	// statements inside the body.
	localDeclRegex = regexp.MustCompile(`\b(?:let|var|const)\s+(\w+)`)

	// identRegex matches candidate identifiers in the body. Member accesses
	// are excluded later by checking the preceding byte for '.'.
	identRegex = regexp.MustCompile(`[A-Za-z_]\w*`)

	// workgroupSizeRegex captures 1-3 integer dimensions from
	// @workgroup_size(x[, y[, z]]).
	workgroupSizeRegex = regexp.MustCompile(`@workgroup_size\(\s*(\d+)\s*(?:,\s*(\d+)\s*(?:,\s*(\d+)\s*)?)?\)`)
)

// wgslReserved holds WGSL keywords, builtin type constructors, and builtin
// functions that can never be externals.
var wgslReserved = map[string]bool{
	"fn": true, "let": true, "var": true, "const": true, "return": true,
	"if": true, "else": true, "for": true, "while": true, "loop": true,
	"break": true, "continue": true, "continuing": true, "switch": true,
	"case": true, "default": true, "discard": true, "struct": true,
	"true": true, "false": true, "uniform": true, "storage": true,
	"read": true, "read_write": true, "write": true, "workgroup": true,
	"private": true, "function": true,

	"bool": true, "f16": true, "f32": true, "i32": true, "u32": true,
	"vec2": true, "vec3": true, "vec4": true,
	"vec2f": true, "vec3f": true, "vec4f": true,
	"vec2i": true, "vec3i": true, "vec4i": true,
	"vec2u": true, "vec3u": true, "vec4u": true,
	"mat2x2": true, "mat3x3": true, "mat4x4": true, "array": true,
	"atomic": true, "ptr": true, "sampler": true,

	"abs": true, "all": true, "any": true, "ceil": true, "clamp": true,
	"cos": true, "cross": true, "distance": true, "dot": true, "exp": true,
	"exp2": true, "floor": true, "fract": true, "inverseSqrt": true,
	"length": true, "log": true, "log2": true, "max": true, "min": true,
	"mix": true, "normalize": true, "pow": true, "reflect": true,
	"round": true, "sign": true, "sin": true, "smoothstep": true,
	"sqrt": true, "step": true, "tan": true, "trunc": true,
	"select": true, "arrayLength": true, "atomicAdd": true,
	"atomicSub": true, "atomicLoad": true, "atomicStore": true,
	"atomicMax": true, "atomicMin": true, "atomicExchange": true,
	"textureSample": true, "textureLoad": true, "textureStore": true,
	"workgroupBarrier": true, "storageBarrier": true,
}

// Transpile parses the first fn declaration in source. Comments are
// stripped, the body is extracted by brace matching, and free identifiers
// are collected in first-use order after excluding arguments, locals,
// reserved words, and member accesses.
func (t *wgslTranspiler) Transpile(source string) (*Transpiled, error) {
	cleaned := stripComments(source)

	loc := fnDeclRegex.FindStringSubmatchIndex(cleaned)
	if loc == nil {
		return nil, fmt.Errorf("transpiler: no fn declaration found in source")
	}
	name := cleaned[loc[2]:loc[3]]

	argsClose, ok := matchParen(cleaned, loc[1]-1)
	if !ok {
		return nil, fmt.Errorf("transpiler: fn %q has an unterminated parameter list", name)
	}
	rawArgs := cleaned[loc[1]:argsClose]

	open := strings.Index(cleaned[argsClose:], "{")
	if open < 0 {
		return nil, fmt.Errorf("transpiler: fn %q has no body", name)
	}
	open += argsClose
	close, ok := matchDelims(cleaned, open, '{', '}')
	if !ok {
		return nil, fmt.Errorf("transpiler: fn %q has an unterminated body", name)
	}

	argNames := parseArgNames(rawArgs)
	body := cleaned[open+1 : close]

	bound := make(map[string]bool, len(argNames))
	for _, arg := range argNames {
		bound[arg] = true
	}
	for _, m := range localDeclRegex.FindAllStringSubmatch(body, -1) {
		bound[m[1]] = true
	}

	var externals []string
	seen := make(map[string]bool)
	for _, idx := range identRegex.FindAllStringIndex(body, -1) {
		ident := body[idx[0]:idx[1]]
		// Skip member accesses and the alpha suffix of numeric literals
		// like 1u or 0.5f.
		if idx[0] > 0 && (body[idx[0]-1] == '.' || isWordByte(body[idx[0]-1])) {
			continue
		}
		if wgslReserved[ident] || bound[ident] || seen[ident] || ident == name {
			continue
		}
		seen[ident] = true
		externals = append(externals, ident)
	}

	return &Transpiled{
		Name:          name,
		ArgNames:      argNames,
		ExternalNames: externals,
		Source:        strings.TrimSpace(cleaned[loc[0] : close+1]),
	}, nil
}

// ParseWorkgroupSize extracts the @workgroup_size dimensions from source.
// Missing dimensions default to 1.
//
// Parameters:
//   - source: WGSL text that may carry a @workgroup_size attribute
//
// Returns:
//   - [3]uint32: the x, y, z dimensions
//   - bool: true if the attribute was present
func ParseWorkgroupSize(source string) ([3]uint32, bool) {
	m := workgroupSizeRegex.FindStringSubmatch(source)
	if m == nil {
		return [3]uint32{}, false
	}
	size := [3]uint32{1, 1, 1}
	for i := 0; i < 3; i++ {
		if m[i+1] != "" {
			v, err := strconv.ParseUint(m[i+1], 10, 32)
			if err != nil {
				return [3]uint32{}, false
			}
			size[i] = uint32(v)
		}
	}
	return size, true
}

// parseArgNames extracts the parameter names from a raw signature argument
// list, splitting at top-level commas so parameterized types do not confuse
// the scan.
func parseArgNames(rawArgs string) []string {
	var names []string
	for _, piece := range splitAtTopLevelCommas(rawArgs) {
		if m := argNameRegex.FindStringSubmatch(piece); m != nil {
			names = append(names, m[1])
		}
	}
	return names
}

// matchParen returns the index just past the parenthesis closing the one
// at open.
func matchParen(s string, open int) (int, bool) {
	end, ok := matchDelims(s, open, '(', ')')
	return end, ok
}

// matchDelims returns the index of the closing delimiter matching the
// opening one at open.
func matchDelims(s string, open int, opening, closing byte) (int, bool) {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case opening:
			depth++
		case closing:
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// isWordByte reports whether b is an identifier or digit byte.
func isWordByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// splitAtTopLevelCommas splits s at commas not nested inside angle brackets
// or parentheses, so "a: vec2<f32>, b: array<f32, 4>" yields two pieces.
func splitAtTopLevelCommas(s string) []string {
	var pieces []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '(':
			depth++
		case '>', ')':
			depth--
		case ',':
			if depth == 0 {
				pieces = append(pieces, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if trailing := strings.TrimSpace(s[start:]); trailing != "" {
		pieces = append(pieces, trailing)
	}
	return pieces
}

// stripComments removes line and block comments from source, preserving
// the remaining text byte for byte.
func stripComments(source string) string {
	return stripLineComments(stripBlockComments(source))
}

// stripLineComments removes // comments to end of line.
func stripLineComments(source string) string {
	var sb strings.Builder
	lines := strings.Split(source, "\n")
	for i, line := range lines {
		if idx := strings.Index(line, "//"); idx >= 0 {
			line = line[:idx]
		}
		sb.WriteString(line)
		if i < len(lines)-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// stripBlockComments removes /* */ comments, handling nesting as WGSL does.
func stripBlockComments(source string) string {
	var sb strings.Builder
	depth := 0
	for i := 0; i < len(source); i++ {
		if i+1 < len(source) {
			if source[i] == '/' && source[i+1] == '*' {
				depth++
				i++
				continue
			}
			if source[i] == '*' && source[i+1] == '/' && depth > 0 {
				depth--
				i++
				continue
			}
		}
		if depth == 0 {
			sb.WriteByte(source[i])
		}
	}
	return sb.String()
}
