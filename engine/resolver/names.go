package resolver

import (
	"fmt"
	"strings"
)

// nameRegistry hands out collision-free shader identifiers within a single
// resolution pass. Labels are sanitized into valid WGSL identifiers; a taken
// name gets a numeric suffix, and unlabeled entities get a generated name.
type nameRegistry struct {
	used    map[string]bool
	counter int
}

func newNameRegistry() *nameRegistry {
	return &nameRegistry{used: make(map[string]bool)}
}

// newName allocates a fresh identifier derived from label. The same label
// may be passed any number of times; each call yields a distinct name.
func (n *nameRegistry) newName(label string) string {
	base := sanitizeIdentifier(label)
	if base == "" {
		base = fmt.Sprintf("item_%d", n.counter)
		n.counter++
	}
	name := base
	for i := 1; n.used[name]; i++ {
		name = fmt.Sprintf("%s_%d", base, i)
	}
	n.used[name] = true
	return name
}

// sanitizeIdentifier strips label down to a valid WGSL identifier, replacing
// invalid runes with underscores. Returns "" if nothing usable remains.
func sanitizeIdentifier(label string) string {
	var sb strings.Builder
	for i, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			sb.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				sb.WriteRune('_')
			}
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	out := sb.String()
	if strings.Trim(out, "_") == "" {
		return ""
	}
	return out
}
