package engine

import (
	"regexp"
	"strings"
)

// Placeholder pattern: {varName}
var varPattern = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// Resolver substitutes {token} placeholders with a worker's learned values.
// Unknown tokens resolve to an empty string and are tracked; the literal
// placeholder text never reaches an outgoing request.
type Resolver struct {
	vars       map[string]string
	unresolved []string
}

func NewResolver(vars map[string]string) *Resolver {
	if vars == nil {
		vars = make(map[string]string)
	}
	return &Resolver{vars: vars}
}

func (r *Resolver) String(s string) string {
	if !strings.Contains(s, "{") {
		return s
	}
	return varPattern.ReplaceAllStringFunc(s, func(m string) string {
		name := m[1 : len(m)-1]
		if v, ok := r.vars[name]; ok {
			return v
		}
		r.unresolved = append(r.unresolved, name)
		return ""
	})
}

// Payload resolves every string leaf of a payload template, returning a
// deep copy. Non-string leaves pass through untouched.
func (r *Resolver) Payload(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = r.value(v)
	}
	return out
}

func (r *Resolver) value(v any) any {
	switch t := v.(type) {
	case string:
		return r.String(t)
	case map[string]any:
		return r.Payload(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = r.value(t[i])
		}
		return out
	default:
		return v
	}
}

func (r *Resolver) Headers(h map[string]string) map[string]string {
	if h == nil {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = r.String(v)
	}
	return out
}

// Unresolved returns the unique token names that had no value, in first-use
// order, accumulated across all resolutions done by this resolver.
func (r *Resolver) Unresolved() []string {
	seen := make(map[string]bool, len(r.unresolved))
	unique := []string{}
	for _, v := range r.unresolved {
		if !seen[v] {
			seen[v] = true
			unique = append(unique, v)
		}
	}
	return unique
}
