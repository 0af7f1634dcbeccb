package lookup

import (
	"sort"

	"github.com/roach88/relq/internal/expr"
)

// Transform wraps the left-hand side in a function before the comparison.
type Transform struct {
	Name     string
	Function string   // SQL function name, e.g. "LOWER"
	Part     string   // date part to extract; overrides Function
	Input    []string // accepted input types, empty for any
	Output   string
}

// Apply wraps lhs.
func (t Transform) Apply(lhs expr.Expression) expr.Expression {
	return expr.Func{Name: t.Function, Part: t.Part, Args: []expr.Expression{lhs}, Type: t.Output}
}

// Accepts reports whether the transform applies to the input type.
func (t Transform) Accepts(inputType string) bool {
	if len(t.Input) == 0 {
		return true
	}
	for _, in := range t.Input {
		if in == inputType {
			return true
		}
	}
	return false
}

// Registry maps names to rules and transforms.
type Registry struct {
	parent     *Registry
	rules      map[string]Rule
	transforms map[string]Transform
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rules:      make(map[string]Rule),
		transforms: make(map[string]Transform),
	}
}

// Default returns a new registry holding the built-in lookups and
// transforms. Each call returns an independent registry.
func Default() *Registry {
	r := NewRegistry()
	for _, name := range []string{"exact", "iexact", "gt", "gte", "lt", "lte"} {
		r.Register(comparison{name: name})
	}
	r.Register(pattern{name: "contains", prefix: "%", suffix: "%"})
	r.Register(pattern{name: "icontains", prefix: "%", suffix: "%"})
	r.Register(pattern{name: "startswith", suffix: "%"})
	r.Register(pattern{name: "istartswith", suffix: "%"})
	r.Register(pattern{name: "endswith", prefix: "%"})
	r.Register(pattern{name: "iendswith", prefix: "%"})
	r.Register(in{})
	r.Register(isNull{})
	r.Register(between{})

	text := []string{"string"}
	dates := []string{"date", "datetime"}
	r.RegisterTransform(Transform{Name: "lower", Function: "LOWER", Input: text, Output: "string"})
	r.RegisterTransform(Transform{Name: "upper", Function: "UPPER", Input: text, Output: "string"})
	r.RegisterTransform(Transform{Name: "length", Function: "LENGTH", Input: text, Output: "int"})
	r.RegisterTransform(Transform{Name: "year", Part: "year", Input: dates, Output: "int"})
	r.RegisterTransform(Transform{Name: "month", Part: "month", Input: dates, Output: "int"})
	r.RegisterTransform(Transform{Name: "day", Part: "day", Input: dates, Output: "int"})
	return r
}

// Child returns a registry that falls back to r.
func (r *Registry) Child() *Registry {
	c := NewRegistry()
	c.parent = r
	return c
}

// Register adds or shadows a rule.
func (r *Registry) Register(rule Rule) *Registry {
	r.rules[rule.Name()] = rule
	return r
}

// RegisterTransform adds or shadows a transform.
func (r *Registry) RegisterTransform(t Transform) *Registry {
	r.transforms[t.Name] = t
	return r
}

// Rule finds a lookup rule by name.
func (r *Registry) Rule(name string) (Rule, bool) {
	for reg := r; reg != nil; reg = reg.parent {
		if rule, ok := reg.rules[name]; ok {
			return rule, true
		}
	}
	return nil, false
}

// Transform finds a transform by name that accepts inputType.
func (r *Registry) Transform(name, inputType string) (Transform, bool) {
	for reg := r; reg != nil; reg = reg.parent {
		if t, ok := reg.transforms[name]; ok {
			return t, t.Accepts(inputType)
		}
	}
	return Transform{}, false
}

// Names lists every rule and transform usable on inputType, sorted.
func (r *Registry) Names(inputType string) []string {
	seen := make(map[string]bool)
	for reg := r; reg != nil; reg = reg.parent {
		for name := range reg.rules {
			seen[name] = true
		}
		for name, t := range reg.transforms {
			if _, shadowed := seen[name]; !shadowed && t.Accepts(inputType) {
				seen[name] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
