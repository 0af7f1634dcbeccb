package lookup

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/relq/internal/expr"
)

type comparison struct {
	name string
}

func (r comparison) Name() string                  { return r.name }
func (r comparison) AcceptsNone() bool             { return false }
func (r comparison) PrepareRHS(v any) (any, error) { return v, nil }

func (r comparison) AsSQL(c expr.Compiler, l *Lookup) (string, []any, error) {
	lhs, lp, err := processLHS(c, l)
	if err != nil {
		return "", nil, err
	}
	rhs, rp, err := processRHS(c, l)
	if err != nil {
		return "", nil, err
	}
	op, ok := c.Ops().Operator(r.name)
	if !ok {
		return "", nil, fmt.Errorf("%s does not support lookup %q", c.Ops().Vendor(), r.name)
	}
	if _, isExpr := l.RHS.(expr.Expression); !isExpr && strings.Contains(op, "LIKE") {
		rp = []any{EscapeLike(fmt.Sprint(l.RHS))}
	}
	return lhs + " " + fmt.Sprintf(op, rhs), append(lp, rp...), nil
}

// pattern is a LIKE-based lookup; prefix and suffix are added around the
// escaped literal.
type pattern struct {
	name           string
	prefix, suffix string
}

func (r pattern) Name() string      { return r.name }
func (r pattern) AcceptsNone() bool { return false }

func (r pattern) PrepareRHS(v any) (any, error) {
	switch v.(type) {
	case string, int, int32, int64, float64:
		return r.prefix + EscapeLike(fmt.Sprint(v)) + r.suffix, nil
	default:
		return nil, &ValueError{Lookup: r.name, Message: fmt.Sprintf("expected a string, got %T", v)}
	}
}

func (r pattern) AsSQL(c expr.Compiler, l *Lookup) (string, []any, error) {
	lhs, lp, err := processLHS(c, l)
	if err != nil {
		return "", nil, err
	}
	rhs, rp, err := processRHS(c, l)
	if err != nil {
		return "", nil, err
	}
	ops := c.Ops()
	if _, isExpr := l.RHS.(expr.Expression); isExpr {
		op, ok := ops.PatternOperator(r.name)
		if !ok {
			return "", nil, fmt.Errorf("%s does not support lookup %q against an expression", ops.Vendor(), r.name)
		}
		return lhs + " " + fmt.Sprintf(op, rhs), append(lp, rp...), nil
	}
	op, ok := ops.Operator(r.name)
	if !ok {
		return "", nil, fmt.Errorf("%s does not support lookup %q", ops.Vendor(), r.name)
	}
	return lhs + " " + fmt.Sprintf(op, rhs), append(lp, rp...), nil
}

type in struct{}

func (in) Name() string      { return "in" }
func (in) AcceptsNone() bool { return false }

// PrepareRHS accepts any slice or array. nil entries are dropped, since
// NULL never compares equal, and duplicates are removed keeping order.
func (in) PrepareRHS(v any) (any, error) {
	rv := reflect.ValueOf(v)
	if _, isString := v.(string); isString || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, &ValueError{Lookup: "in", Message: fmt.Sprintf("expected a list, got %T", v)}
	}
	out := make([]any, 0, rv.Len())
	seen := make(map[any]bool, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		item := rv.Index(i).Interface()
		if item == nil {
			continue
		}
		if reflect.TypeOf(item).Comparable() {
			if seen[item] {
				continue
			}
			seen[item] = true
		}
		out = append(out, item)
	}
	return out, nil
}

func (in) AsSQL(c expr.Compiler, l *Lookup) (string, []any, error) {
	lhs, lp, err := processLHS(c, l)
	if err != nil {
		return "", nil, err
	}
	if e, ok := l.RHS.(expr.Expression); ok {
		rhs, rp, err := c.Compile(e)
		if err != nil {
			return "", nil, err
		}
		if _, isSub := e.(expr.Subquery); !isSub {
			rhs = "(" + rhs + ")"
		}
		return lhs + " IN " + rhs, append(lp, rp...), nil
	}
	items := l.RHS.([]any)
	if len(items) == 0 {
		return "", nil, expr.ErrEmptyResult
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(items)), ", ")
	return lhs + " IN (" + marks + ")", append(lp, items...), nil
}

type isNull struct{}

func (isNull) Name() string      { return "isnull" }
func (isNull) AcceptsNone() bool { return false }

func (isNull) PrepareRHS(v any) (any, error) {
	b, ok := v.(bool)
	if !ok {
		return nil, &ValueError{Lookup: "isnull", Message: "the value for an isnull lookup must be true or false"}
	}
	return b, nil
}

func (isNull) AsSQL(c expr.Compiler, l *Lookup) (string, []any, error) {
	lhs, lp, err := c.Compile(l.LHS)
	if err != nil {
		return "", nil, err
	}
	if l.RHS.(bool) {
		return lhs + " IS NULL", lp, nil
	}
	return lhs + " IS NOT NULL", lp, nil
}

type between struct{}

func (between) Name() string      { return "range" }
func (between) AcceptsNone() bool { return false }

func (between) PrepareRHS(v any) (any, error) {
	rv := reflect.ValueOf(v)
	if (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) || rv.Len() != 2 {
		return nil, &ValueError{Lookup: "range", Message: "expected a pair of bounds"}
	}
	lo, hi := rv.Index(0).Interface(), rv.Index(1).Interface()
	if lo == nil || hi == nil {
		return nil, &ValueError{Lookup: "range", Message: "bounds cannot be nil"}
	}
	return []any{lo, hi}, nil
}

func (between) AsSQL(c expr.Compiler, l *Lookup) (string, []any, error) {
	lhs, lp, err := processLHS(c, l)
	if err != nil {
		return "", nil, err
	}
	bounds, ok := l.RHS.([]any)
	if !ok {
		return "", nil, fmt.Errorf("range needs literal bounds, got %T", l.RHS)
	}
	return lhs + " BETWEEN ? AND ?", append(lp, bounds...), nil
}

// EscapeLike escapes the LIKE wildcards in s with backslashes.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
