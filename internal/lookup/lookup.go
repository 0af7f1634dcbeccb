// Package lookup holds the comparison rules (exact, gt, in, isnull, ...)
// and transforms (lower, year, ...) that terminate a filter path.
//
// Rules live in an explicit Registry handed to the query resolver. Child
// registries see their parent's entries and may add or shadow their own
// without affecting the parent.
package lookup

import (
	"fmt"

	"github.com/roach88/relq/internal/expr"
	"github.com/roach88/relq/internal/ir"
)

// Rule compiles one kind of comparison.
type Rule interface {
	Name() string
	// AcceptsNone reports whether nil is a meaningful right-hand side.
	AcceptsNone() bool
	// PrepareRHS validates and normalizes a literal right-hand side.
	PrepareRHS(v any) (any, error)
	AsSQL(c expr.Compiler, l *Lookup) (string, []any, error)
}

// ValueError reports a right-hand side a rule cannot accept.
type ValueError struct {
	Lookup  string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("%s: %s", e.Lookup, e.Message)
}

// Lookup is a resolved condition: a rule applied between an expression and
// a value. RHS is either a prepared literal or an expr.Expression.
type Lookup struct {
	Rule Rule
	LHS  expr.Expression
	RHS  any
}

// New prepares rhs with the rule. Expressions are kept as they are, and a
// Value wrapper is unwrapped and prepared like a literal.
func New(rule Rule, lhs expr.Expression, rhs any) (*Lookup, error) {
	if v, ok := rhs.(expr.Value); ok {
		rhs = v.V
	}
	if _, ok := rhs.(expr.Expression); !ok {
		if rhs == nil && !rule.AcceptsNone() {
			return nil, &ValueError{Lookup: rule.Name(), Message: "cannot use nil as a query value"}
		}
		prepared, err := rule.PrepareRHS(rhs)
		if err != nil {
			return nil, err
		}
		rhs = prepared
	}
	return &Lookup{Rule: rule, LHS: lhs, RHS: rhs}, nil
}

// Name returns the rule name.
func (l *Lookup) Name() string {
	return l.Rule.Name()
}

// Resolve resolves both sides.
func (l *Lookup) Resolve(r expr.Resolver) (expr.Expression, error) {
	lhs, err := l.LHS.Resolve(r)
	if err != nil {
		return nil, err
	}
	out := &Lookup{Rule: l.Rule, LHS: lhs, RHS: l.RHS}
	if e, ok := l.RHS.(expr.Expression); ok {
		if out.RHS, err = e.Resolve(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (l *Lookup) AsSQL(c expr.Compiler) (string, []any, error) {
	return l.Rule.AsSQL(c, l)
}

func (l *Lookup) OutputType() string { return "bool" }
func (l *Lookup) Conditional() bool  { return true }

func (l *Lookup) String() string {
	return fmt.Sprintf("%v__%s=%v", l.LHS, l.Rule.Name(), l.RHS)
}

// HashKey implements ir.Hashable.
func (l *Lookup) HashKey() (ir.IRValue, error) {
	lhs, err := ir.MakeHashable(l.LHS)
	if err != nil {
		return nil, err
	}
	rhs, err := ir.MakeHashable(l.RHS)
	if err != nil {
		return nil, err
	}
	return ir.IRTagged{Tag: "lookup." + l.Rule.Name(), Value: ir.IRArray{lhs, rhs}}, nil
}

// Equal compares rule name and both sides.
func (l *Lookup) Equal(other any) bool {
	o, ok := other.(*Lookup)
	if !ok {
		return false
	}
	a, err := l.HashKey()
	if err != nil {
		return false
	}
	b, err := o.HashKey()
	if err != nil {
		return false
	}
	ha, _ := ir.Hash(a)
	hb, _ := ir.Hash(b)
	return ha == hb
}

// processLHS compiles the left-hand side with the dialect's cast for the
// lookup applied.
func processLHS(c expr.Compiler, l *Lookup) (string, []any, error) {
	sql, params, err := c.Compile(l.LHS)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf(c.Ops().LookupCast(l.Rule.Name(), l.LHS.OutputType()), sql), params, nil
}

// processRHS compiles an expression right-hand side, or binds a literal.
func processRHS(c expr.Compiler, l *Lookup) (string, []any, error) {
	if e, ok := l.RHS.(expr.Expression); ok {
		return c.Compile(e)
	}
	return "?", []any{l.RHS}, nil
}
