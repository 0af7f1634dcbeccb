// Package expr defines the expressions that can appear on either side of a
// lookup: column references, literal values, F() references, raw SQL,
// functions, arithmetic and subqueries.
//
// Expressions are resolved against a query before compilation. Resolving
// replaces F() references with concrete columns; every other variant
// resolves its operands and returns itself.
package expr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/relq/internal/ir"
)

// ErrEmptyResult marks a condition that can never match, such as IN over an
// empty list. Compilers fold it instead of emitting SQL.
var ErrEmptyResult = errors.New("condition matches nothing")

// Operations is the dialect capability consumed while compiling lookups.
type Operations interface {
	Vendor() string
	QuoteName(name string) string
	// Operator returns the format for comparing against a right-hand side,
	// e.g. "= %s" or "LIKE %s ESCAPE '\'".
	Operator(lookup string) (string, bool)
	// LookupCast returns the format wrapping the left-hand side, "%s" when
	// no cast is needed.
	LookupCast(lookup, internalType string) string
	// PatternOperator is used when a pattern lookup compares against
	// another expression instead of a literal.
	PatternOperator(lookup string) (string, bool)
	Function(name string) string
	DatePart(part, sql string) string
}

// Compiler turns expressions into SQL fragments using "?" placeholders.
type Compiler interface {
	Ops() Operations
	Compile(e Expression) (string, []any, error)
	// Subquery compiles the query carried by a Subquery expression.
	Subquery(inner any) (string, []any, error)
}

// Resolver resolves F() references to columns.
type Resolver interface {
	ResolveRef(name string) (Expression, error)
}

// Expression is the tagged union of expression variants.
type Expression interface {
	Resolve(r Resolver) (Expression, error)
	AsSQL(c Compiler) (string, []any, error)
	// OutputType is the field type the expression produces, "" if unknown.
	OutputType() string
	// Conditional reports whether the expression can stand alone as a filter.
	Conditional() bool
}

// Col is a column on a specific join alias.
type Col struct {
	Alias    string
	Column   string
	Type     string
	Nullable bool
}

func (c Col) Resolve(Resolver) (Expression, error) { return c, nil }

func (c Col) AsSQL(comp Compiler) (string, []any, error) {
	ops := comp.Ops()
	return ops.QuoteName(c.Alias) + "." + ops.QuoteName(c.Column), nil, nil
}

func (c Col) OutputType() string { return c.Type }
func (c Col) Conditional() bool  { return c.Type == "bool" }
func (c Col) String() string     { return c.Alias + "." + c.Column }

// Value is a literal bound as a parameter.
type Value struct {
	V    any
	Type string
}

func (v Value) Resolve(Resolver) (Expression, error) { return v, nil }

func (v Value) AsSQL(Compiler) (string, []any, error) {
	return "?", []any{v.V}, nil
}

func (v Value) OutputType() string { return v.Type }
func (v Value) String() string     { return fmt.Sprintf("Value(%v)", v.V) }

func (v Value) Conditional() bool {
	_, ok := v.V.(bool)
	return ok
}

// F references another field of the same query by lookup path.
type F struct {
	Name string
}

func (f F) Resolve(r Resolver) (Expression, error) {
	if r == nil {
		return nil, fmt.Errorf("F(%s) cannot be resolved outside a query", f.Name)
	}
	return r.ResolveRef(f.Name)
}

func (f F) AsSQL(Compiler) (string, []any, error) {
	return "", nil, fmt.Errorf("F(%s) must be resolved before compiling", f.Name)
}

func (f F) OutputType() string { return "" }
func (f F) Conditional() bool  { return false }
func (f F) String() string     { return "F(" + f.Name + ")" }

// Raw is verbatim SQL with its parameters. Bool marks it as a condition.
type Raw struct {
	SQL    string
	Params []any
	Bool   bool
}

func (r Raw) Resolve(Resolver) (Expression, error) { return r, nil }

func (r Raw) AsSQL(Compiler) (string, []any, error) {
	return r.SQL, append([]any(nil), r.Params...), nil
}

func (r Raw) OutputType() string {
	if r.Bool {
		return "bool"
	}
	return ""
}
func (r Raw) Conditional() bool { return r.Bool }
func (r Raw) String() string    { return "Raw(" + r.SQL + ")" }

// Func applies a named SQL function. A non-empty Part makes it a date-part
// extraction instead.
type Func struct {
	Name string
	Part string
	Args []Expression
	Type string
}

func (f Func) Resolve(r Resolver) (Expression, error) {
	args := make([]Expression, len(f.Args))
	for i, a := range f.Args {
		ra, err := a.Resolve(r)
		if err != nil {
			return nil, err
		}
		args[i] = ra
	}
	f.Args = args
	return f, nil
}

func (f Func) AsSQL(c Compiler) (string, []any, error) {
	parts := make([]string, len(f.Args))
	var params []any
	for i, a := range f.Args {
		sql, p, err := c.Compile(a)
		if err != nil {
			return "", nil, err
		}
		parts[i] = sql
		params = append(params, p...)
	}
	if f.Part != "" {
		if len(parts) != 1 {
			return "", nil, fmt.Errorf("%s takes exactly one argument", f.Part)
		}
		return c.Ops().DatePart(f.Part, parts[0]), params, nil
	}
	return c.Ops().Function(f.Name) + "(" + strings.Join(parts, ", ") + ")", params, nil
}

func (f Func) OutputType() string { return f.Type }
func (f Func) Conditional() bool  { return f.Type == "bool" }

// Combined is binary arithmetic between two expressions.
type Combined struct {
	LHS Expression
	Op  string
	RHS Expression
}

var arithmetic = map[string]bool{"+": true, "-": true, "*": true, "/": true, "%": true}

// Combine returns lhs op rhs, wrapping plain values in Value.
func Combine(lhs any, op string, rhs any) (Combined, error) {
	if !arithmetic[op] {
		return Combined{}, fmt.Errorf("unsupported operator %q", op)
	}
	return Combined{LHS: Wrap(lhs), Op: op, RHS: Wrap(rhs)}, nil
}

func (c Combined) Resolve(r Resolver) (Expression, error) {
	lhs, err := c.LHS.Resolve(r)
	if err != nil {
		return nil, err
	}
	rhs, err := c.RHS.Resolve(r)
	if err != nil {
		return nil, err
	}
	return Combined{LHS: lhs, Op: c.Op, RHS: rhs}, nil
}

func (c Combined) AsSQL(comp Compiler) (string, []any, error) {
	ls, lp, err := comp.Compile(c.LHS)
	if err != nil {
		return "", nil, err
	}
	rs, rp, err := comp.Compile(c.RHS)
	if err != nil {
		return "", nil, err
	}
	return "(" + ls + " " + c.Op + " " + rs + ")", append(lp, rp...), nil
}

func (c Combined) OutputType() string {
	if t := c.LHS.OutputType(); t != "" {
		return t
	}
	return c.RHS.OutputType()
}
func (c Combined) Conditional() bool { return false }

// Subquery embeds another query, compiled by the Compiler.
type Subquery struct {
	Query any
}

func (s Subquery) Resolve(Resolver) (Expression, error) { return s, nil }

func (s Subquery) AsSQL(c Compiler) (string, []any, error) {
	sql, params, err := c.Subquery(s.Query)
	if err != nil {
		return "", nil, err
	}
	return "(" + sql + ")", params, nil
}

func (s Subquery) OutputType() string { return "" }
func (s Subquery) Conditional() bool  { return false }

// HashKey hashes the inner query when it is hashable.
func (s Subquery) HashKey() (ir.IRValue, error) {
	inner, err := ir.MakeHashable(s.Query)
	if err != nil {
		return nil, err
	}
	return ir.IRTagged{Tag: "expr.Subquery", Value: inner}, nil
}

// Wrap returns v unchanged if it is an Expression, otherwise a Value.
func Wrap(v any) Expression {
	if e, ok := v.(Expression); ok {
		return e
	}
	return Value{V: v}
}
