// Package compiler turns a resolved query into a queryir.Statement.
//
// Compilation is pure: the query's WHERE tree and joins are read, never
// changed. Compiling the same query twice yields identical statements, so
// statements can be cached by the query's hash.
package compiler

import (
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/roach88/relq/internal/expr"
	"github.com/roach88/relq/internal/query"
	"github.com/roach88/relq/internal/queryir"
	"github.com/roach88/relq/internal/querysql"
	"github.com/roach88/relq/internal/tree"
)

// ErrEmptyResult marks a condition that can match no row.
var ErrEmptyResult = expr.ErrEmptyResult

// errFullResult marks a condition every row matches.
var errFullResult = errors.New("condition matches everything")

// Compiler compiles queries for one set of dialect operations. It
// implements expr.Compiler for the lookups it compiles.
//
// A Compiler is safe for concurrent use once built; the statement cache is
// internally locked.
type Compiler struct {
	ops   expr.Operations
	cache *lru.Cache[uint64, queryir.Statement]
}

// Option configures a Compiler.
type Option func(*Compiler) error

// WithCache keeps up to size compiled statements keyed by query hash.
func WithCache(size int) Option {
	return func(c *Compiler) error {
		cache, err := lru.New[uint64, queryir.Statement](size)
		if err != nil {
			return fmt.Errorf("statement cache: %w", err)
		}
		c.cache = cache
		return nil
	}
}

// New returns a compiler for ops.
func New(ops expr.Operations, opts ...Option) (*Compiler, error) {
	c := &Compiler{ops: ops}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Ops implements expr.Compiler.
func (c *Compiler) Ops() expr.Operations {
	return c.ops
}

// Compile implements expr.Compiler.
func (c *Compiler) Compile(e expr.Expression) (string, []any, error) {
	return e.AsSQL(c)
}

// Subquery implements expr.Compiler. It selects the primary key of the
// inner query's base entity.
func (c *Compiler) Subquery(inner any) (string, []any, error) {
	q, ok := inner.(*query.Query)
	if !ok {
		return "", nil, fmt.Errorf("cannot compile subquery of type %T", inner)
	}
	stmt, err := c.statement(q, true)
	if err != nil {
		return "", nil, err
	}
	if stmt.Empty {
		return "", nil, ErrEmptyResult
	}
	return querysql.RenderSelect(stmt, c.ops)
}

// CompileQuery returns the SELECT statement for q.
func (c *Compiler) CompileQuery(q *query.Query) (queryir.Statement, error) {
	if c.cache == nil {
		return c.statement(q, false)
	}
	key, err := q.Hash()
	if err != nil {
		// Unhashable leaves just bypass the cache.
		return c.statement(q, false)
	}
	if stmt, ok := c.cache.Get(key); ok {
		return stmt, nil
	}
	stmt, err := c.statement(q, false)
	if err != nil {
		return queryir.Statement{}, err
	}
	c.cache.Add(key, stmt)
	return stmt, nil
}

// CacheLen reports how many statements are cached.
func (c *Compiler) CacheLen() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.Len()
}

func (c *Compiler) statement(q *query.Query, subquery bool) (queryir.Statement, error) {
	entity := q.Entity()
	base := q.BaseAlias()
	stmt := queryir.Statement{
		Table: entity.Table,
		Alias: base,
		Joins: CompileJoins(q.Joins()),
	}
	if subquery {
		stmt.Columns = []queryir.ColumnRef{{Alias: base, Column: entity.PK.Column}}
	} else {
		for _, f := range entity.Fields() {
			stmt.Columns = append(stmt.Columns, queryir.ColumnRef{Alias: base, Column: f.Column})
		}
		stmt.Distinct = q.MultiValued()
		stmt.OrderBy = []queryir.ColumnRef{{Alias: base, Column: entity.PK.Column}}
	}

	where, err := c.CompileWhere(q.Where())
	switch {
	case errors.Is(err, ErrEmptyResult):
		stmt.Empty = true
	case err != nil:
		return queryir.Statement{}, err
	default:
		stmt.Where = where
	}
	return stmt, nil
}

// CompileJoins converts the query's joins to clauses, keeping their order.
func CompileJoins(joins []query.Join) []queryir.JoinClause {
	out := make([]queryir.JoinClause, 0, len(joins))
	for _, j := range joins {
		out = append(out, queryir.JoinClause{
			Table:        j.Table,
			Alias:        j.Alias,
			Parent:       j.Parent,
			ParentColumn: j.Path.FromColumn,
			Column:       j.Path.ToColumn,
			Type:         j.Type,
			Nullable:     j.Nullable,
		})
	}
	return out
}

// CompileWhere compiles a WHERE tree. It returns a nil clause when every
// row matches and ErrEmptyResult when none can.
//
// Children that match nothing or everything are folded away:
//
//	AND: one empty child empties the node, full children are dropped.
//	OR:  one full child fills the node, empty children are dropped.
//
// Negation swaps full and empty.
func (c *Compiler) CompileWhere(where *tree.Node) (queryir.Clause, error) {
	clause, err := c.compileNode(where)
	if errors.Is(err, errFullResult) {
		return nil, nil
	}
	return clause, err
}

func (c *Compiler) compileNode(n *tree.Node) (queryir.Clause, error) {
	fullNeeded, emptyNeeded := len(n.Children), 1
	if n.Connector == tree.OR {
		fullNeeded, emptyNeeded = 1, len(n.Children)
	}

	group := queryir.Group{Connector: string(n.Connector), Negated: n.Negated}
	for _, child := range n.Children {
		clause, err := c.compileChild(child)
		switch {
		case errors.Is(err, ErrEmptyResult):
			emptyNeeded--
		case errors.Is(err, errFullResult):
			fullNeeded--
		case err != nil:
			return nil, err
		default:
			group.Children = append(group.Children, clause)
		}

		if emptyNeeded == 0 {
			if n.Negated {
				return nil, errFullResult
			}
			return nil, ErrEmptyResult
		}
		if fullNeeded == 0 {
			if n.Negated {
				return nil, ErrEmptyResult
			}
			return nil, errFullResult
		}
	}
	if len(group.Children) == 0 {
		// Only reachable for a node with no children.
		return nil, errFullResult
	}
	return group, nil
}

func (c *Compiler) compileChild(child any) (queryir.Clause, error) {
	switch v := child.(type) {
	case *tree.Node:
		return c.compileNode(v)
	case expr.Expression:
		sql, params, err := c.Compile(v)
		if err != nil {
			return nil, err
		}
		if sql == "" {
			return nil, errFullResult
		}
		return queryir.Fragment{SQL: sql, Params: params}, nil
	default:
		return nil, fmt.Errorf("cannot compile %T in a WHERE tree", child)
	}
}

// Render compiles q and renders it for dialect d.
func (c *Compiler) Render(q *query.Query, d querysql.Dialect) (string, []any, error) {
	stmt, err := c.CompileQuery(q)
	if err != nil {
		return "", nil, err
	}
	return querysql.Render(stmt, d)
}
