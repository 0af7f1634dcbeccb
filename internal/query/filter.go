package query

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/relq/internal/expr"
	"github.com/roach88/relq/internal/lookup"
	"github.com/roach88/relq/internal/queryir"
	"github.com/roach88/relq/internal/tree"
)

// branch is the position a filter is built in.
type branch struct {
	context        int
	branchNegated  bool // some ancestor is negated
	currentNegated bool // an odd number of ancestors are negated
	splitSubquery  bool
}

// AddQ resolves the filter tree f and AND-s it into the query's WHERE
// tree, in the root branch context. Joins that were INNER before the call
// stay INNER. On error the query is left unchanged.
func (q *Query) AddQ(f *tree.Node) error {
	return q.addRoot(f, 0)
}

// AddQIndependent is AddQ in a fresh branch context: multi-valued paths
// get new aliases instead of reusing those of earlier filters.
func (q *Query) AddQIndependent(f *tree.Node) error {
	return q.addRoot(f, q.contexts+1)
}

// Filter adds f as an independent filter.
func (q *Query) Filter(f *tree.Node) error {
	return q.AddQIndependent(f)
}

// Exclude adds NOT f as an independent filter.
func (q *Query) Exclude(f *tree.Node) error {
	if f == nil || f.IsEmpty() {
		return nil
	}
	return q.AddQIndependent(f.Not())
}

func (q *Query) addRoot(f *tree.Node, context int) error {
	if f == nil || f.IsEmpty() {
		return nil
	}
	work := q.Clone()
	if context > work.contexts {
		work.contexts = context
	}
	var existingInner []string
	for _, alias := range work.aliasOrder {
		if j := work.joins[alias]; !j.IsBase() && j.Type == queryir.InnerJoin {
			existingInner = append(existingInner, alias)
		}
	}
	clause, _, err := work.addQ(f, branch{context: context, splitSubquery: true})
	if err != nil {
		return err
	}
	if !clause.IsEmpty() {
		work.where.Add(clause, tree.AND)
	}
	work.demoteJoins(existingInner)
	*q = *work
	return nil
}

// addQ resolves one level of the filter tree and settles the join types of
// the aliases its children reference.
func (q *Query) addQ(f *tree.Node, b branch) (*tree.Node, []string, error) {
	if f.Negated {
		b.context = q.newContext()
	}
	b.currentNegated = b.currentNegated != f.Negated
	b.branchNegated = b.branchNegated || f.Negated

	target := tree.Create(tree.KindWhere, nil, f.Connector, f.Negated)
	promoter := NewJoinPromoter(f.Connector, len(f.Children), b.currentNegated)
	split := f.Connector == tree.OR && len(f.Children) > 1
	for _, child := range f.Children {
		cb := b
		if split {
			cb.context = q.newContext()
		}
		clause, votes, err := q.buildFilter(child, cb)
		if err != nil {
			return nil, nil, err
		}
		if clause != nil && !clause.IsEmpty() {
			target.Add(clause, f.Connector)
		}
		promoter.AddVotes(votes)
	}
	return target, promoter.UpdateJoinTypes(q), nil
}

// buildFilter resolves one child of a filter node into a WHERE node and the
// aliases it votes to keep INNER.
func (q *Query) buildFilter(child any, b branch) (*tree.Node, []string, error) {
	switch c := child.(type) {
	case *tree.Node:
		return q.addQ(c, b)
	case Cond:
		return q.buildCond(c, b)
	case expr.Expression:
		return q.buildExpression(c, b)
	default:
		return nil, nil, fmt.Errorf("unsupported filter child %T", child)
	}
}

// buildExpression handles a bare conditional expression. It casts no
// votes.
func (q *Query) buildExpression(e expr.Expression, b branch) (*tree.Node, []string, error) {
	if !e.Conditional() {
		return nil, nil, &FieldError{
			Code:    ErrCodeAmbiguousConditional,
			Name:    fmt.Sprint(e),
			Message: "cannot filter against a non-conditional expression",
		}
	}
	resolved, err := e.Resolve(refResolver{q: q, context: b.context, negated: b.currentNegated, allowJoins: q.allowJoins})
	if err != nil {
		return nil, nil, err
	}
	var condition any = resolved
	if _, ok := resolved.(*lookup.Lookup); !ok {
		l, err := q.buildLookup([]string{"exact"}, resolved, true)
		if err != nil {
			return nil, nil, err
		}
		condition = l
	}
	return tree.Create(tree.KindWhere, []any{condition}, tree.AND, false), nil, nil
}

func (q *Query) buildCond(c Cond, b branch) (*tree.Node, []string, error) {
	if c.Path == "" {
		return nil, nil, unresolvedField("", q.entity.Names())
	}
	names := strings.Split(c.Path, LookupSep)

	pre := make(map[string]int, len(q.refcount))
	for k, v := range q.refcount {
		pre[k] = v
	}
	value := c.Value
	if e, ok := value.(expr.Expression); ok {
		resolved, err := e.Resolve(refResolver{q: q, context: b.context, negated: b.currentNegated, allowJoins: q.allowJoins})
		if err != nil {
			return nil, nil, err
		}
		value = resolved
	}
	var used []string
	for _, alias := range q.aliasOrder {
		if q.refcount[alias] > pre[alias] {
			used = append(used, alias)
		}
	}

	allowMany := !b.branchNegated || !b.splitSubquery
	info, err := q.setupJoins(names, allowMany, false, b.context, b.currentNegated)
	var mj *multiJoinError
	if errors.As(err, &mj) {
		return q.splitExclude(c, b)
	}
	if err != nil {
		return nil, nil, err
	}
	used = append(used, info.joins...)

	tgt, alias, joins := q.trimJoins(info.target, info.joins, info.paths)
	if !q.allowJoins && len(joins) > 1 {
		return nil, nil, disallowedJoin(c.Path)
	}

	col := tgt.col(alias)
	condition, err := q.buildLookup(names[info.consumed:], col, value)
	if err != nil {
		return nil, nil, err
	}
	clause := tree.Create(tree.KindWhere, []any{condition}, tree.AND, false)

	name := condition.Name()
	rhsTrue := condition.RHS == true
	requireOuter := name == "isnull" && rhsTrue && !b.currentNegated
	if b.currentNegated && (name != "isnull" || !rhsTrue) {
		requireOuter = true
		// NOT (col = v) must also match rows where col is NULL.
		if name != "isnull" {
			if tgt.Nullable || q.joins[alias].Type == queryir.LeftOuterJoin {
				notNull, err := q.isNotNull(col)
				if err != nil {
					return nil, nil, err
				}
				clause.Add(notNull, tree.AND)
			}
			if rc, ok := value.(expr.Col); ok && rc.Nullable {
				notNull, err := q.isNotNull(rc)
				if err != nil {
					return nil, nil, err
				}
				clause.Add(notNull, tree.AND)
			}
		}
	}
	if requireOuter {
		return clause, nil, nil
	}
	return clause, used, nil
}

func (q *Query) isNotNull(col expr.Col) (*lookup.Lookup, error) {
	rule, ok := q.registry.Rule("isnull")
	if !ok {
		return nil, unsupportedLookup("isnull", col, q.registry)
	}
	return lookup.New(rule, col, false)
}

// splitExclude handles a negated filter that crosses a multi-valued
// relation. "NOT (book.title = x)" over a join would keep authors with any
// other book; instead the base row is excluded when any related row
// matches:
//
//	NOT (pk IN (SELECT U0.pk FROM ... WHERE <positive filter>))
func (q *Query) splitExclude(c Cond, b branch) (*tree.Node, []string, error) {
	inner := New(q.entity,
		WithRegistry(q.registry),
		WithAllowJoins(q.allowJoins),
		WithAliasPrefix(q.subqueryPrefix()),
	)
	if err := inner.AddQ(Q(c.Path, c.Value)); err != nil {
		return nil, nil, err
	}
	return q.buildCond(
		Cond{Path: "pk" + LookupSep + "in", Value: expr.Subquery{Query: inner}},
		branch{context: b.context, branchNegated: true, currentNegated: true},
	)
}

// subqueryPrefix picks the next letter after the query's own prefix, so
// nested queries never share aliases with their parent.
func (q *Query) subqueryPrefix() string {
	if !q.numbered {
		return "U"
	}
	r := rune(q.prefix[0]) + 1
	if r > 'Z' {
		r = 'A'
	}
	return string(r)
}
