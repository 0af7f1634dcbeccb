package query

import (
	"github.com/roach88/relq/internal/expr"
	"github.com/roach88/relq/internal/meta"
	"github.com/roach88/relq/internal/queryir"
)

// target is the column a resolved path compares against.
type target struct {
	Column   string
	Field    *meta.Field // nil for a many-to-many link column
	Type     string
	Nullable bool
}

func fieldTarget(f *meta.Field) target {
	return target{Column: f.Column, Field: f, Type: f.Type, Nullable: f.Nullable}
}

func (t target) col(alias string) expr.Col {
	return expr.Col{Alias: alias, Column: t.Column, Type: t.Type, Nullable: t.Nullable}
}

// joinInfo is the result of setupJoins.
type joinInfo struct {
	target   target
	joins    []string // base alias first
	paths    []meta.PathInfo
	consumed int // path segments that named fields or relations
}

// join returns the alias for hopping along p from parent, reusing an
// existing alias with the same key. A new join starts LEFT OUTER when its
// parent is LEFT OUTER, the hop is nullable or it is created under
// negation, and INNER otherwise.
func (q *Query) join(parent string, p meta.PathInfo, context int, negated bool) string {
	key := joinKey{
		parent:     parent,
		table:      p.Table,
		fromColumn: p.FromColumn,
		toColumn:   p.ToColumn,
		context:    -1,
	}
	if p.MultiValued {
		key.context = context
	}
	if alias, ok := q.reuse[key]; ok {
		q.refcount[alias]++
		return alias
	}

	joinType := queryir.InnerJoin
	if q.joins[parent].Type == queryir.LeftOuterJoin || p.Nullable || negated {
		joinType = queryir.LeftOuterJoin
	}
	alias := q.tableAlias(p.Table)
	q.joins[alias] = &Join{
		Alias:    alias,
		Table:    p.Table,
		Parent:   parent,
		Path:     p,
		Type:     joinType,
		Nullable: p.Nullable,
		key:      key,
	}
	q.reuse[key] = alias
	return alias
}

// setupJoins resolves names and creates or reuses a join for every hop.
// Unconsumed trailing names are left for lookups.
func (q *Query) setupJoins(names []string, allowMany, failOnMissing bool, context int, negated bool) (joinInfo, error) {
	paths, tgt, consumed, err := q.namesToPath(names, allowMany, failOnMissing)
	if err != nil {
		return joinInfo{}, err
	}
	alias := q.base
	q.refcount[alias]++
	joins := []string{alias}
	for _, p := range paths {
		alias = q.join(alias, p, context, negated)
		joins = append(joins, alias)
	}
	return joinInfo{target: tgt, joins: joins, paths: paths, consumed: consumed}, nil
}

// trimJoins drops trailing direct hops whose target column is the join
// column itself, comparing the foreign key on the parent alias instead.
// Trimmed aliases are unreferenced.
func (q *Query) trimJoins(tgt target, joins []string, paths []meta.PathInfo) (target, string, []string) {
	joins = append([]string(nil), joins...)
	for i := len(paths) - 1; i >= 0; i-- {
		p := paths[i]
		if len(joins) == 1 || !p.Direct || tgt.Column != p.ToColumn {
			break
		}
		if p.Relation.Field != nil {
			tgt = fieldTarget(p.Relation.Field)
		} else {
			tgt = target{Column: p.FromColumn, Type: tgt.Type}
		}
		q.unref(joins[len(joins)-1])
		joins = joins[:len(joins)-1]
	}
	return tgt, joins[len(joins)-1], joins
}

func (q *Query) unref(alias string) {
	q.refcount[alias]--
}

// promoteJoins turns INNER joins LEFT OUTER when the hop is nullable or the
// parent is already LEFT OUTER, then revisits the promoted joins' children.
func (q *Query) promoteJoins(aliases []string) {
	queue := append([]string(nil), aliases...)
	queued := make(map[string]bool, len(queue))
	for _, a := range queue {
		queued[a] = true
	}
	for len(queue) > 0 {
		alias := queue[0]
		queue = queue[1:]
		j, ok := q.joins[alias]
		if !ok || j.IsBase() || j.Type == queryir.LeftOuterJoin {
			continue
		}
		parentOuter := q.joins[j.Parent].Type == queryir.LeftOuterJoin
		if !j.Nullable && !parentOuter {
			continue
		}
		j.Type = queryir.LeftOuterJoin
		for _, child := range q.aliasOrder {
			if q.joins[child].Parent == alias && !queued[child] {
				queue = append(queue, child)
				queued[child] = true
			}
		}
	}
}

// demoteJoins turns the given LEFT OUTER joins INNER. Parents of a demoted
// join are demoted too, so no INNER join hangs below a LEFT OUTER one.
func (q *Query) demoteJoins(aliases []string) {
	queue := append([]string(nil), aliases...)
	for len(queue) > 0 {
		alias := queue[0]
		queue = queue[1:]
		j, ok := q.joins[alias]
		if !ok || j.IsBase() || j.Type != queryir.LeftOuterJoin {
			continue
		}
		j.Type = queryir.InnerJoin
		queue = append(queue, j.Parent)
	}
}
