// Package query resolves filter trees against entity metadata into a WHERE
// tree plus a map of join aliases.
//
// A Query is a builder owned by one caller. It is not safe for concurrent
// mutation; Clone it to branch off an independent copy.
package query

import (
	"fmt"

	"github.com/roach88/relq/internal/ir"
	"github.com/roach88/relq/internal/lookup"
	"github.com/roach88/relq/internal/meta"
	"github.com/roach88/relq/internal/queryir"
	"github.com/roach88/relq/internal/tree"
)

// Join is one alias in the query's FROM clause. The base table has no
// parent and no join type.
type Join struct {
	Alias    string
	Table    string
	Parent   string
	Path     meta.PathInfo
	Type     queryir.JoinType
	Nullable bool

	key joinKey
}

// IsBase reports whether j is the query's base table.
func (j Join) IsBase() bool {
	return j.Parent == ""
}

// joinKey identifies a reusable join. context is -1 for single-valued hops,
// which are shared by every branch.
type joinKey struct {
	parent     string
	table      string
	fromColumn string
	toColumn   string
	context    int
}

// Query holds the resolved WHERE tree and join aliases for one entity.
type Query struct {
	entity     *meta.Entity
	registry   *lookup.Registry
	allowJoins bool
	prefix     string
	numbered   bool

	where      *tree.Node
	joins      map[string]*Join
	aliasOrder []string
	refcount   map[string]int
	tableMap   map[string][]string
	reuse      map[joinKey]string
	base       string
	contexts   int
}

// Option configures a Query.
type Option func(*Query)

// WithRegistry sets the lookup registry. The default is lookup.Default().
func WithRegistry(r *lookup.Registry) Option {
	return func(q *Query) {
		q.registry = r
	}
}

// WithAllowJoins controls whether filter paths may cross relations.
func WithAllowJoins(allow bool) Option {
	return func(q *Query) {
		q.allowJoins = allow
	}
}

// WithAliasPrefix numbers every alias, the base table included, with the
// given prefix ("U0", "U1", ...). Nested queries use it so their aliases
// never collide with the outer query's.
func WithAliasPrefix(prefix string) Option {
	return func(q *Query) {
		q.prefix = prefix
		q.numbered = true
	}
}

// New returns an empty query on entity.
func New(entity *meta.Entity, opts ...Option) *Query {
	q := &Query{
		entity:     entity,
		allowJoins: true,
		prefix:     "T",
		where:      tree.Create(tree.KindWhere, nil, tree.AND, false),
		joins:      make(map[string]*Join),
		refcount:   make(map[string]int),
		tableMap:   make(map[string][]string),
		reuse:      make(map[joinKey]string),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.registry == nil {
		q.registry = lookup.Default()
	}
	q.base = q.tableAlias(entity.Table)
	q.joins[q.base] = &Join{Alias: q.base, Table: entity.Table}
	return q
}

// tableAlias allocates a new alias for table. The first use of a table is
// aliased by its own name, later uses are numbered by alias count.
func (q *Query) tableAlias(table string) string {
	var alias string
	switch {
	case q.numbered:
		alias = fmt.Sprintf("%s%d", q.prefix, len(q.aliasOrder))
	case len(q.tableMap[table]) > 0:
		alias = fmt.Sprintf("%s%d", q.prefix, len(q.aliasOrder)+1)
	default:
		alias = table
	}
	q.tableMap[table] = append(q.tableMap[table], alias)
	q.aliasOrder = append(q.aliasOrder, alias)
	q.refcount[alias] = 1
	return alias
}

// Entity returns the base entity.
func (q *Query) Entity() *meta.Entity { return q.entity }

// Registry returns the lookup registry in use.
func (q *Query) Registry() *lookup.Registry { return q.registry }

// BaseAlias returns the alias of the base table.
func (q *Query) BaseAlias() string { return q.base }

// Where returns the resolved WHERE tree. Callers must not mutate it.
func (q *Query) Where() *tree.Node { return q.where }

// Join returns the join registered under alias.
func (q *Query) Join(alias string) (Join, bool) {
	j, ok := q.joins[alias]
	if !ok {
		return Join{}, false
	}
	return *j, true
}

// Joins returns the referenced joins, excluding the base table, in
// creation order. Joins whose every reference was trimmed are skipped.
func (q *Query) Joins() []Join {
	var out []Join
	for _, alias := range q.aliasOrder {
		j := q.joins[alias]
		if j.IsBase() || q.refcount[alias] == 0 {
			continue
		}
		out = append(out, *j)
	}
	return out
}

// Refcount returns how many resolved references use alias.
func (q *Query) Refcount(alias string) int {
	return q.refcount[alias]
}

// MultiValued reports whether any referenced join can fan out rows.
func (q *Query) MultiValued() bool {
	for _, j := range q.Joins() {
		if j.Path.MultiValued {
			return true
		}
	}
	return false
}

// Clone returns an independent copy. Lookup leaves are shared since they
// are never mutated after construction.
func (q *Query) Clone() *Query {
	c := *q
	c.where = q.where.DeepCopy()
	c.joins = make(map[string]*Join, len(q.joins))
	for alias, j := range q.joins {
		cp := *j
		c.joins[alias] = &cp
	}
	c.aliasOrder = append([]string(nil), q.aliasOrder...)
	c.refcount = make(map[string]int, len(q.refcount))
	for k, v := range q.refcount {
		c.refcount[k] = v
	}
	c.tableMap = make(map[string][]string, len(q.tableMap))
	for k, v := range q.tableMap {
		c.tableMap[k] = append([]string(nil), v...)
	}
	c.reuse = make(map[joinKey]string, len(q.reuse))
	for k, v := range q.reuse {
		c.reuse[k] = v
	}
	return &c
}

// HashKey implements ir.Hashable over the entity, WHERE tree and joins.
func (q *Query) HashKey() (ir.IRValue, error) {
	where, err := q.where.HashKey()
	if err != nil {
		return nil, err
	}
	joins := ir.IRArray{}
	for _, j := range q.Joins() {
		joins = append(joins, ir.IRArray{
			ir.IRString(j.Alias),
			ir.IRString(j.Table),
			ir.IRString(j.Parent),
			ir.IRString(j.Path.FromColumn),
			ir.IRString(j.Path.ToColumn),
			ir.IRString(j.Type),
		})
	}
	return ir.IRTagged{
		Tag: "query.Query",
		Value: ir.IRArray{
			ir.IRString(q.entity.Name),
			ir.IRString(q.base),
			where,
			joins,
		},
	}, nil
}

// Hash identifies the query's compiled shape. Two queries with equal hashes
// compile to the same statement.
func (q *Query) Hash() (uint64, error) {
	key, err := q.HashKey()
	if err != nil {
		return 0, err
	}
	return ir.Hash(key)
}

func (q *Query) newContext() int {
	q.contexts++
	return q.contexts
}

func (q *Query) String() string {
	return fmt.Sprintf("Query(%s, %v)", q.entity.Name, q.where)
}
