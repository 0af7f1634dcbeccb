package query

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relq/internal/expr"
	"github.com/roach88/relq/internal/lookup"
	"github.com/roach88/relq/internal/meta"
	"github.com/roach88/relq/internal/queryir"
	"github.com/roach88/relq/internal/testutil"
	"github.com/roach88/relq/internal/tree"
)

func entity(t *testing.T, name string) *meta.Entity {
	t.Helper()
	return testutil.Entity(t, testutil.Library(t), name)
}

func joinTypes(q *Query) map[string]queryir.JoinType {
	out := make(map[string]queryir.JoinType)
	for _, j := range q.Joins() {
		out[j.Alias] = j.Type
	}
	return out
}

func lookups(q *Query) []*lookup.Lookup {
	var out []*lookup.Lookup
	for _, leaf := range q.Where().Leaves() {
		out = append(out, leaf.(*lookup.Lookup))
	}
	return out
}

func TestUnresolvedField(t *testing.T) {
	q := New(entity(t, "Author"))
	err := q.AddQ(Q("nonexistent", 1))
	require.Error(t, err)
	assert.True(t, IsUnresolvedField(err))

	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "nonexistent", fe.Name)
	assert.Contains(t, fe.Choices, "best_friend")
	assert.Contains(t, fe.Choices, "books")
	assert.True(t, q.Where().IsEmpty(), "failed filter leaves query unchanged")
}

func TestSimpleFieldNeedsNoJoin(t *testing.T) {
	q := New(entity(t, "Author"))
	require.NoError(t, q.AddQ(Q("name", "Jim")))

	assert.Equal(t, "author", q.BaseAlias())
	assert.Empty(t, q.Joins())
	ls := lookups(q)
	require.Len(t, ls, 1)
	assert.Equal(t, "exact", ls[0].Name())
	assert.Equal(t, expr.Col{Alias: "author", Column: "name", Type: "string"}, ls[0].LHS)
	assert.Equal(t, "Jim", ls[0].RHS)
}

func TestBestFriendOrIsNull(t *testing.T) {
	q := New(entity(t, "Author"))
	f := Q("best_friend__name", "Jim").Or(Q("best_friend__isnull", true))
	require.NoError(t, q.AddQ(f))

	joins := q.Joins()
	require.Len(t, joins, 1, "isnull is answered from the FK column")
	assert.Equal(t, "T2", joins[0].Alias)
	assert.Equal(t, "author", joins[0].Parent)
	assert.Equal(t, queryir.LeftOuterJoin, joins[0].Type)

	ls := lookups(q)
	require.Len(t, ls, 2)
	assert.Equal(t, "T2", ls[0].LHS.(expr.Col).Alias)
	assert.Equal(t, "isnull", ls[1].Name())
	assert.Equal(t, expr.Col{Alias: "author", Column: "best_friend_id", Type: "int", Nullable: true}, ls[1].LHS)
}

func TestJoinPromotion(t *testing.T) {
	tests := []struct {
		name   string
		entity string
		build  func(q *Query) error
		want   map[string]queryir.JoinType
	}{
		{
			name:   "and with partial reference on nullable hop",
			entity: "Author",
			build: func(q *Query) error {
				return q.AddQ(Kw(map[string]any{"best_friend__name": "Jim", "name": "Ann"}))
			},
			want: map[string]queryir.JoinType{"T2": queryir.LeftOuterJoin},
		},
		{
			name:   "and with full reference on required hop",
			entity: "Book",
			build: func(q *Query) error {
				return q.AddQ(Kw(map[string]any{"author__name": "Jim", "author__age__gt": 30}))
			},
			want: map[string]queryir.JoinType{"author": queryir.InnerJoin},
		},
		{
			name:   "and with partial reference on required hop",
			entity: "Book",
			build: func(q *Query) error {
				return q.AddQ(Kw(map[string]any{"author__name": "Jim", "title": "Dune"}))
			},
			want: map[string]queryir.JoinType{"author": queryir.InnerJoin},
		},
		{
			name:   "or on nullable hop",
			entity: "Book",
			build: func(q *Query) error {
				return q.AddQ(Q("editor__name", "Bob").Or(Q("title", "Dune")))
			},
			want: map[string]queryir.JoinType{"author": queryir.LeftOuterJoin},
		},
		{
			name:   "or on required hop",
			entity: "Book",
			build: func(q *Query) error {
				return q.AddQ(Q("author__name", "Bob").Or(Q("title", "Dune")))
			},
			want: map[string]queryir.JoinType{"author": queryir.InnerJoin},
		},
		{
			name:   "negated lookup through nullable hop",
			entity: "Author",
			build: func(q *Query) error {
				return q.Exclude(Q("best_friend__name", "Jim"))
			},
			want: map[string]queryir.JoinType{"T2": queryir.LeftOuterJoin},
		},
		{
			name:   "nullable hop required by every child",
			entity: "Author",
			build: func(q *Query) error {
				return q.AddQ(Q("best_friend__name", "Jim"))
			},
			want: map[string]queryir.JoinType{"T2": queryir.InnerJoin},
		},
		{
			name:   "child of outer join is outer",
			entity: "Book",
			build: func(q *Query) error {
				return q.AddQ(Q("editor__best_friend__name", "Jim").Or(Q("title", "Dune")))
			},
			want: map[string]queryir.JoinType{
				"author": queryir.LeftOuterJoin,
				"T3":     queryir.LeftOuterJoin,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := New(entity(t, tt.entity))
			require.NoError(t, tt.build(q))
			if diff := cmp.Diff(tt.want, joinTypes(q)); diff != "" {
				t.Errorf("join types mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPromotionCascadesToChildren(t *testing.T) {
	q := New(entity(t, "Author"))
	require.NoError(t, q.AddQ(Kw(map[string]any{"books__author__name": "Jim"})))
	require.Equal(t, map[string]queryir.JoinType{
		"books": queryir.InnerJoin,
		"T3":    queryir.InnerJoin,
	}, joinTypes(q))

	q.promoteJoins([]string{"books"})
	assert.Equal(t, map[string]queryir.JoinType{
		"books": queryir.LeftOuterJoin,
		"T3":    queryir.LeftOuterJoin,
	}, joinTypes(q))
}

func TestExistingInnerJoinsStayInner(t *testing.T) {
	q := New(entity(t, "Author"))
	require.NoError(t, q.AddQ(Q("best_friend__name", "Jim")))
	require.NoError(t, q.AddQ(Q("best_friend__age__gt", 30).Or(Q("name", "Ann"))))

	joins := q.Joins()
	require.Len(t, joins, 1)
	assert.Equal(t, queryir.InnerJoin, joins[0].Type)
	assert.Equal(t, 2, q.Refcount("T2"))
}

func TestAliasReuse(t *testing.T) {
	t.Run("same and branch shares alias", func(t *testing.T) {
		q := New(entity(t, "Author"))
		require.NoError(t, q.AddQ(Kw(map[string]any{"books__title": "Dune", "books__rating__gt": 4.0})))
		joins := q.Joins()
		require.Len(t, joins, 1)
		assert.Equal(t, "books", joins[0].Alias)
		assert.Equal(t, 2, q.Refcount("books"))
	})

	t.Run("sibling or branches get their own alias", func(t *testing.T) {
		q := New(entity(t, "Author"))
		require.NoError(t, q.AddQ(Q("books__title", "Dune").Or(Q("books__title", "Odes"))))
		joins := q.Joins()
		require.Len(t, joins, 2)
		assert.Equal(t, "books", joins[0].Alias)
		assert.Equal(t, "T3", joins[1].Alias)
	})

	t.Run("single valued path shared across branches", func(t *testing.T) {
		q := New(entity(t, "Author"))
		require.NoError(t, q.AddQ(Q("best_friend__name", "Jim").Or(Q("best_friend__age", 3))))
		require.Len(t, q.Joins(), 1)
	})

	t.Run("independent filters split multi valued paths", func(t *testing.T) {
		q := New(entity(t, "Author"))
		require.NoError(t, q.Filter(Q("books__title", "Dune")))
		require.NoError(t, q.Filter(Q("books__rating__gt", 4.0)))
		require.Len(t, q.Joins(), 2)
	})
}

func TestManyToManyJoinsThroughTable(t *testing.T) {
	q := New(entity(t, "Book"))
	require.NoError(t, q.AddQ(Q("tags__label", "sci-fi")))

	joins := q.Joins()
	require.Len(t, joins, 2)
	assert.Equal(t, "books_tags", joins[0].Table)
	assert.Equal(t, "books", joins[0].Parent)
	assert.Equal(t, "tag", joins[1].Table)
	assert.Equal(t, joins[0].Alias, joins[1].Parent)
	assert.True(t, q.MultiValued())
}

func TestManyToManyPkIsTrimmed(t *testing.T) {
	q := New(entity(t, "Book"))
	require.NoError(t, q.AddQ(Q("tags", 1)))

	joins := q.Joins()
	require.Len(t, joins, 1)
	assert.Equal(t, "books_tags", joins[0].Table)
	ls := lookups(q)
	require.Len(t, ls, 1)
	assert.Equal(t, "tag_id", ls[0].LHS.(expr.Col).Column)
}

func TestNegationAddsNotNull(t *testing.T) {
	q := New(entity(t, "Author"))
	require.NoError(t, q.Exclude(Q("age", 30)))

	where := q.Where()
	require.Len(t, where.Children, 1)
	neg := where.Children[0].(*tree.Node)
	assert.True(t, neg.Negated)
	ls := lookups(q)
	require.Len(t, ls, 2)
	assert.Equal(t, "exact", ls[0].Name())
	assert.Equal(t, "isnull", ls[1].Name())
	assert.Equal(t, false, ls[1].RHS)
}

func TestNegatedIsNullHasNoExtraCondition(t *testing.T) {
	q := New(entity(t, "Author"))
	require.NoError(t, q.Exclude(Q("age__isnull", true)))
	assert.Len(t, lookups(q), 1)
}

func TestExcludeMultiValuedUsesSubquery(t *testing.T) {
	q := New(entity(t, "Author"))
	require.NoError(t, q.Exclude(Q("books__title", "Dune")))

	assert.Empty(t, q.Joins(), "outer query does not join books")
	ls := lookups(q)
	require.Len(t, ls, 1)
	assert.Equal(t, "in", ls[0].Name())

	sub, ok := ls[0].RHS.(expr.Subquery)
	require.True(t, ok)
	inner := sub.Query.(*Query)
	assert.Equal(t, "U0", inner.BaseAlias())
	innerJoins := inner.Joins()
	require.Len(t, innerJoins, 1)
	assert.Equal(t, "U1", innerJoins[0].Alias)
	assert.Equal(t, queryir.InnerJoin, innerJoins[0].Type)
}

func TestDisallowedJoin(t *testing.T) {
	q := New(entity(t, "Author"), WithAllowJoins(false))
	err := q.AddQ(Q("best_friend__name", "Jim"))
	assert.True(t, IsDisallowedJoin(err))

	// Trimmed to the FK column, so no join is needed.
	require.NoError(t, q.AddQ(Q("best_friend", 2)))
	assert.Empty(t, q.Joins())

	err = q.AddQ(Q("age__gt", expr.F{Name: "best_friend__age"}))
	assert.True(t, IsDisallowedJoin(err))
}

func TestLookupResolution(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		value    any
		wantRule string
		wantLHS  string
	}{
		{name: "default exact", path: "name", value: "Jim", wantRule: "exact", wantLHS: "author.name"},
		{name: "explicit lookup", path: "age__gte", value: 3, wantRule: "gte", wantLHS: "author.age"},
		{name: "transform then lookup", path: "name__lower__startswith", value: "j", wantRule: "startswith", wantLHS: "LOWER"},
		{name: "transform as final name", path: "name__upper", value: "JIM", wantRule: "exact", wantLHS: "UPPER"},
		{name: "nil becomes isnull", path: "age", value: nil, wantRule: "isnull", wantLHS: "author.age"},
		{name: "fk column", path: "best_friend_id", value: 1, wantRule: "exact", wantLHS: "author.best_friend_id"},
		{name: "pk alias", path: "pk__in", value: []int{1, 2}, wantRule: "in", wantLHS: "author.id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := New(entity(t, "Author"))
			require.NoError(t, q.AddQ(Q(tt.path, tt.value)))
			ls := lookups(q)
			require.Len(t, ls, 1)
			assert.Equal(t, tt.wantRule, ls[0].Name())
			switch lhs := ls[0].LHS.(type) {
			case expr.Col:
				assert.Equal(t, tt.wantLHS, lhs.String())
			case expr.Func:
				assert.Equal(t, tt.wantLHS, lhs.Name)
			default:
				t.Fatalf("unexpected lhs %T", lhs)
			}
		})
	}
}

func TestLookupErrors(t *testing.T) {
	q := New(entity(t, "Author"))

	err := q.AddQ(Q("name__frobnicate", 1))
	assert.True(t, IsUnsupportedLookup(err))
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe.Choices, "icontains")

	err = q.AddQ(Q("age__lower", "x"))
	assert.True(t, IsUnsupportedLookup(err), "lower does not apply to int")

	err = q.AddQ(Q("age__gt", nil))
	assert.True(t, IsInvalidLookupValue(err))

	err = q.AddQ(Q("age__isnull", "yes"))
	assert.True(t, IsInvalidLookupValue(err))

	err = q.AddQ(Expr(expr.Col{Alias: "author", Column: "name", Type: "string"}))
	assert.True(t, IsAmbiguousConditional(err))

	assert.True(t, q.Where().IsEmpty())
}

func TestConditionalExpression(t *testing.T) {
	q := New(entity(t, "Author"))
	require.NoError(t, q.AddQ(Expr(expr.Raw{SQL: "1 = 1", Bool: true})))
	ls := lookups(q)
	require.Len(t, ls, 1)
	assert.Equal(t, "exact", ls[0].Name())
	assert.Equal(t, true, ls[0].RHS)
}

func TestFReferenceJoinsAndVotes(t *testing.T) {
	q := New(entity(t, "Author"))
	require.NoError(t, q.AddQ(Q("age__gt", expr.F{Name: "best_friend__age"})))

	joins := q.Joins()
	require.Len(t, joins, 1)
	assert.Equal(t, queryir.InnerJoin, joins[0].Type)
	ls := lookups(q)
	require.Len(t, ls, 1)
	assert.Equal(t, expr.Col{Alias: "T2", Column: "age", Type: "int", Nullable: true}, ls[0].RHS)

	err := q.AddQ(Q("age", expr.F{Name: "nope"}))
	assert.True(t, IsUnresolvedField(err))
}

func TestCloneIsIndependent(t *testing.T) {
	q := New(entity(t, "Author"))
	require.NoError(t, q.AddQ(Q("name", "Jim")))

	c := q.Clone()
	require.NoError(t, c.AddQ(Q("best_friend__name", "Bob")))

	assert.Empty(t, q.Joins())
	assert.Equal(t, 1, q.Where().Len())
	assert.Len(t, c.Joins(), 1)
	assert.Equal(t, 2, c.Where().Len())
}

func TestHashTracksShape(t *testing.T) {
	build := func(name string) *Query {
		q := New(entity(t, "Author"))
		require.NoError(t, q.AddQ(Q("best_friend__name", name)))
		return q
	}
	a, err := build("Jim").Hash()
	require.NoError(t, err)
	b, err := build("Jim").Hash()
	require.NoError(t, err)
	c, err := build("Bob").Hash()
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestAliasPrefix(t *testing.T) {
	q := New(entity(t, "Author"), WithAliasPrefix("U"))
	require.NoError(t, q.AddQ(Q("best_friend__name", "Jim")))
	assert.Equal(t, "U0", q.BaseAlias())
	assert.Equal(t, "U1", q.Joins()[0].Alias)
}

func TestEmptyFilterIsNoop(t *testing.T) {
	q := New(entity(t, "Author"))
	require.NoError(t, q.AddQ(tree.Create(tree.KindFilter, nil, tree.AND, false)))
	require.NoError(t, q.Exclude(All()))
	assert.True(t, q.Where().IsEmpty())
}
