package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relq/internal/ir"
)

type pair struct {
	Name  string
	Value any
}

func (p pair) String() string { return p.Name }

func TestAddSquashesMatchingConnector(t *testing.T) {
	a, b, c := pair{"a", 1}, pair{"b", 2}, pair{"c", 3}
	n := Create(KindNode, []any{a, b}, OR, false)

	got := n.Add(Create(KindNode, []any{c}, OR, false), OR)

	assert.Same(t, n, got)
	assert.Equal(t, "(OR: a, b, c)", n.String())
	assert.True(t, n.Equal(Create(KindNode, []any{a, b, c}, OR, false)))
}

func TestAddLeafMatchingConnectorAppends(t *testing.T) {
	a, b, c := pair{"a", 1}, pair{"b", 2}, pair{"c", 3}
	n := Create(KindNode, []any{a, b}, OR, false)

	got := n.Add(c, OR)

	assert.Equal(t, c, got)
	assert.True(t, n.Equal(Create(KindNode, []any{a, b, c}, OR, false)))
}

func TestAddSquashesSingleChildRegardlessOfConnector(t *testing.T) {
	a, b := pair{"a", 1}, pair{"b", 2}
	n := New(a)
	n.Add(Create(KindNode, []any{b}, OR, false), AND)
	assert.Equal(t, "(AND: a, b)", n.String())
}

func TestAddDoesNotSquashNegated(t *testing.T) {
	a, b := pair{"a", 1}, pair{"b", 2}
	n := New(a)
	inner := Create(KindNode, []any{b}, AND, true)

	got := n.Add(inner, AND)

	assert.Same(t, inner, got)
	assert.Equal(t, "(AND: a, (NOT (AND: b)))", n.String())
}

func TestAddDoesNotSquashOtherConnector(t *testing.T) {
	a, b, c := pair{"a", 1}, pair{"b", 2}, pair{"c", 3}
	n := New(a)
	n.Add(Create(KindNode, []any{b, c}, OR, false), AND)
	assert.Equal(t, "(AND: a, (OR: b, c))", n.String())
}

func TestAddConnectorSwitchWrapsExisting(t *testing.T) {
	a, b, c := pair{"a", 1}, pair{"b", 2}, pair{"c", 3}
	n := New(a, b)

	got := n.Add(c, OR)

	assert.Equal(t, c, got)
	assert.Equal(t, OR, n.Connector)
	assert.Equal(t, "(OR: (AND: a, b), c)", n.String())
}

func TestAddConnectorSwitchCarriesNegation(t *testing.T) {
	a, b := pair{"a", 1}, pair{"b", 2}
	n := Create(KindNode, []any{a}, AND, true)

	n.Add(b, OR)

	assert.False(t, n.Negated)
	assert.Equal(t, "(OR: (NOT (AND: a)), b)", n.String())
}

func TestAddConnectorSwitchOnEmpty(t *testing.T) {
	a, b := pair{"a", 1}, pair{"b", 2}
	n := New()
	n.Add(Create(KindNode, []any{a, b}, OR, false), OR)
	assert.Equal(t, "(OR: a, b)", n.String())
}

func TestNegateRoundTrip(t *testing.T) {
	a, b := pair{"a", 1}, pair{"b", 2}
	inner := Create(KindNode, []any{b}, AND, true)
	n := New(a, inner)
	before := n.DeepCopy()

	n.Negate()
	assert.True(t, n.Negated)
	assert.True(t, inner.Negated, "children untouched")
	n.Negate()

	assert.False(t, n.Negated)
	assert.True(t, n.Equal(before))
}

func TestDoubleNegationKeepsBothLevels(t *testing.T) {
	a := pair{"a", 1}
	n := New(a).Not().Not()
	assert.False(t, n.Negated)

	wrapped := New(New(a).Not())
	wrapped.Negate()
	assert.Equal(t, "(NOT (AND: (NOT (AND: a))))", wrapped.String())
}

func TestEqualIsOrderSensitive(t *testing.T) {
	a, b := pair{"a", 1}, pair{"b", 2}
	assert.False(t, New(a, b).Equal(New(b, a)))
	assert.True(t, New(a, b).Equal(New(a, b)))
}

func TestEqualComparesKind(t *testing.T) {
	a := pair{"a", 1}
	assert.False(t, Create(KindFilter, []any{a}, AND, false).Equal(Create(KindWhere, []any{a}, AND, false)))
}

func TestHashAndEqualSurviveDeepCopy(t *testing.T) {
	tests := []struct {
		name string
		node *Node
	}{
		{"empty", New()},
		{"leaves", New(pair{"a", 1}, pair{"b", "x"})},
		{"nested", New(pair{"a", 1}, Create(KindFilter, []any{pair{"b", 2}, pair{"c", 3}}, OR, true))},
		{"unhashable leaf values", New(pair{"in", []any{1, 2, 3}}, pair{"m", map[string]any{"k": []int{1}}})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cp := tt.node.DeepCopy()
			assert.True(t, tt.node.Equal(cp))

			h1, err := tt.node.Hash()
			require.NoError(t, err)
			h2, err := cp.Hash()
			require.NoError(t, err)
			assert.Equal(t, h1, h2)
		})
	}
}

func TestHashDistinguishesStructure(t *testing.T) {
	a, b := pair{"a", 1}, pair{"b", 2}
	and, err := New(a, b).Hash()
	require.NoError(t, err)
	or, err := Create(KindNode, []any{a, b}, OR, false).Hash()
	require.NoError(t, err)
	neg, err := Create(KindNode, []any{a, b}, AND, true).Hash()
	require.NoError(t, err)
	swapped, err := New(b, a).Hash()
	require.NoError(t, err)

	assert.NotEqual(t, and, or)
	assert.NotEqual(t, and, neg)
	assert.NotEqual(t, and, swapped)
}

func TestHashUnhashableLeafPropagates(t *testing.T) {
	n := New(pair{"fn", func() {}})
	_, err := n.Hash()

	var unhashable *ir.UnhashableValueError
	require.ErrorAs(t, err, &unhashable)
	assert.Equal(t, "func()", unhashable.Type)
}

func TestCopySharesChildrenDeepCopyDoesNot(t *testing.T) {
	inner := New(pair{"b", 2})
	n := New(pair{"a", 1}, Create(KindNode, []any{inner}, OR, false))

	shallow := n.Copy()
	deep := n.DeepCopy()

	shallow.Children[1].(*Node).Negate()
	assert.True(t, n.Children[1].(*Node).Negated)
	assert.False(t, deep.Children[1].(*Node).Negated)
}

func TestCopyAppendDoesNotLeak(t *testing.T) {
	n := New(pair{"a", 1})
	n.Children = append(make([]any, 0, 8), n.Children...)
	cp := n.Copy()

	cp.Add(pair{"b", 2}, AND)
	n.Add(pair{"c", 3}, AND)

	assert.Equal(t, "(AND: a, b)", cp.String())
	assert.Equal(t, "(AND: a, c)", n.String())
}

func TestCombine(t *testing.T) {
	a, b := pair{"a", 1}, pair{"b", 2}
	qa := Create(KindFilter, []any{a}, AND, false)
	qb := Create(KindFilter, []any{b}, AND, false)

	assert.Equal(t, "(OR: a, b)", qa.Or(qb).String())
	assert.Equal(t, "(AND: a, b)", qa.And(qb).String())
	assert.Equal(t, "(NOT (AND: a))", qa.Not().String())
	assert.False(t, qa.Negated, "Not copies")

	empty := Create(KindFilter, nil, AND, false)
	assert.True(t, empty.Or(qa).Equal(qa))
	assert.True(t, qa.And(empty).Equal(qa))
	assert.Equal(t, KindFilter, qa.Or(qb).Kind())
}

func TestCombineKeepsNegatedOperandsNested(t *testing.T) {
	a, b := pair{"a", 1}, pair{"b", 2}
	qa := Create(KindFilter, []any{a}, AND, false)
	qb := Create(KindFilter, []any{b}, AND, false).Not()

	assert.Equal(t, "(AND: a, (NOT (AND: b)))", qa.And(qb).String())
}

func TestContainsAndLeaves(t *testing.T) {
	a, b, c := pair{"a", 1}, pair{"b", 2}, pair{"c", 3}
	n := New(a, Create(KindNode, []any{b, c}, OR, false))

	assert.True(t, n.Contains(a))
	assert.False(t, n.Contains(b))
	assert.Equal(t, []any{a, b, c}, n.Leaves())
	assert.Len(t, n.Flatten(), 5)
}
