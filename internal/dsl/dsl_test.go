package dsl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relq/internal/expr"
	"github.com/roach88/relq/internal/query"
	"github.com/roach88/relq/internal/tree"
)

func TestParseYAML(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want *tree.Node
	}{
		{
			name: "plain mapping",
			src:  "name: Jim\nage__gt: 30\n",
			want: query.Kw(map[string]any{"name": "Jim", "age__gt": 30}),
		},
		{
			name: "or of conditions",
			src:  "or:\n  - best_friend__name: Jim\n  - best_friend__isnull: true\n",
			want: query.Q("best_friend__name", "Jim").Or(query.Q("best_friend__isnull", true)),
		},
		{
			name: "not",
			src:  "not:\n  books__title: Dune\n",
			want: query.Q("books__title", "Dune").Not(),
		},
		{
			name: "field reference",
			src:  "age__gt: {$F: best_friend__age}\n",
			want: query.Q("age__gt", expr.F{Name: "best_friend__age"}),
		},
		{
			name: "list value",
			src:  "id__in: [1, 3]\n",
			want: query.Q("id__in", []any{1, 3}),
		},
		{
			name: "conditions and nested branches",
			src:  "name: Jim\nnot:\n  age: 41\n",
			want: query.All(query.Kw(map[string]any{"name": "Jim"}), query.Q("age", 41).Not()),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseYAML([]byte(tt.src))
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestParseYAMLEmpty(t *testing.T) {
	got, err := ParseYAML(nil)
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())
}

func TestParseYAMLErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		path string
	}{
		{"scalar", "42\n", ""},
		{"or needs list", "or: {a: 1}\n", "or"},
		{"empty and", "and: []\n", "and"},
		{"bad nested", "and:\n  - 3\n", "and[0]"},
		{"bad value mapping", "age: {x: 1}\n", "age"},
		{"malformed yaml", "a: [1,\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseYAML([]byte(tt.src))
			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.path, perr.Path)
		})
	}
}

func TestParseText(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want *tree.Node
	}{
		{
			name: "single condition",
			src:  `name = "Jim"`,
			want: query.Q("name", "Jim"),
		},
		{
			name: "and binds tighter than or",
			src:  `a = 1 & b = 2 | c = 3`,
			want: query.Q("a", 1).And(query.Q("b", 2)).Or(query.Q("c", 3)),
		},
		{
			name: "not and grouping",
			src:  `~(a = 1 | b__isnull = true) & c = 2.5`,
			want: query.Q("a", 1).Or(query.Q("b__isnull", true)).Not().And(query.Q("c", 2.5)),
		},
		{
			name: "values",
			src:  `a__in = [1, "x", null] & b = F(best_friend__age) & c = null & d = false`,
			want: query.Q("a__in", []any{1, "x", nil}).
				And(query.Q("b", expr.F{Name: "best_friend__age"})).
				And(query.Q("c", nil)).
				And(query.Q("d", false)),
		},
		{
			name: "negative number",
			src:  `age__gt = -3`,
			want: query.Q("age__gt", -3),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseText(tt.src)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestParseTextErrors(t *testing.T) {
	for _, src := range []string{`a =`, `= 1`, `a = 1 &`, `(a = 1`, `a = [1,`} {
		_, err := ParseText(src)
		var perr *ParseError
		require.ErrorAs(t, err, &perr, src)
		assert.Contains(t, perr.Path, "filter:1:", src)
	}

	got, err := ParseText("  ")
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())
}
