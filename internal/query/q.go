package query

import (
	"fmt"
	"sort"

	"github.com/roach88/relq/internal/expr"
	"github.com/roach88/relq/internal/tree"
)

// LookupSep separates path segments: "author__age__gt".
const LookupSep = "__"

// Cond is one keyword-style condition.
type Cond struct {
	Path  string
	Value any
}

func (c Cond) String() string {
	if s, ok := c.Value.(string); ok {
		return fmt.Sprintf("(%s, %q)", c.Path, s)
	}
	return fmt.Sprintf("(%s, %v)", c.Path, c.Value)
}

// Q returns a filter node holding a single condition.
func Q(path string, value any) *tree.Node {
	return tree.Create(tree.KindFilter, []any{Cond{Path: path, Value: value}}, tree.AND, false)
}

// Kw returns a filter node AND-ing the conditions in kwargs, ordered by
// path so the result does not depend on map iteration.
func Kw(kwargs map[string]any) *tree.Node {
	paths := make([]string, 0, len(kwargs))
	for p := range kwargs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	children := make([]any, len(paths))
	for i, p := range paths {
		children[i] = Cond{Path: p, Value: kwargs[p]}
	}
	return tree.Create(tree.KindFilter, children, tree.AND, false)
}

// Expr returns a filter node holding a conditional expression.
func Expr(e expr.Expression) *tree.Node {
	return tree.Create(tree.KindFilter, []any{e}, tree.AND, false)
}

// All AND-s the given filter nodes into one, keeping each as a child.
func All(nodes ...*tree.Node) *tree.Node {
	children := make([]any, 0, len(nodes))
	for _, n := range nodes {
		if n != nil {
			children = append(children, n)
		}
	}
	return tree.Create(tree.KindFilter, children, tree.AND, false)
}
