// Package tree implements the mutable boolean tree used for both caller
// filters and resolved WHERE clauses.
//
// A Node joins its children with a Connector and may be negated as a
// whole. Adding a node whose connector matches (or which has a single
// child) splices its children in rather than nesting it:
//
//	n := tree.Create(tree.KindFilter, []any{a, b}, tree.OR, false)
//	n.Add(tree.Create(tree.KindFilter, []any{c}, tree.AND, false), tree.OR)
//	// (OR: a, b, c)
//
// Double negation is never collapsed: NOT(NOT(x)) keeps both levels.
package tree
