// Package queryir defines the structured clause objects a compiled query is
// handed to SQL emitters as.
//
// A Statement carries the base table, the join list with finalized join
// types and the WHERE clause tree. WHERE leaves are Fragments: SQL text with
// "?" placeholders produced by each lookup's own compilation rule. Groups
// join their children with a connector and may be negated.
//
// Clause is a sealed interface using the marker method pattern, so emitters
// can switch exhaustively:
//
//	switch c := clause.(type) {
//	case Fragment:
//	    // leaf
//	case Group:
//	    // connector + children
//	}
//
// Statements are immutable once returned by the compiler. Emitters must not
// modify slices reachable from a Statement.
package queryir
