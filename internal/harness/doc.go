// Package harness runs filter scenarios end to end.
//
// A scenario names a CUE schema, a set of fixture rows, and a sequence of
// filter and exclude steps applied to one entity. Each run uses a fresh
// in-memory SQLite database:
//
//  1. Load the schema and create its tables
//  2. Insert the fixture rows in order
//  3. Apply each step to a queryset
//  4. Render the statement and fetch the matching primary keys
//  5. Evaluate the expectations
//
// The rendered SQL, parameters, join list and primary keys form a
// snapshot that golden tests compare against testdata/golden.
//
// Example scenario:
//
//	name: best_friend_or_isnull
//	description: authors whose best friend is Jim or who have none
//	schema: library.cue
//	entity: Author
//	fixtures:
//	  - table: author
//	    rows:
//	      - {id: 1, name: Jim}
//	      - {id: 2, name: Bob, best_friend_id: 1}
//	steps:
//	  - filter_text: 'best_friend__name = "Jim" | best_friend__isnull = true'
//	expect:
//	  pks: [1, 2]
//	  joins: {T2: LEFT OUTER JOIN}
package harness
