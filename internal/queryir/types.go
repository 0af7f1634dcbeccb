package queryir

// Clause is a node of a WHERE clause tree.
//
// This is a sealed interface - only Fragment and Group implement it.
type Clause interface {
	clauseNode()
}

// Fragment is a compiled condition.
type Fragment struct {
	SQL    string
	Params []any
}

func (Fragment) clauseNode() {}

// Group joins children with a connector ("AND", "OR").
//
// Semantics:
//
//	NOT (<child1> <connector> <child2> ...)   when Negated
//	(<child1> <connector> <child2> ...)       when nested with several children
type Group struct {
	Connector string
	Negated   bool
	Children  []Clause
}

func (Group) clauseNode() {}

// JoinType is the SQL join kind.
type JoinType string

const (
	InnerJoin     JoinType = "INNER JOIN"
	LeftOuterJoin JoinType = "LEFT OUTER JOIN"
)

// ColumnRef names a column on an alias.
type ColumnRef struct {
	Alias  string
	Column string
}

// JoinClause is one joined table.
//
// Semantics:
//
//	<Type> <Table> <Alias> ON (<Parent>.<ParentColumn> = <Alias>.<Column>)
type JoinClause struct {
	Table        string
	Alias        string
	Parent       string
	ParentColumn string
	Column       string
	Type         JoinType
	Nullable     bool
}

// Statement is a compiled SELECT.
type Statement struct {
	Table    string // base table
	Alias    string // base alias, equal to Table unless the query is nested
	Columns  []ColumnRef
	Joins    []JoinClause
	Where    Clause // nil when every row matches
	Distinct bool
	OrderBy  []ColumnRef
	// Empty marks a statement whose condition can match no row. Executors
	// may skip the database entirely.
	Empty bool
}

// JoinByAlias returns the join with the given alias.
func (s Statement) JoinByAlias(alias string) (JoinClause, bool) {
	for _, j := range s.Joins {
		if j.Alias == alias {
			return j, true
		}
	}
	return JoinClause{}, false
}
