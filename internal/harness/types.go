package harness

import "github.com/roach88/relq/internal/queryir"

// JoinResult is one join of the compiled statement.
type JoinResult struct {
	Alias string           `json:"alias"`
	Table string           `json:"table"`
	Type  queryir.JoinType `json:"type"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expectation held.
	Pass bool `json:"pass"`

	SQL    string       `json:"sql,omitempty"`
	Params []any        `json:"params,omitempty"`
	Joins  []JoinResult `json:"joins,omitempty"`
	PKs    []any        `json:"pks"`

	// Empty is set when the statement matches nothing and was not run.
	Empty bool `json:"empty,omitempty"`

	// Err is the step error, if any step failed.
	Err error `json:"-"`

	// Errors contains expectation failures.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		PKs:    []any{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func validJoinType(s string) bool {
	return s == string(queryir.InnerJoin) || s == string(queryir.LeftOuterJoin)
}
