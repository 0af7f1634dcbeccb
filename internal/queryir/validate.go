package queryir

import (
	"fmt"
	"strings"
)

// ValidationResult lists structural problems found in a Statement.
type ValidationResult struct {
	OK       bool
	Warnings []string
}

// Validate checks a Statement for inconsistencies an emitter would turn
// into broken or surprising SQL:
//  1. Every alias is unique and every join's parent is declared earlier.
//  2. An INNER join below a LEFT OUTER join, which discards the outer rows.
//  3. A fragment whose placeholder count differs from its params.
//  4. An empty group.
//
// Validate is a pure function with no side effects.
func Validate(stmt Statement) ValidationResult {
	v := &validator{warnings: []string{}}
	v.validateJoins(stmt)
	if stmt.Where != nil {
		v.validateClause(stmt.Where)
	}
	return ValidationResult{
		OK:       len(v.warnings) == 0,
		Warnings: v.warnings,
	}
}

type validator struct {
	warnings []string
}

func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) validateJoins(stmt Statement) {
	types := map[string]JoinType{stmt.Alias: ""}
	if stmt.Alias == "" {
		v.addWarning("statement has no base alias")
	}
	for _, j := range stmt.Joins {
		if _, dup := types[j.Alias]; dup {
			v.addWarning("alias %q is declared more than once", j.Alias)
			continue
		}
		parentType, ok := types[j.Parent]
		if !ok {
			v.addWarning("join %q references undeclared parent %q", j.Alias, j.Parent)
		}
		if parentType == LeftOuterJoin && j.Type == InnerJoin {
			v.addWarning("INNER join %q below LEFT OUTER join %q discards outer rows", j.Alias, j.Parent)
		}
		types[j.Alias] = j.Type
	}
}

func (v *validator) validateClause(c Clause) {
	switch clause := c.(type) {
	case Fragment:
		if n := strings.Count(clause.SQL, "?"); n != len(clause.Params) {
			v.addWarning("fragment %q has %d placeholders but %d params", clause.SQL, n, len(clause.Params))
		}
	case Group:
		if len(clause.Children) == 0 {
			v.addWarning("empty %s group", clause.Connector)
		}
		for _, child := range clause.Children {
			v.validateClause(child)
		}
	default:
		v.addWarning("unknown clause type: %T", c)
	}
}
