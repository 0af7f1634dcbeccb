package query

import (
	"errors"
	"fmt"
	"strings"
)

// FieldError codes.
const (
	ErrCodeUnresolvedField      = "UNRESOLVED_FIELD"
	ErrCodeDisallowedJoin       = "DISALLOWED_JOIN"
	ErrCodeUnsupportedLookup    = "UNSUPPORTED_LOOKUP"
	ErrCodeInvalidLookupValue   = "INVALID_LOOKUP_VALUE"
	ErrCodeAmbiguousConditional = "AMBIGUOUS_CONDITIONAL"
)

// FieldError reports a filter that cannot be resolved against the schema.
// None of these are retryable.
type FieldError struct {
	Code    string
	Name    string // the offending path segment or lookup
	Message string
	Choices []string // valid alternatives, when known
}

func (e *FieldError) Error() string {
	return e.Message
}

func unresolvedField(name string, choices []string) *FieldError {
	return &FieldError{
		Code:    ErrCodeUnresolvedField,
		Name:    name,
		Message: fmt.Sprintf("cannot resolve keyword %q into field. Choices are: %s", name, strings.Join(choices, ", ")),
		Choices: choices,
	}
}

func disallowedJoin(name string) *FieldError {
	return &FieldError{
		Code:    ErrCodeDisallowedJoin,
		Name:    name,
		Message: "joined field references are not permitted in this query",
	}
}

// IsUnresolvedField reports a path segment that names no field, relation or
// lookup.
func IsUnresolvedField(err error) bool { return hasCode(err, ErrCodeUnresolvedField) }

// IsDisallowedJoin reports a path that crosses a relation where joins are
// not allowed.
func IsDisallowedJoin(err error) bool { return hasCode(err, ErrCodeDisallowedJoin) }

// IsUnsupportedLookup reports an unknown lookup or transform name.
func IsUnsupportedLookup(err error) bool { return hasCode(err, ErrCodeUnsupportedLookup) }

// IsInvalidLookupValue reports a value a lookup rejects.
func IsInvalidLookupValue(err error) bool { return hasCode(err, ErrCodeInvalidLookupValue) }

// IsAmbiguousConditional reports a non-boolean expression used as a filter.
func IsAmbiguousConditional(err error) bool { return hasCode(err, ErrCodeAmbiguousConditional) }

func hasCode(err error, code string) bool {
	var fe *FieldError
	return errors.As(err, &fe) && fe.Code == code
}
