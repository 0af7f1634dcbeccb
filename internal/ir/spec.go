package ir

import "fmt"

// ValidationError represents a validation error with field path and message.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the schema spec against the definition rules.
// Returns all errors (not fail-fast), in declaration order.
func (s SchemaSpec) Validate() []ValidationError {
	var errs []ValidationError

	defined := make(map[string]bool, len(s.Entities))
	for _, e := range s.Entities {
		defined[e.Name] = true
	}

	seen := make(map[string]bool, len(s.Entities))
	for i, e := range s.Entities {
		path := fmt.Sprintf("entities[%d]", i)
		if e.Name == "" {
			errs = append(errs, ValidationError{Field: path + ".name", Message: "name is required"})
		} else {
			path = "entity." + e.Name
		}
		if seen[e.Name] && e.Name != "" {
			errs = append(errs, ValidationError{Field: path, Message: "defined more than once"})
		}
		seen[e.Name] = true
		errs = append(errs, e.validate(path, defined)...)
	}
	return errs
}

func (e EntitySpec) validate(path string, defined map[string]bool) []ValidationError {
	var errs []ValidationError

	names := make(map[string]bool, len(e.Fields))
	for _, f := range e.Fields {
		fpath := path + ".fields." + f.Name
		if f.Relation != nil {
			fpath = path + ".relations." + f.Name
		}
		if f.Name == "" {
			errs = append(errs, ValidationError{Field: path, Message: "field name is required"})
			continue
		}
		if names[f.Name] {
			errs = append(errs, ValidationError{Field: fpath, Message: fmt.Sprintf("duplicate field name %q", f.Name)})
		}
		names[f.Name] = true
		if f.Name == "pk" {
			errs = append(errs, ValidationError{Field: fpath, Message: `"pk" is reserved`})
		}

		if f.Relation == nil {
			if !ValidFieldTypes[f.Type] {
				errs = append(errs, ValidationError{Field: fpath, Message: fmt.Sprintf("unknown type %q", f.Type)})
			}
			continue
		}
		errs = append(errs, f.Relation.validate(fpath, defined)...)
	}

	if e.PrimaryKey != "" && e.PrimaryKey != "id" && !names[e.PrimaryKey] {
		errs = append(errs, ValidationError{Field: path + ".primary_key", Message: fmt.Sprintf("primary key %q is not a field", e.PrimaryKey)})
	}
	return errs
}

func (r *RelationSpec) validate(path string, defined map[string]bool) []ValidationError {
	var errs []ValidationError
	if !ValidRelationKinds[r.Kind] {
		errs = append(errs, ValidationError{Field: path + ".kind", Message: fmt.Sprintf("unknown relation kind %q", r.Kind)})
	}
	switch {
	case r.Target == "":
		errs = append(errs, ValidationError{Field: path + ".target", Message: "target is required"})
	case !defined[r.Target]:
		errs = append(errs, ValidationError{Field: path + ".target", Message: fmt.Sprintf("relation target %q is not defined", r.Target)})
	}
	if r.Through != nil {
		if r.Kind != RelationManyToMany {
			errs = append(errs, ValidationError{Field: path + ".through", Message: "through is only valid for many_to_many"})
		} else if r.Through.Table == "" || r.Through.SourceColumn == "" || r.Through.TargetColumn == "" {
			errs = append(errs, ValidationError{Field: path + ".through", Message: "through needs table, source_column and target_column"})
		}
	}
	return errs
}
