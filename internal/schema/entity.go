package schema

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/relq/internal/ir"
)

// CompileEntity parses a CUE entity struct into an EntitySpec.
//
//	entity: Author: {
//		fields: {
//			name: string
//			age:  int | null
//			born: {type: "date", column: "born_on", nullable: true}
//		}
//		relations: best_friend: {kind: "foreign_key", target: "Author", nullable: true}
//	}
func CompileEntity(v cue.Value) (*ir.EntitySpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	spec := &ir.EntitySpec{}

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = labels[len(labels)-1].String()
	}

	var err error
	if spec.Table, err = optionalString(v, "table"); err != nil {
		return nil, err
	}
	if spec.PrimaryKey, err = optionalString(v, "primary_key"); err != nil {
		return nil, err
	}

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if fieldsVal.Exists() {
		iter, err := fieldsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			f, err := compileField(iter.Label(), iter.Value())
			if err != nil {
				return nil, err
			}
			spec.Fields = append(spec.Fields, f)
		}
	}

	relVal := v.LookupPath(cue.ParsePath("relations"))
	if relVal.Exists() {
		iter, err := relVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			f, err := compileRelation(iter.Label(), iter.Value())
			if err != nil {
				return nil, err
			}
			spec.Fields = append(spec.Fields, f)
		}
	}

	if len(spec.Fields) == 0 {
		return nil, &LoadError{
			Code:    ErrCodeInvalidEntity,
			Message: fmt.Sprintf("entity %s declares no fields", spec.Name),
			Pos:     v.Pos(),
		}
	}
	return spec, nil
}

// compileField accepts a CUE type (`int | null`), a type name literal
// ("date") or a struct with type/column/nullable.
func compileField(name string, v cue.Value) (ir.FieldSpec, error) {
	f := ir.FieldSpec{Name: name}

	if v.IncompleteKind() == cue.StructKind {
		typ, err := optionalString(v, "type")
		if err != nil {
			return f, err
		}
		if typ == "" {
			return f, &LoadError{Code: ErrCodeInvalidField, Message: fmt.Sprintf("field %s: type is required", name), Pos: v.Pos()}
		}
		f.Type = typ
		if f.Column, err = optionalString(v, "column"); err != nil {
			return f, err
		}
		if f.Nullable, err = optionalBool(v, "nullable"); err != nil {
			return f, err
		}
	} else if s, err := v.String(); err == nil {
		f.Type = s
	} else {
		kind := v.IncompleteKind()
		f.Nullable = kind&cue.NullKind != 0
		typ, err := typeName(kind &^ cue.NullKind)
		if err != nil {
			return f, &LoadError{Code: ErrCodeInvalidField, Message: fmt.Sprintf("field %s: %v", name, err), Pos: v.Pos()}
		}
		f.Type = typ
	}

	if !ir.ValidFieldTypes[f.Type] {
		return f, &LoadError{Code: ErrCodeInvalidField, Message: fmt.Sprintf("field %s: unknown type %q", name, f.Type), Pos: v.Pos()}
	}
	return f, nil
}

func typeName(kind cue.Kind) (string, error) {
	switch kind {
	case cue.StringKind:
		return "string", nil
	case cue.IntKind:
		return "int", nil
	case cue.FloatKind, cue.NumberKind:
		return "float", nil
	case cue.BoolKind:
		return "bool", nil
	default:
		return "", fmt.Errorf("unsupported type kind: %v", kind)
	}
}

func compileRelation(name string, v cue.Value) (ir.FieldSpec, error) {
	f := ir.FieldSpec{Name: name, Relation: &ir.RelationSpec{}}
	rel := f.Relation

	var err error
	if rel.Kind, err = optionalString(v, "kind"); err != nil {
		return f, err
	}
	if rel.Kind == "" {
		rel.Kind = ir.RelationForeignKey
	}
	if !ir.ValidRelationKinds[rel.Kind] {
		return f, &LoadError{Code: ErrCodeInvalidRelation, Message: fmt.Sprintf("relation %s: unknown kind %q", name, rel.Kind), Pos: v.Pos()}
	}
	if rel.Target, err = optionalString(v, "target"); err != nil {
		return f, err
	}
	if rel.Target == "" {
		return f, &LoadError{Code: ErrCodeInvalidRelation, Message: fmt.Sprintf("relation %s: target is required", name), Pos: v.Pos()}
	}
	if rel.RelatedName, err = optionalString(v, "related_name"); err != nil {
		return f, err
	}
	if f.Column, err = optionalString(v, "column"); err != nil {
		return f, err
	}
	if f.Nullable, err = optionalBool(v, "nullable"); err != nil {
		return f, err
	}

	throughVal := v.LookupPath(cue.ParsePath("through"))
	if throughVal.Exists() {
		if rel.Kind != ir.RelationManyToMany {
			return f, &LoadError{Code: ErrCodeInvalidRelation, Message: fmt.Sprintf("relation %s: through is only valid for many_to_many", name), Pos: throughVal.Pos()}
		}
		th := &ir.ThroughSpec{}
		if th.Table, err = optionalString(throughVal, "table"); err != nil {
			return f, err
		}
		if th.SourceColumn, err = optionalString(throughVal, "source_column"); err != nil {
			return f, err
		}
		if th.TargetColumn, err = optionalString(throughVal, "target_column"); err != nil {
			return f, err
		}
		if th.Table == "" || th.SourceColumn == "" || th.TargetColumn == "" {
			return f, &LoadError{Code: ErrCodeInvalidRelation, Message: fmt.Sprintf("relation %s: through needs table, source_column and target_column", name), Pos: throughVal.Pos()}
		}
		rel.Through = th
	}
	return f, nil
}

func optionalString(v cue.Value, path string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(path))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalBool(v cue.Value, path string) (bool, error) {
	fv := v.LookupPath(cue.ParsePath(path))
	if !fv.Exists() {
		return false, nil
	}
	b, err := fv.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

// LoadError is a schema loading failure with its CUE position, if known.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos

	// Problems lists every rule violation when Code is ErrCodeInvalidSchema.
	Problems []ir.ValidationError
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes.
const (
	ErrCodeGeneric         = "E001"
	ErrCodeNoFiles         = "E003"
	ErrCodeLoadFailed      = "E004"
	ErrCodeNotFound        = "E005"
	ErrCodeBuildFailed     = "E006"
	ErrCodeInvalidEntity   = "E201"
	ErrCodeInvalidField    = "E202"
	ErrCodeInvalidRelation = "E203"
	ErrCodeInvalidSchema   = "E204"
)

func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &LoadError{Code: ErrCodeBuildFailed, Message: first.Error(), Pos: positions[0]}
	}
	return &LoadError{Code: ErrCodeBuildFailed, Message: first.Error()}
}
