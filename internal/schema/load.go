// Package schema loads entity definitions written in CUE.
package schema

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/relq/internal/ir"
	"github.com/roach88/relq/internal/meta"
)

// Compile builds a Schema from CUE source text.
func Compile(src string) (*meta.Schema, error) {
	v := cuecontext.New().CompileString(src, cue.Filename("schema.cue"))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return FromValue(v)
}

// Load builds a Schema from a directory of CUE files or a single file.
func Load(path string) (*meta.Schema, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("schema not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing schema: %v", err)}
	}

	dir, args := path, []string{"."}
	if !info.IsDir() {
		dir, args = filepath.Dir(path), []string{filepath.Base(path)}
	} else {
		files, err := filepath.Glob(filepath.Join(path, "*.cue"))
		if err != nil {
			return nil, &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
		}
		if len(files) == 0 {
			return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}
		}
	}

	instances := load.Instances(args, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	v := cuecontext.New().BuildInstance(inst)
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return FromValue(v)
}

// FromValue compiles every struct under the top-level "entity" field.
func FromValue(v cue.Value) (*meta.Schema, error) {
	spec, err := CompileSpec(v)
	if err != nil {
		return nil, err
	}
	if problems := spec.Validate(); len(problems) > 0 {
		msg := problems[0].Error()
		if len(problems) > 1 {
			msg = fmt.Sprintf("%s (and %d more)", msg, len(problems)-1)
		}
		return nil, &LoadError{Code: ErrCodeInvalidSchema, Message: msg, Problems: problems}
	}
	s, err := meta.New(spec)
	if err != nil {
		var se *meta.SchemaError
		if errors.As(err, &se) {
			return nil, &LoadError{Code: ErrCodeInvalidSchema, Message: se.Error()}
		}
		return nil, err
	}
	return s, nil
}

// CompileSpec extracts entity specs in declaration order.
func CompileSpec(v cue.Value) (ir.SchemaSpec, error) {
	var spec ir.SchemaSpec
	entities := v.LookupPath(cue.ParsePath("entity"))
	if !entities.Exists() {
		return spec, &LoadError{Code: ErrCodeInvalidSchema, Message: "no entities defined", Pos: v.Pos()}
	}
	iter, err := entities.Fields()
	if err != nil {
		return spec, formatCUEError(err)
	}
	for iter.Next() {
		es, err := CompileEntity(iter.Value())
		if err != nil {
			return spec, err
		}
		spec.Entities = append(spec.Entities, *es)
	}
	return spec, nil
}

// IsLoadError reports whether err carries a LoadError with the given code.
func IsLoadError(err error, code string) bool {
	var le *LoadError
	return errors.As(err, &le) && le.Code == code
}
