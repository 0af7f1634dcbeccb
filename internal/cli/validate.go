package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/relq/internal/ir"
	"github.com/roach88/relq/internal/meta"
	"github.com/roach88/relq/internal/schema"
)

// EntitySummary describes one entity of a valid schema.
type EntitySummary struct {
	Name      string            `json:"name"`
	Table     string            `json:"table"`
	Columns   []string          `json:"columns"`
	Relations []RelationSummary `json:"relations,omitempty"`
}

// RelationSummary describes one traversable relation.
type RelationSummary struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Target      string `json:"target"`
	Reverse     bool   `json:"reverse,omitempty"`
	MultiValued bool   `json:"multi_valued,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                 `json:"valid"`
	Entities []EntitySummary      `json:"entities,omitempty"`
	Errors   []ir.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [schema]",
		Short: "Validate a CUE schema",
		Long: `Load a CUE schema, resolve every relation and list the entities with
their columns and relations (both directions).`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rootOpts.Config.Schema
			if len(args) == 1 {
				path = args[0]
			}
			return runValidate(rootOpts, path, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout())

	sch, err := loadSchema(opts.Fs, path)
	var le *schema.LoadError
	if errors.As(err, &le) && len(le.Problems) > 0 {
		return outputValidationErrors(formatter, le)
	}
	if err != nil {
		_ = formatter.Error(errorCode(err, ErrCodeSchema), err.Error(), nil)
		return WrapExitError(ExitFailure, "validation failed", err)
	}

	result := ValidationResult{Valid: true}
	for _, e := range sch.Entities() {
		result.Entities = append(result.Entities, summarize(e))
	}

	if formatter.Format == "json" {
		return formatter.JSON(result)
	}

	w := formatter.Writer
	successColor.Fprintf(w, "✓ Schema valid: %d entities\n", len(result.Entities))
	for _, e := range result.Entities {
		fmt.Fprintf(w, "\n%s (%s)\n", e.Name, e.Table)
		fmt.Fprintf(w, "  columns: %v\n", e.Columns)
		for _, r := range e.Relations {
			many := ""
			if r.MultiValued {
				many = ", many"
			}
			fmt.Fprintf(w, "  %s -> %s ", r.Name, r.Target)
			dimColor.Fprintf(w, "(%s%s)\n", r.Kind, many)
		}
	}
	return nil
}

func summarize(e *meta.Entity) EntitySummary {
	s := EntitySummary{Name: e.Name, Table: e.Table}
	for _, f := range e.Fields() {
		s.Columns = append(s.Columns, f.Column)
	}
	for _, r := range e.Relations() {
		s.Relations = append(s.Relations, RelationSummary{
			Name:        r.Name,
			Kind:        r.Kind,
			Target:      r.Target.Name,
			Reverse:     r.Reverse,
			MultiValued: r.MultiValued(),
		})
	}
	return s
}

// outputValidationErrors lists every schema problem.
func outputValidationErrors(formatter *OutputFormatter, le *schema.LoadError) error {
	exitErr := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(le.Problems)))

	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: le.Problems},
			Error: &CLIError{
				Code:    le.Code,
				Message: le.Problems[0].Error(),
			},
		}
		if err := json.NewEncoder(formatter.Writer).Encode(response); err != nil {
			return err
		}
		return exitErr
	}

	errorColor.Fprintln(formatter.Writer, "✗ Validation failed")
	for _, p := range le.Problems {
		fmt.Fprintf(formatter.Writer, "  %s: %s\n", p.Field, p.Message)
	}
	return exitErr
}
