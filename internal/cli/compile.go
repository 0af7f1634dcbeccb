package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/relq/internal/compiler"
	"github.com/roach88/relq/internal/query"
	"github.com/roach88/relq/internal/queryir"
	"github.com/roach88/relq/internal/querysql"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	FilterOptions
}

// JoinInfo describes one join of a compiled statement.
type JoinInfo struct {
	Alias  string           `json:"alias"`
	Table  string           `json:"table"`
	Parent string           `json:"parent"`
	Type   queryir.JoinType `json:"type"`
}

// CompilationResult is the output of compile.
type CompilationResult struct {
	Entity string     `json:"entity"`
	SQL    string     `json:"sql,omitempty"`
	Params []any      `json:"params,omitempty"`
	Joins  []JoinInfo `json:"joins"`
	Empty  bool       `json:"empty,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <entity> [filter]",
		Short: "Compile a filter to SQL",
		Long: `Compile a filter against an entity of the schema and print the SQL,
its parameters and the join list with each join's final type.

Examples:
  relq compile Author 'best_friend__name = "Jim" | best_friend__isnull = true'
  relq compile Book --file filter.yaml --dialect postgres
  relq compile Author --exclude 'books__title = "Dune"' --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], args[1:], cmd)
		},
	}
	opts.FilterOptions.register(cmd)

	return cmd
}

func runCompile(opts *CompileOptions, entityName string, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout())

	sch, err := loadSchema(opts.Fs, opts.Config.Schema)
	if err != nil {
		return formatter.Fail(ExitCommandError, errorCode(err, ErrCodeSchema), err)
	}
	entity, err := lookupEntity(sch, entityName)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeSchema, err)
	}
	n, err := opts.node(opts.Fs, args)
	if err != nil {
		return formatter.Fail(ExitCommandError, errorCode(err, ErrCodeFilter), err)
	}

	dialect, err := querysql.ForName(opts.Config.Dialect)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err)
	}

	q := query.New(entity)
	if opts.Exclude {
		err = q.Exclude(n)
	} else {
		err = q.Filter(n)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, errorCode(err, ErrCodeFilter), err)
	}
	opts.Logger.Debug("filter built", "entity", entity.Name, "where", q.Where().String())

	c, err := compiler.New(dialect)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err)
	}
	stmt, err := c.CompileQuery(q)
	if err != nil {
		return formatter.Fail(ExitCommandError, errorCode(err, ErrCodeFilter), err)
	}

	result := &CompilationResult{Entity: entity.Name, Empty: stmt.Empty, Joins: []JoinInfo{}}
	for _, j := range stmt.Joins {
		result.Joins = append(result.Joins, JoinInfo{Alias: j.Alias, Table: j.Table, Parent: j.Parent, Type: j.Type})
	}
	if !stmt.Empty {
		result.SQL, result.Params, err = querysql.Render(stmt, dialect)
		if err != nil && !errors.Is(err, compiler.ErrEmptyResult) {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, err)
		}
	}

	if formatter.Format == "json" {
		return formatter.JSON(result)
	}
	printCompilation(formatter, result)
	return nil
}

func printCompilation(f *OutputFormatter, r *CompilationResult) {
	w := f.Writer
	if r.Empty {
		successColor.Fprintln(w, "✓ Filter matches nothing; no query needed")
		return
	}
	fmt.Fprintln(w, r.SQL)
	if len(r.Params) > 0 {
		dimColor.Fprintf(w, "params: %v\n", r.Params)
	}
	if len(r.Joins) == 0 {
		return
	}
	fmt.Fprintln(w, "\nJoins:")
	for _, j := range r.Joins {
		fmt.Fprintf(w, "  %s (%s <- %s): ", j.Alias, j.Table, j.Parent)
		joinColor(j.Type).Fprintln(w, j.Type)
	}
}
