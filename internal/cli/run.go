package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/relq/internal/meta"
	"github.com/roach88/relq/internal/queryset"
	"github.com/roach88/relq/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	FilterOptions
	CreateTables bool
}

// RunResult is the output of run.
type RunResult struct {
	Entity string         `json:"entity"`
	Count  int            `json:"count"`
	Rows   []store.Record `json:"rows"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <entity> [filter]",
		Short: "Run a filter against a database",
		Long: `Run a filter against the configured database and print the matching rows
in primary key order. The statement is logged at debug level (--verbose).

Example:
  relq run Author 'age__gt = 30' --database ./library.db
  RELQ_DIALECT=postgres RELQ_DATABASE=postgres://localhost/lib relq run Book -f filter.yaml`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], args[1:], cmd)
		},
	}
	opts.FilterOptions.register(cmd)
	cmd.Flags().BoolVar(&opts.CreateTables, "create-tables", false, "create missing schema tables first")

	return cmd
}

func runQuery(opts *RunOptions, entityName string, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout())
	ctx := cmd.Context()
	log := opts.Logger

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

	log.Debug("opening database", "dialect", opts.Config.Dialect)
	st, err := store.Open(opts.Config.Dialect, opts.Config.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDB, err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if opts.CreateTables {
		if err := st.CreateTables(ctx, sch); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeDB, err)
		}
	}

	qs, err := queryset.New(st, entity, queryset.WithLogger(log))
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err)
	}
	if opts.Exclude {
		qs, err = qs.Exclude(n)
	} else {
		qs, err = qs.Filter(n)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, errorCode(err, ErrCodeFilter), err)
	}

	rows, err := qs.All(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDB, err)
	}
	if rows == nil {
		rows = []store.Record{}
	}

	result := RunResult{Entity: entity.Name, Count: len(rows), Rows: rows}
	if formatter.Format == "json" {
		return formatter.JSON(result)
	}
	return printRows(formatter, entity, result)
}

func printRows(f *OutputFormatter, entity *meta.Entity, r RunResult) error {
	tw := tabwriter.NewWriter(f.Writer, 0, 4, 2, ' ', 0)
	fields := entity.Fields()
	for i, field := range fields {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, field.Column)
	}
	fmt.Fprintln(tw)
	for _, row := range r.Rows {
		for i, field := range fields {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			v := row[field.Column]
			if v == nil {
				v = "NULL"
			}
			fmt.Fprint(tw, v)
		}
		fmt.Fprintln(tw)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	successColor.Fprintf(f.Writer, "✓ %d row(s)\n", r.Count)
	return nil
}
