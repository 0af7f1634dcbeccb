package cli

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/roach88/relq/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run filter scenarios",
		Long: `Run scenario files against fresh in-memory SQLite databases.

Each scenario's expectations are checked. When <scenarios-dir>/golden
holds a snapshot for the scenario, the rendered SQL, parameters, joins
and primary keys must match it.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  relq test ./scenarios
  relq test ./scenarios --filter "exclude_*"
  relq test ./scenarios --update`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout())

	if ok, _ := afero.DirExists(opts.Fs, dir); !ok {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, fmt.Errorf("scenarios directory not found: %s", dir))
	}
	files, err := harness.Discover(opts.Fs, dir, opts.Filter)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err)
	}

	h := harness.New(opts.Fs, harness.WithLogger(opts.Logger))
	result := TestResult{Scenarios: []ScenarioResult{}, Total: len(files)}
	for _, file := range files {
		sr := runScenario(cmd, h, opts, file)
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		if formatter.Format != "json" {
			printScenario(formatter, sr)
		}
	}

	if formatter.Format == "json" {
		if err := formatter.JSON(result); err != nil {
			return err
		}
	} else if result.Total == 0 {
		fmt.Fprintln(formatter.Writer, "No scenarios found.")
	} else {
		fmt.Fprintf(formatter.Writer, "\n%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

func runScenario(cmd *cobra.Command, h *harness.Harness, opts *TestOptions, file string) ScenarioResult {
	name := strings.TrimSuffix(path.Base(file), path.Ext(file))

	scenario, err := harness.LoadScenario(opts.Fs, file)
	if err != nil {
		return ScenarioResult{Name: name, Errors: []string{err.Error()}}
	}
	result, err := h.Run(cmd.Context(), scenario)
	if err != nil {
		return ScenarioResult{Name: scenario.Name, Errors: []string{fmt.Sprintf("execution failed: %v", err)}}
	}

	sr := ScenarioResult{Name: scenario.Name, Pass: result.Pass, Errors: result.Errors}
	golden := goldenFilePath(file)
	snapshot := harness.Snapshot(result)

	if opts.Update {
		if err := opts.Fs.MkdirAll(path.Dir(golden), 0o755); err == nil {
			err = afero.WriteFile(opts.Fs, golden, snapshot, 0o644)
		}
		if err != nil {
			sr.Pass = false
			sr.Errors = append(sr.Errors, fmt.Sprintf("failed to update golden file: %v", err))
		}
		return sr
	}

	want, err := afero.ReadFile(opts.Fs, golden)
	if err != nil {
		// No golden file: expectations only.
		return sr
	}
	if !bytes.Equal(want, snapshot) {
		sr.Pass = false
		sr.Errors = append(sr.Errors, "snapshot does not match golden file (run with --update to regenerate)")
	}
	return sr
}

// goldenFilePath returns the path to the golden file for a scenario.
func goldenFilePath(scenarioFile string) string {
	name := strings.TrimSuffix(path.Base(scenarioFile), path.Ext(scenarioFile))
	return path.Join(path.Dir(scenarioFile), "golden", name+".golden")
}

func printScenario(f *OutputFormatter, sr ScenarioResult) {
	if sr.Pass {
		successColor.Fprint(f.Writer, "✓ ")
		fmt.Fprintln(f.Writer, sr.Name)
		return
	}
	errorColor.Fprint(f.Writer, "✗ ")
	fmt.Fprintln(f.Writer, sr.Name)
	for _, e := range sr.Errors {
		fmt.Fprintf(f.Writer, "  %s\n", e)
	}
}
