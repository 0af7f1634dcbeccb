package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/roach88/relq/internal/harness"
	"github.com/roach88/relq/internal/query"
	"github.com/roach88/relq/internal/queryir"
	"github.com/roach88/relq/internal/schema"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Scenario or validation failure
	ExitCommandError = 2 // Command error (bad filter, missing schema, etc.)
)

// Error codes reported in CLIError.Code.
const (
	ErrCodeGeneric = "E001"
	ErrCodeSchema  = "E002"
	ErrCodeFilter  = "E003"
	ErrCodeDB      = "E004"
)

// Terminal colors. fatih/color disables them when stdout is not a TTY.
var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	innerColor   = color.New(color.FgGreen)
	outerColor   = color.New(color.FgYellow)
	dimColor     = color.New(color.Faint)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format  string
	Writer  io.Writer
	Verbose bool
}

func newFormatter(opts *RootOptions, w io.Writer) *OutputFormatter {
	return &OutputFormatter{Format: opts.Format, Writer: w, Verbose: opts.Verbose}
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E001", "UNRESOLVED_FIELD", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// JSON writes a successful JSON envelope.
func (f *OutputFormatter) JSON(data any) error {
	return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	errorColor.Fprintf(f.Writer, "✗ Error [%s]: ", code)
	fmt.Fprintln(f.Writer, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err and returns the matching ExitError.
func (f *OutputFormatter) Fail(exitCode int, code string, err error) error {
	var details any
	var fe *query.FieldError
	if errors.As(err, &fe) && len(fe.Choices) > 0 {
		details = map[string]any{"choices": fe.Choices}
	}
	_ = f.Error(code, err.Error(), details)
	return WrapExitError(exitCode, code, err)
}

// errorCode picks the most specific code for err.
func errorCode(err error, fallback string) string {
	var le *schema.LoadError
	if errors.As(err, &le) {
		return le.Code
	}
	if code := harness.ErrorCode(err); code != harness.ErrCodeUnknown && code != "" {
		return code
	}
	return fallback
}

func joinColor(t queryir.JoinType) *color.Color {
	if t == queryir.LeftOuterJoin {
		return outerColor
	}
	return innerColor
}
