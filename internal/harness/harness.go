package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/afero"

	"github.com/roach88/relq/internal/compiler"
	"github.com/roach88/relq/internal/dsl"
	"github.com/roach88/relq/internal/meta"
	"github.com/roach88/relq/internal/query"
	"github.com/roach88/relq/internal/queryset"
	"github.com/roach88/relq/internal/querysql"
	"github.com/roach88/relq/internal/schema"
	"github.com/roach88/relq/internal/store"
)

// Error codes reported for step failures that carry no code of their own.
const (
	ErrCodeParse   = "PARSE_ERROR"
	ErrCodeUnknown = "ERROR"
)

// Harness runs scenarios.
type Harness struct {
	fs     afero.Fs
	logger *slog.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger routes queryset statement logs to l.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// New returns a harness reading schemas from fs.
func New(fs afero.Fs, opts ...Option) *Harness {
	h := &Harness{
		fs:     fs,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes a scenario in a fresh in-memory database.
//
// A returned error means the scenario could not be set up (bad schema,
// bad fixture). Step failures are recorded in the result and checked
// against Expect.Error.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	sch, err := h.loadSchema(scenario)
	if err != nil {
		return nil, err
	}
	entity, ok := sch.Entity(scenario.Entity)
	if !ok {
		return nil, fmt.Errorf("unknown entity %q", scenario.Entity)
	}

	st, err := store.OpenMemory()
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	if err := st.CreateTables(ctx, sch); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	for i, f := range scenario.Fixtures {
		for j, row := range f.Rows {
			if err := st.Insert(ctx, f.Table, row); err != nil {
				return nil, fmt.Errorf("fixtures[%d].rows[%d]: %w", i, j, err)
			}
		}
	}

	result := NewResult()
	result.Err = h.execute(ctx, st, entity, scenario.Steps, result)

	for _, msg := range Evaluate(result, scenario.Expect) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) loadSchema(scenario *Scenario) (*meta.Schema, error) {
	data, err := afero.ReadFile(h.fs, scenario.SchemaPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}
	sch, err := schema.Compile(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return sch, nil
}

func (h *Harness) execute(ctx context.Context, st *store.Store, entity *meta.Entity, steps []Step, result *Result) error {
	qs, err := queryset.New(st, entity, queryset.WithLogger(h.logger))
	if err != nil {
		return err
	}
	for i, step := range steps {
		n, exclude, err := step.Node()
		if err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		if exclude {
			qs, err = qs.Exclude(n)
		} else {
			qs, err = qs.Filter(n)
		}
		if err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	for _, j := range qs.Query().Joins() {
		result.Joins = append(result.Joins, JoinResult{Alias: j.Alias, Table: j.Table, Type: j.Type})
	}

	stmt, err := qs.Statement()
	if err != nil {
		return err
	}
	if stmt.Empty {
		result.Empty = true
		return nil
	}
	result.SQL, result.Params, err = querysql.Render(stmt, st.Dialect())
	if err != nil {
		return err
	}
	pks, err := qs.PKs(ctx)
	if err != nil {
		return err
	}
	result.PKs = pks
	return nil
}

// ErrorCode classifies a step error for Expect.Error.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var fe *query.FieldError
	if errors.As(err, &fe) {
		return fe.Code
	}
	var pe *dsl.ParseError
	if errors.As(err, &pe) {
		return ErrCodeParse
	}
	if errors.Is(err, compiler.ErrEmptyResult) {
		return "EMPTY_RESULT"
	}
	return ErrCodeUnknown
}
