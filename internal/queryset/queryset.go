// Package queryset is the caller-facing surface: chainable Filter/Exclude
// over an entity, executed against a store.
//
// A QuerySet is immutable. Filter and Exclude return a new QuerySet with a
// cloned query, so a base set can be shared and refined freely.
package queryset

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/relq/internal/compiler"
	"github.com/roach88/relq/internal/meta"
	"github.com/roach88/relq/internal/query"
	"github.com/roach88/relq/internal/queryir"
	"github.com/roach88/relq/internal/querysql"
	"github.com/roach88/relq/internal/store"
	"github.com/roach88/relq/internal/tree"
)

// Executor runs compiled statements.
type Executor interface {
	Dialect() querysql.Dialect
	Fetch(ctx context.Context, stmt queryir.Statement) ([]store.Record, error)
	Count(ctx context.Context, stmt queryir.Statement) (int64, error)
}

// QuerySet is a lazily executed filtered query over one entity.
type QuerySet struct {
	db       Executor
	compiler *compiler.Compiler
	query    *query.Query
	logger   *slog.Logger
}

// Option configures a QuerySet.
type Option func(*config)

type config struct {
	compiler *compiler.Compiler
	logger   *slog.Logger
	query    []query.Option
}

// WithCompiler shares a compiler, and its statement cache, between sets.
func WithCompiler(c *compiler.Compiler) Option {
	return func(cfg *config) { cfg.compiler = c }
}

// WithLogger sets the logger executed statements are reported to.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *config) { cfg.logger = l }
}

// WithQueryOptions passes options to the underlying query.
func WithQueryOptions(opts ...query.Option) Option {
	return func(cfg *config) { cfg.query = append(cfg.query, opts...) }
}

// New returns the unfiltered set of entity rows.
func New(db Executor, entity *meta.Entity, opts ...Option) (*QuerySet, error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.compiler == nil {
		c, err := compiler.New(db.Dialect())
		if err != nil {
			return nil, err
		}
		cfg.compiler = c
	}
	return &QuerySet{
		db:       db,
		compiler: cfg.compiler,
		query:    query.New(entity, cfg.query...),
		logger:   cfg.logger,
	}, nil
}

// Filter returns a set narrowed to rows matching every node.
func (qs *QuerySet) Filter(nodes ...*tree.Node) (*QuerySet, error) {
	return qs.chain(nodes, false)
}

// Exclude returns a set without the rows matching every node.
func (qs *QuerySet) Exclude(nodes ...*tree.Node) (*QuerySet, error) {
	return qs.chain(nodes, true)
}

func (qs *QuerySet) chain(nodes []*tree.Node, negate bool) (*QuerySet, error) {
	q := qs.query.Clone()
	f := query.All(nodes...)
	if len(nodes) == 1 && nodes[0] != nil {
		f = nodes[0]
	}
	var err error
	if negate {
		err = q.Exclude(f)
	} else {
		err = q.Filter(f)
	}
	if err != nil {
		return nil, err
	}
	next := *qs
	next.query = q
	return &next, nil
}

// Query returns the underlying query. Callers must not mutate it.
func (qs *QuerySet) Query() *query.Query {
	return qs.query
}

// Statement compiles the set.
func (qs *QuerySet) Statement() (queryir.Statement, error) {
	return qs.compiler.CompileQuery(qs.query)
}

// SQL renders the set for the executor's dialect.
func (qs *QuerySet) SQL() (string, []any, error) {
	stmt, err := qs.Statement()
	if err != nil {
		return "", nil, err
	}
	if stmt.Empty {
		return "", nil, compiler.ErrEmptyResult
	}
	return querysql.Render(stmt, qs.db.Dialect())
}

// All fetches every matching row in primary key order.
func (qs *QuerySet) All(ctx context.Context) ([]store.Record, error) {
	stmt, err := qs.Statement()
	if err != nil {
		return nil, err
	}
	records, err := qs.db.Fetch(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", qs.query.Entity().Name, err)
	}
	qs.logStatement(ctx, stmt, len(records))
	return records, nil
}

// Count returns the number of matching rows.
func (qs *QuerySet) Count(ctx context.Context) (int64, error) {
	stmt, err := qs.Statement()
	if err != nil {
		return 0, err
	}
	n, err := qs.db.Count(ctx, stmt)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", qs.query.Entity().Name, err)
	}
	qs.logStatement(ctx, stmt, int(n))
	return n, nil
}

// PKs returns the primary keys of the matching rows.
func (qs *QuerySet) PKs(ctx context.Context) ([]any, error) {
	records, err := qs.All(ctx)
	if err != nil {
		return nil, err
	}
	col := qs.query.Entity().PK.Column
	out := make([]any, len(records))
	for i, r := range records {
		out[i] = r[col]
	}
	return out, nil
}

func (qs *QuerySet) logStatement(ctx context.Context, stmt queryir.Statement, rows int) {
	if !qs.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	if stmt.Empty {
		qs.logger.DebugContext(ctx, "query skipped: matches nothing",
			"entity", qs.query.Entity().Name,
		)
		return
	}
	sql, params, err := querysql.Render(stmt, qs.db.Dialect())
	if err != nil {
		return
	}
	qs.logger.DebugContext(ctx, "query executed",
		"entity", qs.query.Entity().Name,
		"sql", sql,
		"params", params,
		"rows", rows,
	)
}
