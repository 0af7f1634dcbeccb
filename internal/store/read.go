package store

import (
	"context"
	"fmt"

	"github.com/roach88/relq/internal/queryir"
	"github.com/roach88/relq/internal/querysql"
)

// Record is one fetched row keyed by column name.
type Record map[string]any

// Fetch runs stmt and returns its rows. An Empty statement returns no rows
// without touching the database.
func (s *Store) Fetch(ctx context.Context, stmt queryir.Statement) ([]Record, error) {
	if stmt.Empty {
		return []Record{}, nil
	}
	query, args, err := querysql.Render(stmt, s.dialect)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", stmt.Table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	records := []Record{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", stmt.Table, err)
		}
		rec := make(Record, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				values[i] = string(b)
			}
			rec[c] = values[i]
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", stmt.Table, err)
	}
	return records, nil
}

// Count returns how many rows stmt selects.
func (s *Store) Count(ctx context.Context, stmt queryir.Statement) (int64, error) {
	if stmt.Empty {
		return 0, nil
	}
	stmt.OrderBy = nil
	inner, args, err := querysql.RenderSelect(stmt, s.dialect)
	if err != nil {
		return 0, err
	}
	query := querysql.Rebind("SELECT COUNT(*) FROM ("+inner+") "+s.quote("subquery"), s.dialect)
	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", stmt.Table, err)
	}
	return n, nil
}
