package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/relq/internal/ir"
	"github.com/roach88/relq/internal/meta"
)

var columnTypes = map[string]map[string]string{
	"sqlite": {
		"int": "INTEGER", "float": "REAL", "string": "TEXT",
		"bool": "BOOLEAN", "date": "DATE", "datetime": "TIMESTAMP",
	},
	"postgresql": {
		"int": "BIGINT", "float": "DOUBLE PRECISION", "string": "TEXT",
		"bool": "BOOLEAN", "date": "DATE", "datetime": "TIMESTAMP",
	},
	"mysql": {
		"int": "BIGINT", "float": "DOUBLE", "string": "VARCHAR(255)",
		"bool": "BOOL", "date": "DATE", "datetime": "DATETIME",
	},
}

// CreateTables creates a table for every entity of s and a link table for
// every forward many-to-many relation. Existing tables are left alone.
func (s *Store) CreateTables(ctx context.Context, schema *meta.Schema) error {
	for _, ddl := range s.TableDDL(schema) {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
	}
	return nil
}

// TableDDL returns the CREATE TABLE statements CreateTables runs, in
// dependency-free order: entity tables first, link tables last.
func (s *Store) TableDDL(schema *meta.Schema) []string {
	var out []string
	var links []string
	for _, e := range schema.Entities() {
		var cols []string
		for _, f := range e.Fields() {
			cols = append(cols, s.columnDDL(f, f == e.PK))
		}
		out = append(out, s.createTable(e.Table, cols))

		for _, r := range e.Relations() {
			if r.Kind != ir.RelationManyToMany || r.Reverse {
				continue
			}
			pkType := s.columnType(r.From.PK.Type)
			targetType := s.columnType(r.Target.PK.Type)
			links = append(links, s.createTable(r.Through.Table, []string{
				fmt.Sprintf("%s %s NOT NULL REFERENCES %s (%s)",
					s.quote(r.Through.SourceColumn), pkType, s.quote(r.From.Table), s.quote(r.From.PK.Column)),
				fmt.Sprintf("%s %s NOT NULL REFERENCES %s (%s)",
					s.quote(r.Through.TargetColumn), targetType, s.quote(r.Target.Table), s.quote(r.Target.PK.Column)),
			}))
		}
	}
	return append(out, links...)
}

func (s *Store) createTable(table string, cols []string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", s.quote(table), strings.Join(cols, ", "))
}

func (s *Store) columnDDL(f *meta.Field, pk bool) string {
	ddl := s.quote(f.Column) + " " + s.columnType(f.Type)
	switch {
	case pk:
		ddl += " PRIMARY KEY"
	case !f.Nullable:
		ddl += " NOT NULL"
	}
	if f.IsRelation() {
		target := f.Relation.Target
		ddl += fmt.Sprintf(" REFERENCES %s (%s)", s.quote(target.Table), s.quote(target.PK.Column))
	}
	return ddl
}

func (s *Store) columnType(fieldType string) string {
	return columnTypes[s.dialect.Vendor()][fieldType]
}

func (s *Store) quote(name string) string {
	return s.dialect.QuoteName(name)
}

// Insert writes one row. Columns are written in sorted order.
func (s *Store) Insert(ctx context.Context, table string, values map[string]any) error {
	if len(values) == 0 {
		return fmt.Errorf("insert into %s: no values", table)
	}
	cols := make([]string, 0, len(values))
	for c := range values {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		quoted[i] = s.quote(c)
		marks[i] = s.dialect.Placeholder(i + 1)
		args[i] = values[c]
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.quote(table), strings.Join(quoted, ", "), strings.Join(marks, ", "))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	return nil
}
