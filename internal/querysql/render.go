package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/relq/internal/expr"
	"github.com/roach88/relq/internal/queryir"
)

// Render returns the SQL for stmt using the dialect's placeholders.
func Render(stmt queryir.Statement, d Dialect) (string, []any, error) {
	sql, params, err := RenderSelect(stmt, d)
	if err != nil {
		return "", nil, err
	}
	return Rebind(sql, d), params, nil
}

// RenderSelect returns the SQL for stmt with "?" placeholders, suitable for
// nesting inside another statement.
//
//	SELECT [DISTINCT] <columns> FROM <table> [<joins>] [WHERE <where>] [ORDER BY <keys>]
func RenderSelect(stmt queryir.Statement, ops expr.Operations) (string, []any, error) {
	if len(stmt.Columns) == 0 {
		return "", nil, fmt.Errorf("statement on %s selects no columns", stmt.Table)
	}
	var b strings.Builder
	var params []any

	b.WriteString("SELECT ")
	if stmt.Distinct {
		b.WriteString("DISTINCT ")
	}
	b.WriteString(columnList(stmt.Columns, ops))

	b.WriteString(" FROM ")
	b.WriteString(tableRef(stmt.Table, stmt.Alias, ops))

	for _, j := range stmt.Joins {
		fmt.Fprintf(&b, " %s %s ON (%s = %s)",
			j.Type,
			tableRef(j.Table, j.Alias, ops),
			column(j.Parent, j.ParentColumn, ops),
			column(j.Alias, j.Column, ops))
	}

	switch {
	case stmt.Empty:
		b.WriteString(" WHERE 1 = 0")
	case stmt.Where != nil:
		where, whereParams := RenderWhere(stmt.Where)
		if where != "" {
			b.WriteString(" WHERE ")
			b.WriteString(where)
			params = append(params, whereParams...)
		}
	}

	if len(stmt.OrderBy) > 0 {
		b.WriteString(" ORDER BY ")
		keys := make([]string, len(stmt.OrderBy))
		for i, c := range stmt.OrderBy {
			keys[i] = column(c.Alias, c.Column, ops) + " ASC"
		}
		b.WriteString(strings.Join(keys, ", "))
	}
	return b.String(), params, nil
}

// RenderWhere renders a clause tree. Children keep insertion order. A
// negated group renders as NOT (...), and a nested group with several
// children is parenthesized.
func RenderWhere(c queryir.Clause) (string, []any) {
	return renderClause(c, false)
}

func renderClause(c queryir.Clause, nested bool) (string, []any) {
	switch clause := c.(type) {
	case queryir.Fragment:
		return clause.SQL, clause.Params
	case queryir.Group:
		childNested := !(clause.Negated && len(clause.Children) == 1)
		var parts []string
		var params []any
		for _, child := range clause.Children {
			sql, p := renderClause(child, childNested)
			if sql == "" {
				continue
			}
			parts = append(parts, sql)
			params = append(params, p...)
		}
		if len(parts) == 0 {
			return "", nil
		}
		sql := strings.Join(parts, " "+clause.Connector+" ")
		if clause.Negated {
			return "NOT (" + sql + ")", params
		}
		if nested && len(parts) > 1 {
			return "(" + sql + ")", params
		}
		return sql, params
	default:
		return "", nil
	}
}

// Rebind rewrites "?" placeholders for the dialect, leaving quoted
// literals and identifiers alone.
func Rebind(sql string, d Dialect) string {
	if d.Placeholder(1) == "?" {
		return sql
	}
	var b strings.Builder
	n := 0
	var quote byte
	for i := 0; i < len(sql); i++ {
		ch := sql[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
			b.WriteByte(ch)
		case ch == '\'' || ch == '"' || ch == '`':
			quote = ch
			b.WriteByte(ch)
		case ch == '?':
			n++
			b.WriteString(d.Placeholder(n))
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

func column(alias, name string, ops expr.Operations) string {
	return ops.QuoteName(alias) + "." + ops.QuoteName(name)
}

func columnList(cols []queryir.ColumnRef, ops expr.Operations) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = column(c.Alias, c.Column, ops)
	}
	return strings.Join(parts, ", ")
}

func tableRef(table, alias string, ops expr.Operations) string {
	if alias == "" || alias == table {
		return ops.QuoteName(table)
	}
	return ops.QuoteName(table) + " " + ops.QuoteName(alias)
}
