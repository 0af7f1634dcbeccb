// Package querysql renders queryir Statements as SQL for a concrete
// database and supplies the per-dialect operations lookups compile with.
//
// All values are parameterized, never interpolated.
package querysql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/relq/internal/expr"
)

// Dialect is the database-operations capability for one vendor.
type Dialect interface {
	expr.Operations
	// DriverName is the database/sql driver registered for the vendor.
	DriverName() string
	// Placeholder returns the marker for the n-th parameter, 1-based.
	Placeholder(n int) string
}

// ForName returns the dialect for a vendor or driver name.
func ForName(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "sqlite", "sqlite3":
		return SQLite{}, nil
	case "postgres", "postgresql", "pq":
		return Postgres{}, nil
	case "mysql", "mariadb":
		return MySQL{}, nil
	default:
		return nil, fmt.Errorf("unknown dialect %q", name)
	}
}

func quoteWith(name string, q string) string {
	if strings.HasPrefix(name, q) && strings.HasSuffix(name, q) && len(name) > 1 {
		return name
	}
	return q + strings.ReplaceAll(name, q, q+q) + q
}

func lookupOperator(ops map[string]string, name string) (string, bool) {
	op, ok := ops[name]
	return op, ok
}

var comparisonOperators = map[string]string{
	"exact": "= %s",
	"gt":    "> %s",
	"gte":   ">= %s",
	"lt":    "< %s",
	"lte":   "<= %s",
}

func withComparisons(extra map[string]string) map[string]string {
	out := make(map[string]string, len(comparisonOperators)+len(extra))
	for k, v := range comparisonOperators {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// SQLite is the sqlite3 dialect. LIKE is case-insensitive for ASCII, so
// the case-sensitive pattern lookups behave like their i-variants.
type SQLite struct{}

const sqliteLike = `LIKE %s ESCAPE '\'`

var sqliteOperators = withComparisons(map[string]string{
	"iexact":      sqliteLike,
	"contains":    sqliteLike,
	"icontains":   sqliteLike,
	"startswith":  sqliteLike,
	"istartswith": sqliteLike,
	"endswith":    sqliteLike,
	"iendswith":   sqliteLike,
})

var sqlitePatternOperators = map[string]string{
	"contains":    `LIKE '%%' || %s || '%%' ESCAPE '\'`,
	"icontains":   `LIKE '%%' || UPPER(%s) || '%%' ESCAPE '\'`,
	"startswith":  `LIKE %s || '%%' ESCAPE '\'`,
	"istartswith": `LIKE UPPER(%s) || '%%' ESCAPE '\'`,
	"endswith":    `LIKE '%%' || %s ESCAPE '\'`,
	"iendswith":   `LIKE '%%' || UPPER(%s) ESCAPE '\'`,
}

func (SQLite) Vendor() string                      { return "sqlite" }
func (SQLite) DriverName() string                  { return "sqlite3" }
func (SQLite) Placeholder(int) string              { return "?" }
func (SQLite) QuoteName(name string) string        { return quoteWith(name, `"`) }
func (SQLite) Operator(name string) (string, bool) { return lookupOperator(sqliteOperators, name) }
func (SQLite) LookupCast(string, string) string    { return "%s" }
func (SQLite) Function(name string) string         { return name }
func (SQLite) PatternOperator(name string) (string, bool) {
	return lookupOperator(sqlitePatternOperators, name)
}

var sqliteDateFormats = map[string]string{"year": "%Y", "month": "%m", "day": "%d"}

func (SQLite) DatePart(part, sql string) string {
	return "CAST(STRFTIME('" + sqliteDateFormats[part] + "', " + sql + ") AS INTEGER)"
}

// Postgres is the PostgreSQL dialect.
type Postgres struct{}

var postgresOperators = withComparisons(map[string]string{
	"iexact":      "= UPPER(%s)",
	"contains":    "LIKE %s",
	"icontains":   "LIKE UPPER(%s)",
	"startswith":  "LIKE %s",
	"istartswith": "LIKE UPPER(%s)",
	"endswith":    "LIKE %s",
	"iendswith":   "LIKE UPPER(%s)",
})

var postgresPatternOperators = map[string]string{
	"contains":    "LIKE '%%' || %s || '%%'",
	"icontains":   "LIKE '%%' || UPPER(%s) || '%%'",
	"startswith":  "LIKE %s || '%%'",
	"istartswith": "LIKE UPPER(%s) || '%%'",
	"endswith":    "LIKE '%%' || %s",
	"iendswith":   "LIKE '%%' || UPPER(%s)",
}

func (Postgres) Vendor() string                      { return "postgresql" }
func (Postgres) DriverName() string                  { return "postgres" }
func (Postgres) Placeholder(n int) string            { return "$" + strconv.Itoa(n) }
func (Postgres) QuoteName(name string) string        { return quoteWith(name, `"`) }
func (Postgres) Operator(name string) (string, bool) { return lookupOperator(postgresOperators, name) }
func (Postgres) Function(name string) string         { return name }
func (Postgres) PatternOperator(name string) (string, bool) {
	return lookupOperator(postgresPatternOperators, name)
}

// LookupCast compares text lookups on the text form of the column and
// upper-cases both sides for the case-insensitive ones.
func (Postgres) LookupCast(lookup, internalType string) string {
	format := "%s"
	switch lookup {
	case "iexact", "contains", "icontains", "startswith", "istartswith", "endswith", "iendswith":
		format = "%s::text"
	}
	switch lookup {
	case "iexact", "icontains", "istartswith", "iendswith":
		format = "UPPER(" + format + ")"
	}
	return format
}

func (Postgres) DatePart(part, sql string) string {
	return "EXTRACT(" + strings.ToUpper(part) + " FROM " + sql + ")"
}

// MySQL is the MySQL/MariaDB dialect.
type MySQL struct{}

var mysqlOperators = withComparisons(map[string]string{
	"iexact":      "LIKE %s",
	"contains":    "LIKE BINARY %s",
	"icontains":   "LIKE %s",
	"startswith":  "LIKE BINARY %s",
	"istartswith": "LIKE %s",
	"endswith":    "LIKE BINARY %s",
	"iendswith":   "LIKE %s",
})

var mysqlPatternOperators = map[string]string{
	"contains":    "LIKE BINARY CONCAT('%%', %s, '%%')",
	"icontains":   "LIKE CONCAT('%%', %s, '%%')",
	"startswith":  "LIKE BINARY CONCAT(%s, '%%')",
	"istartswith": "LIKE CONCAT(%s, '%%')",
	"endswith":    "LIKE BINARY CONCAT('%%', %s)",
	"iendswith":   "LIKE CONCAT('%%', %s)",
}

func (MySQL) Vendor() string                      { return "mysql" }
func (MySQL) DriverName() string                  { return "mysql" }
func (MySQL) Placeholder(int) string              { return "?" }
func (MySQL) QuoteName(name string) string        { return quoteWith(name, "`") }
func (MySQL) Operator(name string) (string, bool) { return lookupOperator(mysqlOperators, name) }
func (MySQL) LookupCast(string, string) string    { return "%s" }
func (MySQL) PatternOperator(name string) (string, bool) {
	return lookupOperator(mysqlPatternOperators, name)
}

func (MySQL) Function(name string) string {
	if name == "LENGTH" {
		return "CHAR_LENGTH"
	}
	return name
}

func (MySQL) DatePart(part, sql string) string {
	return "EXTRACT(" + strings.ToUpper(part) + " FROM " + sql + ")"
}
