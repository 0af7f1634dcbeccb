package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relq/internal/queryir"
	"github.com/roach88/relq/internal/testutil"
)

// createTestStore opens an in-memory store holding the library fixture.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	require.NoError(t, s.CreateTables(ctx, testutil.Library(t)))
	for _, row := range testutil.LibraryRows() {
		require.NoError(t, s.Insert(ctx, row.Table, row.Values))
	}
	return s
}

func TestOpenMemory_AppliesPragmas(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
	assert.Equal(t, "sqlite", s.Dialect().Vendor())
}

func TestOpenMemory_Isolated(t *testing.T) {
	ctx := context.Background()
	a, err := OpenMemory()
	require.NoError(t, err)
	defer a.Close()
	b, err := OpenMemory()
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.CreateTables(ctx, testutil.Library(t)))
	_, err = b.DB().ExecContext(ctx, `SELECT 1 FROM "author"`)
	assert.Error(t, err, "tables of one memory store leak into another")
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("oracle", "")
	assert.Error(t, err)
}

func TestTableDDL(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	ddl := s.TableDDL(testutil.Library(t))
	require.Len(t, ddl, 5)
	assert.Equal(t,
		`CREATE TABLE IF NOT EXISTS "author" ("id" INTEGER PRIMARY KEY, "name" TEXT NOT NULL, "age" INTEGER, "best_friend_id" INTEGER REFERENCES "author" ("id"))`,
		ddl[0])
	assert.Equal(t,
		`CREATE TABLE IF NOT EXISTS "tag" ("id" INTEGER PRIMARY KEY, "label" TEXT NOT NULL)`,
		ddl[2])
	assert.Equal(t,
		`CREATE TABLE IF NOT EXISTS "books_tags" ("book_id" INTEGER NOT NULL REFERENCES "books" ("id"), "tag_id" INTEGER NOT NULL REFERENCES "tag" ("id"))`,
		ddl[4])
}

func TestCreateTables_Idempotent(t *testing.T) {
	s := createTestStore(t)
	assert.NoError(t, s.CreateTables(context.Background(), testutil.Library(t)))
}

func TestInsert_EnforcesForeignKeys(t *testing.T) {
	s := createTestStore(t)
	err := s.Insert(context.Background(), "books", map[string]any{
		"id": 10, "title": "Orphan", "rating": 1.0, "author_id": 99,
	})
	assert.Error(t, err)
}

func TestInsert_RequiresValues(t *testing.T) {
	s := createTestStore(t)
	assert.Error(t, s.Insert(context.Background(), "tag", nil))
}

func authorsStatement() queryir.Statement {
	return queryir.Statement{
		Table:   "author",
		Alias:   "author",
		Columns: []queryir.ColumnRef{{Alias: "author", Column: "id"}, {Alias: "author", Column: "name"}},
		OrderBy: []queryir.ColumnRef{{Alias: "author", Column: "id"}},
	}
}

func TestFetch(t *testing.T) {
	s := createTestStore(t)
	records, err := s.Fetch(context.Background(), authorsStatement())
	require.NoError(t, err)
	require.Len(t, records, 3)

	names := make([]any, len(records))
	for i, r := range records {
		names[i] = r["name"]
	}
	assert.Equal(t, []any{"Jim", "Bob", "Ann"}, names)
	assert.Equal(t, int64(1), records[0]["id"])
}

func TestFetch_EmptyStatementSkipsDatabase(t *testing.T) {
	s := createTestStore(t)
	stmt := authorsStatement()
	stmt.Empty = true

	records, err := s.Fetch(context.Background(), stmt)
	require.NoError(t, err)
	assert.Empty(t, records)

	n, err := s.Count(context.Background(), stmt)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCount(t *testing.T) {
	s := createTestStore(t)
	stmt := authorsStatement()
	stmt.Where = queryir.Fragment{SQL: `"author"."age" IS NOT NULL`}

	n, err := s.Count(context.Background(), stmt)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
