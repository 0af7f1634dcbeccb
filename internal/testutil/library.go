package testutil

import (
	"testing"

	"github.com/roach88/relq/internal/ir"
	"github.com/roach88/relq/internal/meta"
)

// LibrarySpec is the schema most tests run against:
//
//	Author  name, age?, best_friend? -> Author (reverse: friended_by)
//	Book    title, published?, rating, author -> Author (reverse: books),
//	        editor? -> Author (reverse: edited), tags <-> Tag
//	Tag     label
//	Profile bio?, author -> Author one-to-one (reverse: profile)
func LibrarySpec() ir.SchemaSpec {
	return ir.SchemaSpec{Entities: []ir.EntitySpec{
		{
			Name: "Author",
			Fields: []ir.FieldSpec{
				{Name: "name", Type: "string"},
				{Name: "age", Type: "int", Nullable: true},
				{Name: "best_friend", Nullable: true, Relation: &ir.RelationSpec{
					Kind: ir.RelationForeignKey, Target: "Author", RelatedName: "friended_by",
				}},
			},
		},
		{
			Name:  "Book",
			Table: "books",
			Fields: []ir.FieldSpec{
				{Name: "title", Type: "string"},
				{Name: "published", Column: "published_on", Type: "date", Nullable: true},
				{Name: "rating", Type: "float"},
				{Name: "author", Relation: &ir.RelationSpec{
					Kind: ir.RelationForeignKey, Target: "Author", RelatedName: "books",
				}},
				{Name: "editor", Nullable: true, Relation: &ir.RelationSpec{
					Kind: ir.RelationForeignKey, Target: "Author", RelatedName: "edited",
				}},
				{Name: "tags", Relation: &ir.RelationSpec{Kind: ir.RelationManyToMany, Target: "Tag"}},
			},
		},
		{
			Name:   "Tag",
			Fields: []ir.FieldSpec{{Name: "label", Type: "string"}},
		},
		{
			Name: "Profile",
			Fields: []ir.FieldSpec{
				{Name: "bio", Type: "string", Nullable: true},
				{Name: "author", Relation: &ir.RelationSpec{
					Kind: ir.RelationOneToOne, Target: "Author", RelatedName: "profile",
				}},
			},
		},
	}}
}

// Library builds LibrarySpec, failing the test on error.
func Library(t testing.TB) *meta.Schema {
	t.Helper()
	s, err := meta.New(LibrarySpec())
	if err != nil {
		t.Fatalf("library schema: %v", err)
	}
	return s
}

// Entity returns the named entity of s, failing the test when missing.
func Entity(t testing.TB, s *meta.Schema, name string) *meta.Entity {
	t.Helper()
	e, ok := s.Entity(name)
	if !ok {
		t.Fatalf("entity %s not defined", name)
	}
	return e
}

// Row is one fixture row.
type Row struct {
	Table  string
	Values map[string]any
}

// LibraryRows is a small dataset for LibrarySpec. Author 1 (Jim) has no
// best friend, author 2 (Bob) is friends with Jim and author 3 (Ann) with
// Bob.
func LibraryRows() []Row {
	return []Row{
		{"author", map[string]any{"id": 1, "name": "Jim", "age": 41, "best_friend_id": nil}},
		{"author", map[string]any{"id": 2, "name": "Bob", "age": nil, "best_friend_id": 1}},
		{"author", map[string]any{"id": 3, "name": "Ann", "age": 29, "best_friend_id": 2}},
		{"tag", map[string]any{"id": 1, "label": "sci-fi"}},
		{"tag", map[string]any{"id": 2, "label": "poetry"}},
		{"books", map[string]any{"id": 1, "title": "Dune", "published_on": "1965-08-01", "rating": 4.5, "author_id": 1, "editor_id": 2}},
		{"books", map[string]any{"id": 2, "title": "Odes", "published_on": nil, "rating": 3.0, "author_id": 1, "editor_id": nil}},
		{"books", map[string]any{"id": 3, "title": "Solaris", "published_on": "1961-06-01", "rating": 4.0, "author_id": 3, "editor_id": nil}},
		{"books_tags", map[string]any{"book_id": 1, "tag_id": 1}},
		{"books_tags", map[string]any{"book_id": 3, "tag_id": 1}},
		{"books_tags", map[string]any{"book_id": 2, "tag_id": 2}},
		{"profile", map[string]any{"id": 1, "bio": "writes", "author_id": 1}},
	}
}
