package schema

import (
	"path/filepath"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relq/internal/ir"
)

func TestCompileEntityFieldForms(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		entity: Book: {
			table: "books"
			fields: {
				title:     string
				pages:     int | null
				published: "date"
				printed:   {type: "datetime", column: "printed_at", nullable: true}
				price:     number
				in_print:  bool
			}
			relations: author: {target: "Author", related_name: "books"}
		}
	`)
	require.NoError(t, v.Err())

	spec, err := CompileEntity(v.LookupPath(cue.ParsePath("entity.Book")))
	require.NoError(t, err)

	assert.Equal(t, "Book", spec.Name)
	assert.Equal(t, "books", spec.Table)
	assert.Equal(t, []ir.FieldSpec{
		{Name: "title", Type: "string"},
		{Name: "pages", Type: "int", Nullable: true},
		{Name: "published", Type: "date"},
		{Name: "printed", Type: "datetime", Column: "printed_at", Nullable: true},
		{Name: "price", Type: "float"},
		{Name: "in_print", Type: "bool"},
		{Name: "author", Relation: &ir.RelationSpec{Kind: ir.RelationForeignKey, Target: "Author", RelatedName: "books"}},
	}, spec.Fields)
}

func TestCompileEntityErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code string
		msg  string
	}{
		{"no fields", `entity: E: {table: "e"}`, ErrCodeInvalidEntity, "declares no fields"},
		{"bad type name", `entity: E: fields: x: "decimal"`, ErrCodeInvalidField, `unknown type "decimal"`},
		{"list type", `entity: E: fields: x: [...int]`, ErrCodeInvalidField, "unsupported type kind"},
		{"struct without type", `entity: E: fields: x: {column: "y"}`, ErrCodeInvalidField, "type is required"},
		{"bad relation kind", `entity: E: relations: r: {kind: "belongs_to", target: "E"}`, ErrCodeInvalidRelation, `unknown kind "belongs_to"`},
		{"relation without target", `entity: E: relations: r: {kind: "foreign_key"}`, ErrCodeInvalidRelation, "target is required"},
		{"through on fk", `entity: E: relations: r: {target: "E", through: {table: "t", source_column: "a", target_column: "b"}}`, ErrCodeInvalidRelation, "only valid for many_to_many"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := cuecontext.New().CompileString(tt.src)
			require.NoError(t, v.Err())
			_, err := CompileEntity(v.LookupPath(cue.ParsePath("entity.E")))
			require.Error(t, err)
			assert.True(t, IsLoadError(err, tt.code), "got %v", err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestCompileBuildsSchema(t *testing.T) {
	s, err := Compile(`
		entity: Author: {
			fields: name: string
			relations: best_friend: {target: "Author", nullable: true}
		}
	`)
	require.NoError(t, err)

	author, ok := s.Entity("Author")
	require.True(t, ok)
	bf, ok := author.Relation("best_friend")
	require.True(t, ok)
	assert.True(t, bf.Field.Nullable)
	assert.Equal(t, "best_friend_id", bf.Field.Column)

	_, ok = author.Relation("author")
	assert.True(t, ok, "default reverse name")
}

func TestCompileRejectsUnknownTarget(t *testing.T) {
	_, err := Compile(`entity: A: relations: b: {target: "B"}`)
	require.Error(t, err)
	assert.True(t, IsLoadError(err, ErrCodeInvalidSchema))
	assert.Contains(t, err.Error(), `relation target "B" is not defined`)
}

func TestCompileSyntaxErrorHasPosition(t *testing.T) {
	_, err := Compile("entity: A: {\n\tfields: name: string\n")
	require.Error(t, err)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeBuildFailed, le.Code)
	assert.True(t, le.Pos.IsValid())
}

func TestLoadDirectory(t *testing.T) {
	s, err := Load(filepath.Join("testdata", "library"))
	require.NoError(t, err)

	names := []string{}
	for _, e := range s.Entities() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"Author", "Book", "Tag"}, names)

	book, _ := s.Entity("Book")
	assert.Equal(t, "books", book.Table)
	published, ok := book.Field("published")
	require.True(t, ok)
	assert.Equal(t, "published_on", published.Column)

	tag, _ := s.Entity("Tag")
	_, ok = tag.Relation("book")
	assert.True(t, ok)
}

func TestLoadSingleFile(t *testing.T) {
	s, err := Load(filepath.Join("testdata", "library", "library.cue"))
	require.NoError(t, err)
	_, ok := s.Entity("Tag")
	assert.True(t, ok)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "nope"))
	assert.True(t, IsLoadError(err, ErrCodeNotFound))

	_, err = Load(t.TempDir())
	assert.True(t, IsLoadError(err, ErrCodeNoFiles))
}

func TestCompileReportsEveryProblem(t *testing.T) {
	_, err := Compile(`
entity: A: {
	primary_key: "code"
	fields: x: string
	relations: b: {target: "B"}
}`)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeInvalidSchema, le.Code)
	require.Len(t, le.Problems, 2)
	assert.Contains(t, le.Message, "(and 1 more)")
}
