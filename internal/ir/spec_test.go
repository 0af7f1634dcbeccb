package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchemaSpecValidate(t *testing.T) {
	fk := func(target string) *RelationSpec {
		return &RelationSpec{Kind: RelationForeignKey, Target: target}
	}
	tests := []struct {
		name string
		spec SchemaSpec
		want []string
	}{
		{
			name: "valid",
			spec: SchemaSpec{Entities: []EntitySpec{
				{Name: "Author", Fields: []FieldSpec{{Name: "name", Type: "string"}, {Name: "best_friend", Relation: fk("Author")}}},
				{Name: "Tag", Fields: []FieldSpec{{Name: "books", Relation: &RelationSpec{
					Kind: RelationManyToMany, Target: "Author",
					Through: &ThroughSpec{Table: "t", SourceColumn: "a", TargetColumn: "b"},
				}}}},
			}},
		},
		{
			name: "collects every problem",
			spec: SchemaSpec{Entities: []EntitySpec{
				{Name: "A", PrimaryKey: "code", Fields: []FieldSpec{
					{Name: "x", Type: "decimal"},
					{Name: "x", Type: "string"},
					{Name: "b", Relation: fk("B")},
				}},
				{Name: "A", Fields: []FieldSpec{{Name: "pk", Type: "int"}}},
			}},
			want: []string{
				`entity.A.fields.x: unknown type "decimal"`,
				`entity.A.fields.x: duplicate field name "x"`,
				`entity.A.relations.b.target: relation target "B" is not defined`,
				`entity.A.primary_key: primary key "code" is not a field`,
				`entity.A: defined more than once`,
				`entity.A.fields.pk: "pk" is reserved`,
			},
		},
		{
			name: "relation shape",
			spec: SchemaSpec{Entities: []EntitySpec{
				{Name: "A", Fields: []FieldSpec{
					{Name: "r", Relation: &RelationSpec{Kind: "graph"}},
					{Name: "s", Relation: &RelationSpec{Kind: RelationForeignKey, Target: "A", Through: &ThroughSpec{Table: "t"}}},
					{Name: "m", Relation: &RelationSpec{Kind: RelationManyToMany, Target: "A", Through: &ThroughSpec{Table: "t"}}},
				}},
				{Fields: []FieldSpec{{Name: "y", Type: "int"}}},
			}},
			want: []string{
				`entity.A.relations.r.kind: unknown relation kind "graph"`,
				`entity.A.relations.r.target: target is required`,
				`entity.A.relations.s.through: through is only valid for many_to_many`,
				`entity.A.relations.m.through: through needs table, source_column and target_column`,
				`entities[1].name: name is required`,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, e := range tt.spec.Validate() {
				got = append(got, e.Error())
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
