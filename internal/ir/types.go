package ir

// SchemaSpec is the compiled form of a set of entity definitions.
type SchemaSpec struct {
	Entities []EntitySpec `json:"entities"`
}

// EntitySpec represents one compiled entity (a table).
type EntitySpec struct {
	Name       string      `json:"name"`
	Table      string      `json:"table"`
	PrimaryKey string      `json:"primary_key"` // field name, defaults to "id"
	Fields     []FieldSpec `json:"fields"`
}

// FieldSpec represents a column or a forward relation of an entity.
type FieldSpec struct {
	Name     string        `json:"name"`
	Column   string        `json:"column"`
	Type     string        `json:"type"` // one of ValidFieldTypes
	Nullable bool          `json:"nullable,omitempty"`
	Relation *RelationSpec `json:"relation,omitempty"`
}

// RelationSpec describes where a relation field points.
type RelationSpec struct {
	Kind        string       `json:"kind"`   // one of ValidRelationKinds
	Target      string       `json:"target"` // entity name
	RelatedName string       `json:"related_name,omitempty"`
	Through     *ThroughSpec `json:"through,omitempty"` // many_to_many only
}

// ThroughSpec names the intermediate table of a many-to-many relation.
type ThroughSpec struct {
	Table        string `json:"table"`
	SourceColumn string `json:"source_column"`
	TargetColumn string `json:"target_column"`
}

// Relation kinds.
const (
	RelationForeignKey = "foreign_key"
	RelationOneToOne   = "one_to_one"
	RelationManyToMany = "many_to_many"
)

// ValidRelationKinds defines allowed relation kinds.
var ValidRelationKinds = map[string]bool{
	RelationForeignKey: true,
	RelationOneToOne:   true,
	RelationManyToMany: true,
}

// ValidFieldTypes defines allowed scalar field types.
var ValidFieldTypes = map[string]bool{
	"int":      true,
	"float":    true,
	"string":   true,
	"bool":     true,
	"date":     true,
	"datetime": true,
}
