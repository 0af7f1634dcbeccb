// Package meta answers per-segment questions about entities: which names
// are fields, which are relations, and how a relation hop is joined.
package meta

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/relq/internal/ir"
)

// Provider looks up entities by name.
type Provider interface {
	Entity(name string) (*Entity, bool)
}

// Schema is the resolved set of entities with relations wired in both
// directions. It is immutable after New returns.
type Schema struct {
	entities map[string]*Entity
	order    []string
}

// Entity is a table with its fields and relations.
type Entity struct {
	Name  string
	Table string
	PK    *Field

	fields    []*Field
	byName    map[string]*Field
	byColumn  map[string]*Field
	relations map[string]*Relation
}

// Field is a concrete column. Forward FK and one-to-one relations are also
// fields: their column holds the target's primary key.
type Field struct {
	Name     string
	Column   string
	Type     string
	Nullable bool
	Entity   *Entity
	Relation *Relation
}

// Relation is one traversable direction of a relationship.
type Relation struct {
	Name     string
	Kind     string
	Reverse  bool
	From     *Entity
	Target   *Entity
	Field    *Field // the FK field, on From when forward, on Target when reverse
	Through  *ir.ThroughSpec
	Opposite *Relation
}

// PathInfo describes one join hop.
type PathInfo struct {
	Name        string
	From        *Entity
	To          *Entity
	Table       string
	FromColumn  string // column on the parent alias
	ToColumn    string // column on the joined table
	Nullable    bool
	MultiValued bool
	// Direct hops follow a foreign key from its owner, so a condition on
	// ToColumn can be moved to FromColumn on the parent alias.
	Direct   bool
	Relation *Relation
}

// SchemaError reports an inconsistent entity definition.
type SchemaError struct {
	Entity  string
	Field   string
	Message string
}

func (e *SchemaError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("entity %s field %s: %s", e.Entity, e.Field, e.Message)
	}
	return fmt.Sprintf("entity %s: %s", e.Entity, e.Message)
}

// New builds a Schema from specs. Reverse relations are named by the
// relation's RelatedName, or the lowercased source entity name.
func New(spec ir.SchemaSpec) (*Schema, error) {
	s := &Schema{entities: make(map[string]*Entity, len(spec.Entities))}

	for _, es := range spec.Entities {
		if es.Name == "" {
			return nil, &SchemaError{Message: "name is required"}
		}
		if _, dup := s.entities[es.Name]; dup {
			return nil, &SchemaError{Entity: es.Name, Message: "defined more than once"}
		}
		table := es.Table
		if table == "" {
			table = strings.ToLower(es.Name)
		}
		s.entities[es.Name] = &Entity{
			Name:      es.Name,
			Table:     table,
			byName:    make(map[string]*Field),
			byColumn:  make(map[string]*Field),
			relations: make(map[string]*Relation),
		}
		s.order = append(s.order, es.Name)
	}

	// Concrete fields first so relation targets have a primary key.
	for _, es := range spec.Entities {
		e := s.entities[es.Name]
		pkName := es.PrimaryKey
		if pkName == "" {
			pkName = "id"
		}
		for _, fs := range es.Fields {
			if fs.Relation != nil {
				continue
			}
			if !ir.ValidFieldTypes[fs.Type] {
				return nil, &SchemaError{Entity: e.Name, Field: fs.Name, Message: fmt.Sprintf("unknown type %q", fs.Type)}
			}
			if err := e.addField(&Field{Name: fs.Name, Column: columnOr(fs.Column, fs.Name), Type: fs.Type, Nullable: fs.Nullable}); err != nil {
				return nil, err
			}
		}
		pk, ok := e.byName[pkName]
		if !ok {
			if es.PrimaryKey != "" {
				return nil, &SchemaError{Entity: e.Name, Field: pkName, Message: "primary key is not a field"}
			}
			pk = &Field{Name: "id", Column: "id", Type: "int"}
			if err := e.addField(pk); err != nil {
				return nil, err
			}
			// Implicit primary key goes first in column order.
			e.fields = append([]*Field{pk}, e.fields[:len(e.fields)-1]...)
		}
		e.PK = pk
	}

	for _, es := range spec.Entities {
		e := s.entities[es.Name]
		for _, fs := range es.Fields {
			if fs.Relation == nil {
				continue
			}
			if err := s.addRelation(e, fs); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

func columnOr(column, name string) string {
	if column != "" {
		return column
	}
	return name
}

func (s *Schema) addRelation(e *Entity, fs ir.FieldSpec) error {
	rs := fs.Relation
	if !ir.ValidRelationKinds[rs.Kind] {
		return &SchemaError{Entity: e.Name, Field: fs.Name, Message: fmt.Sprintf("unknown relation kind %q", rs.Kind)}
	}
	target, ok := s.entities[rs.Target]
	if !ok {
		return &SchemaError{Entity: e.Name, Field: fs.Name, Message: fmt.Sprintf("relation target %q is not defined", rs.Target)}
	}

	fwd := &Relation{Name: fs.Name, Kind: rs.Kind, From: e, Target: target}
	rev := &Relation{Kind: rs.Kind, Reverse: true, From: target, Target: e, Opposite: fwd}
	fwd.Opposite = rev

	rev.Name = rs.RelatedName
	if rev.Name == "" {
		rev.Name = strings.ToLower(e.Name)
	}

	if rs.Kind == ir.RelationManyToMany {
		if rs.Through == nil {
			through := ir.ThroughSpec{
				Table:        e.Table + "_" + fs.Name,
				SourceColumn: strings.ToLower(e.Name) + "_id",
				TargetColumn: strings.ToLower(target.Name) + "_id",
			}
			if target == e {
				through.SourceColumn = "from_" + through.SourceColumn
				through.TargetColumn = "to_" + through.TargetColumn
			}
			fwd.Through = &through
		} else {
			through := *rs.Through
			fwd.Through = &through
		}
		rev.Through = fwd.Through
	} else {
		f := &Field{
			Name:     fs.Name,
			Column:   columnOr(fs.Column, fs.Name+"_"+target.PK.Column),
			Type:     target.PK.Type,
			Nullable: fs.Nullable,
			Relation: fwd,
		}
		if err := e.addField(f); err != nil {
			return err
		}
		fwd.Field = f
		rev.Field = f
	}

	if _, dup := e.relations[fwd.Name]; dup {
		return &SchemaError{Entity: e.Name, Field: fwd.Name, Message: "relation defined more than once"}
	}
	e.relations[fwd.Name] = fwd

	if _, clash := target.byName[rev.Name]; clash {
		return &SchemaError{Entity: target.Name, Field: rev.Name, Message: fmt.Sprintf("reverse relation from %s clashes with a field", e.Name)}
	}
	if _, clash := target.relations[rev.Name]; clash {
		return &SchemaError{Entity: target.Name, Field: rev.Name, Message: fmt.Sprintf("reverse relation from %s clashes with another relation", e.Name)}
	}
	target.relations[rev.Name] = rev
	return nil
}

func (e *Entity) addField(f *Field) error {
	if _, dup := e.byName[f.Name]; dup {
		return &SchemaError{Entity: e.Name, Field: f.Name, Message: "defined more than once"}
	}
	if f.Name == "pk" {
		return &SchemaError{Entity: e.Name, Field: f.Name, Message: `"pk" is reserved`}
	}
	f.Entity = e
	e.fields = append(e.fields, f)
	e.byName[f.Name] = f
	e.byColumn[f.Column] = f
	return nil
}

// Entity implements Provider.
func (s *Schema) Entity(name string) (*Entity, bool) {
	e, ok := s.entities[name]
	return e, ok
}

// Entities returns entities in definition order.
func (s *Schema) Entities() []*Entity {
	out := make([]*Entity, len(s.order))
	for i, name := range s.order {
		out[i] = s.entities[name]
	}
	return out
}

// Field returns the field called name. "pk" names the primary key, and a
// relation's column (e.g. "author_id") names its FK field.
func (e *Entity) Field(name string) (*Field, bool) {
	if name == "pk" {
		return e.PK, true
	}
	if f, ok := e.byName[name]; ok {
		return f, true
	}
	if f, ok := e.byColumn[name]; ok && f.Relation != nil {
		return f, true
	}
	return nil, false
}

// Relation returns the relation traversed by name, forward or reverse.
func (e *Entity) Relation(name string) (*Relation, bool) {
	r, ok := e.relations[name]
	return r, ok
}

// Fields returns concrete columns in definition order.
func (e *Entity) Fields() []*Field {
	return append([]*Field(nil), e.fields...)
}

// Relations returns every relation traversable from e, sorted by name.
func (e *Entity) Relations() []*Relation {
	out := make([]*Relation, 0, len(e.relations))
	for _, r := range e.relations {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names lists every name that may start a lookup path, sorted.
func (e *Entity) Names() []string {
	seen := map[string]bool{"pk": true}
	for name := range e.byName {
		seen[name] = true
	}
	for name := range e.relations {
		seen[name] = true
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// IsRelation reports whether the field is a forward FK or one-to-one.
func (f *Field) IsRelation() bool {
	return f.Relation != nil
}

func (f *Field) String() string {
	return f.Entity.Name + "." + f.Name
}

// MultiValued reports whether the hop can match more than one row per
// parent row.
func (r *Relation) MultiValued() bool {
	switch r.Kind {
	case ir.RelationManyToMany:
		return true
	case ir.RelationForeignKey:
		return r.Reverse
	default:
		return false
	}
}

// TargetField is the field a path ending on this relation compares
// against: the target's primary key.
func (r *Relation) TargetField() *Field {
	return r.Target.PK
}

// PathInfos returns the join hops needed to traverse r. Many-to-many
// relations take two hops through the intermediate table.
func (r *Relation) PathInfos() []PathInfo {
	switch {
	case r.Kind == ir.RelationManyToMany:
		src, dst := r.Through.SourceColumn, r.Through.TargetColumn
		if r.Reverse {
			src, dst = dst, src
		}
		return []PathInfo{
			{
				Name:        r.Name,
				From:        r.From,
				To:          r.Target,
				Table:       r.Through.Table,
				FromColumn:  r.From.PK.Column,
				ToColumn:    src,
				Nullable:    true,
				MultiValued: true,
				Relation:    r,
			},
			{
				Name:       r.Name,
				From:       r.From,
				To:         r.Target,
				Table:      r.Target.Table,
				FromColumn: dst,
				ToColumn:   r.Target.PK.Column,
				Nullable:   true,
				Direct:     true,
				Relation:   r,
			},
		}
	case r.Reverse:
		return []PathInfo{{
			Name:        r.Name,
			From:        r.From,
			To:          r.Target,
			Table:       r.Target.Table,
			FromColumn:  r.From.PK.Column,
			ToColumn:    r.Field.Column,
			Nullable:    true,
			MultiValued: r.MultiValued(),
			Relation:    r,
		}}
	default:
		return []PathInfo{{
			Name:       r.Name,
			From:       r.From,
			To:         r.Target,
			Table:      r.Target.Table,
			FromColumn: r.Field.Column,
			ToColumn:   r.Target.PK.Column,
			Nullable:   r.Field.Nullable,
			Direct:     true,
			Relation:   r,
		}}
	}
}
