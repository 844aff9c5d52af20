// Package domain defines the typed inventory entities layered on top of the
// schemaless document store: the schema registry, the datum representation,
// field diffing, validation primitives, and history records.
package domain

import (
	"fmt"
	"strings"
)

// FieldType identifies the expected JSON shape of one schema field.
type FieldType string

// Supported field types. Timestamps are epoch milliseconds carried as JSON
// numbers.
const (
	FieldString    FieldType = "string"
	FieldNumber    FieldType = "number"
	FieldBoolean   FieldType = "boolean"
	FieldArray     FieldType = "array"
	FieldObject    FieldType = "object"
	FieldTimestamp FieldType = "timestamp"
)

// FieldDefinition declares one typed field of an entity type.
type FieldDefinition struct {
	Name     string    `json:"name"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required,omitempty"`
}

// RelationKind discriminates the two supported relation declarations.
type RelationKind string

const (
	// RelationBelongsTo resolves a foreign id field on the owning type to a
	// single row of the target type.
	RelationBelongsTo RelationKind = "belongs_to"
	// RelationHasMany is the inverse: it queries the target type by its
	// foreign-key field pointing back at the owner.
	RelationHasMany RelationKind = "has_many"
)

// RelationDefinition declares a named relation between two entity types.
// Relations carry no runtime state; they are resolved on demand.
type RelationDefinition struct {
	Name       string       `json:"name"`
	Kind       RelationKind `json:"kind"`
	Target     string       `json:"target"`
	ForeignKey string       `json:"foreign_key"`
}

// TypeDefinition is one entry of the schema registry: the full static
// description of an entity type.
type TypeDefinition struct {
	Name      string               `json:"name"`
	Fields    []FieldDefinition    `json:"fields"`
	Relations []RelationDefinition `json:"relations,omitempty"`
	Defaults  map[string]any       `json:"defaults,omitempty"`
}

// Field looks up a field definition by name.
func (t TypeDefinition) Field(name string) (FieldDefinition, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDefinition{}, false
}

// Relation looks up a relation declaration by name.
func (t TypeDefinition) Relation(name string) (RelationDefinition, bool) {
	for _, r := range t.Relations {
		if r.Name == name {
			return r, true
		}
	}
	return RelationDefinition{}, false
}

// Registry holds the process-wide set of entity type definitions. It is
// initialized once at startup, never mutated afterwards, and therefore safe
// for unsynchronized concurrent reads.
type Registry struct {
	types map[string]TypeDefinition
	order []string
}

// NewRegistry builds a registry from the given definitions, rejecting
// duplicates and relations that point at unknown types.
func NewRegistry(defs ...TypeDefinition) (*Registry, error) {
	r := &Registry{types: make(map[string]TypeDefinition, len(defs))}
	for _, def := range defs {
		if def.Name == "" {
			return nil, fmt.Errorf("schema registry: type with empty name")
		}
		if _, dup := r.types[def.Name]; dup {
			return nil, fmt.Errorf("schema registry: duplicate type %q", def.Name)
		}
		r.types[def.Name] = def
		r.order = append(r.order, def.Name)
	}
	for _, def := range defs {
		for _, rel := range def.Relations {
			if _, ok := r.types[rel.Target]; !ok {
				return nil, fmt.Errorf("schema registry: %s.%s targets unknown type %q", def.Name, rel.Name, rel.Target)
			}
			if rel.ForeignKey == "" {
				return nil, fmt.Errorf("schema registry: %s.%s has no foreign key", def.Name, rel.Name)
			}
		}
	}
	return r, nil
}

// Type returns the definition registered under name.
func (r *Registry) Type(name string) (TypeDefinition, bool) {
	def, ok := r.types[name]
	return def, ok
}

// Types returns all definitions in registration order.
func (r *Registry) Types() []TypeDefinition {
	out := make([]TypeDefinition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.types[name])
	}
	return out
}

// Entity type names of the built-in inventory schema.
const (
	TypeItem       = "item"
	TypeCollection = "collection"
)

// DefaultRegistry returns the built-in inventory schema: items grouped into
// collections, keyed back to the tag-numbering config by its uuid.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(
		TypeDefinition{
			Name: TypeItem,
			Fields: []FieldDefinition{
				{Name: "name", Type: FieldString, Required: true},
				{Name: "description", Type: FieldString},
				{Name: "quantity", Type: FieldNumber},
				{Name: "serial", Type: FieldNumber},
				{Name: "epc", Type: FieldString},
				{Name: "collection_id", Type: FieldString},
				{Name: "config_uuid", Type: FieldString},
			},
			Relations: []RelationDefinition{
				{Name: "collection", Kind: RelationBelongsTo, Target: TypeCollection, ForeignKey: "collection_id"},
			},
			Defaults: map[string]any{"quantity": float64(1)},
		},
		TypeDefinition{
			Name: TypeCollection,
			Fields: []FieldDefinition{
				{Name: "name", Type: FieldString, Required: true},
				{Name: "color", Type: FieldString},
				{Name: "config_uuid", Type: FieldString, Required: true},
			},
			Relations: []RelationDefinition{
				{Name: "items", Kind: RelationHasMany, Target: TypeItem, ForeignKey: "collection_id"},
			},
		},
	)
	if err != nil {
		panic(err)
	}
	return r
}

// DocID joins an entity type and bare id into the type-prefixed document id.
func DocID(dataType, id string) string {
	return dataType + ":" + id
}

// ParseDocID splits a type-prefixed document id. The second return is the
// bare id; ok is false when the value carries no type prefix.
func ParseDocID(docID string) (dataType, id string, ok bool) {
	idx := strings.IndexByte(docID, ':')
	if idx <= 0 || idx == len(docID)-1 {
		return "", docID, false
	}
	return docID[:idx], docID[idx+1:], true
}
