package models

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed governance_schema.yaml
var governanceSchemaYAML []byte

// schemaFile is the root structure of governance_schema.yaml.
type schemaFile struct {
	Entities      []EntityTypeDef       `yaml:"entities"`
	Relationships []RelationshipTypeDef `yaml:"relationships"`
}

// EntityTypeDef declares an entity type and the properties it adds to its supertype.
type EntityTypeDef struct {
	Name       string   `yaml:"name"`
	Supertype  string   `yaml:"supertype"`
	Properties []string `yaml:"properties"`
}

// RelationshipTypeDef declares a relationship type, the entity types allowed at
// each end and its property names.
type RelationshipTypeDef struct {
	Name       string   `yaml:"name"`
	End1       string   `yaml:"end1"`
	End2       string   `yaml:"end2"`
	Properties []string `yaml:"properties"`
}

// TypeSchema is the compiled type table. It is immutable once loaded.
type TypeSchema struct {
	entities      map[string]EntityTypeDef
	relationships map[string]RelationshipTypeDef
	// entity type name -> every property name including inherited ones
	entityProps map[string]map[string]struct{}
}

// LoadSchema parses the embedded governance schema.
func LoadSchema() (*TypeSchema, error) {
	return ParseSchema(governanceSchemaYAML)
}

// ParseSchema compiles a schema document. Supertypes must be declared before
// their subtypes and relationship ends must name declared entity types.
func ParseSchema(content []byte) (*TypeSchema, error) {
	var file schemaFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("parse governance schema: %w", err)
	}

	s := &TypeSchema{
		entities:      make(map[string]EntityTypeDef, len(file.Entities)),
		relationships: make(map[string]RelationshipTypeDef, len(file.Relationships)),
		entityProps:   make(map[string]map[string]struct{}, len(file.Entities)),
	}

	for _, def := range file.Entities {
		if def.Name == "" {
			return nil, fmt.Errorf("entity type with empty name")
		}
		if _, dup := s.entities[def.Name]; dup {
			return nil, fmt.Errorf("entity type %s declared twice", def.Name)
		}
		props := make(map[string]struct{})
		if def.Supertype != "" {
			inherited, ok := s.entityProps[def.Supertype]
			if !ok {
				return nil, fmt.Errorf("entity type %s: unknown supertype %s", def.Name, def.Supertype)
			}
			for p := range inherited {
				props[p] = struct{}{}
			}
		}
		for _, p := range def.Properties {
			props[p] = struct{}{}
		}
		s.entities[def.Name] = def
		s.entityProps[def.Name] = props
	}

	for _, def := range file.Relationships {
		if _, dup := s.relationships[def.Name]; dup {
			return nil, fmt.Errorf("relationship type %s declared twice", def.Name)
		}
		for _, end := range []string{def.End1, def.End2} {
			if _, ok := s.entities[end]; !ok {
				return nil, fmt.Errorf("relationship type %s: unknown end type %q", def.Name, end)
			}
		}
		s.relationships[def.Name] = def
	}

	return s, nil
}

// HasEntityType reports whether typeName is declared.
func (s *TypeSchema) HasEntityType(typeName string) bool {
	_, ok := s.entities[typeName]
	return ok
}

// HasRelationshipType reports whether relationshipName is declared.
func (s *TypeSchema) HasRelationshipType(relationshipName string) bool {
	_, ok := s.relationships[relationshipName]
	return ok
}

// IsSubtypeOf reports whether typeName equals superType or inherits from it.
func (s *TypeSchema) IsSubtypeOf(typeName, superType string) bool {
	for name := typeName; name != ""; {
		if name == superType {
			return true
		}
		def, ok := s.entities[name]
		if !ok {
			return false
		}
		name = def.Supertype
	}
	return false
}

// HasEntityProperty reports whether typeName accepts propertyName, directly or
// through a supertype.
func (s *TypeSchema) HasEntityProperty(typeName, propertyName string) bool {
	_, ok := s.entityProps[typeName][propertyName]
	return ok
}

// HasRelationshipProperty reports whether relationshipName accepts propertyName.
func (s *TypeSchema) HasRelationshipProperty(relationshipName, propertyName string) bool {
	def, ok := s.relationships[relationshipName]
	if !ok {
		return false
	}
	for _, p := range def.Properties {
		if p == propertyName {
			return true
		}
	}
	return false
}

// CanLink reports whether an edge of relationshipName may join an entity of
// end1Type to one of end2Type.
func (s *TypeSchema) CanLink(relationshipName, end1Type, end2Type string) bool {
	def, ok := s.relationships[relationshipName]
	if !ok {
		return false
	}
	return s.IsSubtypeOf(end1Type, def.End1) && s.IsSubtypeOf(end2Type, def.End2)
}
