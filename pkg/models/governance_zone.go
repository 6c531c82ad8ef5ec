package models

// GovernanceZoneProperties is the caller-supplied property set of a zone.
// A nil DomainIdentifier keeps the stored domain on a merge update.
type GovernanceZoneProperties struct {
	QualifiedName        string            `json:"qualified_name"`
	DisplayName          string            `json:"display_name,omitempty"`
	Description          string            `json:"description,omitempty"`
	Criteria             string            `json:"criteria,omitempty"`
	Scope                string            `json:"scope,omitempty"`
	DomainIdentifier     *int              `json:"domain_identifier,omitempty"`
	AdditionalProperties map[string]string `json:"additional_properties,omitempty"`
	ExtendedProperties   map[string]any    `json:"extended_properties,omitempty"`
}

// GovernanceZone groups assets that share governance requirements.
type GovernanceZone struct {
	ElementHeader
	GovernanceZoneProperties
}

// Stub returns the zone as a relationship end.
func (z *GovernanceZone) Stub() ElementStub {
	return ElementStub{
		GUID:          z.GUID,
		TypeName:      z.TypeName,
		QualifiedName: z.QualifiedName,
		DisplayName:   z.DisplayName,
	}
}

// GovernanceZoneDefinition joins a zone with its parent, its direct children
// and the governance definitions it is governed by.
type GovernanceZoneDefinition struct {
	GovernanceZone
	Parent      *ElementStub        `json:"parent,omitempty"`
	Children    []ElementStub       `json:"children"`
	Definitions []DefinitionSummary `json:"governed_by"`
}

// DomainID returns a domain identifier for a properties literal.
func DomainID(v int) *int {
	return &v
}
