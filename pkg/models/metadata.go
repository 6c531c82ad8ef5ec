package models

import (
	"time"

	"github.com/google/uuid"
)

// Entity type names known to the governance program.
const (
	TypeReferenceable        = "Referenceable"
	TypeGovernanceDefinition = "GovernanceDefinition"
	TypeGovernanceDriver     = "GovernanceDriver"
	TypeGovernancePolicy     = "GovernancePolicy"
	TypeGovernanceControl    = "GovernanceControl"
	TypeCertificationType    = "CertificationType"
	TypeLicenseType          = "LicenseType"
	TypeExternalReference    = "ExternalReference"
	TypeGovernanceZone       = "GovernanceZone"
)

// Relationship type names known to the governance program.
const (
	RelGovernanceDriverLink     = "GovernanceDriverLink"
	RelGovernancePolicyLink     = "GovernancePolicyLink"
	RelGovernanceControlLink    = "GovernanceControlLink"
	RelCertificationTypeLink    = "CertificationTypeLink"
	RelLicenseTypeLink          = "LicenseTypeLink"
	RelGovernanceResponse       = "GovernanceResponse"
	RelGovernanceImplementation = "GovernanceImplementation"
	RelCertification            = "Certification"
	RelLicense                  = "License"
	RelExternalReferenceLink    = "ExternalReferenceLink"
	RelZoneHierarchy            = "ZoneHierarchy"
	RelGovernedBy               = "GovernedBy"
)

// MetadataCollection identifies the store a repository writes to.
type MetadataCollection struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Entity is the generic stored form of any element.
type Entity struct {
	GUID           uuid.UUID       `json:"guid"`
	TypeName       string          `json:"type_name"`
	Properties     map[string]any  `json:"properties"`
	AnchorGUID     *uuid.UUID      `json:"anchor_guid,omitempty"`
	ExternalSource *ExternalSource `json:"external_source,omitempty"`
	Version        int64           `json:"version"`
	CreatedBy      string          `json:"created_by"`
	UpdatedBy      string          `json:"updated_by,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Header returns the element header of the entity.
func (e *Entity) Header() ElementHeader {
	return ElementHeader{
		GUID:           e.GUID,
		TypeName:       e.TypeName,
		ExternalSource: e.ExternalSource,
		Version:        e.Version,
		CreatedBy:      e.CreatedBy,
		UpdatedBy:      e.UpdatedBy,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

// NewEntity is the write model for adding an entity.
type NewEntity struct {
	TypeName       string
	Properties     *PropertyBag
	AnchorGUID     *uuid.UUID
	ExternalSource *ExternalSource
	CreatedBy      string
}

// Relationship is the generic stored form of a typed edge between two entities.
type Relationship struct {
	GUID           uuid.UUID       `json:"guid"`
	TypeName       string          `json:"type_name"`
	End1GUID       uuid.UUID       `json:"end1_guid"`
	End1TypeName   string          `json:"end1_type_name"`
	End2GUID       uuid.UUID       `json:"end2_guid"`
	End2TypeName   string          `json:"end2_type_name"`
	Properties     map[string]any  `json:"properties"`
	EffectiveFrom  *time.Time      `json:"effective_from,omitempty"`
	EffectiveTo    *time.Time      `json:"effective_to,omitempty"`
	ExternalSource *ExternalSource `json:"external_source,omitempty"`
	Version        int64           `json:"version"`
	CreatedBy      string          `json:"created_by"`
	UpdatedBy      string          `json:"updated_by,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// OtherEnd returns the GUID and type name of the end that is not guid.
func (r *Relationship) OtherEnd(guid uuid.UUID) (uuid.UUID, string) {
	if r.End1GUID == guid {
		return r.End2GUID, r.End2TypeName
	}
	return r.End1GUID, r.End1TypeName
}

// Connects reports whether the relationship joins a and b in either direction.
func (r *Relationship) Connects(a, b uuid.UUID) bool {
	return (r.End1GUID == a && r.End2GUID == b) || (r.End1GUID == b && r.End2GUID == a)
}

// IsEffectiveAt reports whether t falls inside the effectivity window.
// A nil bound is open.
func (r *Relationship) IsEffectiveAt(t time.Time) bool {
	return EffectivityWindow{From: r.EffectiveFrom, To: r.EffectiveTo}.Contains(t)
}

// NewRelationship is the write model for adding a relationship.
type NewRelationship struct {
	TypeName       string
	End1GUID       uuid.UUID
	End2GUID       uuid.UUID
	Properties     *PropertyBag
	Window         EffectivityWindow
	ExternalSource *ExternalSource
	CreatedBy      string
}

// EffectivityWindow bounds when an element or relationship is active.
// Both bounds are optional; nil means unbounded.
type EffectivityWindow struct {
	From *time.Time `json:"effective_from,omitempty"`
	To   *time.Time `json:"effective_to,omitempty"`
}

// Valid returns false when From is after To.
func (w EffectivityWindow) Valid() bool {
	return w.From == nil || w.To == nil || !w.From.After(*w.To)
}

// Contains reports whether t is inside the window.
func (w EffectivityWindow) Contains(t time.Time) bool {
	if w.From != nil && t.Before(*w.From) {
		return false
	}
	if w.To != nil && t.After(*w.To) {
		return false
	}
	return true
}

// Direction selects which end of a relationship the queried entity sits on.
type Direction int

const (
	DirectionAny  Direction = iota // either end
	DirectionEnd1                  // entity is end1
	DirectionEnd2                  // entity is end2
)

// MatchMode combines multiple property matches.
type MatchMode int

const (
	MatchAll MatchMode = iota
	MatchAny
)

// PropertyMatch matches a single stored property. When Regex is set the
// property must be a string fully matching it; otherwise it must equal one of
// Values.
type PropertyMatch struct {
	Name   string
	Values []any
	Regex  string
}

// SortOrder controls the ordering of FindEntities results. Every order is
// total so repeated calls over an unchanged data set page identically.
type SortOrder int

const (
	// SortCreationOldest orders by creation time ascending.
	SortCreationOldest SortOrder = iota
	// SortCreationRecent orders by creation time descending, most recent first.
	SortCreationRecent
)

// EntityQuery describes a FindEntities call.
type EntityQuery struct {
	TypeNames  []string
	Match      []PropertyMatch
	MatchMode  MatchMode
	AnchorGUID *uuid.UUID
	Sort       SortOrder
	StartFrom  int
	PageSize   int // 0 = unbounded
}
