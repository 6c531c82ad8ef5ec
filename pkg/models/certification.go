package models

import (
	"time"

	"github.com/google/uuid"
)

// IdentityReference points at the element that plays a role in a
// certification or license: the identifier, its type and the property the
// identifier is taken from.
type IdentityReference struct {
	GUID         string `json:"guid,omitempty"`
	TypeName     string `json:"type_name,omitempty"`
	PropertyName string `json:"property_name,omitempty"`
}

// IsZero returns true when no part of the reference is set.
func (r IdentityReference) IsZero() bool {
	return r.GUID == "" && r.TypeName == "" && r.PropertyName == ""
}

// CertificationProperties is the property set of a Certification relationship.
type CertificationProperties struct {
	CertificateID string            `json:"certificate_id,omitempty"`
	StartDate     *time.Time        `json:"start_date,omitempty"`
	EndDate       *time.Time        `json:"end_date,omitempty"`
	Conditions    string            `json:"conditions,omitempty"`
	CertifiedBy   IdentityReference `json:"certified_by"`
	Custodian     IdentityReference `json:"custodian"`
	Recipient     IdentityReference `json:"recipient"`
	Notes         string            `json:"notes,omitempty"`
	EffectiveFrom *time.Time        `json:"effective_from,omitempty"`
	EffectiveTo   *time.Time        `json:"effective_to,omitempty"`
}

// Certification is an element certified against a certification type.
type Certification struct {
	RelationshipGUID  uuid.UUID               `json:"relationship_guid"`
	Element           ElementStub             `json:"element"`
	CertificationType DefinitionSummary       `json:"certification_type"`
	Properties        CertificationProperties `json:"properties"`
	ExternalSource    *ExternalSource         `json:"external_source,omitempty"`
	CreatedBy         string                  `json:"created_by"`
	CreatedAt         time.Time               `json:"created_at"`
	UpdatedAt         time.Time               `json:"updated_at"`
}

// LicenseProperties is the property set of a License relationship.
type LicenseProperties struct {
	LicenseID     string            `json:"license_id,omitempty"`
	StartDate     *time.Time        `json:"start_date,omitempty"`
	EndDate       *time.Time        `json:"end_date,omitempty"`
	Conditions    string            `json:"conditions,omitempty"`
	LicensedBy    IdentityReference `json:"licensed_by"`
	Custodian     IdentityReference `json:"custodian"`
	Licensee      IdentityReference `json:"licensee"`
	Notes         string            `json:"notes,omitempty"`
	EffectiveFrom *time.Time        `json:"effective_from,omitempty"`
	EffectiveTo   *time.Time        `json:"effective_to,omitempty"`
}

// License is an element licensed under a license type.
type License struct {
	RelationshipGUID uuid.UUID         `json:"relationship_guid"`
	Element          ElementStub       `json:"element"`
	LicenseType      DefinitionSummary `json:"license_type"`
	Properties       LicenseProperties `json:"properties"`
	ExternalSource   *ExternalSource   `json:"external_source,omitempty"`
	CreatedBy        string            `json:"created_by"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}
