package models

import (
	"time"

	"github.com/google/uuid"
)

// DefinitionStatus is the lifecycle status of a governance definition.
// Transitions are caller-directed: any status may be set from any other.
type DefinitionStatus string

const (
	StatusDraft      DefinitionStatus = "DRAFT"
	StatusProposed   DefinitionStatus = "PROPOSED"
	StatusActive     DefinitionStatus = "ACTIVE"
	StatusDeprecated DefinitionStatus = "DEPRECATED"
	StatusOther      DefinitionStatus = "OTHER"
)

// IsValid returns true for the five known statuses.
func (s DefinitionStatus) IsValid() bool {
	switch s {
	case StatusDraft, StatusProposed, StatusActive, StatusDeprecated, StatusOther:
		return true
	default:
		return false
	}
}

// Governance tiers. A supporting link goes from one tier to the next.
const (
	TierDriver  = 1
	TierPolicy  = 2
	TierControl = 3
)

// DefinitionKind describes one governance definition subtype.
type DefinitionKind struct {
	TypeName         string
	Tier             int
	PeerRelationship string
}

var definitionKinds = []DefinitionKind{
	{TypeName: TypeGovernanceDriver, Tier: TierDriver, PeerRelationship: RelGovernanceDriverLink},
	{TypeName: TypeGovernancePolicy, Tier: TierPolicy, PeerRelationship: RelGovernancePolicyLink},
	{TypeName: TypeGovernanceControl, Tier: TierControl, PeerRelationship: RelGovernanceControlLink},
	{TypeName: TypeCertificationType, Tier: TierControl, PeerRelationship: RelCertificationTypeLink},
	{TypeName: TypeLicenseType, Tier: TierControl, PeerRelationship: RelLicenseTypeLink},
}

// LookupDefinitionKind returns the kind registered for typeName.
func LookupDefinitionKind(typeName string) (DefinitionKind, bool) {
	for _, k := range definitionKinds {
		if k.TypeName == typeName {
			return k, true
		}
	}
	return DefinitionKind{}, false
}

// DefinitionTypeNames returns the type names of every definition kind.
func DefinitionTypeNames() []string {
	names := make([]string, 0, len(definitionKinds))
	for _, k := range definitionKinds {
		names = append(names, k.TypeName)
	}
	return names
}

// PeerRelationshipKind returns the definition type a peer relationship joins.
func PeerRelationshipKind(relationshipName string) (string, bool) {
	for _, k := range definitionKinds {
		if k.PeerRelationship == relationshipName {
			return k.TypeName, true
		}
	}
	return "", false
}

// SupportingRule binds a supporting relationship to the tier of its supported end.
type SupportingRule struct {
	FromTier int
	ToTier   int
}

var supportingRules = map[string]SupportingRule{
	RelGovernanceResponse:       {FromTier: TierDriver, ToTier: TierPolicy},
	RelGovernanceImplementation: {FromTier: TierPolicy, ToTier: TierControl},
}

// LookupSupportingRule returns the tier rule of a supporting relationship.
func LookupSupportingRule(relationshipName string) (SupportingRule, bool) {
	r, ok := supportingRules[relationshipName]
	return r, ok
}

// SupportingRelationshipNames lists the supporting relationship types.
func SupportingRelationshipNames() []string {
	return []string{RelGovernanceResponse, RelGovernanceImplementation}
}

// GovernanceDefinitionProperties is the caller-supplied property set of a
// governance definition. Status is managed separately by SetStatus.
// A nil DomainIdentifier keeps the stored domain on a merge update; 0 means
// all domains.
type GovernanceDefinitionProperties struct {
	DocumentIdentifier   string            `json:"document_identifier"`
	Title                string            `json:"title"`
	Summary              string            `json:"summary,omitempty"`
	Description          string            `json:"description,omitempty"`
	Scope                string            `json:"scope,omitempty"`
	DomainIdentifier     *int              `json:"domain_identifier,omitempty"`
	Priority             string            `json:"priority,omitempty"`
	Implications         []string          `json:"implications,omitempty"`
	Outcomes             []string          `json:"outcomes,omitempty"`
	Results              []string          `json:"results,omitempty"`
	Details              string            `json:"details,omitempty"`
	AdditionalProperties map[string]string `json:"additional_properties,omitempty"`
	ExtendedProperties   map[string]any    `json:"extended_properties,omitempty"`
	EffectiveFrom        *time.Time        `json:"effective_from,omitempty"`
	EffectiveTo          *time.Time        `json:"effective_to,omitempty"`
}

// GovernanceDefinition is a driver, policy, control, certification type or license type.
type GovernanceDefinition struct {
	ElementHeader
	Status DefinitionStatus `json:"status"`
	GovernanceDefinitionProperties
}

// DefinitionSummary identifies a governance definition at the far end of a link.
type DefinitionSummary struct {
	GUID               uuid.UUID        `json:"guid"`
	TypeName           string           `json:"type_name"`
	DocumentIdentifier string           `json:"document_identifier"`
	Title              string           `json:"title"`
	Status             DefinitionStatus `json:"status"`
}

// PeerDefinitionLink is a symmetric link between two definitions of the same kind.
type PeerDefinitionLink struct {
	RelationshipGUID uuid.UUID         `json:"relationship_guid"`
	RelationshipType string            `json:"relationship_type"`
	Description      string            `json:"description,omitempty"`
	Window           EffectivityWindow `json:"effectivity"`
	ExternalSource   *ExternalSource   `json:"external_source,omitempty"`
	Definition       DefinitionSummary `json:"definition"`
}

// SupportingDefinitionLink is a directed delegation from a definition to one
// in the next tier.
type SupportingDefinitionLink struct {
	RelationshipGUID uuid.UUID         `json:"relationship_guid"`
	RelationshipType string            `json:"relationship_type"`
	Rationale        string            `json:"rationale,omitempty"`
	Window           EffectivityWindow `json:"effectivity"`
	ExternalSource   *ExternalSource   `json:"external_source,omitempty"`
	Definition       DefinitionSummary `json:"definition"`
}
