package models

import (
	"github.com/google/uuid"
)

// ExternalReferenceProperties describes a resource outside the metadata
// repository. QualifiedName is the resource id used by FindByResourceID.
type ExternalReferenceProperties struct {
	QualifiedName        string            `json:"qualified_name"`
	DisplayName          string            `json:"display_name,omitempty"`
	ResourceDescription  string            `json:"resource_description,omitempty"`
	URI                  string            `json:"uri,omitempty"`
	ReferenceVersion     string            `json:"reference_version,omitempty"`
	Organization         string            `json:"organization,omitempty"`
	AdditionalProperties map[string]string `json:"additional_properties,omitempty"`
	ExtendedProperties   map[string]any    `json:"extended_properties,omitempty"`
}

// ExternalReference is a stored external reference. AnchorGUID is set when the
// reference is owned by (and deleted with) another element.
type ExternalReference struct {
	ElementHeader
	AnchorGUID *uuid.UUID `json:"anchor_guid,omitempty"`
	ExternalReferenceProperties
}

// ExternalReferenceLinkProperties are the per-attachment properties.
type ExternalReferenceLinkProperties struct {
	LinkID          string `json:"link_id,omitempty"`
	LinkDescription string `json:"link_description,omitempty"`
	Pages           string `json:"pages,omitempty"`
}

// ExternalReferenceAttachment is one ExternalReferenceLink edge.
type ExternalReferenceAttachment struct {
	RelationshipGUID uuid.UUID                       `json:"relationship_guid"`
	Element          ElementStub                     `json:"element"`
	Reference        *ExternalReference              `json:"reference,omitempty"`
	LinkProperties   ExternalReferenceLinkProperties `json:"link_properties"`
	ExternalSource   *ExternalSource                 `json:"external_source,omitempty"`
}
