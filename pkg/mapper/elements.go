package mapper

import (
	"github.com/ekaya-inc/ekaya-governance/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-governance/pkg/models"
)

var externalReferencePropertyNames = []string{
	PropQualifiedName,
	PropDisplayName,
	PropDescription,
	PropURL,
	PropReferenceVersion,
	PropOwningOrganization,
	PropAdditionalProperties,
	PropExtendedProperties,
}

var zonePropertyNames = []string{
	PropQualifiedName,
	PropDisplayName,
	PropDescription,
	PropCriteria,
	PropScope,
	PropDomainIdentifier,
	PropAdditionalProperties,
	PropExtendedProperties,
}

// ExternalReferenceProperties builds the property bag for an external reference.
func ExternalReferenceProperties(p models.ExternalReferenceProperties, replace bool) *models.PropertyBag {
	b := models.NewPropertyBag()
	setString(b, PropQualifiedName, p.QualifiedName, replace)
	setString(b, PropDisplayName, p.DisplayName, replace)
	setString(b, PropDescription, p.ResourceDescription, replace)
	setString(b, PropURL, p.URI, replace)
	setString(b, PropReferenceVersion, p.ReferenceVersion, replace)
	setString(b, PropOwningOrganization, p.Organization, replace)
	setStringMap(b, PropAdditionalProperties, p.AdditionalProperties, replace)
	setMap(b, PropExtendedProperties, p.ExtendedProperties, replace)
	return b
}

// ToExternalReference converts a stored entity.
func ToExternalReference(e *models.Entity) *models.ExternalReference {
	props := e.Properties
	return &models.ExternalReference{
		ElementHeader: e.Header(),
		AnchorGUID:    e.AnchorGUID,
		ExternalReferenceProperties: models.ExternalReferenceProperties{
			QualifiedName:        jsonutil.FlexibleString(props[PropQualifiedName]),
			DisplayName:          jsonutil.FlexibleString(props[PropDisplayName]),
			ResourceDescription:  jsonutil.FlexibleString(props[PropDescription]),
			URI:                  jsonutil.FlexibleString(props[PropURL]),
			ReferenceVersion:     jsonutil.FlexibleString(props[PropReferenceVersion]),
			Organization:         jsonutil.FlexibleString(props[PropOwningOrganization]),
			AdditionalProperties: jsonutil.FlexibleStringMap(props[PropAdditionalProperties]),
			ExtendedProperties:   jsonutil.FlexibleMap(props[PropExtendedProperties]),
		},
	}
}

// ZoneProperties builds the property bag for a governance zone.
func ZoneProperties(p models.GovernanceZoneProperties, replace bool) *models.PropertyBag {
	b := models.NewPropertyBag()
	setString(b, PropQualifiedName, p.QualifiedName, replace)
	setString(b, PropDisplayName, p.DisplayName, replace)
	setString(b, PropDescription, p.Description, replace)
	setString(b, PropCriteria, p.Criteria, replace)
	setString(b, PropScope, p.Scope, replace)
	setInt(b, PropDomainIdentifier, p.DomainIdentifier, replace)
	setStringMap(b, PropAdditionalProperties, p.AdditionalProperties, replace)
	setMap(b, PropExtendedProperties, p.ExtendedProperties, replace)
	return b
}

// ToGovernanceZone converts a stored entity.
func ToGovernanceZone(e *models.Entity) *models.GovernanceZone {
	props := e.Properties
	return &models.GovernanceZone{
		ElementHeader: e.Header(),
		GovernanceZoneProperties: models.GovernanceZoneProperties{
			QualifiedName:        jsonutil.FlexibleString(props[PropQualifiedName]),
			DisplayName:          jsonutil.FlexibleString(props[PropDisplayName]),
			Description:          jsonutil.FlexibleString(props[PropDescription]),
			Criteria:             jsonutil.FlexibleString(props[PropCriteria]),
			Scope:                jsonutil.FlexibleString(props[PropScope]),
			DomainIdentifier:     models.DomainID(jsonutil.FlexibleInt(props[PropDomainIdentifier])),
			AdditionalProperties: jsonutil.FlexibleStringMap(props[PropAdditionalProperties]),
			ExtendedProperties:   jsonutil.FlexibleMap(props[PropExtendedProperties]),
		},
	}
}
