package mapper

import (
	"github.com/ekaya-inc/ekaya-governance/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-governance/pkg/models"
)

var definitionPropertyNames = []string{
	PropDocumentIdentifier,
	PropTitle,
	PropSummary,
	PropDescription,
	PropScope,
	PropDomainIdentifier,
	PropPriority,
	PropImplications,
	PropOutcomes,
	PropResults,
	PropDetails,
	PropAdditionalProperties,
	PropExtendedProperties,
	PropEffectiveFrom,
	PropEffectiveTo,
}

// DefinitionProperties builds the property bag for a governance definition.
// Status is not included; see StatusProperties.
func DefinitionProperties(p models.GovernanceDefinitionProperties, replace bool) *models.PropertyBag {
	b := models.NewPropertyBag()
	setString(b, PropDocumentIdentifier, p.DocumentIdentifier, replace)
	setString(b, PropTitle, p.Title, replace)
	setString(b, PropSummary, p.Summary, replace)
	setString(b, PropDescription, p.Description, replace)
	setString(b, PropScope, p.Scope, replace)
	setInt(b, PropDomainIdentifier, p.DomainIdentifier, replace)
	setString(b, PropPriority, p.Priority, replace)
	setStrings(b, PropImplications, p.Implications, replace)
	setStrings(b, PropOutcomes, p.Outcomes, replace)
	setStrings(b, PropResults, p.Results, replace)
	setString(b, PropDetails, p.Details, replace)
	setStringMap(b, PropAdditionalProperties, p.AdditionalProperties, replace)
	setMap(b, PropExtendedProperties, p.ExtendedProperties, replace)
	setTime(b, PropEffectiveFrom, p.EffectiveFrom, replace)
	setTime(b, PropEffectiveTo, p.EffectiveTo, replace)
	return b
}

// StatusProperties builds the single-property bag written by SetStatus.
func StatusProperties(status models.DefinitionStatus) *models.PropertyBag {
	return models.NewPropertyBag().Set(PropStatus, string(status))
}

// ToGovernanceDefinition converts a stored entity. Missing properties become
// zero values.
func ToGovernanceDefinition(e *models.Entity) *models.GovernanceDefinition {
	props := e.Properties
	return &models.GovernanceDefinition{
		ElementHeader: e.Header(),
		Status:        models.DefinitionStatus(jsonutil.FlexibleString(props[PropStatus])),
		GovernanceDefinitionProperties: models.GovernanceDefinitionProperties{
			DocumentIdentifier:   jsonutil.FlexibleString(props[PropDocumentIdentifier]),
			Title:                jsonutil.FlexibleString(props[PropTitle]),
			Summary:              jsonutil.FlexibleString(props[PropSummary]),
			Description:          jsonutil.FlexibleString(props[PropDescription]),
			Scope:                jsonutil.FlexibleString(props[PropScope]),
			DomainIdentifier:     models.DomainID(jsonutil.FlexibleInt(props[PropDomainIdentifier])),
			Priority:             jsonutil.FlexibleString(props[PropPriority]),
			Implications:         jsonutil.FlexibleStringSlice(props[PropImplications]),
			Outcomes:             jsonutil.FlexibleStringSlice(props[PropOutcomes]),
			Results:              jsonutil.FlexibleStringSlice(props[PropResults]),
			Details:              jsonutil.FlexibleString(props[PropDetails]),
			AdditionalProperties: jsonutil.FlexibleStringMap(props[PropAdditionalProperties]),
			ExtendedProperties:   jsonutil.FlexibleMap(props[PropExtendedProperties]),
			EffectiveFrom:        jsonutil.FlexibleTime(props[PropEffectiveFrom]),
			EffectiveTo:          jsonutil.FlexibleTime(props[PropEffectiveTo]),
		},
	}
}

// ToDefinitionSummary converts a stored entity to the summary used in link listings.
func ToDefinitionSummary(e *models.Entity) models.DefinitionSummary {
	return models.DefinitionSummary{
		GUID:               e.GUID,
		TypeName:           e.TypeName,
		DocumentIdentifier: jsonutil.FlexibleString(e.Properties[PropDocumentIdentifier]),
		Title:              jsonutil.FlexibleString(e.Properties[PropTitle]),
		Status:             models.DefinitionStatus(jsonutil.FlexibleString(e.Properties[PropStatus])),
	}
}
