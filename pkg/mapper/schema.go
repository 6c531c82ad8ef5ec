package mapper

import (
	"errors"
	"fmt"

	"github.com/ekaya-inc/ekaya-governance/pkg/models"
)

// ValidateSchema checks that every property name the mapper writes is declared
// for the type it is written to. A mismatch would otherwise be silently dropped
// by the repository, so main refuses to start on error.
func ValidateSchema(s *models.TypeSchema) error {
	var errs []error

	checkEntity := func(typeName string, names []string) {
		if !s.HasEntityType(typeName) {
			errs = append(errs, fmt.Errorf("entity type %s not declared", typeName))
			return
		}
		for _, n := range names {
			if !s.HasEntityProperty(typeName, n) {
				errs = append(errs, fmt.Errorf("entity type %s has no property %s", typeName, n))
			}
		}
	}
	checkRelationship := func(relName string, names []string) {
		if !s.HasRelationshipType(relName) {
			errs = append(errs, fmt.Errorf("relationship type %s not declared", relName))
			return
		}
		for _, n := range names {
			if !s.HasRelationshipProperty(relName, n) {
				errs = append(errs, fmt.Errorf("relationship type %s has no property %s", relName, n))
			}
		}
	}

	for _, kind := range models.DefinitionTypeNames() {
		checkEntity(kind, append(definitionPropertyNames, PropStatus))
	}
	checkEntity(models.TypeExternalReference, externalReferencePropertyNames)
	checkEntity(models.TypeGovernanceZone, zonePropertyNames)
	checkEntity(models.TypeReferenceable, []string{PropQualifiedName, PropDisplayName})

	for _, kind := range models.DefinitionTypeNames() {
		k, _ := models.LookupDefinitionKind(kind)
		checkRelationship(k.PeerRelationship, []string{PropDescription})
	}
	for _, rel := range models.SupportingRelationshipNames() {
		checkRelationship(rel, []string{PropRationale})
	}
	checkRelationship(models.RelCertification, certificationPropertyNames)
	checkRelationship(models.RelLicense, licensePropertyNames)
	checkRelationship(models.RelExternalReferenceLink, externalReferenceLinkPropertyNames)
	checkRelationship(models.RelZoneHierarchy, nil)
	checkRelationship(models.RelGovernedBy, nil)

	return errors.Join(errs...)
}
