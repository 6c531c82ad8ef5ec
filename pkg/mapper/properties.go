// Package mapper converts typed governance properties into the generic
// property bags stored by the metadata repository, and stored entities and
// relationships back into typed elements.
//
// Builders take a replace flag. With replace false (merge update) only the
// fields that carry a value are written, so absent fields keep their stored
// value. With replace true every property of the type is written and unset
// fields are cleared.
package mapper

import (
	"time"

	"github.com/ekaya-inc/ekaya-governance/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-governance/pkg/models"
)

// Stored property names. They must match governance_schema.yaml; ValidateSchema
// checks this at startup.
const (
	PropQualifiedName        = "qualifiedName"
	PropDisplayName          = "displayName"
	PropAdditionalProperties = "additionalProperties"
	PropExtendedProperties   = "extendedProperties"

	PropDocumentIdentifier = "documentIdentifier"
	PropTitle              = "title"
	PropSummary            = "summary"
	PropDescription        = "description"
	PropScope              = "scope"
	PropDomainIdentifier   = "domainIdentifier"
	PropPriority           = "priority"
	PropImplications       = "implications"
	PropOutcomes           = "outcomes"
	PropResults            = "results"
	PropDetails            = "details"
	PropStatus             = "status"
	PropEffectiveFrom      = "effectiveFrom"
	PropEffectiveTo        = "effectiveTo"

	PropURL                = "url"
	PropReferenceVersion   = "referenceVersion"
	PropOwningOrganization = "owningOrganization"

	PropCriteria = "criteria"

	PropRationale = "rationale"

	PropCertificateGUID = "certificateGUID"
	PropLicenseGUID     = "licenseGUID"
	PropStart           = "start"
	PropEnd             = "end"
	PropConditions      = "conditions"
	PropCertifiedBy     = "certifiedBy"
	PropLicensedBy      = "licensedBy"
	PropCustodian       = "custodian"
	PropRecipient       = "recipient"
	PropLicensee        = "licensee"
	PropNotes           = "notes"

	PropReferenceID = "referenceId"
	PropPages       = "pages"

	typeNameSuffix     = "TypeName"
	propertyNameSuffix = "PropertyName"
)

func setString(b *models.PropertyBag, name, v string, replace bool) {
	if v != "" {
		b.Set(name, v)
	} else if replace {
		b.Clear(name)
	}
}

// setInt writes v when supplied, including an explicit 0. Under replace an
// unset value is stored as 0.
func setInt(b *models.PropertyBag, name string, v *int, replace bool) {
	switch {
	case v != nil:
		b.Set(name, *v)
	case replace:
		b.Set(name, 0)
	}
}

func setStrings(b *models.PropertyBag, name string, v []string, replace bool) {
	if len(v) > 0 {
		out := make([]string, len(v))
		copy(out, v)
		b.Set(name, out)
	} else if replace {
		b.Clear(name)
	}
}

func setStringMap(b *models.PropertyBag, name string, v map[string]string, replace bool) {
	if len(v) > 0 {
		out := make(map[string]string, len(v))
		for k, s := range v {
			out[k] = s
		}
		b.Set(name, out)
	} else if replace {
		b.Clear(name)
	}
}

func setMap(b *models.PropertyBag, name string, v map[string]any, replace bool) {
	if len(v) > 0 {
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = item
		}
		b.Set(name, out)
	} else if replace {
		b.Clear(name)
	}
}

func setTime(b *models.PropertyBag, name string, v *time.Time, replace bool) {
	if v != nil {
		b.Set(name, jsonutil.FormatTime(v))
	} else if replace {
		b.Clear(name)
	}
}

// setIdentity writes the three properties of an identity role: the identifier
// under role, then role+"TypeName" and role+"PropertyName".
func setIdentity(b *models.PropertyBag, role string, ref models.IdentityReference, replace bool) {
	setString(b, role, ref.GUID, replace)
	setString(b, role+typeNameSuffix, ref.TypeName, replace)
	setString(b, role+propertyNameSuffix, ref.PropertyName, replace)
}

func identityFrom(props map[string]any, role string) models.IdentityReference {
	return models.IdentityReference{
		GUID:         jsonutil.FlexibleString(props[role]),
		TypeName:     jsonutil.FlexibleString(props[role+typeNameSuffix]),
		PropertyName: jsonutil.FlexibleString(props[role+propertyNameSuffix]),
	}
}

func identityPropertyNames(role string) []string {
	return []string{role, role + typeNameSuffix, role + propertyNameSuffix}
}

// ToElementStub describes any stored entity as a relationship end. Governance
// definitions use their document identifier and title.
func ToElementStub(e *models.Entity) models.ElementStub {
	stub := models.ElementStub{
		GUID:          e.GUID,
		TypeName:      e.TypeName,
		QualifiedName: jsonutil.FlexibleString(e.Properties[PropQualifiedName]),
		DisplayName:   jsonutil.FlexibleString(e.Properties[PropDisplayName]),
	}
	if stub.QualifiedName == "" {
		stub.QualifiedName = jsonutil.FlexibleString(e.Properties[PropDocumentIdentifier])
	}
	if stub.DisplayName == "" {
		stub.DisplayName = jsonutil.FlexibleString(e.Properties[PropTitle])
	}
	return stub
}
