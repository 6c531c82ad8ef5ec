package mapper

import (
	"github.com/ekaya-inc/ekaya-governance/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-governance/pkg/models"
)

var (
	certificationPropertyNames = concat(
		[]string{PropCertificateGUID, PropStart, PropEnd, PropConditions},
		identityPropertyNames(PropCertifiedBy),
		identityPropertyNames(PropCustodian),
		identityPropertyNames(PropRecipient),
		[]string{PropNotes},
	)
	licensePropertyNames = concat(
		[]string{PropLicenseGUID, PropStart, PropEnd, PropConditions},
		identityPropertyNames(PropLicensedBy),
		identityPropertyNames(PropCustodian),
		identityPropertyNames(PropLicensee),
		[]string{PropNotes},
	)
	externalReferenceLinkPropertyNames = []string{PropReferenceID, PropDescription, PropPages}
)

func concat(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

// PeerLinkProperties builds the property bag of a peer definition link.
func PeerLinkProperties(description string) *models.PropertyBag {
	b := models.NewPropertyBag()
	setString(b, PropDescription, description, true)
	return b
}

// SupportingLinkProperties builds the property bag of a supporting definition link.
func SupportingLinkProperties(rationale string) *models.PropertyBag {
	b := models.NewPropertyBag()
	setString(b, PropRationale, rationale, true)
	return b
}

// ToPeerLink converts a peer relationship seen from one end. other is the
// definition at the far end.
func ToPeerLink(r *models.Relationship, other *models.Entity) models.PeerDefinitionLink {
	return models.PeerDefinitionLink{
		RelationshipGUID: r.GUID,
		RelationshipType: r.TypeName,
		Description:      jsonutil.FlexibleString(r.Properties[PropDescription]),
		Window:           models.EffectivityWindow{From: r.EffectiveFrom, To: r.EffectiveTo},
		ExternalSource:   r.ExternalSource,
		Definition:       ToDefinitionSummary(other),
	}
}

// ToSupportingLink converts a supporting relationship seen from one end.
func ToSupportingLink(r *models.Relationship, other *models.Entity) models.SupportingDefinitionLink {
	return models.SupportingDefinitionLink{
		RelationshipGUID: r.GUID,
		RelationshipType: r.TypeName,
		Rationale:        jsonutil.FlexibleString(r.Properties[PropRationale]),
		Window:           models.EffectivityWindow{From: r.EffectiveFrom, To: r.EffectiveTo},
		ExternalSource:   r.ExternalSource,
		Definition:       ToDefinitionSummary(other),
	}
}

// CertificationProperties builds the property bag of a Certification edge.
// The effectivity window is carried by the relationship itself.
func CertificationProperties(p models.CertificationProperties, replace bool) *models.PropertyBag {
	b := models.NewPropertyBag()
	setString(b, PropCertificateGUID, p.CertificateID, replace)
	setTime(b, PropStart, p.StartDate, replace)
	setTime(b, PropEnd, p.EndDate, replace)
	setString(b, PropConditions, p.Conditions, replace)
	setIdentity(b, PropCertifiedBy, p.CertifiedBy, replace)
	setIdentity(b, PropCustodian, p.Custodian, replace)
	setIdentity(b, PropRecipient, p.Recipient, replace)
	setString(b, PropNotes, p.Notes, replace)
	return b
}

// ToCertificationProperties converts the stored properties of a Certification edge.
func ToCertificationProperties(r *models.Relationship) models.CertificationProperties {
	props := r.Properties
	return models.CertificationProperties{
		CertificateID: jsonutil.FlexibleString(props[PropCertificateGUID]),
		StartDate:     jsonutil.FlexibleTime(props[PropStart]),
		EndDate:       jsonutil.FlexibleTime(props[PropEnd]),
		Conditions:    jsonutil.FlexibleString(props[PropConditions]),
		CertifiedBy:   identityFrom(props, PropCertifiedBy),
		Custodian:     identityFrom(props, PropCustodian),
		Recipient:     identityFrom(props, PropRecipient),
		Notes:         jsonutil.FlexibleString(props[PropNotes]),
		EffectiveFrom: r.EffectiveFrom,
		EffectiveTo:   r.EffectiveTo,
	}
}

// LicenseProperties builds the property bag of a License edge.
func LicenseProperties(p models.LicenseProperties, replace bool) *models.PropertyBag {
	b := models.NewPropertyBag()
	setString(b, PropLicenseGUID, p.LicenseID, replace)
	setTime(b, PropStart, p.StartDate, replace)
	setTime(b, PropEnd, p.EndDate, replace)
	setString(b, PropConditions, p.Conditions, replace)
	setIdentity(b, PropLicensedBy, p.LicensedBy, replace)
	setIdentity(b, PropCustodian, p.Custodian, replace)
	setIdentity(b, PropLicensee, p.Licensee, replace)
	setString(b, PropNotes, p.Notes, replace)
	return b
}

// ToLicenseProperties converts the stored properties of a License edge.
func ToLicenseProperties(r *models.Relationship) models.LicenseProperties {
	props := r.Properties
	return models.LicenseProperties{
		LicenseID:     jsonutil.FlexibleString(props[PropLicenseGUID]),
		StartDate:     jsonutil.FlexibleTime(props[PropStart]),
		EndDate:       jsonutil.FlexibleTime(props[PropEnd]),
		Conditions:    jsonutil.FlexibleString(props[PropConditions]),
		LicensedBy:    identityFrom(props, PropLicensedBy),
		Custodian:     identityFrom(props, PropCustodian),
		Licensee:      identityFrom(props, PropLicensee),
		Notes:         jsonutil.FlexibleString(props[PropNotes]),
		EffectiveFrom: r.EffectiveFrom,
		EffectiveTo:   r.EffectiveTo,
	}
}

// ExternalReferenceLinkProperties builds the property bag of an ExternalReferenceLink edge.
func ExternalReferenceLinkProperties(p models.ExternalReferenceLinkProperties, replace bool) *models.PropertyBag {
	b := models.NewPropertyBag()
	setString(b, PropReferenceID, p.LinkID, replace)
	setString(b, PropDescription, p.LinkDescription, replace)
	setString(b, PropPages, p.Pages, replace)
	return b
}

// ToExternalReferenceLinkProperties converts the stored properties of an
// ExternalReferenceLink edge.
func ToExternalReferenceLinkProperties(r *models.Relationship) models.ExternalReferenceLinkProperties {
	return models.ExternalReferenceLinkProperties{
		LinkID:          jsonutil.FlexibleString(r.Properties[PropReferenceID]),
		LinkDescription: jsonutil.FlexibleString(r.Properties[PropDescription]),
		Pages:           jsonutil.FlexibleString(r.Properties[PropPages]),
	}
}
