package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-governance/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-governance/pkg/mapper"
	"github.com/ekaya-inc/ekaya-governance/pkg/models"
)

// addAsset stores a plain element that certifications and licenses can target.
func addAsset(t *testing.T, env *testEnv, qualifiedName string) uuid.UUID {
	t.Helper()
	guid, err := env.repo.AddEntity(env.ctx, &models.NewEntity{
		TypeName:   "Asset",
		Properties: models.NewPropertyBag().Set(mapper.PropQualifiedName, qualifiedName),
		CreatedBy:  "user1",
	})
	require.NoError(t, err)
	return guid
}

func TestCertification_Scenario(t *testing.T) {
	env := newTestEnv(t)
	e1 := addAsset(t, env, "E1")

	ct, err := env.inst.Certifications.Types().Create(env.ctx, policyProps("CT-1", "Data Quality Cert"))
	require.NoError(t, err)

	certGUID, err := env.inst.Certifications.Certify(env.ctx, e1, ct, models.CertificationProperties{
		CertificateID: "C-100",
		CertifiedBy:   models.IdentityReference{GUID: "auditor-1", TypeName: "Person", PropertyName: "guid"},
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, certGUID)

	certified, err := env.inst.Certifications.GetCertifiedElements(env.ctx, ct, models.QueryOptions{})
	require.NoError(t, err)
	require.Len(t, certified, 1)
	assert.Equal(t, e1, certified[0].Element.GUID)
	assert.Equal(t, "E1", certified[0].Element.QualifiedName)

	certs, err := env.inst.Certifications.GetCertifications(env.ctx, e1, models.QueryOptions{})
	require.NoError(t, err)
	require.Len(t, certs, 1)
	assert.Equal(t, certGUID, certs[0].RelationshipGUID)
	assert.Equal(t, "CT-1", certs[0].CertificationType.DocumentIdentifier)
	assert.Equal(t, "C-100", certs[0].Properties.CertificateID)
	assert.Equal(t, "auditor-1", certs[0].Properties.CertifiedBy.GUID)
	assert.Equal(t, "user1", certs[0].CreatedBy)
}

func TestCertification_DuplicatesAllowed(t *testing.T) {
	env := newTestEnv(t)
	e1 := addAsset(t, env, "E1")
	ct, err := env.inst.Certifications.Types().Create(env.ctx, policyProps("CT-1", "Cert"))
	require.NoError(t, err)

	first, err := env.inst.Certifications.Certify(env.ctx, e1, ct, models.CertificationProperties{CertificateID: "C-100"})
	require.NoError(t, err)
	second, err := env.inst.Certifications.Certify(env.ctx, e1, ct, models.CertificationProperties{CertificateID: "C-100"})
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	certs, err := env.inst.Certifications.GetCertifications(env.ctx, e1, models.QueryOptions{})
	require.NoError(t, err)
	assert.Len(t, certs, 2)
}

func TestCertification_Validation(t *testing.T) {
	env := newTestEnv(t)
	e1 := addAsset(t, env, "E1")
	ct, err := env.inst.Certifications.Types().Create(env.ctx, policyProps("CT-1", "Cert"))
	require.NoError(t, err)
	lt, err := env.inst.Licenses.Types().Create(env.ctx, policyProps("LT-1", "Licence"))
	require.NoError(t, err)

	_, err = env.inst.Certifications.Certify(env.ctx, e1, lt, models.CertificationProperties{})
	assertKind(t, err, apperrors.KindUnrecognizedGUID)

	_, err = env.inst.Certifications.Certify(env.ctx, uuid.New(), ct, models.CertificationProperties{})
	assertKind(t, err, apperrors.KindUnrecognizedGUID)

	_, err = env.inst.Certifications.Certify(env.ctx, ct, ct, models.CertificationProperties{})
	assertKind(t, err, apperrors.KindInvalidParameter)

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(-time.Hour)
	_, err = env.inst.Certifications.Certify(env.ctx, e1, ct, models.CertificationProperties{EffectiveFrom: &from, EffectiveTo: &to})
	assertKind(t, err, apperrors.KindInvalidParameter)
}

func TestCertification_Update(t *testing.T) {
	env := newTestEnv(t)
	e1 := addAsset(t, env, "E1")
	ct, err := env.inst.Certifications.Types().Create(env.ctx, policyProps("CT-1", "Cert"))
	require.NoError(t, err)

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	certGUID, err := env.inst.Certifications.Certify(env.ctx, e1, ct, models.CertificationProperties{
		CertificateID: "C-100",
		Notes:         "initial",
		EffectiveFrom: &from,
	})
	require.NoError(t, err)

	require.NoError(t, env.inst.Certifications.UpdateCertification(env.ctx, certGUID,
		models.CertificationProperties{Conditions: "annual review"}, true))

	certs, err := env.inst.Certifications.GetCertifications(env.ctx, e1, models.QueryOptions{})
	require.NoError(t, err)
	require.Len(t, certs, 1)
	assert.Equal(t, "C-100", certs[0].Properties.CertificateID)
	assert.Equal(t, "initial", certs[0].Properties.Notes)
	assert.Equal(t, "annual review", certs[0].Properties.Conditions)
	require.NotNil(t, certs[0].Properties.EffectiveFrom)
	assert.True(t, from.Equal(*certs[0].Properties.EffectiveFrom))

	require.NoError(t, env.inst.Certifications.UpdateCertification(env.ctx, certGUID,
		models.CertificationProperties{CertificateID: "C-200"}, false))

	certs, err = env.inst.Certifications.GetCertifications(env.ctx, e1, models.QueryOptions{})
	require.NoError(t, err)
	require.Len(t, certs, 1)
	assert.Equal(t, "C-200", certs[0].Properties.CertificateID)
	assert.Empty(t, certs[0].Properties.Notes)
	assert.Empty(t, certs[0].Properties.Conditions)
	assert.Nil(t, certs[0].Properties.EffectiveFrom)

	err = env.inst.Certifications.UpdateCertification(env.ctx, uuid.New(), models.CertificationProperties{}, true)
	assertKind(t, err, apperrors.KindUnrecognizedGUID)
}

func TestDecertify(t *testing.T) {
	env := newTestEnv(t)
	e1 := addAsset(t, env, "E1")
	ct, err := env.inst.Certifications.Types().Create(env.ctx, policyProps("CT-1", "Cert"))
	require.NoError(t, err)
	certGUID, err := env.inst.Certifications.Certify(env.ctx, e1, ct, models.CertificationProperties{CertificateID: "C-100"})
	require.NoError(t, err)

	require.NoError(t, env.inst.Certifications.Decertify(env.ctx, certGUID))
	assert.NoError(t, env.inst.Certifications.Decertify(env.ctx, certGUID), "a missing certification is not an error")
	assert.NoError(t, env.inst.Certifications.Decertify(env.ctx, uuid.New()))

	certs, err := env.inst.Certifications.GetCertifications(env.ctx, e1, models.QueryOptions{})
	require.NoError(t, err)
	assert.Empty(t, certs)

	// A license GUID is not a certification.
	lt, err := env.inst.Licenses.Types().Create(env.ctx, policyProps("LT-1", "Licence"))
	require.NoError(t, err)
	licGUID, err := env.inst.Licenses.LicenseElement(env.ctx, e1, lt, models.LicenseProperties{LicenseID: "L-1"})
	require.NoError(t, err)
	assertKind(t, env.inst.Certifications.Decertify(env.ctx, licGUID), apperrors.KindUnrecognizedGUID)
}

func TestCertificationTypes_AreDefinitions(t *testing.T) {
	env := newTestEnv(t)
	ct, err := env.inst.Certifications.Types().Create(env.ctx, policyProps("CT-1", "Cert"))
	require.NoError(t, err)
	assert.Equal(t, models.TypeCertificationType, env.inst.Certifications.Types().TypeName())

	def, err := env.inst.Definitions.Get(env.ctx, ct)
	require.NoError(t, err)
	assert.Equal(t, models.TypeCertificationType, def.TypeName)

	found, err := env.inst.Certifications.Types().FindByDocumentID(env.ctx, "CT-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, ct, found.GUID)

	// The typed handler does not accept other kinds.
	policy, err := env.inst.Definitions.Create(env.ctx, models.TypeGovernancePolicy, policyProps("POL-1", "Policy"))
	require.NoError(t, err)
	_, err = env.inst.Certifications.Types().Get(env.ctx, policy)
	assertKind(t, err, apperrors.KindUnrecognizedGUID)
	assertKind(t, env.inst.Certifications.Types().Delete(env.ctx, policy), apperrors.KindUnrecognizedGUID)

	require.NoError(t, env.inst.Certifications.Types().SetStatus(env.ctx, ct, models.StatusActive))
	require.NoError(t, env.inst.Certifications.Types().Delete(env.ctx, ct))
}

func TestLicense_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	e1 := addAsset(t, env, "E1")
	lt, err := env.inst.Licenses.Types().Create(env.ctx, policyProps("LT-1", "Open data licence"))
	require.NoError(t, err)

	licGUID, err := env.inst.Licenses.LicenseElement(env.ctx, e1, lt, models.LicenseProperties{
		LicenseID: "L-1",
		Licensee:  models.IdentityReference{GUID: "team-a"},
	})
	require.NoError(t, err)

	licensed, err := env.inst.Licenses.GetLicensedElements(env.ctx, lt, models.QueryOptions{})
	require.NoError(t, err)
	require.Len(t, licensed, 1)
	assert.Equal(t, e1, licensed[0].Element.GUID)

	licenses, err := env.inst.Licenses.GetLicenses(env.ctx, e1, models.QueryOptions{})
	require.NoError(t, err)
	require.Len(t, licenses, 1)
	assert.Equal(t, "LT-1", licenses[0].LicenseType.DocumentIdentifier)
	assert.Equal(t, "L-1", licenses[0].Properties.LicenseID)
	assert.Equal(t, "team-a", licenses[0].Properties.Licensee.GUID)

	require.NoError(t, env.inst.Licenses.UpdateLicense(env.ctx, licGUID, models.LicenseProperties{Notes: "renewed"}, true))
	licenses, err = env.inst.Licenses.GetLicenses(env.ctx, e1, models.QueryOptions{})
	require.NoError(t, err)
	require.Len(t, licenses, 1)
	assert.Equal(t, "renewed", licenses[0].Properties.Notes)
	assert.Equal(t, "L-1", licenses[0].Properties.LicenseID)

	require.NoError(t, env.inst.Licenses.UnlicenseElement(env.ctx, licGUID))
	assert.NoError(t, env.inst.Licenses.UnlicenseElement(env.ctx, licGUID))

	licenses, err = env.inst.Licenses.GetLicenses(env.ctx, e1, models.QueryOptions{})
	require.NoError(t, err)
	assert.Empty(t, licenses)
}

func TestLicense_DeletingTypeRemovesLicenses(t *testing.T) {
	env := newTestEnv(t)
	e1 := addAsset(t, env, "E1")
	lt, err := env.inst.Licenses.Types().Create(env.ctx, policyProps("LT-1", "Licence"))
	require.NoError(t, err)
	_, err = env.inst.Licenses.LicenseElement(env.ctx, e1, lt, models.LicenseProperties{LicenseID: "L-1"})
	require.NoError(t, err)

	require.NoError(t, env.inst.Licenses.Types().Delete(env.ctx, lt))

	licenses, err := env.inst.Licenses.GetLicenses(env.ctx, e1, models.QueryOptions{})
	require.NoError(t, err)
	assert.Empty(t, licenses)
}
