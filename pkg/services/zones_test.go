package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-governance/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-governance/pkg/models"
)

func createZone(t *testing.T, env *testEnv, name string) uuid.UUID {
	t.Helper()
	guid, err := env.inst.Zones.Create(env.ctx, models.GovernanceZoneProperties{QualifiedName: name, DisplayName: name})
	require.NoError(t, err)
	return guid
}

func TestGovernanceZone_Scenario(t *testing.T) {
	env := newTestEnv(t)
	z1 := createZone(t, env, "Z1")
	z2 := createZone(t, env, "Z2")

	require.NoError(t, env.inst.Zones.LinkZonesInHierarchy(env.ctx, z1, z2))

	def2, err := env.inst.Zones.GetZoneDefinition(env.ctx, z2)
	require.NoError(t, err)
	require.NotNil(t, def2.Parent)
	assert.Equal(t, z1, def2.Parent.GUID)
	assert.Equal(t, "Z1", def2.Parent.QualifiedName)
	assert.Empty(t, def2.Children)

	def1, err := env.inst.Zones.GetZoneDefinition(env.ctx, z1)
	require.NoError(t, err)
	assert.Nil(t, def1.Parent)
	require.Len(t, def1.Children, 1)
	assert.Equal(t, z2, def1.Children[0].GUID)
	assert.Equal(t, "Z1", def1.QualifiedName)
}

func TestGovernanceZone_SingleParent(t *testing.T) {
	env := newTestEnv(t)
	z1 := createZone(t, env, "Z1")
	z2 := createZone(t, env, "Z2")
	z3 := createZone(t, env, "Z3")

	require.NoError(t, env.inst.Zones.LinkZonesInHierarchy(env.ctx, z1, z2))
	require.NoError(t, env.inst.Zones.LinkZonesInHierarchy(env.ctx, z1, z2), "relinking the same parent is a no-op")

	err := env.inst.Zones.LinkZonesInHierarchy(env.ctx, z3, z2)
	assertKind(t, err, apperrors.KindInvalidParameter)

	def, err := env.inst.Zones.GetZoneDefinition(env.ctx, z1)
	require.NoError(t, err)
	assert.Len(t, def.Children, 1)

	// After unlinking, the child may move.
	require.NoError(t, env.inst.Zones.UnlinkZonesInHierarchy(env.ctx, z1, z2))
	require.NoError(t, env.inst.Zones.UnlinkZonesInHierarchy(env.ctx, z1, z2))
	require.NoError(t, env.inst.Zones.LinkZonesInHierarchy(env.ctx, z3, z2))

	def, err = env.inst.Zones.GetZoneDefinition(env.ctx, z2)
	require.NoError(t, err)
	require.NotNil(t, def.Parent)
	assert.Equal(t, z3, def.Parent.GUID)
}

func TestGovernanceZone_RejectsCycles(t *testing.T) {
	env := newTestEnv(t)
	z1 := createZone(t, env, "Z1")
	z2 := createZone(t, env, "Z2")
	z3 := createZone(t, env, "Z3")

	require.NoError(t, env.inst.Zones.LinkZonesInHierarchy(env.ctx, z1, z2))
	require.NoError(t, env.inst.Zones.LinkZonesInHierarchy(env.ctx, z2, z3))

	assertKind(t, env.inst.Zones.LinkZonesInHierarchy(env.ctx, z3, z1), apperrors.KindInvalidParameter)
	assertKind(t, env.inst.Zones.LinkZonesInHierarchy(env.ctx, z1, z1), apperrors.KindInvalidParameter)

	policy, err := env.inst.Definitions.Create(env.ctx, models.TypeGovernancePolicy, policyProps("POL-1", "Policy"))
	require.NoError(t, err)
	assertKind(t, env.inst.Zones.LinkZonesInHierarchy(env.ctx, policy, z1), apperrors.KindUnrecognizedGUID)
}

func TestGovernanceZone_GovernedBy(t *testing.T) {
	env := newTestEnv(t)
	zone := createZone(t, env, "Z1")
	policy, err := env.inst.Definitions.Create(env.ctx, models.TypeGovernancePolicy, policyProps("POL-1", "Policy"))
	require.NoError(t, err)
	ct, err := env.inst.Certifications.Types().Create(env.ctx, policyProps("CT-1", "Cert"))
	require.NoError(t, err)

	require.NoError(t, env.inst.Zones.LinkDefinitionToZone(env.ctx, policy, zone))
	require.NoError(t, env.inst.Zones.LinkDefinitionToZone(env.ctx, policy, zone))
	require.NoError(t, env.inst.Zones.LinkDefinitionToZone(env.ctx, ct, zone))

	def, err := env.inst.Zones.GetZoneDefinition(env.ctx, zone)
	require.NoError(t, err)
	require.Len(t, def.Definitions, 2)
	var docIDs []string
	for _, d := range def.Definitions {
		docIDs = append(docIDs, d.DocumentIdentifier)
	}
	assert.ElementsMatch(t, []string{"POL-1", "CT-1"}, docIDs)

	assertKind(t, env.inst.Zones.LinkDefinitionToZone(env.ctx, zone, zone), apperrors.KindUnrecognizedGUID)

	require.NoError(t, env.inst.Zones.UnlinkDefinitionFromZone(env.ctx, policy, zone))
	require.NoError(t, env.inst.Zones.UnlinkDefinitionFromZone(env.ctx, policy, zone))

	def, err = env.inst.Zones.GetZoneDefinition(env.ctx, zone)
	require.NoError(t, err)
	require.Len(t, def.Definitions, 1)
	assert.Equal(t, ct, def.Definitions[0].GUID)
}

func TestGovernanceZone_QualifiedNameIsUnique(t *testing.T) {
	env := newTestEnv(t)
	z1 := createZone(t, env, "Z1")
	z2 := createZone(t, env, "Z2")

	_, err := env.inst.Zones.Create(env.ctx, models.GovernanceZoneProperties{QualifiedName: "Z1"})
	assertKind(t, err, apperrors.KindInvalidParameter)

	err = env.inst.Zones.Update(env.ctx, z2, models.GovernanceZoneProperties{QualifiedName: "Z1"}, true)
	assertKind(t, err, apperrors.KindInvalidParameter)

	// Keeping its own name is fine.
	require.NoError(t, env.inst.Zones.Update(env.ctx, z1, models.GovernanceZoneProperties{QualifiedName: "Z1", Criteria: "PII"}, true))

	_, err = env.inst.Zones.Create(env.ctx, models.GovernanceZoneProperties{})
	assertKind(t, err, apperrors.KindInvalidParameter)
}

func TestGovernanceZone_UpdateGetDelete(t *testing.T) {
	env := newTestEnv(t)
	z1, err := env.inst.Zones.Create(env.ctx, models.GovernanceZoneProperties{
		QualifiedName:    "Z1",
		DisplayName:      "Zone one",
		Description:      "Finance data",
		Criteria:         "Finance",
		DomainIdentifier: models.DomainID(2),
	})
	require.NoError(t, err)
	z2 := createZone(t, env, "Z2")
	require.NoError(t, env.inst.Zones.LinkZonesInHierarchy(env.ctx, z1, z2))

	require.NoError(t, env.inst.Zones.Update(env.ctx, z1, models.GovernanceZoneProperties{Scope: "EMEA"}, true))
	got, err := env.inst.Zones.Get(env.ctx, z1)
	require.NoError(t, err)
	assert.Equal(t, "EMEA", got.Scope)
	assert.Equal(t, "Finance", got.Criteria)
	require.NotNil(t, got.DomainIdentifier)
	assert.Equal(t, 2, *got.DomainIdentifier)

	require.NoError(t, env.inst.Zones.Update(env.ctx, z1, models.GovernanceZoneProperties{DomainIdentifier: models.DomainID(0)}, true))
	got, err = env.inst.Zones.Get(env.ctx, z1)
	require.NoError(t, err)
	assert.Equal(t, 0, *got.DomainIdentifier, "merge stores an explicit zero domain")
	assert.Equal(t, "EMEA", got.Scope)

	require.NoError(t, env.inst.Zones.Update(env.ctx, z1, models.GovernanceZoneProperties{QualifiedName: "Z1"}, false))
	got, err = env.inst.Zones.Get(env.ctx, z1)
	require.NoError(t, err)
	assert.Empty(t, got.Scope)
	assert.Empty(t, got.Criteria)
	assert.Equal(t, 0, *got.DomainIdentifier)

	byName, err := env.inst.Zones.GetByName(env.ctx, "Z2")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, z2, byName.GUID)

	byName, err = env.inst.Zones.GetByName(env.ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, byName)

	require.NoError(t, env.inst.Zones.Delete(env.ctx, z1))
	def, err := env.inst.Zones.GetZoneDefinition(env.ctx, z2)
	require.NoError(t, err)
	assert.Nil(t, def.Parent, "deleting a zone removes its hierarchy links")

	_, err = env.inst.Zones.Get(env.ctx, z1)
	assertKind(t, err, apperrors.KindUnrecognizedGUID)
}

func TestGovernanceZone_Find(t *testing.T) {
	env := newTestEnv(t)
	for _, z := range []struct {
		name   string
		domain int
	}{{"finance.emea", 1}, {"finance.apac", 2}, {"shared", 0}} {
		_, err := env.inst.Zones.Create(env.ctx, models.GovernanceZoneProperties{QualifiedName: z.name, DomainIdentifier: models.DomainID(z.domain)})
		require.NoError(t, err)
	}

	found, err := env.inst.Zones.FindZones(env.ctx, `finance\..*`, 0, 0)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "finance.emea", found[0].QualifiedName)

	found, err = env.inst.Zones.GetZonesForDomain(env.ctx, 1, 0, 0)
	require.NoError(t, err)
	var names []string
	for _, z := range found {
		names = append(names, z.QualifiedName)
	}
	assert.ElementsMatch(t, []string{"finance.emea", "shared"}, names)

	found, err = env.inst.Zones.GetZonesForDomain(env.ctx, 0, 0, 0)
	require.NoError(t, err)
	assert.Len(t, found, 3)

	_, err = env.inst.Zones.FindZones(env.ctx, "[", 0, 0)
	assertKind(t, err, apperrors.KindInvalidParameter)
}
