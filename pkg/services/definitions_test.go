package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/ekaya-inc/ekaya-governance/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-governance/pkg/models"
)

func policyProps(docID, title string) models.GovernanceDefinitionProperties {
	return models.GovernanceDefinitionProperties{DocumentIdentifier: docID, Title: title}
}

func TestGovernanceDefinition_CreateRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(1, 0, 0)

	props := models.GovernanceDefinitionProperties{
		DocumentIdentifier:   "POL-1",
		Title:                "Retain customer data for seven years",
		Summary:              "Retention",
		Description:          "All customer records are retained for seven years.",
		Scope:                "Customer systems",
		DomainIdentifier:     models.DomainID(3),
		Priority:             "High",
		Implications:         []string{"Storage grows"},
		Outcomes:             []string{"Audit ready"},
		Results:              []string{"Fewer findings"},
		Details:              "See the retention handbook.",
		AdditionalProperties: map[string]string{"owner": "legal"},
		EffectiveFrom:        &from,
		EffectiveTo:          &to,
	}

	guid, err := env.inst.Definitions.Create(env.ctx, models.TypeGovernancePolicy, props)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, guid)

	got, err := env.inst.Definitions.Get(env.ctx, guid)
	require.NoError(t, err)
	assert.Equal(t, guid, got.GUID)
	assert.Equal(t, models.TypeGovernancePolicy, got.TypeName)
	assert.Equal(t, models.StatusDraft, got.Status)
	assert.Equal(t, "user1", got.CreatedBy)

	assert.Equal(t, props.DocumentIdentifier, got.DocumentIdentifier)
	assert.Equal(t, props.Title, got.Title)
	assert.Equal(t, props.Summary, got.Summary)
	assert.Equal(t, props.Description, got.Description)
	assert.Equal(t, props.Scope, got.Scope)
	assert.Equal(t, props.DomainIdentifier, got.DomainIdentifier)
	assert.Equal(t, props.Priority, got.Priority)
	assert.Equal(t, props.Implications, got.Implications)
	assert.Equal(t, props.Outcomes, got.Outcomes)
	assert.Equal(t, props.Results, got.Results)
	assert.Equal(t, props.Details, got.Details)
	assert.Equal(t, props.AdditionalProperties, got.AdditionalProperties)
	require.NotNil(t, got.EffectiveFrom)
	require.NotNil(t, got.EffectiveTo)
	assert.True(t, from.Equal(*got.EffectiveFrom))
	assert.True(t, to.Equal(*got.EffectiveTo))
}

func TestGovernanceDefinition_CreateValidation(t *testing.T) {
	env := newTestEnv(t)
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	before := from.Add(-time.Hour)

	tests := []struct {
		name     string
		typeName string
		props    models.GovernanceDefinitionProperties
		kind     apperrors.Kind
	}{
		{"unknown type", "Spreadsheet", policyProps("X-1", "x"), apperrors.KindInvalidParameter},
		{"zone is not a definition", models.TypeGovernanceZone, policyProps("X-1", "x"), apperrors.KindInvalidParameter},
		{"missing document id", models.TypeGovernancePolicy, policyProps("", "x"), apperrors.KindInvalidParameter},
		{"blank title", models.TypeGovernancePolicy, policyProps("X-1", "  "), apperrors.KindInvalidParameter},
		{"negative domain", models.TypeGovernancePolicy, models.GovernanceDefinitionProperties{
			DocumentIdentifier: "X-1", Title: "x", DomainIdentifier: models.DomainID(-1),
		}, apperrors.KindInvalidParameter},
		{"inverted window", models.TypeGovernancePolicy, models.GovernanceDefinitionProperties{
			DocumentIdentifier: "X-1", Title: "x", EffectiveFrom: &from, EffectiveTo: &before,
		}, apperrors.KindInvalidParameter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.inst.Definitions.Create(env.ctx, tt.typeName, tt.props)
			assertKind(t, err, tt.kind)
		})
	}
}

func TestGovernanceDefinition_DuplicateDocumentIdentifier(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.inst.Definitions.Create(env.ctx, models.TypeGovernancePolicy, policyProps("POL-1", "First"))
	require.NoError(t, err)

	_, err = env.inst.Definitions.Create(env.ctx, models.TypeGovernancePolicy, policyProps("POL-1", "Second"))
	assertKind(t, err, apperrors.KindInvalidParameter)

	// Document identifiers are unique per kind only.
	_, err = env.inst.Definitions.Create(env.ctx, models.TypeGovernanceDriver, policyProps("POL-1", "A driver"))
	assert.NoError(t, err)
}

func TestGovernanceDefinition_MergeUpdate(t *testing.T) {
	env := newTestEnv(t)
	guid, err := env.inst.Definitions.Create(env.ctx, models.TypeGovernancePolicy, models.GovernanceDefinitionProperties{
		DocumentIdentifier: "POL-1",
		Title:              "Original",
		Summary:            "Keep me",
		Scope:              "Everything",
	})
	require.NoError(t, err)

	before, err := env.inst.Definitions.Get(env.ctx, guid)
	require.NoError(t, err)

	t.Run("empty delta changes nothing", func(t *testing.T) {
		require.NoError(t, env.inst.Definitions.Update(env.ctx, guid, "", models.GovernanceDefinitionProperties{}, true))

		after, err := env.inst.Definitions.Get(env.ctx, guid)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("supplied fields change and the rest stay", func(t *testing.T) {
		require.NoError(t, env.inst.Definitions.Update(env.ctx, guid, models.TypeGovernancePolicy,
			models.GovernanceDefinitionProperties{Title: "Renamed"}, true))

		after, err := env.inst.Definitions.Get(env.ctx, guid)
		require.NoError(t, err)
		assert.Equal(t, "Renamed", after.Title)
		assert.Equal(t, "Keep me", after.Summary)
		assert.Equal(t, "Everything", after.Scope)
		assert.Equal(t, "POL-1", after.DocumentIdentifier)
		assert.Equal(t, models.StatusDraft, after.Status)
	})

	t.Run("explicit zero domain is stored", func(t *testing.T) {
		require.NoError(t, env.inst.Definitions.Update(env.ctx, guid, "",
			models.GovernanceDefinitionProperties{DomainIdentifier: models.DomainID(5)}, true))
		after, err := env.inst.Definitions.Get(env.ctx, guid)
		require.NoError(t, err)
		assert.Equal(t, 5, *after.DomainIdentifier)

		require.NoError(t, env.inst.Definitions.Update(env.ctx, guid, "",
			models.GovernanceDefinitionProperties{DomainIdentifier: models.DomainID(0)}, true))
		after, err = env.inst.Definitions.Get(env.ctx, guid)
		require.NoError(t, err)
		assert.Equal(t, 0, *after.DomainIdentifier)
		assert.Equal(t, "Renamed", after.Title, "other fields stay")
	})
}

func TestGovernanceDefinition_ReplaceUpdateClearsUnspecified(t *testing.T) {
	env := newTestEnv(t)
	guid, err := env.inst.Definitions.Create(env.ctx, models.TypeGovernancePolicy, models.GovernanceDefinitionProperties{
		DocumentIdentifier: "POL-1",
		Title:              "Original",
		Summary:            "Goes away",
		DomainIdentifier:   models.DomainID(4),
		Outcomes:           []string{"Goes away"},
	})
	require.NoError(t, err)

	require.NoError(t, env.inst.Definitions.Update(env.ctx, guid, "", policyProps("POL-1", "Replaced"), false))

	got, err := env.inst.Definitions.Get(env.ctx, guid)
	require.NoError(t, err)
	assert.Equal(t, "Replaced", got.Title)
	assert.Empty(t, got.Summary)
	assert.Equal(t, 0, *got.DomainIdentifier)
	assert.Empty(t, got.Outcomes)
	assert.Equal(t, models.StatusDraft, got.Status, "status is not a definition property")
}

func TestGovernanceDefinition_UpdateErrors(t *testing.T) {
	env := newTestEnv(t)
	guid, err := env.inst.Definitions.Create(env.ctx, models.TypeGovernancePolicy, policyProps("POL-1", "Policy"))
	require.NoError(t, err)
	_, err = env.inst.Definitions.Create(env.ctx, models.TypeGovernancePolicy, policyProps("POL-2", "Other"))
	require.NoError(t, err)

	err = env.inst.Definitions.Update(env.ctx, guid, models.TypeGovernanceDriver, policyProps("POL-1", "x"), true)
	assertKind(t, err, apperrors.KindInvalidParameter)

	err = env.inst.Definitions.Update(env.ctx, guid, "", models.GovernanceDefinitionProperties{Title: "no doc id"}, false)
	assertKind(t, err, apperrors.KindInvalidParameter)

	err = env.inst.Definitions.Update(env.ctx, guid, "", models.GovernanceDefinitionProperties{DocumentIdentifier: "POL-2"}, true)
	assertKind(t, err, apperrors.KindInvalidParameter)

	err = env.inst.Definitions.Update(env.ctx, uuid.New(), "", policyProps("POL-9", "x"), true)
	assertKind(t, err, apperrors.KindUnrecognizedGUID)
}

func TestGovernanceDefinition_SetStatusIsUnconstrained(t *testing.T) {
	env := newTestEnv(t)
	guid, err := env.inst.Definitions.Create(env.ctx, models.TypeGovernanceControl, policyProps("CTL-1", "Control"))
	require.NoError(t, err)

	for _, status := range []models.DefinitionStatus{models.StatusDraft, models.StatusActive, models.StatusDraft} {
		require.NoError(t, env.inst.Definitions.SetStatus(env.ctx, guid, status))

		got, err := env.inst.Definitions.Get(env.ctx, guid)
		require.NoError(t, err)
		assert.Equal(t, status, got.Status)
	}

	assertKind(t, env.inst.Definitions.SetStatus(env.ctx, guid, ""), apperrors.KindInvalidParameter)
	assertKind(t, env.inst.Definitions.SetStatus(env.ctx, guid, "RETIRED"), apperrors.KindInvalidParameter)
	assertKind(t, env.inst.Definitions.SetStatus(env.ctx, uuid.New(), models.StatusActive), apperrors.KindUnrecognizedGUID)
}

func TestGovernanceDefinition_Delete(t *testing.T) {
	env := newTestEnv(t)
	driver, err := env.inst.Definitions.Create(env.ctx, models.TypeGovernanceDriver, policyProps("DRV-1", "Regulation"))
	require.NoError(t, err)
	policy, err := env.inst.Definitions.Create(env.ctx, models.TypeGovernancePolicy, policyProps("POL-1", "Policy"))
	require.NoError(t, err)
	require.NoError(t, env.inst.Definitions.LinkSupporting(env.ctx, driver, policy, models.RelGovernanceResponse, "because", models.EffectivityWindow{}))

	require.NoError(t, env.inst.Definitions.Delete(env.ctx, policy))

	_, err = env.inst.Definitions.Get(env.ctx, policy)
	assertKind(t, err, apperrors.KindUnrecognizedGUID)

	links, err := env.inst.Definitions.GetSupporting(env.ctx, driver, models.QueryOptions{})
	require.NoError(t, err)
	assert.Empty(t, links)

	assertKind(t, env.inst.Definitions.Delete(env.ctx, policy), apperrors.KindUnrecognizedGUID)
}

func TestGovernanceDefinition_GetChecksType(t *testing.T) {
	env := newTestEnv(t)
	zone, err := env.inst.Zones.Create(env.ctx, models.GovernanceZoneProperties{QualifiedName: "Z1"})
	require.NoError(t, err)

	_, err = env.inst.Definitions.Get(env.ctx, zone)
	assertKind(t, err, apperrors.KindUnrecognizedGUID)

	_, err = env.inst.Definitions.Get(env.ctx, uuid.Nil)
	assertKind(t, err, apperrors.KindUnrecognizedGUID)
}

func TestGovernanceDefinition_FindByDocumentID(t *testing.T) {
	env := newTestEnv(t)
	guid, err := env.inst.Definitions.Create(env.ctx, models.TypeGovernancePolicy, policyProps("POL-1", "Policy"))
	require.NoError(t, err)

	got, err := env.inst.Definitions.FindByDocumentID(env.ctx, models.TypeGovernancePolicy, "POL-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, guid, got.GUID)

	got, err = env.inst.Definitions.FindByDocumentID(env.ctx, "", "POL-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, guid, got.GUID)

	got, err = env.inst.Definitions.FindByDocumentID(env.ctx, models.TypeGovernanceDriver, "POL-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = env.inst.Definitions.FindByDocumentID(env.ctx, models.TypeGovernancePolicy, "POL")
	require.NoError(t, err)
	assert.Nil(t, got, "document identifiers match exactly")

	_, err = env.inst.Definitions.FindByDocumentID(env.ctx, models.TypeGovernancePolicy, "")
	assertKind(t, err, apperrors.KindInvalidParameter)
}

func TestGovernanceDefinition_FindByTitle(t *testing.T) {
	env := newTestEnv(t)
	for i, title := range []string{"Data retention", "Data quality", "Access review"} {
		_, err := env.inst.Definitions.Create(env.ctx, models.TypeGovernancePolicy, policyProps(string(rune('A'+i)), title))
		require.NoError(t, err)
	}

	found, err := env.inst.Definitions.FindByTitle(env.ctx, models.TypeGovernancePolicy, "Data.*", 0, 0)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "Data retention", found[0].Title)
	assert.Equal(t, "Data quality", found[1].Title)

	found, err = env.inst.Definitions.FindByTitle(env.ctx, models.TypeGovernancePolicy, "Data", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, found, "the pattern must match the whole title")

	_, err = env.inst.Definitions.FindByTitle(env.ctx, models.TypeGovernancePolicy, "(", 0, 0)
	assertKind(t, err, apperrors.KindInvalidParameter)

	_, err = env.inst.Definitions.FindByTitle(env.ctx, models.TypeGovernancePolicy, ".*", -1, 0)
	assertKind(t, err, apperrors.KindInvalidParameter)
}

func TestGovernanceDefinition_FindByTitlePagination(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		env := newTestEnv(t)
		n := rapid.IntRange(0, 12).Draw(rt, "n")
		pageSize := rapid.IntRange(1, 5).Draw(rt, "pageSize")
		for i := 0; i < n; i++ {
			_, err := env.inst.Definitions.Create(env.ctx, models.TypeGovernancePolicy,
				policyProps(uuid.NewString(), "Policy"))
			if err != nil {
				rt.Fatalf("create: %v", err)
			}
		}

		all, err := env.inst.Definitions.FindByTitle(env.ctx, models.TypeGovernancePolicy, "Policy", 0, 0)
		if err != nil {
			rt.Fatalf("find all: %v", err)
		}

		var paged []*models.GovernanceDefinition
		for start := 0; ; start += pageSize {
			page, err := env.inst.Definitions.FindByTitle(env.ctx, models.TypeGovernancePolicy, "Policy", start, pageSize)
			if err != nil {
				rt.Fatalf("find page at %d: %v", start, err)
			}
			paged = append(paged, page...)
			if len(page) < pageSize {
				break
			}
		}

		if len(paged) != len(all) {
			rt.Fatalf("paged %d results, unpaged %d", len(paged), len(all))
		}
		for i := range all {
			if paged[i].GUID != all[i].GUID {
				rt.Fatalf("result %d differs", i)
			}
		}
	})
}

func TestGovernanceDefinition_FindByDomain(t *testing.T) {
	env := newTestEnv(t)
	create := func(docID string, domain int) uuid.UUID {
		guid, err := env.inst.Definitions.Create(env.ctx, models.TypeGovernancePolicy, models.GovernanceDefinitionProperties{
			DocumentIdentifier: docID, Title: docID, DomainIdentifier: models.DomainID(domain),
		})
		require.NoError(t, err)
		return guid
	}
	all := create("ALL", 0)
	one := create("ONE", 1)
	create("TWO", 2)

	found, err := env.inst.Definitions.FindByDomain(env.ctx, models.TypeGovernancePolicy, 1, 0, 0)
	require.NoError(t, err)
	var guids []uuid.UUID
	for _, d := range found {
		guids = append(guids, d.GUID)
	}
	assert.ElementsMatch(t, []uuid.UUID{all, one}, guids)

	found, err = env.inst.Definitions.FindByDomain(env.ctx, models.TypeGovernancePolicy, 0, 0, 0)
	require.NoError(t, err)
	assert.Len(t, found, 3)

	_, err = env.inst.Definitions.FindByDomain(env.ctx, models.TypeGovernancePolicy, -2, 0, 0)
	assertKind(t, err, apperrors.KindInvalidParameter)
}

func TestGovernanceDefinition_MaxPageSize(t *testing.T) {
	env := newTestEnvWith(t, Dependencies{MaxPageSize: 10})

	_, err := env.inst.Definitions.FindByTitle(env.ctx, "", ".*", 0, 11)
	assertKind(t, err, apperrors.KindInvalidParameter)

	_, err = env.inst.Definitions.FindByTitle(env.ctx, "", ".*", 0, 10)
	assert.NoError(t, err)
}

func TestGovernanceDefinition_RequiresUserAndRepository(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.inst.Definitions.Create(models.WithUser(env.ctx, testServer, ""), models.TypeGovernancePolicy, policyProps("POL-1", "x"))
	assertKind(t, err, apperrors.KindUserNotAuthorized)

	env.repo.SetActive(false)
	_, err = env.inst.Definitions.Create(env.ctx, models.TypeGovernancePolicy, policyProps("POL-1", "x"))
	assertKind(t, err, apperrors.KindPropertyServer)
	assert.ErrorIs(t, err, apperrors.ErrUnavailable)
}

func TestGovernanceDefinition_PageSizeZeroIsUncapped(t *testing.T) {
	env := newTestEnvWith(t, Dependencies{Logger: zap.NewNop(), MaxPageSize: 2})
	for _, doc := range []string{"POL-1", "POL-2", "POL-3", "POL-4"} {
		_, err := env.inst.Definitions.Create(env.ctx, models.TypeGovernancePolicy, policyProps(doc, "Privacy "+doc))
		require.NoError(t, err)
	}

	all, err := env.inst.Definitions.FindByTitle(env.ctx, "", "Privacy.*", 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4, "page size 0 returns every match regardless of the cap")

	page, err := env.inst.Definitions.FindByTitle(env.ctx, "", "Privacy.*", 1, 2)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	_, err = env.inst.Definitions.FindByTitle(env.ctx, "", "Privacy.*", 0, 3)
	assertKind(t, err, apperrors.KindInvalidParameter)
}
