package repositories

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-governance/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-governance/pkg/models"
)

// runMetadataRepositoryContract exercises the behavior every MetadataRepository
// implementation must share. setup returns a repository and a context that
// sees an empty store.
func runMetadataRepositoryContract(t *testing.T, setup func(t *testing.T) (MetadataRepository, context.Context)) {
	addEntity := func(t *testing.T, repo MetadataRepository, ctx context.Context, typeName string, props map[string]any, anchor *uuid.UUID) uuid.UUID {
		t.Helper()
		bag := models.NewPropertyBag()
		for k, v := range props {
			bag.Set(k, v)
		}
		guid, err := repo.AddEntity(ctx, &models.NewEntity{
			TypeName:   typeName,
			Properties: bag,
			AnchorGUID: anchor,
			CreatedBy:  "garygeeke",
		})
		require.NoError(t, err)
		return guid
	}

	t.Run("add and get entity", func(t *testing.T) {
		repo, ctx := setup(t)
		guid := addEntity(t, repo, ctx, models.TypeGovernanceDriver, map[string]any{
			"documentIdentifier": "GD-1",
			"domainIdentifier":   2,
			"implications":       []string{"a", "b"},
		}, nil)

		e, err := repo.GetEntity(ctx, guid)
		require.NoError(t, err)
		require.NotNil(t, e)
		assert.Equal(t, models.TypeGovernanceDriver, e.TypeName)
		assert.Equal(t, "GD-1", e.Properties["documentIdentifier"])
		assert.Equal(t, float64(2), e.Properties["domainIdentifier"])
		assert.Equal(t, []any{"a", "b"}, e.Properties["implications"])
		assert.Equal(t, int64(1), e.Version)
		assert.Equal(t, "garygeeke", e.CreatedBy)
		assert.Nil(t, e.ExternalSource)
	})

	t.Run("get missing entity returns nil", func(t *testing.T) {
		repo, ctx := setup(t)
		e, err := repo.GetEntity(ctx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, e)
	})

	t.Run("update applies bag and bumps version", func(t *testing.T) {
		repo, ctx := setup(t)
		guid := addEntity(t, repo, ctx, models.TypeGovernancePolicy, map[string]any{
			"documentIdentifier": "GP-1", "title": "old", "scope": "all",
		}, nil)

		err := repo.UpdateEntityProperties(ctx, guid, models.NewPropertyBag().Set("title", "new").Clear("scope"), "peterprofile")
		require.NoError(t, err)

		e, err := repo.GetEntity(ctx, guid)
		require.NoError(t, err)
		assert.Equal(t, "new", e.Properties["title"])
		assert.NotContains(t, e.Properties, "scope")
		assert.Equal(t, "GP-1", e.Properties["documentIdentifier"])
		assert.Equal(t, int64(2), e.Version)
		assert.Equal(t, "peterprofile", e.UpdatedBy)
	})

	t.Run("update missing entity", func(t *testing.T) {
		repo, ctx := setup(t)
		err := repo.UpdateEntityProperties(ctx, uuid.New(), models.NewPropertyBag(), "u")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("document identifier unique per type", func(t *testing.T) {
		repo, ctx := setup(t)
		addEntity(t, repo, ctx, models.TypeCertificationType, map[string]any{"documentIdentifier": "CT-1"}, nil)
		addEntity(t, repo, ctx, models.TypeLicenseType, map[string]any{"documentIdentifier": "CT-1"}, nil)

		bag := models.NewPropertyBag().Set("documentIdentifier", "CT-1")
		_, err := repo.AddEntity(ctx, &models.NewEntity{TypeName: models.TypeCertificationType, Properties: bag, CreatedBy: "u"})
		assert.ErrorIs(t, err, apperrors.ErrConflict)
	})

	t.Run("find by regex ordered oldest first with paging", func(t *testing.T) {
		repo, ctx := setup(t)
		var guids []uuid.UUID
		for _, title := range []string{"Data Quality", "Data Retention", "Privacy", "Data Lineage"} {
			guids = append(guids, addEntity(t, repo, ctx, models.TypeGovernanceControl, map[string]any{"title": title}, nil))
		}

		q := models.EntityQuery{
			TypeNames: []string{models.TypeGovernanceControl},
			Match:     []models.PropertyMatch{{Name: "title", Regex: "Data.*"}},
		}
		all, err := repo.FindEntities(ctx, q)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []uuid.UUID{guids[0], guids[1], guids[3]}, entityGUIDs(all))

		q.StartFrom, q.PageSize = 1, 1
		page, err := repo.FindEntities(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{guids[1]}, entityGUIDs(page))

		q.StartFrom, q.PageSize, q.Sort = 0, 0, models.SortCreationRecent
		recent, err := repo.FindEntities(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{guids[3], guids[1], guids[0]}, entityGUIDs(recent))
	})

	t.Run("portable pattern syntax matches alike", func(t *testing.T) {
		repo, ctx := setup(t)
		titles := []string{"Data Quality", "data retention", "Data42 Lineage", "Privacy [EU]"}
		guids := make(map[string]uuid.UUID, len(titles))
		for _, title := range titles {
			guids[title] = addEntity(t, repo, ctx, models.TypeGovernanceControl, map[string]any{"title": title}, nil)
		}

		tests := []struct {
			pattern string
			want    []string
		}{
			{`Data\d+ .*`, []string{"Data42 Lineage"}},
			{`(?:Data|data) .*`, []string{"Data Quality", "data retention"}},
			{`[[:upper:]][a-z]+ Quality`, []string{"Data Quality"}},
			{`Privacy \[EU\]`, []string{"Privacy [EU]"}},
			{`.*?Lineage`, []string{"Data42 Lineage"}},
			{`Data`, nil},
		}
		for _, tt := range tests {
			got, err := repo.FindEntities(ctx, models.EntityQuery{
				TypeNames: []string{models.TypeGovernanceControl},
				Match:     []models.PropertyMatch{{Name: "title", Regex: tt.pattern}},
			})
			require.NoError(t, err, tt.pattern)
			var want []uuid.UUID
			for _, title := range tt.want {
				want = append(want, guids[title])
			}
			assert.ElementsMatch(t, want, entityGUIDs(got), tt.pattern)
		}

		for _, pattern := range []string{`(?i)data.*`, `(?P<w>Data) .*`, `\bData\b.*`} {
			_, err := repo.FindEntities(ctx, models.EntityQuery{
				Match: []models.PropertyMatch{{Name: "title", Regex: pattern}},
			})
			require.Error(t, err, pattern)
			assert.Contains(t, err.Error(), "invalid pattern", pattern)
		}
	})

	t.Run("find by value match any", func(t *testing.T) {
		repo, ctx := setup(t)
		d0 := addEntity(t, repo, ctx, models.TypeGovernanceZone, map[string]any{"domainIdentifier": 0}, nil)
		addEntity(t, repo, ctx, models.TypeGovernanceZone, map[string]any{"domainIdentifier": 1}, nil)
		d2 := addEntity(t, repo, ctx, models.TypeGovernanceZone, map[string]any{"domainIdentifier": 2}, nil)

		got, err := repo.FindEntities(ctx, models.EntityQuery{
			TypeNames: []string{models.TypeGovernanceZone},
			Match:     []models.PropertyMatch{{Name: "domainIdentifier", Values: []any{2, 0}}},
		})
		require.NoError(t, err)
		assert.ElementsMatch(t, []uuid.UUID{d0, d2}, entityGUIDs(got))
	})

	t.Run("relationships and delete cascade", func(t *testing.T) {
		repo, ctx := setup(t)
		asset := addEntity(t, repo, ctx, models.TypeReferenceable, map[string]any{"qualifiedName": "db.orders"}, nil)
		certType := addEntity(t, repo, ctx, models.TypeCertificationType, map[string]any{"documentIdentifier": "CT-9"}, nil)
		owned := addEntity(t, repo, ctx, models.TypeExternalReference, map[string]any{"qualifiedName": "ref:owned"}, &asset)
		shared := addEntity(t, repo, ctx, models.TypeExternalReference, map[string]any{"qualifiedName": "ref:shared"}, nil)

		certGUID, err := repo.AddRelationship(ctx, &models.NewRelationship{
			TypeName:   models.RelCertification,
			End1GUID:   asset,
			End2GUID:   certType,
			Properties: models.NewPropertyBag().Set("certificateGUID", "C-1"),
			CreatedBy:  "u",
		})
		require.NoError(t, err)
		_, err = repo.AddRelationship(ctx, &models.NewRelationship{
			TypeName:  models.RelExternalReferenceLink,
			End1GUID:  asset,
			End2GUID:  shared,
			CreatedBy: "u",
		})
		require.NoError(t, err)

		rel, err := repo.GetRelationship(ctx, certGUID)
		require.NoError(t, err)
		require.NotNil(t, rel)
		assert.Equal(t, models.TypeReferenceable, rel.End1TypeName)
		assert.Equal(t, models.TypeCertificationType, rel.End2TypeName)

		rels, err := repo.GetRelationshipsForEntity(ctx, certType, models.RelCertification, models.DirectionEnd2)
		require.NoError(t, err)
		assert.Len(t, rels, 1)
		rels, err = repo.GetRelationshipsForEntity(ctx, certType, models.RelCertification, models.DirectionEnd1)
		require.NoError(t, err)
		assert.Empty(t, rels)

		require.NoError(t, repo.DeleteEntity(ctx, asset))

		gone, err := repo.GetEntity(ctx, owned)
		require.NoError(t, err)
		assert.Nil(t, gone, "anchored reference should be deleted with its anchor")

		kept, err := repo.GetEntity(ctx, shared)
		require.NoError(t, err)
		assert.NotNil(t, kept, "linked reference should survive")

		rels, err = repo.GetRelationshipsForEntity(ctx, certType, "", models.DirectionAny)
		require.NoError(t, err)
		assert.Empty(t, rels)

		assert.ErrorIs(t, repo.DeleteEntity(ctx, asset), apperrors.ErrNotFound)
	})

	t.Run("relationship to missing end", func(t *testing.T) {
		repo, ctx := setup(t)
		zone := addEntity(t, repo, ctx, models.TypeGovernanceZone, nil, nil)
		_, err := repo.AddRelationship(ctx, &models.NewRelationship{
			TypeName: models.RelZoneHierarchy, End1GUID: zone, End2GUID: uuid.New(), CreatedBy: "u",
		})
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("update and remove relationship", func(t *testing.T) {
		repo, ctx := setup(t)
		a := addEntity(t, repo, ctx, models.TypeGovernanceDriver, nil, nil)
		b := addEntity(t, repo, ctx, models.TypeGovernanceDriver, nil, nil)
		guid, err := repo.AddRelationship(ctx, &models.NewRelationship{
			TypeName:   models.RelGovernanceDriverLink,
			End1GUID:   a,
			End2GUID:   b,
			Properties: models.NewPropertyBag().Set("description", "first"),
			CreatedBy:  "u",
		})
		require.NoError(t, err)

		err = repo.UpdateRelationship(ctx, guid, models.NewPropertyBag().Set("description", "second"), nil, "v")
		require.NoError(t, err)
		rel, err := repo.GetRelationship(ctx, guid)
		require.NoError(t, err)
		assert.Equal(t, "second", rel.Properties["description"])
		assert.Equal(t, int64(2), rel.Version)

		require.NoError(t, repo.RemoveRelationship(ctx, guid))
		assert.ErrorIs(t, repo.RemoveRelationship(ctx, guid), apperrors.ErrNotFound)
		rel, err = repo.GetRelationship(ctx, guid)
		require.NoError(t, err)
		assert.Nil(t, rel)
	})

	t.Run("metadata collection", func(t *testing.T) {
		repo, ctx := setup(t)
		assert.True(t, repo.IsActive())
		c, err := repo.MetadataCollection(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, c.ID)
	})
}

func entityGUIDs(entities []*models.Entity) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(entities))
	for _, e := range entities {
		out = append(out, e.GUID)
	}
	return out
}
