//go:build integration

package migrations

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-governance/pkg/testhelpers"
)

// Test_001_GovernanceMetadata verifies migration 001 creates the entity and
// relationship tables with the expected columns.
func Test_001_GovernanceMetadata(t *testing.T) {
	engineDB := testhelpers.GetGovernanceDB(t)
	ctx := context.Background()

	tables := map[string]map[string]string{
		"gov_entities": {
			"guid":                 "uuid",
			"server_name":          "text",
			"type_name":            "text",
			"properties":           "jsonb",
			"anchor_guid":          "uuid",
			"external_source_guid": "text",
			"version":              "bigint",
			"created_at":           "timestamp with time zone",
		},
		"gov_relationships": {
			"guid":           "uuid",
			"type_name":      "text",
			"end1_guid":      "uuid",
			"end2_guid":      "uuid",
			"properties":     "jsonb",
			"effective_from": "timestamp with time zone",
			"effective_to":   "timestamp with time zone",
		},
	}

	for table, columns := range tables {
		for colName, expectedType := range columns {
			var dataType string
			err := engineDB.DB.Pool.QueryRow(ctx, `
				SELECT data_type
				FROM information_schema.columns
				WHERE table_name = $1
				AND column_name = $2
			`, table, colName).Scan(&dataType)
			require.NoError(t, err, "Column %s.%s should exist", table, colName)
			assert.Equal(t, expectedType, dataType, "Column %s.%s should have type %s", table, colName, expectedType)
		}
	}

	// Verify row level security is enabled and forced
	for table := range tables {
		var enabled, forced bool
		err := engineDB.DB.Pool.QueryRow(ctx, `
			SELECT relrowsecurity, relforcerowsecurity FROM pg_class WHERE relname = $1
		`, table).Scan(&enabled, &forced)
		require.NoError(t, err)
		assert.True(t, enabled, "%s should have row level security enabled", table)
		assert.True(t, forced, "%s should force row level security", table)
	}
}

// Test_001_EffectivityCheck verifies the window constraint rejects reversed windows.
func Test_001_EffectivityCheck(t *testing.T) {
	engineDB := testhelpers.GetGovernanceDB(t)
	ctx := context.Background()

	var exists bool
	err := engineDB.DB.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT FROM pg_constraint WHERE conname = 'chk_gov_relationships_window'
		)
	`).Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists)
}
