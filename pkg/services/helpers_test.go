package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-governance/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-governance/pkg/models"
	"github.com/ekaya-inc/ekaya-governance/pkg/repositories"
)

const testServer = "cocoMDS1"

type testEnv struct {
	repo *repositories.MemoryMetadataRepository
	inst *ServiceInstance
	ctx  context.Context
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, Dependencies{Logger: zap.NewNop()})
}

// newTestEnvWith fills in the repository and schema of deps.
func newTestEnvWith(t *testing.T, deps Dependencies) *testEnv {
	t.Helper()

	schema, err := models.LoadSchema()
	require.NoError(t, err)

	repo := repositories.NewMemoryMetadataRepository(testServer)
	deps.Repository = repo
	deps.Schema = schema

	inst, err := NewServiceInstance(testServer, deps)
	require.NoError(t, err)

	return &testEnv{
		repo: repo,
		inst: inst,
		ctx:  models.WithUser(context.Background(), testServer, "user1"),
	}
}

func assertKind(t *testing.T, err error, kind apperrors.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, apperrors.KindOf(err), "error: %v", err)
}
