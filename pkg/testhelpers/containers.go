// Package testhelpers provides containers for governance integration tests.
package testhelpers

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-governance/pkg/database"
)

const (
	// PostgresImage is the PostgreSQL image used for integration tests.
	PostgresImage = "postgres:16-alpine"

	testDatabase = "governance_test"
	// appRole is the unprivileged role the repositories connect as.
	appRole     = "governance_app"
	appPassword = "app_password"
)

// TestDB holds a shared test database container and a superuser connection pool.
type TestDB struct {
	Container testcontainers.Container
	Pool      *pgxpool.Pool
	ConnStr   string
}

var (
	sharedTestDB     *TestDB
	sharedTestDBOnce sync.Once
	sharedTestDBErr  error
)

// GetTestDB returns a shared PostgreSQL container for integration tests.
// The container is created once and reused across all tests in the run.
func GetTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedTestDBOnce.Do(func() {
		sharedTestDB, sharedTestDBErr = startPostgres(context.Background())
	})
	if sharedTestDBErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedTestDBErr)
	}
	return sharedTestDB
}

func startPostgres(ctx context.Context) (*TestDB, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        PostgresImage,
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_DB":       testDatabase,
				"POSTGRES_USER":     "ekaya",
				"POSTGRES_PASSWORD": "test_password",
			},
			// The server logs readiness twice: once for the init run, once for real.
			WaitingFor: wait.ForAll(
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
				wait.ForListeningPort("5432/tcp"),
			).WithDeadline(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	connStr, err := connString(ctx, container, url.UserPassword("ekaya", "test_password"))
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pingUntil(ctx, pool, 10*time.Second); err != nil {
		pool.Close()
		_ = container.Terminate(ctx)
		return nil, err
	}

	return &TestDB{Container: container, Pool: pool, ConnStr: connStr}, nil
}

func connString(ctx context.Context, container testcontainers.Container, user *url.Userinfo) (string, error) {
	host, err := container.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return "", fmt.Errorf("failed to get container port: %w", err)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     user,
		Host:     fmt.Sprintf("%s:%s", host, port.Port()),
		Path:     testDatabase,
		RawQuery: "sslmode=disable",
	}
	return u.String(), nil
}

func pingUntil(ctx context.Context, pool *pgxpool.Pool, limit time.Duration) error {
	deadline := time.Now().Add(limit)
	for {
		err := pool.Ping(ctx)
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("database did not answer within %s: %w", limit, err)
		}
		time.Sleep(250 * time.Millisecond)
	}
}

// GovernanceDB is the metadata repository database with migrations applied,
// connected as an unprivileged role so row level security applies.
type GovernanceDB struct {
	DB      *database.DB
	ConnStr string
}

var (
	sharedGovernanceDB     *GovernanceDB
	sharedGovernanceDBOnce sync.Once
	sharedGovernanceDBErr  error
)

// GetGovernanceDB returns a shared, migrated metadata repository database.
func GetGovernanceDB(t *testing.T) *GovernanceDB {
	t.Helper()

	testDB := GetTestDB(t)
	sharedGovernanceDBOnce.Do(func() {
		sharedGovernanceDB, sharedGovernanceDBErr = setupGovernanceDB(context.Background(), testDB)
	})
	if sharedGovernanceDBErr != nil {
		t.Fatalf("Failed to setup governance database: %v", sharedGovernanceDBErr)
	}
	return sharedGovernanceDB
}

func setupGovernanceDB(ctx context.Context, testDB *TestDB) (*GovernanceDB, error) {
	admin, err := database.NewConnection(ctx, &database.Config{URL: testDB.ConnStr, MaxConnections: 2})
	if err != nil {
		return nil, fmt.Errorf("failed to connect as admin: %w", err)
	}
	defer admin.Close()

	sqlDB := admin.SQLDB()
	defer sqlDB.Close()
	if err := database.RunMigrations(sqlDB, MigrationsPath(), zap.NewNop()); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Superusers bypass row level security; the repositories run as appRole.
	_, err = admin.Exec(ctx, fmt.Sprintf(`
		DO $$ BEGIN
			IF NOT EXISTS (SELECT FROM pg_roles WHERE rolname = '%[1]s') THEN
				CREATE ROLE %[1]s LOGIN PASSWORD '%[2]s';
			END IF;
		END $$;
		GRANT SELECT, INSERT, UPDATE, DELETE ON gov_entities, gov_relationships TO %[1]s;
		GRANT USAGE ON ALL SEQUENCES IN SCHEMA public TO %[1]s;`, appRole, appPassword))
	if err != nil {
		return nil, fmt.Errorf("failed to create application role: %w", err)
	}

	connStr, err := connString(ctx, testDB.Container, url.UserPassword(appRole, appPassword))
	if err != nil {
		return nil, err
	}
	db, err := database.NewConnection(ctx, &database.Config{URL: connStr, MaxConnections: 5})
	if err != nil {
		return nil, fmt.Errorf("failed to connect as %s: %w", appRole, err)
	}
	return &GovernanceDB{DB: db, ConnStr: connStr}, nil
}

// ServerScope returns a context bound to the tenant scope of a governance
// server name no other test uses, so the test starts from an empty store.
// The server's rows are deleted and the scope released when the test ends.
func (g *GovernanceDB) ServerScope(t *testing.T) context.Context {
	t.Helper()
	ctx := context.Background()

	scope, err := g.DB.WithTenant(ctx, "test-"+uuid.NewString())
	if err != nil {
		t.Fatalf("failed to create tenant scope: %v", err)
	}
	t.Cleanup(func() {
		_, _ = scope.Conn.Exec(context.Background(), "DELETE FROM gov_entities")
		scope.Close()
	})
	return database.SetTenantScope(ctx, scope)
}

// MigrationsPath returns the absolute path of the repository's migrations directory.
func MigrationsPath() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "migrations")
}
