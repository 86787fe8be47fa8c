package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestPostgresMigrations applies the schema to a real PostgreSQL server started
// in a container and checks the dialect-sensitive paths.
func TestPostgresMigrations(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		t.Skip("Docker/Podman not available, skipping integration tests")
	}
	defer provider.Close()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("rackbook_test"),
		postgres.WithUsername("rackbook"),
		postgres.WithPassword("rackbook_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Errorf("Failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := Open(ctx, Config{Driver: DriverPostgres, DSN: connStr, MaxConns: 5, MinConns: 1})
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, RunMigrations(ctx, db, quietLogger()))
	require.NoError(t, RunMigrations(ctx, db, quietLogger()))

	now := time.Now().UTC()
	_, err = db.ExecContext(ctx, "INSERT INTO locations (id, name, created_at) VALUES ($1, $2, $3)", "l1", "Lab", now)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "INSERT INTO locations (id, name, created_at) VALUES ($1, $2, $3)", "l2", "Lab", now)
	assert.True(t, IsUniqueViolation(err))

	_, err = db.ExecContext(ctx,
		"INSERT INTO items (id, name, quantity, removed, rack_id, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)",
		"i1", "Orphan", 1, false, "missing", now, now)
	assert.True(t, IsForeignKeyViolation(err))
}
