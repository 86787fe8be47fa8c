package database

import (
	"context"
	"database/sql"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// NewTestDB opens a private in-memory SQLite database with every migration
// applied. The database is closed when the test ends.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := Open(context.Background(), Config{
		Driver: DriverSQLite,
		DSN:    SQLiteMemoryDSN("rackbook_" + uuid.NewString()),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	if err := RunMigrations(context.Background(), db, logger); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}
