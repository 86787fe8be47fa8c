package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	Statements  []string
}

// GetMigrations returns all schema migrations in order. The DDL is limited to
// the subset PostgreSQL and SQLite share; timestamps are always written by the
// application in UTC.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users and sessions tables",
			Statements: []string{
				`CREATE TABLE IF NOT EXISTS users (
					id TEXT PRIMARY KEY,
					authsch_id TEXT NOT NULL UNIQUE,
					name TEXT,
					email TEXT,
					role TEXT NOT NULL DEFAULT 'VIEWER',
					created_at TIMESTAMP NOT NULL,
					updated_at TIMESTAMP NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS sessions (
					token_hash TEXT PRIMARY KEY,
					user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					created_at TIMESTAMP NOT NULL,
					expires_at TIMESTAMP NOT NULL,
					last_seen_at TIMESTAMP NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id)`,
				`CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at)`,
			},
		},
		{
			Version:     2,
			Description: "Create inventory tables",
			Statements: []string{
				`CREATE TABLE IF NOT EXISTS locations (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL UNIQUE,
					created_at TIMESTAMP NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS racks (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					qr_code TEXT NOT NULL UNIQUE,
					location_id TEXT REFERENCES locations(id) ON DELETE SET NULL,
					created_at TIMESTAMP NOT NULL,
					updated_at TIMESTAMP NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS items (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					description TEXT,
					quantity INTEGER NOT NULL DEFAULT 1 CHECK (quantity >= 0),
					removed BOOLEAN NOT NULL DEFAULT FALSE,
					rack_id TEXT NOT NULL REFERENCES racks(id) ON DELETE CASCADE,
					created_at TIMESTAMP NOT NULL,
					updated_at TIMESTAMP NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_racks_location ON racks(location_id)`,
				`CREATE INDEX IF NOT EXISTS idx_items_rack ON items(rack_id)`,
			},
		},
		{
			// audit_logs carries no foreign keys: deleting a user, rack or item
			// must never rewrite an existing entry.
			Version:     3,
			Description: "Create audit log table",
			Statements: []string{
				`CREATE TABLE IF NOT EXISTS audit_logs (
					id TEXT PRIMARY KEY,
					action TEXT NOT NULL,
					user_id TEXT,
					rack_id TEXT,
					item_id TEXT,
					details TEXT,
					created_at TIMESTAMP NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_audit_logs_created ON audit_logs(created_at)`,
				`CREATE INDEX IF NOT EXISTS idx_audit_logs_user ON audit_logs(user_id)`,
			},
		},
	}
}

// LatestVersion returns the highest migration version this binary knows about.
func LatestVersion() int {
	latest := 0
	for _, m := range GetMigrations() {
		if m.Version > latest {
			latest = m.Version
		}
	}
	return latest
}

// RunMigrations applies every pending migration, each in its own transaction.
func RunMigrations(ctx context.Context, db *sql.DB, logger logrus.FieldLogger) error {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}

	for _, migration := range GetMigrations() {
		if applied[migration.Version] {
			continue
		}

		log := logger.WithFields(logrus.Fields{
			"version":     migration.Version,
			"description": migration.Description,
		})
		log.Info("running migration")

		err := WithTx(ctx, db, func(tx *sql.Tx) error {
			for _, stmt := range migration.Statements {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
				}
			}

			if _, err := tx.ExecContext(ctx,
				"INSERT INTO schema_migrations (version, description, applied_at) VALUES ($1, $2, $3)",
				migration.Version, migration.Description, time.Now().UTC(),
			); err != nil {
				return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}

		log.Info("migration completed")
	}

	return nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}
