package audit

import (
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// GetMigrations returns all available migrations in order
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_predictions_table",
			SQL: `
				CREATE TABLE IF NOT EXISTS predictions (
					id TEXT PRIMARY KEY,
					request_id TEXT NOT NULL,
					model TEXT NOT NULL,
					label INTEGER NOT NULL,
					probabilities TEXT NOT NULL,
					cached BOOLEAN DEFAULT 0,
					created_at DATETIME NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions (created_at);
				CREATE INDEX IF NOT EXISTS idx_predictions_model ON predictions (model);
			`,
		},
		{
			Version: 2,
			Name:    "create_model_events_table",
			SQL: `
				-- Lifecycle transitions of the served model (loaded, unloaded)
				CREATE TABLE IF NOT EXISTS model_events (
					id TEXT PRIMARY KEY,
					model TEXT NOT NULL,
					event TEXT NOT NULL,
					created_at DATETIME NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_model_events_created_at ON model_events (created_at);
			`,
		},
	}
}

// RunMigrations applies every migration newer than the recorded schema version
func RunMigrations(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	var current int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, m := range GetMigrations() {
		if m.Version <= current {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.Version, err)
		}
		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.Version, m.Name); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}
