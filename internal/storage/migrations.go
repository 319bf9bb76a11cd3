package storage

import (
	"database/sql"
	"fmt"

	"github.com/siidaa/admin-console/pkg/utils"
)

// Migration represents a database migration
type Migration struct {
	Version     string
	Description string
	SQL         string
}

// GetSQLiteMigrations returns SQLite migration scripts
func GetSQLiteMigrations() []*Migration {
	return []*Migration{
		{
			Version:     "001",
			Description: "Create kv_entries table",
			SQL: `
				CREATE TABLE IF NOT EXISTS kv_entries (
					key TEXT PRIMARY KEY,
					value TEXT NOT NULL,
					updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
				);
			`,
		},
		{
			Version:     "002",
			Description: "Index kv_entries by update time",
			SQL:         `CREATE INDEX IF NOT EXISTS idx_kv_entries_updated_at ON kv_entries(updated_at);`,
		},
	}
}

// GetPostgresMigrations returns PostgreSQL migration scripts
func GetPostgresMigrations() []*Migration {
	return []*Migration{
		{
			Version:     "001",
			Description: "Create kv_entries table",
			SQL: `
				CREATE TABLE IF NOT EXISTS kv_entries (
					key VARCHAR(255) PRIMARY KEY,
					value TEXT NOT NULL,
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     "002",
			Description: "Index kv_entries by update time",
			SQL:         `CREATE INDEX IF NOT EXISTS idx_kv_entries_updated_at ON kv_entries(updated_at);`,
		},
	}
}

// applyMigrations runs every migration not yet recorded in schema_migrations.
// placeholder is the driver's first bind parameter ("?" or "$1").
func applyMigrations(db *sql.DB, migrations []*Migration, placeholder string) (int, error) {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version VARCHAR(32) PRIMARY KEY,
		description TEXT NOT NULL
	)`); err != nil {
		return 0, utils.NewAppError(utils.ErrCodeStorage, "Failed to create migrations table", err.Error())
	}

	applied := 0
	for _, migration := range migrations {
		var exists int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = "+placeholder, migration.Version).Scan(&exists)
		if err != nil {
			return applied, utils.NewAppError(utils.ErrCodeStorage, "Failed to read migrations table", err.Error())
		}
		if exists > 0 {
			continue
		}

		if _, err := db.Exec(migration.SQL); err != nil {
			return applied, utils.NewAppError(utils.ErrCodeStorage,
				fmt.Sprintf("Migration %s failed", migration.Version),
				err.Error())
		}

		insert := "INSERT INTO schema_migrations (version, description) VALUES (?, ?)"
		if placeholder != "?" {
			insert = "INSERT INTO schema_migrations (version, description) VALUES ($1, $2)"
		}
		if _, err := db.Exec(insert, migration.Version, migration.Description); err != nil {
			return applied, utils.NewAppError(utils.ErrCodeStorage,
				fmt.Sprintf("Failed to record migration %s", migration.Version),
				err.Error())
		}
		applied++
	}
	return applied, nil
}
