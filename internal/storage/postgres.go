package storage

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/siidaa/admin-console/pkg/utils"
)

// PostgreSQLStorage implements Storage using PostgreSQL
type PostgreSQLStorage struct {
	db         *sql.DB
	config     *StorageConfig
	logger     *logrus.Logger
	migrations []*Migration
}

// NewPostgreSQLStorage creates a new PostgreSQL storage instance
func NewPostgreSQLStorage(config *StorageConfig) *PostgreSQLStorage {
	return &PostgreSQLStorage{
		config:     config,
		logger:     utils.GetLogger(),
		migrations: GetPostgresMigrations(),
	}
}

// Backend returns "postgres"
func (p *PostgreSQLStorage) Backend() string { return "postgres" }

// Connect establishes database connection
func (p *PostgreSQLStorage) Connect() error {
	db, err := sql.Open("postgres", p.config.ConnectionString)
	if err != nil {
		return utils.Wrap(err, utils.ErrCodeStorage, "Failed to open PostgreSQL database")
	}

	db.SetMaxOpenConns(p.config.MaxConnections)
	db.SetMaxIdleConns(p.config.MaxConnections / 2)
	db.SetConnMaxLifetime(p.config.MaxIdleTime)

	if err := db.Ping(); err != nil {
		db.Close()
		return utils.Wrap(err, utils.ErrCodeStorage, "Failed to ping PostgreSQL database")
	}

	p.db = db
	p.logger.WithField("connection", utils.MaskSecret(p.config.ConnectionString)).Info("PostgreSQL database connected")

	return nil
}

// Close closes the database connection
func (p *PostgreSQLStorage) Close() error {
	if p.db != nil {
		err := p.db.Close()
		p.db = nil
		p.logger.Info("PostgreSQL database connection closed")
		return err
	}
	return nil
}

// Ping checks database connectivity
func (p *PostgreSQLStorage) Ping() error {
	if p.db == nil {
		return utils.NewAppError(utils.ErrCodeStorage, "Database not connected", "")
	}
	return p.db.Ping()
}

// Migrate runs pending database migrations
func (p *PostgreSQLStorage) Migrate() error {
	if p.db == nil {
		return utils.NewAppError(utils.ErrCodeStorage, "Database not connected", "")
	}

	applied, err := applyMigrations(p.db, p.migrations, "$1")
	if err != nil {
		return err
	}
	p.logger.WithField("applied", applied).Debug("PostgreSQL migrations completed")
	return nil
}

// Get returns the value stored under key
func (p *PostgreSQLStorage) Get(ctx context.Context, key string) (string, bool, error) {
	if p.db == nil {
		return "", false, utils.NewAppError(utils.ErrCodeStorage, "Database not connected", "")
	}

	var value string
	err := p.db.QueryRowContext(ctx, `SELECT value FROM kv_entries WHERE key = $1`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, utils.Wrap(err, utils.ErrCodeStorage, "Failed to read key")
	}
	return value, true, nil
}

// Set replaces the value stored under key
func (p *PostgreSQLStorage) Set(ctx context.Context, key, value string) error {
	if p.db == nil {
		return utils.NewAppError(utils.ErrCodeStorage, "Database not connected", "")
	}

	query := `
		INSERT INTO kv_entries (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`
	if _, err := p.db.ExecContext(ctx, query, key, value); err != nil {
		return utils.Wrap(err, utils.ErrCodeStorage, "Failed to write key")
	}
	return nil
}

// Delete removes keys
func (p *PostgreSQLStorage) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if p.db == nil {
		return utils.NewAppError(utils.ErrCodeStorage, "Database not connected", "")
	}

	if _, err := p.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = ANY($1)`, pq.Array(keys)); err != nil {
		return utils.Wrap(err, utils.ErrCodeStorage, "Failed to delete keys")
	}
	return nil
}

// GetStorageStats returns storage statistics
func (p *PostgreSQLStorage) GetStorageStats() (*StorageStats, error) {
	if p.db == nil {
		return nil, utils.NewAppError(utils.ErrCodeStorage, "Database not connected", "")
	}

	stats := &StorageStats{Backend: p.Backend()}
	var lastWrite sql.NullTime
	err := p.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(LENGTH(key) + LENGTH(value)), 0), MAX(updated_at) FROM kv_entries`).
		Scan(&stats.TotalKeys, &stats.TotalBytes, &lastWrite)
	if err != nil {
		return nil, utils.Wrap(err, utils.ErrCodeStorage, "Failed to get storage stats")
	}
	if lastWrite.Valid {
		stats.LastWriteAt = &lastWrite.Time
	}
	return stats, nil
}
