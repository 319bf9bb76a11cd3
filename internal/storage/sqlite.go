// File: internal/storage/sqlite.go
package storage

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/siidaa/admin-console/pkg/utils"
	_ "modernc.org/sqlite"
)

// SQLiteStorage implements Storage using an SQLite file
type SQLiteStorage struct {
	db         *sql.DB
	config     *StorageConfig
	logger     *logrus.Logger
	migrations []*Migration
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(config *StorageConfig) *SQLiteStorage {
	return &SQLiteStorage{
		config:     config,
		logger:     utils.GetLogger(),
		migrations: GetSQLiteMigrations(),
	}
}

// Backend returns "sqlite"
func (s *SQLiteStorage) Backend() string { return "sqlite" }

// Connect establishes database connection
func (s *SQLiteStorage) Connect() error {
	// Ensure directory exists
	dir := filepath.Dir(s.config.ConnectionString)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return utils.Wrap(err, utils.ErrCodeStorage, "Failed to create database directory")
		}
	}

	db, err := sql.Open("sqlite", s.config.ConnectionString)
	if err != nil {
		return utils.Wrap(err, utils.ErrCodeStorage, "Failed to open SQLite database")
	}

	db.SetMaxOpenConns(s.config.MaxConnections)
	db.SetMaxIdleConns(s.config.MaxConnections / 2)
	db.SetConnMaxLifetime(s.config.MaxIdleTime)

	// Enable WAL mode so the CLI can read while the dashboard writes
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return utils.Wrap(err, utils.ErrCodeStorage, "Failed to enable WAL mode")
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return utils.Wrap(err, utils.ErrCodeStorage, "Failed to set busy timeout")
	}

	s.db = db
	s.logger.WithField("path", s.config.ConnectionString).Info("SQLite database connected")

	return nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		s.logger.Info("SQLite database connection closed")
		return err
	}
	return nil
}

// Ping checks database connectivity
func (s *SQLiteStorage) Ping() error {
	if s.db == nil {
		return utils.NewAppError(utils.ErrCodeStorage, "Database not connected", "")
	}
	return s.db.Ping()
}

// Migrate runs pending database migrations
func (s *SQLiteStorage) Migrate() error {
	if s.db == nil {
		return utils.NewAppError(utils.ErrCodeStorage, "Database not connected", "")
	}

	applied, err := applyMigrations(s.db, s.migrations, "?")
	if err != nil {
		return err
	}
	s.logger.WithField("applied", applied).Debug("SQLite migrations completed")
	return nil
}

// Get returns the value stored under key
func (s *SQLiteStorage) Get(ctx context.Context, key string) (string, bool, error) {
	if s.db == nil {
		return "", false, utils.NewAppError(utils.ErrCodeStorage, "Database not connected", "")
	}

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_entries WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, utils.Wrap(err, utils.ErrCodeStorage, "Failed to read key")
	}
	return value, true, nil
}

// Set replaces the value stored under key
func (s *SQLiteStorage) Set(ctx context.Context, key, value string) error {
	if s.db == nil {
		return utils.NewAppError(utils.ErrCodeStorage, "Database not connected", "")
	}

	query := `
		INSERT INTO kv_entries (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, key, value, time.Now().UTC()); err != nil {
		return utils.Wrap(err, utils.ErrCodeStorage, "Failed to write key")
	}
	return nil
}

// Delete removes keys
func (s *SQLiteStorage) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if s.db == nil {
		return utils.NewAppError(utils.ErrCodeStorage, "Database not connected", "")
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]interface{}, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key IN (`+placeholders+`)`, args...); err != nil {
		return utils.Wrap(err, utils.ErrCodeStorage, "Failed to delete keys")
	}
	return nil
}

// GetStorageStats returns storage statistics
func (s *SQLiteStorage) GetStorageStats() (*StorageStats, error) {
	if s.db == nil {
		return nil, utils.NewAppError(utils.ErrCodeStorage, "Database not connected", "")
	}

	stats := &StorageStats{Backend: s.Backend()}
	var lastWrite sql.NullString
	err := s.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(LENGTH(key) + LENGTH(value)), 0), MAX(updated_at) FROM kv_entries`).
		Scan(&stats.TotalKeys, &stats.TotalBytes, &lastWrite)
	if err != nil {
		return nil, utils.Wrap(err, utils.ErrCodeStorage, "Failed to get storage stats")
	}
	if lastWrite.Valid {
		if t, perr := parseSQLiteTime(lastWrite.String); perr == nil {
			stats.LastWriteAt = &t
		}
	}
	return stats, nil
}

func parseSQLiteTime(s string) (time.Time, error) {
	layouts := []string{
		"2006-01-02 15:04:05.999999999-07:00",
		time.RFC3339Nano,
		"2006-01-02 15:04:05",
	}
	var err error
	for _, layout := range layouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}
