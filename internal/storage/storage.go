// File: internal/storage/storage.go
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrQuotaExceeded is returned when a write would exceed the store's size quota
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// KV is the durable key-value surface used by the log store and session manager
type KV interface {
	// Get returns the value for key; found is false when the key is absent
	Get(ctx context.Context, key string) (value string, found bool, err error)
	// Set replaces the value stored under key
	Set(ctx context.Context, key, value string) error
	// Delete removes the keys; absent keys are ignored
	Delete(ctx context.Context, keys ...string) error
}

// Storage defines a durable key-value backend
type Storage interface {
	KV

	// Connection management
	Connect() error
	Close() error
	Ping() error
	Migrate() error

	// Backend returns the backend name (memory, sqlite, postgres, redis)
	Backend() string

	// Statistics and monitoring
	GetStorageStats() (*StorageStats, error)
}

// StorageStats provides storage statistics
type StorageStats struct {
	Backend     string     `json:"backend"`
	TotalKeys   int64      `json:"total_keys"`
	TotalBytes  int64      `json:"total_bytes"`
	QuotaBytes  int64      `json:"quota_bytes,omitempty"`
	LastWriteAt *time.Time `json:"last_write_at,omitempty"`
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Type             string        `json:"type"`
	ConnectionString string        `json:"connection_string"`
	MaxConnections   int           `json:"max_connections"`
	MaxIdleTime      time.Duration `json:"max_idle_time"`
	Namespace        string        `json:"namespace"`
	QuotaBytes       int           `json:"quota_bytes"`
	RedisPassword    string        `json:"-"`
	RedisDB          int           `json:"redis_db"`
}
