// File: internal/storage/factory.go
package storage

import (
	"strings"

	"github.com/siidaa/admin-console/internal/config"
	"github.com/siidaa/admin-console/pkg/utils"
)

// NewStorage creates a new storage instance based on configuration
func NewStorage(cfg *config.StorageConfig) (Storage, error) {
	storageConfig := &StorageConfig{
		Type:             cfg.Type,
		ConnectionString: cfg.ConnectionString,
		MaxConnections:   cfg.MaxConnections,
		MaxIdleTime:      cfg.MaxIdleTime,
		Namespace:        cfg.Namespace,
		QuotaBytes:       cfg.QuotaBytes,
		RedisPassword:    cfg.RedisPassword,
		RedisDB:          cfg.RedisDB,
	}
	if storageConfig.MaxConnections <= 0 {
		storageConfig.MaxConnections = 1
	}

	switch strings.ToLower(cfg.Type) {
	case "memory":
		return NewMemoryStorage(storageConfig), nil
	case "sqlite":
		return NewSQLiteStorage(storageConfig), nil
	case "postgres", "postgresql":
		return NewPostgreSQLStorage(storageConfig), nil
	case "redis":
		return NewRedisStorage(storageConfig), nil
	default:
		return nil, utils.NewAppError(utils.ErrCodeConfiguration,
			"Unsupported storage type", cfg.Type)
	}
}

// Open creates, connects and migrates the configured storage
func Open(cfg *config.StorageConfig) (Storage, error) {
	store, err := NewStorage(cfg)
	if err != nil {
		return nil, err
	}
	if err := store.Connect(); err != nil {
		return nil, err
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}
