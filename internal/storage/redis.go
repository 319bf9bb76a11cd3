package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/siidaa/admin-console/pkg/utils"
)

// RedisStorage implements Storage on a Redis server. Keys are prefixed with
// the configured namespace.
type RedisStorage struct {
	client *redis.Client
	config *StorageConfig
	logger *logrus.Logger
}

// NewRedisStorage creates a new Redis storage instance
func NewRedisStorage(config *StorageConfig) *RedisStorage {
	return &RedisStorage{
		config: config,
		logger: utils.GetLogger(),
	}
}

// Backend returns "redis"
func (r *RedisStorage) Backend() string { return "redis" }

func (r *RedisStorage) key(k string) string {
	if r.config.Namespace == "" {
		return k
	}
	return r.config.Namespace + ":" + k
}

// Connect opens the client. The connection string is either a redis:// URL
// or a plain host:port address.
func (r *RedisStorage) Connect() error {
	var opt *redis.Options
	if strings.Contains(r.config.ConnectionString, "://") {
		parsed, err := redis.ParseURL(r.config.ConnectionString)
		if err != nil {
			return utils.Wrap(err, utils.ErrCodeConfiguration, "Invalid Redis URL")
		}
		opt = parsed
	} else {
		opt = &redis.Options{
			Addr:     r.config.ConnectionString,
			Password: r.config.RedisPassword,
			DB:       r.config.RedisDB,
		}
	}
	if r.config.MaxConnections > 0 {
		opt.PoolSize = r.config.MaxConnections
	}
	if r.config.MaxIdleTime > 0 {
		opt.ConnMaxIdleTime = r.config.MaxIdleTime
	}

	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return utils.Wrap(err, utils.ErrCodeStorage, "Failed to ping Redis")
	}

	r.client = client
	r.logger.WithField("addr", opt.Addr).Info("Redis connected")
	return nil
}

// Close closes the client
func (r *RedisStorage) Close() error {
	if r.client != nil {
		err := r.client.Close()
		r.client = nil
		r.logger.Info("Redis connection closed")
		return err
	}
	return nil
}

// Ping checks server connectivity
func (r *RedisStorage) Ping() error {
	if r.client == nil {
		return utils.NewAppError(utils.ErrCodeStorage, "Redis not connected", "")
	}
	return r.client.Ping(context.Background()).Err()
}

// Migrate is a no-op; Redis needs no schema
func (r *RedisStorage) Migrate() error { return nil }

// Get returns the value stored under key
func (r *RedisStorage) Get(ctx context.Context, key string) (string, bool, error) {
	if r.client == nil {
		return "", false, utils.NewAppError(utils.ErrCodeStorage, "Redis not connected", "")
	}
	v, err := r.client.Get(ctx, r.key(key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, utils.Wrap(err, utils.ErrCodeStorage, "Failed to read key")
	}
	return v, true, nil
}

// Set replaces the value stored under key, without expiry
func (r *RedisStorage) Set(ctx context.Context, key, value string) error {
	if r.client == nil {
		return utils.NewAppError(utils.ErrCodeStorage, "Redis not connected", "")
	}
	if err := r.client.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		if strings.Contains(err.Error(), "OOM") {
			return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
		}
		return utils.Wrap(err, utils.ErrCodeStorage, "Failed to write key")
	}
	return nil
}

// Delete removes keys
func (r *RedisStorage) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if r.client == nil {
		return utils.NewAppError(utils.ErrCodeStorage, "Redis not connected", "")
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}
	if err := r.client.Del(ctx, full...).Err(); err != nil {
		return utils.Wrap(err, utils.ErrCodeStorage, "Failed to delete keys")
	}
	return nil
}

// GetStorageStats counts the keys under the namespace
func (r *RedisStorage) GetStorageStats() (*StorageStats, error) {
	if r.client == nil {
		return nil, utils.NewAppError(utils.ErrCodeStorage, "Redis not connected", "")
	}

	ctx := context.Background()
	stats := &StorageStats{Backend: r.Backend()}
	iter := r.client.Scan(ctx, 0, r.key("*"), 100).Iterator()
	for iter.Next(ctx) {
		stats.TotalKeys++
		if n, err := r.client.StrLen(ctx, iter.Val()).Result(); err == nil {
			stats.TotalBytes += int64(len(iter.Val())) + n
		}
	}
	if err := iter.Err(); err != nil {
		return nil, utils.Wrap(err, utils.ErrCodeStorage, "Failed to scan keys")
	}
	return stats, nil
}
