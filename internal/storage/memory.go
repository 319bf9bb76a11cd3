package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStorage keeps keys in process memory. A positive QuotaBytes caps the
// combined size of keys and values.
type MemoryStorage struct {
	mu        sync.RWMutex
	items     map[string]string
	size      int
	quota     int
	lastWrite *time.Time
}

// NewMemoryStorage creates an in-memory storage instance
func NewMemoryStorage(config *StorageConfig) *MemoryStorage {
	quota := 0
	if config != nil {
		quota = config.QuotaBytes
	}
	return &MemoryStorage{items: map[string]string{}, quota: quota}
}

func (m *MemoryStorage) Connect() error { return nil }
func (m *MemoryStorage) Close() error   { return nil }
func (m *MemoryStorage) Ping() error    { return nil }
func (m *MemoryStorage) Migrate() error { return nil }

// Backend returns "memory"
func (m *MemoryStorage) Backend() string { return "memory" }

// Get returns the value stored under key
func (m *MemoryStorage) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	return v, ok, nil
}

// Set stores value under key, failing with ErrQuotaExceeded past the quota
func (m *MemoryStorage) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	newSize := m.size + len(key) + len(value)
	if old, ok := m.items[key]; ok {
		newSize -= len(key) + len(old)
	}
	if m.quota > 0 && newSize > m.quota {
		return fmt.Errorf("set %q (%d bytes): %w", key, len(value), ErrQuotaExceeded)
	}

	m.items[key] = value
	m.size = newSize
	now := time.Now().UTC()
	m.lastWrite = &now
	return nil
}

// Delete removes keys
func (m *MemoryStorage) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		if old, ok := m.items[key]; ok {
			m.size -= len(key) + len(old)
			delete(m.items, key)
		}
	}
	return nil
}

// GetStorageStats returns key count and size
func (m *MemoryStorage) GetStorageStats() (*StorageStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return &StorageStats{
		Backend:     m.Backend(),
		TotalKeys:   int64(len(m.items)),
		TotalBytes:  int64(m.size),
		QuotaBytes:  int64(m.quota),
		LastWriteAt: m.lastWrite,
	}, nil
}
