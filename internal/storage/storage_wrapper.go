package storage

import (
	"context"
	"time"

	"github.com/siidaa/admin-console/internal/metrics"
)

// StorageWithMetrics wraps a storage implementation with metrics
type StorageWithMetrics struct {
	Storage
	metricsManager *metrics.Manager
}

// NewStorageWithMetrics creates a storage wrapper with metrics
func NewStorageWithMetrics(storage Storage, metricsManager *metrics.Manager) *StorageWithMetrics {
	return &StorageWithMetrics{
		Storage:        storage,
		metricsManager: metricsManager,
	}
}

func (s *StorageWithMetrics) record(operation string, start time.Time, err error) {
	if s.metricsManager == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	s.metricsManager.GetPrometheusMetrics().RecordStorageOperation(
		operation,
		s.Storage.Backend(),
		status,
		time.Since(start),
	)
}

// Get reads a key and records metrics
func (s *StorageWithMetrics) Get(ctx context.Context, key string) (string, bool, error) {
	start := time.Now()
	v, found, err := s.Storage.Get(ctx, key)
	s.record("get", start, err)
	return v, found, err
}

// Set writes a key and records metrics
func (s *StorageWithMetrics) Set(ctx context.Context, key, value string) error {
	start := time.Now()
	err := s.Storage.Set(ctx, key, value)
	s.record("set", start, err)
	return err
}

// Delete removes keys and records metrics
func (s *StorageWithMetrics) Delete(ctx context.Context, keys ...string) error {
	start := time.Now()
	err := s.Storage.Delete(ctx, keys...)
	s.record("delete", start, err)
	return err
}

// Ping checks connectivity and updates the component health gauge
func (s *StorageWithMetrics) Ping() error {
	err := s.Storage.Ping()
	if s.metricsManager != nil {
		s.metricsManager.GetPrometheusMetrics().UpdateComponentHealth("storage", err == nil)
	}
	return err
}
