// Package diagnostics holds the bounded journal of API, AUTH, NETWORK, ENV
// and SYSTEM events used to explain why backend calls succeed or fail.
package diagnostics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/siidaa/admin-console/internal/config"
	"github.com/siidaa/admin-console/internal/metrics"
	"github.com/siidaa/admin-console/internal/models"
	"github.com/siidaa/admin-console/internal/storage"
	"github.com/siidaa/admin-console/pkg/utils"
)

const (
	DefaultMaxEntries       = 1000
	DefaultPersistedEntries = 100
	DefaultSnapshotKey      = "siidaa_admin_logs"

	persistTimeout = 5 * time.Second
)

// Options configures a Store
type Options struct {
	MaxEntries       int
	PersistedEntries int
	MinLevel         models.Level
	SnapshotKey      string
}

// OptionsFromConfig derives store options. Without an explicit min_level the
// minimum is DEBUG in development and INFO in production.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	opts := Options{
		MaxEntries:       cfg.Diagnostics.MaxEntries,
		PersistedEntries: cfg.Diagnostics.PersistedEntries,
		SnapshotKey:      cfg.Diagnostics.SnapshotKey,
		MinLevel:         models.LevelDebug,
	}
	if cfg.App.IsProduction() {
		opts.MinLevel = models.LevelInfo
	}
	if cfg.Diagnostics.MinLevel != "" {
		level, err := models.ParseLevel(cfg.Diagnostics.MinLevel)
		if err != nil {
			return opts, utils.NewAppError(utils.ErrCodeConfiguration, "Invalid diagnostics min level", err.Error())
		}
		opts.MinLevel = level
	}
	return opts, nil
}

// Sink receives every accepted entry after it has been stored
type Sink interface {
	HandleEntry(entry models.LogEntry)
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(entry models.LogEntry)

// HandleEntry calls f(entry)
func (f SinkFunc) HandleEntry(entry models.LogEntry) { f(entry) }

// Store is a capacity-bounded in-memory journal of diagnostic entries with a
// persisted window of the most recent ones.
type Store struct {
	mu      sync.Mutex
	entries []models.LogEntry // oldest first
	sinks   []Sink

	// serializes snapshot writes so the last write holds the newest window
	persistMu sync.Mutex

	opts           Options
	kv             storage.KV
	console        *logrus.Entry
	metricsManager *metrics.Manager
	now            func() time.Time
}

// NewStore creates a log store. kv and metricsManager may be nil.
func NewStore(opts Options, kv storage.KV, logger *logrus.Logger, metricsManager *metrics.Manager) *Store {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.PersistedEntries < 0 {
		opts.PersistedEntries = 0
	}
	if opts.PersistedEntries > opts.MaxEntries {
		opts.PersistedEntries = opts.MaxEntries
	}
	if opts.SnapshotKey == "" {
		opts.SnapshotKey = DefaultSnapshotKey
	}
	if logger == nil {
		logger = utils.GetLogger()
	}

	return &Store{
		opts:           opts,
		kv:             kv,
		console:        logger.WithField("component", "diagnostics"),
		metricsManager: metricsManager,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// MinLevel returns the minimum accepted level
func (s *Store) MinLevel() models.Level {
	return s.opts.MinLevel
}

// AddSink registers a side channel for accepted entries
func (s *Store) AddSink(sink Sink) {
	s.mu.Lock()
	s.sinks = append(s.sinks, sink)
	s.mu.Unlock()
}

// Record appends an entry. Entries below the minimum level are dropped.
func (s *Store) Record(level models.Level, category, message string, data map[string]interface{}, err error, meta *models.HTTPMeta) {
	if level < s.opts.MinLevel {
		return
	}

	entry := models.LogEntry{
		ID:        uuid.NewString(),
		Timestamp: s.now(),
		Level:     level,
		Category:  category,
		Message:   message,
		Data:      cloneData(data),
	}
	if err != nil {
		entry.Error = errorDetail(err)
	}
	if meta != nil {
		entry.URL = meta.URL
		entry.Method = meta.Method
		if meta.Status != nil {
			status := *meta.Status
			entry.Status = &status
		}
		if meta.Duration != nil {
			ms := meta.Duration.Milliseconds()
			entry.DurationMs = &ms
		}
	}

	s.mu.Lock()
	s.entries = append(s.entries, entry)
	if over := len(s.entries) - s.opts.MaxEntries; over > 0 {
		s.entries = append([]models.LogEntry(nil), s.entries[over:]...)
	}
	size := len(s.entries)
	sinks := append([]Sink(nil), s.sinks...)
	s.mu.Unlock()

	s.mirror(entry)
	if s.metricsManager != nil {
		pm := s.metricsManager.GetPrometheusMetrics()
		pm.RecordLogEntry(level.String(), category)
		pm.UpdateLogStoreSize(size)
	}
	for _, sink := range sinks {
		sink.HandleEntry(cloneEntry(entry))
	}
	s.persist()
}

// Query returns matching entries, most recent first
func (s *Store) Query(filter models.LogFilter) []models.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]models.LogEntry, 0, len(s.entries))
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if filter.Category != "" && e.Category != filter.Category {
			continue
		}
		if filter.MinLevel != nil && e.Level < *filter.MinLevel {
			continue
		}
		result = append(result, cloneEntry(e))
		if filter.Limit > 0 && len(result) == filter.Limit {
			break
		}
	}
	return result
}

// Len returns the number of in-memory entries
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Stats aggregates the current in-memory entries
func (s *Store) Stats() models.LogStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := models.LogStats{
		Total:        len(s.entries),
		ByCategory:   make(map[string]int),
		RecentErrors: []models.ErrorSummary{},
	}

	var errs []models.ErrorSummary
	for _, e := range s.entries {
		switch e.Level {
		case models.LevelDebug:
			stats.ByLevel.Debug++
		case models.LevelInfo:
			stats.ByLevel.Info++
		case models.LevelWarn:
			stats.ByLevel.Warn++
		case models.LevelError:
			stats.ByLevel.Error++
			summary := models.ErrorSummary{Timestamp: e.Timestamp, Category: e.Category, Message: e.Message}
			if e.Error != nil {
				summary.Error = e.Error.Message
			}
			errs = append(errs, summary)
		}
		stats.ByCategory[e.Category]++
	}
	if len(errs) > 5 {
		errs = errs[len(errs)-5:]
	}
	stats.RecentErrors = append(stats.RecentErrors, errs...)
	return stats
}

// Clear empties memory and the snapshot, then records a single SYSTEM entry
func (s *Store) Clear() {
	s.mu.Lock()
	s.entries = nil
	s.mu.Unlock()

	if s.kv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		if err := s.kv.Delete(ctx, s.opts.SnapshotKey); err != nil {
			s.console.WithError(err).Warn("Failed to remove persisted logs")
		}
		cancel()
	}

	s.Info(models.CategorySystem, "Logs cleared", nil)
}

// Export serializes every in-memory entry, oldest first, as indented JSON
func (s *Store) Export() ([]byte, error) {
	s.mu.Lock()
	entries := make([]models.LogEntry, len(s.entries))
	copy(entries, s.entries)
	s.mu.Unlock()

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeSerialization, "Failed to export logs", err.Error())
	}
	return data, nil
}

// Restore prepends the persisted snapshot so it appears older than anything
// logged in this process. It never fails; problems are recorded as entries.
func (s *Store) Restore(ctx context.Context) {
	if s.kv == nil {
		return
	}

	raw, found, err := s.kv.Get(ctx, s.opts.SnapshotKey)
	if err != nil {
		s.Error(models.CategorySystem, "Failed to load persisted logs", err, nil)
		return
	}
	if !found || raw == "" {
		return
	}

	var persisted []models.LogEntry
	if err := json.Unmarshal([]byte(raw), &persisted); err != nil {
		s.Error(models.CategorySystem, "Failed to load persisted logs", err, nil)
		return
	}

	s.mu.Lock()
	merged := make([]models.LogEntry, 0, len(persisted)+len(s.entries))
	merged = append(merged, persisted...)
	merged = append(merged, s.entries...)
	if over := len(merged) - s.opts.MaxEntries; over > 0 {
		merged = merged[over:]
	}
	s.entries = merged
	s.mu.Unlock()

	s.Info(models.CategorySystem, fmt.Sprintf("Loaded %d persisted logs", len(persisted)), nil)
}

// persist writes the newest window of entries, replacing the prior snapshot.
// Failures are reported on the console only.
func (s *Store) persist() {
	if s.kv == nil || s.opts.PersistedEntries == 0 {
		return
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	start := len(s.entries) - s.opts.PersistedEntries
	if start < 0 {
		start = 0
	}
	window := make([]models.LogEntry, len(s.entries)-start)
	copy(window, s.entries[start:])
	s.mu.Unlock()

	data, err := json.Marshal(window)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		err = s.kv.Set(ctx, s.opts.SnapshotKey, string(data))
		cancel()
	}
	if err != nil {
		fields := logrus.Fields{"key": s.opts.SnapshotKey, "entries": len(window)}
		if errors.Is(err, storage.ErrQuotaExceeded) {
			fields["quota_exceeded"] = true
		}
		s.console.WithFields(fields).WithError(err).Warn("Failed to persist diagnostic logs")
		if s.metricsManager != nil {
			s.metricsManager.GetPrometheusMetrics().RecordPersistFailure()
		}
	}
}

// mirror writes the entry to the console for live tailing
func (s *Store) mirror(entry models.LogEntry) {
	fields := logrus.Fields{"category": entry.Category}
	if entry.URL != "" {
		fields["url"] = entry.URL
	}
	if entry.Method != "" {
		fields["method"] = entry.Method
	}
	if entry.Status != nil {
		fields["status"] = *entry.Status
	}
	if entry.DurationMs != nil {
		fields["duration_ms"] = *entry.DurationMs
	}
	if len(entry.Data) > 0 {
		fields["data"] = entry.Data
	}
	if entry.Error != nil {
		fields["error"] = entry.Error.Message
	}

	l := s.console.WithFields(fields)
	switch entry.Level {
	case models.LevelDebug:
		l.Debug(entry.Message)
	case models.LevelInfo:
		l.Info(entry.Message)
	case models.LevelWarn:
		l.Warn(entry.Message)
	default:
		l.Error(entry.Message)
	}
}

func errorDetail(err error) *models.ErrorDetail {
	detail := &models.ErrorDetail{Message: err.Error()}
	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		detail.Stack = appErr.StackTrace
	}
	return detail
}

func cloneData(data map[string]interface{}) map[string]interface{} {
	if len(data) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}

func cloneEntry(e models.LogEntry) models.LogEntry {
	e.Data = cloneData(e.Data)
	if e.Error != nil {
		detail := *e.Error
		e.Error = &detail
	}
	if e.Status != nil {
		status := *e.Status
		e.Status = &status
	}
	if e.DurationMs != nil {
		ms := *e.DurationMs
		e.DurationMs = &ms
	}
	return e
}
