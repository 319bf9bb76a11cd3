package diagnostics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/siidaa/admin-console/internal/config"
	"github.com/siidaa/admin-console/internal/metrics"
	"github.com/siidaa/admin-console/internal/models"
	"github.com/siidaa/admin-console/internal/storage"
	"github.com/siidaa/admin-console/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, minLevel models.Level) (*Store, *storage.MemoryStorage) {
	t.Helper()
	kv := storage.NewMemoryStorage(&storage.StorageConfig{})
	store := NewStore(Options{
		MaxEntries:       DefaultMaxEntries,
		PersistedEntries: DefaultPersistedEntries,
		MinLevel:         minLevel,
	}, kv, utils.NewDiscardLogger(), nil)
	return store, kv
}

func persistedEntries(t *testing.T, kv storage.KV) []models.LogEntry {
	t.Helper()
	raw, found, err := kv.Get(context.Background(), DefaultSnapshotKey)
	require.NoError(t, err)
	require.True(t, found)
	var entries []models.LogEntry
	require.NoError(t, json.Unmarshal([]byte(raw), &entries))
	return entries
}

func TestRecordCapacityAndOrder(t *testing.T) {
	store, kv := newTestStore(t, models.LevelDebug)

	for i := 0; i < 1100; i++ {
		store.Info("TEST", fmt.Sprintf("entry %d", i), nil)
	}

	entries := store.Query(models.LogFilter{})
	require.Len(t, entries, 1000)
	assert.Equal(t, "entry 1099", entries[0].Message)
	assert.Equal(t, "entry 100", entries[len(entries)-1].Message)
	for i := 1; i < len(entries); i++ {
		assert.False(t, entries[i].Timestamp.After(entries[i-1].Timestamp), "query must be most recent first")
	}

	persisted := persistedEntries(t, kv)
	require.Len(t, persisted, 100)
	assert.Equal(t, "entry 1000", persisted[0].Message)
	assert.Equal(t, "entry 1099", persisted[99].Message)
	t.Logf("✓ store kept %d entries and persisted %d", len(entries), len(persisted))
}

func TestMinimumLevel(t *testing.T) {
	prod, _ := newTestStore(t, models.LevelInfo)
	prod.Debug("TEST", "hidden", nil)
	assert.Empty(t, prod.Query(models.LogFilter{}))
	assert.Equal(t, 0, prod.Stats().Total)

	dev, _ := newTestStore(t, models.LevelDebug)
	dev.Debug("TEST", "visible", nil)
	require.Len(t, dev.Query(models.LogFilter{}), 1)
	assert.Equal(t, 1, dev.Stats().ByLevel.Debug)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := &config.Config{
		App:         config.AppConfig{Environment: config.EnvironmentProduction},
		Diagnostics: config.DiagnosticsConfig{MaxEntries: 1000, PersistedEntries: 100},
	}
	opts, err := OptionsFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, models.LevelInfo, opts.MinLevel)

	cfg.App.Environment = config.EnvironmentDevelopment
	opts, err = OptionsFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, models.LevelDebug, opts.MinLevel)

	cfg.Diagnostics.MinLevel = "warn"
	opts, err = OptionsFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, models.LevelWarn, opts.MinLevel)

	cfg.Diagnostics.MinLevel = "loud"
	_, err = OptionsFromConfig(cfg)
	assert.Equal(t, utils.ErrCodeConfiguration, utils.ErrorCode(err))
}

func TestQueryFilters(t *testing.T) {
	store, _ := newTestStore(t, models.LevelDebug)
	store.Debug(models.CategoryAPI, "debug api", nil)
	store.Warn(models.CategoryAPI, "warn api", nil)
	store.Error(models.CategoryAuth, "error auth", errors.New("boom"), nil)
	store.Info(models.CategoryAPI, "info api", nil)

	api := store.Query(models.LogFilter{Category: models.CategoryAPI})
	require.Len(t, api, 3)
	assert.Equal(t, "info api", api[0].Message)

	warn := models.LevelWarn
	severe := store.Query(models.LogFilter{MinLevel: &warn})
	require.Len(t, severe, 2)
	assert.Equal(t, "error auth", severe[0].Message)
	assert.Equal(t, "warn api", severe[1].Message)

	both := store.Query(models.LogFilter{Category: models.CategoryAPI, MinLevel: &warn})
	require.Len(t, both, 1)

	limited := store.Query(models.LogFilter{Limit: 2})
	require.Len(t, limited, 2)
	assert.Equal(t, "info api", limited[0].Message)
}

func TestQueryReturnsCopies(t *testing.T) {
	store, _ := newTestStore(t, models.LevelDebug)
	store.Info("TEST", "original", map[string]interface{}{"k": "v"})

	first := store.Query(models.LogFilter{})
	first[0].Data["k"] = "changed"
	first[0].Message = "changed"

	again := store.Query(models.LogFilter{})
	assert.Equal(t, "original", again[0].Message)
	assert.Equal(t, "v", again[0].Data["k"])
}

func TestStats(t *testing.T) {
	store, _ := newTestStore(t, models.LevelDebug)
	for i := 0; i < 7; i++ {
		store.Error(models.CategoryAPI, fmt.Sprintf("failure %d", i), fmt.Errorf("cause %d", i), nil)
	}
	store.Info(models.CategoryAuth, "ok", nil)
	store.Warn(models.CategorySystem, "careful", nil)

	stats := store.Stats()
	assert.Equal(t, len(store.Query(models.LogFilter{})), stats.Total)
	assert.Equal(t, models.LevelCounts{Info: 1, Warn: 1, Error: 7}, stats.ByLevel)
	assert.Equal(t, 7, stats.ByCategory[models.CategoryAPI])
	assert.Equal(t, 1, stats.ByCategory[models.CategoryAuth])

	require.Len(t, stats.RecentErrors, 5)
	assert.Equal(t, "failure 2", stats.RecentErrors[0].Message)
	assert.Equal(t, "failure 6", stats.RecentErrors[4].Message)
	assert.Equal(t, "cause 6", stats.RecentErrors[4].Error)
}

func TestExportRoundTrip(t *testing.T) {
	store, _ := newTestStore(t, models.LevelDebug)
	store.Info(models.CategoryAPI, "plain", map[string]interface{}{"endpoint": "/artists/"})
	store.APIResponse("GET", "http://backend/api/artists/", 404, 25*time.Millisecond, nil)
	store.Error(models.CategoryAuth, "denied", errors.New("Invalid credentials"), nil)

	data, err := store.Export()
	require.NoError(t, err)

	var exported []models.LogEntry
	require.NoError(t, json.Unmarshal(data, &exported))

	current := store.Query(models.LogFilter{})
	require.Len(t, exported, len(current))
	for i, e := range exported {
		want := current[len(current)-1-i]
		assert.Equal(t, want.ID, e.ID)
		assert.True(t, want.Timestamp.Equal(e.Timestamp))
		assert.Equal(t, want.Level, e.Level)
		assert.Equal(t, want.Category, e.Category)
		assert.Equal(t, want.Message, e.Message)
		assert.Equal(t, want.Data, e.Data)
		assert.Equal(t, want.Error, e.Error)
		assert.Equal(t, want.Status, e.Status)
		assert.Equal(t, want.DurationMs, e.DurationMs)
	}

	again, err := store.Export()
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(again))
	assert.Equal(t, 3, store.Len())
}

func TestClear(t *testing.T) {
	store, kv := newTestStore(t, models.LevelDebug)
	for i := 0; i < 10; i++ {
		store.Warn("TEST", "noise", nil)
	}

	store.Clear()

	entries := store.Query(models.LogFilter{})
	require.Len(t, entries, 1)
	assert.Equal(t, models.CategorySystem, entries[0].Category)
	assert.Equal(t, "Logs cleared", entries[0].Message)
	assert.Equal(t, models.LevelInfo, entries[0].Level)

	persisted := persistedEntries(t, kv)
	require.Len(t, persisted, 1)
	assert.Equal(t, "Logs cleared", persisted[0].Message)
}

func TestPersistFailureIsSwallowed(t *testing.T) {
	kv := storage.NewMemoryStorage(&storage.StorageConfig{QuotaBytes: 64})
	mgr := metrics.NewManager()
	store := NewStore(Options{MinLevel: models.LevelDebug, PersistedEntries: 100}, kv, utils.NewDiscardLogger(), mgr)

	for i := 0; i < 20; i++ {
		store.Info("TEST", "a message long enough to overflow the quota", nil)
	}

	assert.Equal(t, 20, store.Len())
	_, found, err := kv.Get(context.Background(), DefaultSnapshotKey)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRestore(t *testing.T) {
	kv := storage.NewMemoryStorage(&storage.StorageConfig{})
	older := NewStore(Options{MinLevel: models.LevelDebug, PersistedEntries: 100}, kv, utils.NewDiscardLogger(), nil)
	older.Info("TEST", "from last run", nil)
	older.Warn("TEST", "also from last run", nil)

	store := NewStore(Options{MinLevel: models.LevelDebug, PersistedEntries: 100}, kv, utils.NewDiscardLogger(), nil)
	store.Restore(context.Background())
	store.Info("TEST", "this run", nil)

	entries := store.Query(models.LogFilter{})
	require.Len(t, entries, 4)
	assert.Equal(t, "this run", entries[0].Message)
	assert.Equal(t, "Loaded 2 persisted logs", entries[1].Message)
	assert.Equal(t, "also from last run", entries[2].Message)
	assert.Equal(t, "from last run", entries[3].Message)

	// the restored history is carried into the next snapshot
	assert.Len(t, persistedEntries(t, kv), 4)
}

func TestRestoreWithoutSnapshot(t *testing.T) {
	store, _ := newTestStore(t, models.LevelDebug)
	store.Restore(context.Background())
	assert.Equal(t, 0, store.Len())
}

func TestRestoreMalformedSnapshot(t *testing.T) {
	kv := storage.NewMemoryStorage(&storage.StorageConfig{})
	require.NoError(t, kv.Set(context.Background(), DefaultSnapshotKey, "not json"))

	store := NewStore(Options{MinLevel: models.LevelDebug, PersistedEntries: 100}, kv, utils.NewDiscardLogger(), nil)
	store.Restore(context.Background())

	entries := store.Query(models.LogFilter{})
	require.Len(t, entries, 1)
	assert.Equal(t, models.LevelError, entries[0].Level)
	assert.Equal(t, models.CategorySystem, entries[0].Category)
	assert.Equal(t, "Failed to load persisted logs", entries[0].Message)
	require.NotNil(t, entries[0].Error)
}

func TestSinksMayRecordReentrantly(t *testing.T) {
	store, _ := newTestStore(t, models.LevelDebug)

	var seen []string
	store.AddSink(SinkFunc(func(e models.LogEntry) {
		seen = append(seen, e.Message)
		if e.Level == models.LevelError {
			store.Info(models.CategorySystem, "alert queued", nil)
		}
	}))

	done := make(chan struct{})
	go func() {
		store.Error(models.CategoryAPI, "backend down", errors.New("dial tcp: refused"), nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("re-entrant Record deadlocked")
	}

	assert.Equal(t, []string{"backend down", "alert queued"}, seen)
	assert.Equal(t, 2, store.Len())
}

func TestConcurrentRecord(t *testing.T) {
	store, kv := newTestStore(t, models.LevelDebug)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				store.Info("TEST", fmt.Sprintf("g%d-%d", g, i), nil)
				_ = store.Stats()
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, 1000, store.Len())
	assert.Equal(t, store.Stats().Total, len(store.Query(models.LogFilter{})))

	newest := store.Query(models.LogFilter{Limit: 100})
	persisted := persistedEntries(t, kv)
	require.Len(t, persisted, 100)
	assert.Equal(t, newest[0].ID, persisted[99].ID)
}

func TestAPIEmitters(t *testing.T) {
	store, _ := newTestStore(t, models.LevelDebug)

	store.APIRequest("GET", "http://backend/api/songs/", nil)
	store.APIResponse("GET", "http://backend/api/songs/", 200, 120*time.Millisecond, nil)
	store.APIResponse("DELETE", "http://backend/api/songs/3/", 500, 40*time.Millisecond, nil)
	store.APIError("POST", "http://backend/api/albums/", errors.New("connection reset"), 3*time.Second)

	entries := store.Query(models.LogFilter{Category: models.CategoryAPI})
	require.Len(t, entries, 4)

	failed := entries[0]
	assert.Equal(t, "POST http://backend/api/albums/ - Failed", failed.Message)
	assert.Equal(t, models.LevelError, failed.Level)
	assert.Nil(t, failed.Status)
	require.NotNil(t, failed.DurationMs)
	assert.Equal(t, int64(3000), *failed.DurationMs)
	assert.Equal(t, "connection reset", failed.Error.Message)

	serverErr := entries[1]
	assert.Equal(t, models.LevelError, serverErr.Level)
	assert.Equal(t, 500, *serverErr.Status)

	ok := entries[2]
	assert.Equal(t, "GET http://backend/api/songs/ - 200", ok.Message)
	assert.Equal(t, models.LevelInfo, ok.Level)
	assert.Equal(t, int64(120), *ok.DurationMs)

	start := entries[3]
	assert.Equal(t, "GET http://backend/api/songs/", start.Message)
	assert.Equal(t, "GET", start.Method)
}

func TestAuthEmitters(t *testing.T) {
	store, _ := newTestStore(t, models.LevelDebug)

	store.AuthAttempt("alice")
	store.AuthFailure("alice", "Invalid credentials")
	store.AuthSuccess("alice")
	store.AuthLogout("")

	entries := store.Query(models.LogFilter{Category: models.CategoryAuth})
	require.Len(t, entries, 4)
	assert.Equal(t, "User logged out", entries[0].Message)
	assert.Equal(t, "unknown", entries[0].Data["username"])
	assert.Equal(t, "Login successful for user: alice", entries[1].Message)
	assert.Equal(t, models.LevelError, entries[2].Level)
	assert.Equal(t, "Invalid credentials", entries[2].Error.Message)
	assert.Equal(t, "Login attempt for user: alice", entries[3].Message)
}
