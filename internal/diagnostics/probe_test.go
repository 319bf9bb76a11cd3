package diagnostics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/siidaa/admin-console/internal/config"
	"github.com/siidaa/admin-console/internal/models"
	"github.com/siidaa/admin-console/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbe(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/health/":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"healthy","timestamp":"2024-01-01T00:00:00Z"}`))
		case "/api/token/":
			w.WriteHeader(http.StatusMethodNotAllowed)
		case "/":
			w.Write([]byte(strings.Repeat("x", 500)))
		default:
			http.NotFound(w, r)
		}
	}))
	defer backend.Close()

	store, _ := newTestStore(t, models.LevelDebug)
	prober := NewProber(backend.URL+"/", time.Second, store)

	results := prober.Probe(context.Background(), []string{"/api/health/", "/api/token/", "/api/artists/", "/"})
	require.Len(t, results, 4)

	assert.True(t, results[0].OK)
	assert.Equal(t, backend.URL+"/api/health/", results[0].URL)
	assert.Contains(t, results[0].BodyPreview, "healthy")

	assert.True(t, results[1].Reachable)
	assert.False(t, results[1].OK)
	assert.Equal(t, http.StatusMethodNotAllowed, results[1].Status)

	assert.Equal(t, http.StatusNotFound, results[2].Status)

	assert.Len(t, results[3].BodyPreview, previewLength+3)

	network := store.Query(models.LogFilter{Category: models.CategoryNetwork})
	require.Len(t, network, 5)
	assert.Equal(t, "Manual connectivity test initiated", network[4].Message)
	assert.Equal(t, "Connection test successful: "+backend.URL+"/api/health/", network[3].Message)
	assert.Equal(t, models.LevelError, network[2].Level)
}

func TestProbeUnreachable(t *testing.T) {
	backend := httptest.NewServer(http.NotFoundHandler())
	url := backend.URL
	backend.Close()

	store, _ := newTestStore(t, models.LevelDebug)
	results := NewProber(url, time.Second, store).Probe(context.Background(), []string{"/api/health/"})

	require.Len(t, results, 1)
	assert.False(t, results[0].Reachable)
	assert.NotEmpty(t, results[0].Error)

	failed := store.Query(models.LogFilter{Category: models.CategoryNetwork, Limit: 1})[0]
	assert.Equal(t, "Connection test failed: "+url+"/api/health/", failed.Message)
	require.NotNil(t, failed.Error)
}

func TestProbeRejectsEndpointsOffBackend(t *testing.T) {
	var hits int32
	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(`{"secret":"internal-metadata"}`))
	}))
	defer other.Close()
	otherHost := strings.TrimPrefix(other.URL, "http://")

	store, _ := newTestStore(t, models.LevelDebug)
	prober := NewProber("http://backend.example.invalid", time.Second, store)

	results := prober.Probe(context.Background(), []string{
		"@" + otherHost + "/latest/meta-data",
		"//" + otherHost + "/latest/meta-data",
		other.URL + "/latest/meta-data",
		"/api\\@" + otherHost,
	})
	require.Len(t, results, 4)
	for _, r := range results {
		assert.False(t, r.Reachable, r.Endpoint)
		assert.Empty(t, r.URL, r.Endpoint)
		assert.Empty(t, r.BodyPreview, r.Endpoint)
		assert.Contains(t, r.Error, "Invalid endpoint", r.Endpoint)
	}
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestValidateEndpoints(t *testing.T) {
	require.NoError(t, ValidateEndpoints([]string{"/", "/api/health/", "/api/artists/?page=2"}))

	for _, bad := range []string{"", "api/health/", "@evil/x", "//evil/x", "http://evil/", "/a\\b", "/a@b", "/a\nb"} {
		assert.Error(t, ValidateEndpoints([]string{bad}), bad)
	}

	many := make([]string, MaxProbeEndpoints+1)
	for i := range many {
		many[i] = "/"
	}
	assert.Error(t, ValidateEndpoints(many))
}

func TestProbeCapsEndpointCount(t *testing.T) {
	var hits int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer backend.Close()

	store, _ := newTestStore(t, models.LevelDebug)
	endpoints := make([]string, MaxProbeEndpoints+5)
	for i := range endpoints {
		endpoints[i] = "/api/health/"
	}
	results := NewProber(backend.URL, time.Second, store).Probe(context.Background(), endpoints)
	assert.Len(t, results, MaxProbeEndpoints)
	assert.Equal(t, int32(MaxProbeEndpoints), atomic.LoadInt32(&hits))
}

func TestProbePreviewKeepsRunesWhole(t *testing.T) {
	// 199 ASCII bytes then a 3-byte rune straddling the cut
	body := strings.Repeat("a", previewLength-1) + "ሰላም"
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer backend.Close()

	store, _ := newTestStore(t, models.LevelDebug)
	results := NewProber(backend.URL, time.Second, store).Probe(context.Background(), []string{"/"})
	require.Len(t, results, 1)

	preview := results[0].BodyPreview
	assert.True(t, utf8.ValidString(preview))
	assert.Equal(t, strings.Repeat("a", previewLength-1)+"...", preview)
}

func TestTruncateUTF8(t *testing.T) {
	assert.Equal(t, "abc", truncateUTF8("abc", 5))
	assert.Equal(t, "ab", truncateUTF8("abc", 2))
	assert.Equal(t, "a", truncateUTF8("aé", 2))
	assert.Equal(t, "aé", truncateUTF8("aéb", 3))
}

func TestEnvironmentSnapshot(t *testing.T) {
	store, _ := newTestStore(t, models.LevelDebug)
	kv := storage.NewMemoryStorage(&storage.StorageConfig{})
	require.NoError(t, kv.Set(context.Background(), models.TokenKey, "tok"))

	cfg := &config.Config{
		App:     config.AppConfig{Environment: "development", Version: "1.0.0"},
		API:     config.APIConfig{BaseURL: "http://localhost:8000"},
		Storage: config.StorageConfig{Type: "memory"},
	}

	info := EnvironmentSnapshot(context.Background(), cfg, kv, store)
	assert.Equal(t, "http://localhost:8000", info["api_url"])
	assert.Equal(t, true, info["saved_token"])
	assert.Equal(t, false, info["saved_user"])
	assert.Equal(t, "DEBUG", info["min_level"])

	env := store.Query(models.LogFilter{Category: models.CategoryEnv})
	require.Len(t, env, 1)
	assert.Equal(t, "Environment information", env[0].Message)
	assert.Equal(t, "memory", env[0].Data["storage_type"])
}
