package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/siidaa/admin-console/internal/api"
	"github.com/siidaa/admin-console/internal/catalog"
	"github.com/siidaa/admin-console/internal/config"
	"github.com/siidaa/admin-console/internal/diagnostics"
	"github.com/siidaa/admin-console/internal/metrics"
	"github.com/siidaa/admin-console/internal/models"
	"github.com/siidaa/admin-console/internal/session"
	"github.com/siidaa/admin-console/internal/storage"
	"github.com/siidaa/admin-console/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend answers the identity and catalog endpoints the dashboard proxies
type fakeBackend struct {
	server       *httptest.Server
	unauthorized int32
}

func newFakeBackend(t *testing.T) *fakeBackend {
	b := &fakeBackend{}
	b.server = httptest.NewServer(http.HandlerFunc(b.handle))
	t.Cleanup(b.server.Close)
	return b
}

func (b *fakeBackend) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if strings.HasPrefix(r.URL.Path, "/api/token/") {
		var creds map[string]string
		json.NewDecoder(r.Body).Decode(&creds)
		if creds["password"] != "right" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"No active account found with the given credentials"}`))
			return
		}
		w.Write([]byte(`{"access":"access-1","refresh":"refresh-1"}`))
		return
	}
	if r.Header.Get("Authorization") != "Bearer access-1" || atomic.LoadInt32(&b.unauthorized) == 1 {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"Given token not valid for any token type"}`))
		return
	}
	switch r.URL.Path {
	case "/api/user/profile/":
		w.Write([]byte(`{"id":1,"username":"alice","email":"alice@siidaa.com","is_staff":true}`))
	case "/api/artists/":
		w.Write([]byte(`[{"id":1,"name":"Teddy Afro"}]`))
	case "/api/albums/":
		w.Write([]byte(`[{"id":1,"title":"Ethiopia","price":"9.99"},{"id":2,"title":"Tikur Sew","price":"7.50"}]`))
	case "/api/songs/":
		w.Write([]byte(`[]`))
	case "/api/payment-transactions/":
		w.Write([]byte(`[{"id":1,"amount":"9.99","status":"success"},{"id":2,"amount":"7.50","status":"pending"}]`))
	case "/api/purchases/":
		w.Write([]byte(`[{"id":1,"user":1,"purchase_date":"2024-05-01"}]`))
	default:
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"Not found."}`))
	}
}

type fixture struct {
	server  *HTTPServer
	session *session.Manager
	logs    *diagnostics.Store
	backend *fakeBackend
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend := newFakeBackend(t)

	cfg := &config.Config{
		App:     config.AppConfig{Name: "siidaa-admin", Version: "test", Environment: config.EnvironmentDevelopment},
		API:     config.APIConfig{BaseURL: backend.server.URL, RequestTimeout: 2 * time.Second, ProbeEndpoints: []string{"/api/artists/"}},
		Storage: config.StorageConfig{Type: "memory"},
		Session: config.SessionConfig{LoginPath: "/login"},
		Server:  config.ServerConfig{EnableMetrics: true, EnableHealth: true},
	}

	logger := utils.NewDiscardLogger()
	mgr := metrics.NewManager()
	kv := storage.NewMemoryStorage(&storage.StorageConfig{})
	require.NoError(t, kv.Connect())
	logs := diagnostics.NewStore(diagnostics.Options{MinLevel: models.LevelDebug}, kv, logger, mgr)
	sess := session.NewManager(&cfg.API, kv, logs, mgr, logger)
	sess.Restore(context.Background())
	client := api.NewClient(&cfg.API, sess, logs, mgr)

	srv, err := NewHTTPServer(Components{
		Config:  cfg,
		Session: sess,
		Logs:    logs,
		Prober:  diagnostics.NewProber(cfg.API.BaseURL, time.Second, logs),
		Catalog: catalog.NewClient(client),
		Storage: kv,
		Metrics: mgr,
	})
	require.NoError(t, err)
	return &fixture{server: srv, session: sess, logs: logs, backend: backend}
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	rec := f.do("POST", "/api/v1/session/login", `{"username":"alice","password":"right"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.True(t, f.session.IsAuthenticated())
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
}

func TestNewHTTPServerRequiresComponents(t *testing.T) {
	_, err := NewHTTPServer(Components{})
	require.Error(t, err)
	assert.Equal(t, utils.ErrCodeConfiguration, utils.ErrorCode(err))
}

func TestGuardRedirectsWithoutSession(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/api/v1/logs", "/api/v1/session", "/api/v1/catalog/summary"} {
		rec := f.do("GET", path, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.JSONEq(t, `{"error":"authentication required","redirect":"/login"}`, rec.Body.String(), path)
	}

	rec := f.do("GET", "/api/v1/debug/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var health map[string]interface{}
	decode(t, rec, &health)
	assert.Equal(t, "healthy", health["status"])

	rec = f.do("GET", "/api/v1/debug/environment", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)

	rec := f.do("POST", "/api/v1/session/login", `{"username":"alice","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, f.session.IsAuthenticated())

	rec = f.do("POST", "/api/v1/session/login", `{"username":"alice"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.login(t)

	rec = f.do("GET", "/api/v1/session", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap models.SessionSnapshot
	decode(t, rec, &snap)
	assert.True(t, snap.Authenticated)
	require.NotNil(t, snap.User)
	assert.Equal(t, "alice", snap.User.Username)
	assert.True(t, snap.HasRefreshToken)

	rec = f.do("POST", "/api/v1/session/logout", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, f.session.IsAuthenticated())
	assert.Equal(t, http.StatusUnauthorized, f.do("GET", "/api/v1/session", "").Code)
}

func TestLogsEndpoints(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.logs.Error(models.CategorySystem, "disk full", nil, nil)

	rec := f.do("GET", "/api/v1/logs?category=AUTH&limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Logs  []models.LogEntry `json:"logs"`
		Count int               `json:"count"`
	}
	decode(t, rec, &list)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, models.CategoryAuth, list.Logs[0].Category)

	rec = f.do("GET", "/api/v1/logs?level=error", "")
	decode(t, rec, &list)
	require.NotZero(t, list.Count)
	for _, e := range list.Logs {
		assert.Equal(t, models.LevelError, e.Level)
	}

	assert.Equal(t, http.StatusBadRequest, f.do("GET", "/api/v1/logs?level=loud", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do("GET", "/api/v1/logs?limit=-2", "").Code)

	rec = f.do("GET", "/api/v1/logs/stats", "")
	var stats models.LogStats
	decode(t, rec, &stats)
	assert.Equal(t, f.logs.Len(), stats.Total)
	assert.NotEmpty(t, stats.RecentErrors)

	rec = f.do("GET", "/api/v1/logs/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "siidaa-admin-logs-")
	var exported []models.LogEntry
	decode(t, rec, &exported)
	assert.NotEmpty(t, exported)

	assert.Equal(t, http.StatusOK, f.do("DELETE", "/api/v1/logs", "").Code)
	assert.Equal(t, 0, f.logs.Len())
}

func TestCatalogEndpoints(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	rec := f.do("GET", "/api/v1/catalog/summary", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var summary models.CatalogSummary
	decode(t, rec, &summary)
	assert.Equal(t, 1, summary.TotalArtists)
	assert.Equal(t, 2, summary.TotalAlbums)
	assert.Equal(t, 0, summary.TotalSongs)
	assert.Equal(t, "9.99", summary.TotalRevenue)

	rec = f.do("GET", "/api/v1/catalog/albums", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var albums []models.Album
	decode(t, rec, &albums)
	assert.Len(t, albums, 2)

	assert.Equal(t, http.StatusBadRequest, f.do("GET", "/api/v1/catalog/playlists", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do("GET", "/api/v1/catalog/songs/99", "").Code)

	rec = f.do("GET", "/api/v1/payments/purchases", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var purchases []models.Purchase
	decode(t, rec, &purchases)
	assert.Len(t, purchases, 1)
}

func TestBackendUnauthorizedEndsSession(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	atomic.StoreInt32(&f.backend.unauthorized, 1)

	rec := f.do("GET", "/api/v1/catalog/artists", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"authentication required","redirect":"/login"}`, rec.Body.String())
	assert.False(t, f.session.IsAuthenticated())

	assert.Equal(t, http.StatusUnauthorized, f.do("GET", "/api/v1/logs", "").Code)
}

func TestConnectivity(t *testing.T) {
	f := newFixture(t)

	rec := f.do("POST", "/api/v1/debug/connectivity", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Results []diagnostics.ProbeResult `json:"results"`
	}
	decode(t, rec, &resp)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, http.StatusUnauthorized, resp.Results[0].Status)
	assert.False(t, resp.Results[0].OK)

	rec = f.do("POST", "/api/v1/debug/connectivity", `{"endpoints":["/api/nowhere/","/api/token/"]}`)
	decode(t, rec, &resp)
	assert.Len(t, resp.Results, 2)

	assert.Equal(t, http.StatusBadRequest, f.do("POST", "/api/v1/debug/connectivity", `{`).Code)
}

func TestConnectivityStaysOnBackendHost(t *testing.T) {
	var hits int32
	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(`{"secret":"internal-metadata"}`))
	}))
	defer internal.Close()
	internalHost := strings.TrimPrefix(internal.URL, "http://")

	f := newFixture(t)
	require.False(t, f.session.IsAuthenticated())

	bodies := []string{
		`{"endpoints":["@` + internalHost + `/latest/meta-data"]}`,
		`{"endpoints":["//` + internalHost + `/latest/meta-data"]}`,
		`{"endpoints":["` + internal.URL + `/latest/meta-data"]}`,
		`{"endpoints":["api/health/"]}`,
		`{"endpoints":["/api\\@` + internalHost + `/"]}`,
		`{"endpoints":["/a","/b","/c","/d","/e","/f","/g","/h","/i","/j","/k"]}`,
	}
	for _, body := range bodies {
		rec := f.do("POST", "/api/v1/debug/connectivity", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.NotContains(t, rec.Body.String(), "internal-metadata", body)
	}
	assert.Zero(t, atomic.LoadInt32(&hits))

	rec := f.do("POST", "/api/v1/debug/connectivity", `{"endpoints":["/api/artists/?page=2"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Results []diagnostics.ProbeResult `json:"results"`
	}
	decode(t, rec, &resp)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, f.backend.server.URL+"/api/artists/?page=2", resp.Results[0].URL)
	assert.True(t, resp.Results[0].Reachable)
}

func TestMetricsAndPreflight(t *testing.T) {
	f := newFixture(t)
	f.do("GET", "/api/v1/debug/health", "")

	rec := f.do("OPTIONS", "/api/v1/logs", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = f.do("GET", "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `siidaa_admin_http_requests_total{method="GET",path="/api/v1/debug/health",status="200"}`)
}

func TestIsPublicPath(t *testing.T) {
	assert.True(t, isPublicPath("/api/v1/session/login"))
	assert.True(t, isPublicPath("/api/v1/debug/health"))
	assert.False(t, isPublicPath("/api/v1/session"))
	assert.False(t, isPublicPath("/api/v1/logs"))
	assert.True(t, isPublicPath("/api/v1/debug"))
	assert.False(t, isPublicPath("/api/v1/debugger"))
	assert.False(t, isPublicPath("/api/v1/session/loginX"))
	assert.False(t, isPublicPath("/api/v1/debug-tools/health"))
}
