package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, mgr *Manager) string {
	t.Helper()
	rec := httptest.NewRecorder()
	mgr.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	return rec.Body.String()
}

func TestManagersUseSeparateRegistries(t *testing.T) {
	a := NewManager()
	b := NewManager()

	a.GetPrometheusMetrics().RecordAuthEvent("login_success")

	assert.Contains(t, scrape(t, a), `siidaa_admin_auth_events_total{event="login_success"} 1`)
	assert.NotContains(t, scrape(t, b), `siidaa_admin_auth_events_total{event="login_success"}`)
}

func TestRecorders(t *testing.T) {
	mgr := NewManager()
	m := mgr.GetPrometheusMetrics()

	m.RecordAPIRequest("GET", "/artists/", "200", 15*time.Millisecond)
	m.RecordLogEntry("ERROR", "API")
	m.UpdateLogStoreSize(42)
	m.UpdateSessionActive(true)
	m.RecordUnauthorized()
	mgr.UpdateSystemMetrics()

	body := scrape(t, mgr)
	assert.Contains(t, body, `siidaa_admin_api_requests_total{endpoint="/artists/",method="GET",status="200"} 1`)
	assert.Contains(t, body, `siidaa_admin_log_entries_total{category="API",level="ERROR"} 1`)
	assert.Contains(t, body, "siidaa_admin_log_store_entries 42")
	assert.Contains(t, body, "siidaa_admin_session_authenticated 1")
	assert.Contains(t, body, "siidaa_admin_api_unauthorized_total 1")
	assert.Contains(t, body, "siidaa_admin_uptime_seconds")
	t.Logf("✓ metrics exposed on the manager registry")
}
