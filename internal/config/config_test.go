package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ADMIN_API_URL", "")
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "siidaa-admin", cfg.App.Name)
	assert.Equal(t, EnvironmentDevelopment, cfg.App.Environment)
	assert.False(t, cfg.App.IsProduction())
	assert.Equal(t, "http://localhost:8000", cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.API.RequestTimeout)
	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.Equal(t, 1000, cfg.Diagnostics.MaxEntries)
	assert.Equal(t, 100, cfg.Diagnostics.PersistedEntries)
	assert.Equal(t, "siidaa_admin_logs", cfg.Diagnostics.SnapshotKey)
	assert.Equal(t, "/login", cfg.Session.LoginPath)
	require.NoError(t, cfg.Validate())
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "admin.yaml")
	content := `
app:
  environment: production
api:
  base_url: https://api.example.com/
storage:
  type: memory
diagnostics:
  max_entries: 50
  persisted_entries: 10
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("SIIDAA_ADMIN_SERVER_PORT", "9099")
	t.Setenv("ADMIN_API_URL", "")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.App.IsProduction())
	assert.Equal(t, "https://api.example.com", cfg.API.BaseURL)
	assert.Equal(t, "memory", cfg.Storage.Type)
	assert.Equal(t, 50, cfg.Diagnostics.MaxEntries)
	assert.Equal(t, 9099, cfg.Server.Port)
	require.NoError(t, cfg.Validate())
}

func TestAPIURLOverride(t *testing.T) {
	t.Setenv("ADMIN_API_URL", "http://10.0.0.5:8000")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:8000", cfg.API.BaseURL)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			API:         APIConfig{BaseURL: "http://localhost:8000"},
			Storage:     StorageConfig{Type: "memory"},
			Diagnostics: DiagnosticsConfig{MaxEntries: 1000, PersistedEntries: 100},
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"missing base url", func(c *Config) { c.API.BaseURL = "" }},
		{"non http base url", func(c *Config) { c.API.BaseURL = "ftp://host" }},
		{"unknown storage", func(c *Config) { c.Storage.Type = "mongo" }},
		{"sqlite without path", func(c *Config) { c.Storage.Type = "sqlite" }},
		{"zero capacity", func(c *Config) { c.Diagnostics.MaxEntries = 0 }},
		{"persisted above capacity", func(c *Config) { c.Diagnostics.PersistedEntries = 2000 }},
		{"alerts without webhook", func(c *Config) { c.Alerts.Enabled = true }},
	}

	require.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
