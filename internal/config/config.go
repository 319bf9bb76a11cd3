// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvironmentDevelopment = "development"
	EnvironmentProduction  = "production"
)

// Config holds all configuration for the application
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	API         APIConfig         `mapstructure:"api"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Diagnostics DiagnosticsConfig `mapstructure:"diagnostics"`
	Session     SessionConfig     `mapstructure:"session"`
	Server      ServerConfig      `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Alerts      AlertsConfig      `mapstructure:"alerts"`
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// IsProduction reports whether the console runs with production defaults
func (a AppConfig) IsProduction() bool {
	return strings.EqualFold(a.Environment, EnvironmentProduction)
}

// APIConfig describes the remote Siidaa backend
type APIConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	ProbeEndpoints []string      `mapstructure:"probe_endpoints"`
}

// StorageConfig contains durable key-value store configuration
type StorageConfig struct {
	Type             string        `mapstructure:"type"` // sqlite, postgres, redis, memory
	ConnectionString string        `mapstructure:"connection_string"`
	MaxConnections   int           `mapstructure:"max_connections"`
	MaxIdleTime      time.Duration `mapstructure:"max_idle_time"`
	Namespace        string        `mapstructure:"namespace"`
	QuotaBytes       int           `mapstructure:"quota_bytes"`
	RedisPassword    string        `mapstructure:"redis_password"`
	RedisDB          int           `mapstructure:"redis_db"`
}

// DiagnosticsConfig contains log store configuration
type DiagnosticsConfig struct {
	MaxEntries       int    `mapstructure:"max_entries"`
	PersistedEntries int    `mapstructure:"persisted_entries"`
	MinLevel         string `mapstructure:"min_level"` // empty means derived from app.environment
	SnapshotKey      string `mapstructure:"snapshot_key"`
}

// SessionConfig contains login session configuration
type SessionConfig struct {
	LoginPath string `mapstructure:"login_path"`
}

// ServerConfig contains dashboard HTTP server configuration
type ServerConfig struct {
	Port          int           `mapstructure:"port"`
	Host          string        `mapstructure:"host"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	EnableMetrics bool          `mapstructure:"enable_metrics"`
	EnableHealth  bool          `mapstructure:"enable_health"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
	Output string `mapstructure:"output"` // stdout, stderr, file
	File   string `mapstructure:"file"`
}

// AlertsConfig contains webhook alerting for ERROR diagnostics
type AlertsConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	WebhookURL    string        `mapstructure:"webhook_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	QueueSize     int           `mapstructure:"queue_size"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("SIIDAA_ADMIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Same variable the web dashboard used for its backend URL
	if apiURL := os.Getenv("ADMIN_API_URL"); apiURL != "" {
		config.API.BaseURL = apiURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" && config.Storage.Type == "postgres" {
		config.Storage.ConnectionString = dbURL
	}
	config.API.BaseURL = strings.TrimRight(strings.TrimSpace(config.API.BaseURL), "/")

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "siidaa-admin")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", EnvironmentDevelopment)
	v.SetDefault("app.debug", false)

	v.SetDefault("api.base_url", "http://localhost:8000")
	v.SetDefault("api.request_timeout", "30s")
	v.SetDefault("api.probe_endpoints", []string{"/api/health/", "/api/token/", "/api/artists/", "/"})

	v.SetDefault("storage.type", "sqlite")
	v.SetDefault("storage.connection_string", "./data/admin.db")
	v.SetDefault("storage.max_connections", 4)
	v.SetDefault("storage.max_idle_time", "15m")
	v.SetDefault("storage.namespace", "siidaa")
	v.SetDefault("storage.quota_bytes", 5<<20)
	v.SetDefault("storage.redis_db", 0)

	v.SetDefault("diagnostics.max_entries", 1000)
	v.SetDefault("diagnostics.persisted_entries", 100)
	v.SetDefault("diagnostics.min_level", "")
	v.SetDefault("diagnostics.snapshot_key", "siidaa_admin_logs")

	v.SetDefault("session.login_path", "/login")

	v.SetDefault("server.port", 8081)
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.enable_metrics", true)
	v.SetDefault("server.enable_health", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("alerts.enabled", false)
	v.SetDefault("alerts.timeout", "10s")
	v.SetDefault("alerts.retry_attempts", 3)
	v.SetDefault("alerts.retry_delay", "2s")
	v.SetDefault("alerts.queue_size", 100)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api base URL is required")
	}
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return fmt.Errorf("api base URL must be http(s): %s", c.API.BaseURL)
	}
	switch strings.ToLower(c.Storage.Type) {
	case "memory":
	case "sqlite", "postgres", "postgresql", "redis":
		if c.Storage.ConnectionString == "" {
			return fmt.Errorf("storage connection string is required")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}
	if c.Diagnostics.MaxEntries <= 0 {
		return fmt.Errorf("diagnostics max entries must be positive")
	}
	if c.Diagnostics.PersistedEntries < 0 || c.Diagnostics.PersistedEntries > c.Diagnostics.MaxEntries {
		return fmt.Errorf("diagnostics persisted entries must be between 0 and max entries")
	}
	if c.Alerts.Enabled && c.Alerts.WebhookURL == "" {
		return fmt.Errorf("alerts webhook URL is required when alerts are enabled")
	}
	return nil
}
