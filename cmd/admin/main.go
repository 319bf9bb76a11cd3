// File: cmd/admin/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/siidaa/admin-console/internal/api"
	"github.com/siidaa/admin-console/internal/catalog"
	"github.com/siidaa/admin-console/internal/config"
	"github.com/siidaa/admin-console/internal/diagnostics"
	"github.com/siidaa/admin-console/internal/metrics"
	"github.com/siidaa/admin-console/internal/models"
	"github.com/siidaa/admin-console/internal/notification"
	"github.com/siidaa/admin-console/internal/server"
	"github.com/siidaa/admin-console/internal/session"
	"github.com/siidaa/admin-console/internal/storage"
	"github.com/siidaa/admin-console/pkg/utils"
)

// AppVersion contains the application version
const AppVersion = "1.0.0"

// Application wires the console components together
type Application struct {
	config  *config.Config
	logger  *logrus.Logger
	metrics *metrics.Manager
	storage storage.Storage
	logs    *diagnostics.Store
	alerter *notification.Alerter
	session *session.Manager
	client  *api.Client
	catalog *catalog.Client
	prober  *diagnostics.Prober
	server  *server.HTTPServer
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewApplication creates an application with every component except the
// dashboard server, and restores the persisted logs and session
func NewApplication(cfg *config.Config) (*Application, error) {
	ctx, cancel := context.WithCancel(context.Background())

	app := &Application{
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
	}

	if err := app.initializeLogger(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := app.initializeComponents(); err != nil {
		app.Stop()
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}

	return app, nil
}

// initializeLogger initializes the application logger
func (app *Application) initializeLogger() error {
	logCfg := app.config.Logging

	if err := utils.InitLogger(logCfg.Level, logCfg.Format, logCfg.Output, logCfg.File); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.logger = utils.GetLogger()
	app.logger.WithFields(logrus.Fields{
		"level":  logCfg.Level,
		"format": logCfg.Format,
		"output": logCfg.Output,
	}).Debug("Logger initialized")

	return nil
}

// initializeComponents initializes all application components
func (app *Application) initializeComponents() error {
	app.metrics = metrics.NewManager()

	if err := app.initializeStorage(); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := app.initializeDiagnostics(); err != nil {
		return fmt.Errorf("failed to initialize diagnostics: %w", err)
	}

	if err := app.initializeAlerts(); err != nil {
		return fmt.Errorf("failed to initialize alerts: %w", err)
	}

	app.initializeSession()

	app.logger.Debug("All components initialized successfully")
	return nil
}

// initializeStorage opens the durable key-value store
func (app *Application) initializeStorage() error {
	store, err := storage.Open(&app.config.Storage)
	if err != nil {
		return err
	}
	app.storage = storage.NewStorageWithMetrics(store, app.metrics)

	app.logger.WithField("backend", store.Backend()).Debug("Storage initialized")
	return nil
}

// initializeDiagnostics creates the log store and restores the last snapshot
func (app *Application) initializeDiagnostics() error {
	opts, err := diagnostics.OptionsFromConfig(app.config)
	if err != nil {
		return err
	}

	app.logs = diagnostics.NewStore(opts, app.storage, app.logger, app.metrics)
	app.logs.Restore(app.ctx)
	app.prober = diagnostics.NewProber(app.config.API.BaseURL, app.config.API.RequestTimeout, app.logs)
	return nil
}

// initializeAlerts attaches the webhook alerter as a log store sink
func (app *Application) initializeAlerts() error {
	if !app.config.Alerts.Enabled {
		return nil
	}

	app.alerter = notification.NewAlerter(&app.config.Alerts, app.logger, app.metrics)
	if err := app.alerter.Start(app.ctx); err != nil {
		return fmt.Errorf("failed to start alerter: %w", err)
	}
	app.logs.AddSink(app.alerter)
	return nil
}

// initializeSession restores the session and builds the backend clients
func (app *Application) initializeSession() {
	app.session = session.NewManager(&app.config.API, app.storage, app.logs, app.metrics, app.logger)
	app.session.Restore(app.ctx)

	app.client = api.NewClient(&app.config.API, app.session, app.logs, app.metrics)
	app.client.OnUnauthorized(func() {
		app.logger.WithField("redirect", app.config.Session.LoginPath).Warn("Session expired, sign in again")
	})
	app.catalog = catalog.NewClient(app.client)
}

// initializeServer creates the dashboard server
func (app *Application) initializeServer() error {
	var err error
	app.server, err = server.NewHTTPServer(server.Components{
		Config:  app.config,
		Session: app.session,
		Logs:    app.logs,
		Prober:  app.prober,
		Catalog: app.catalog,
		Storage: app.storage,
		Alerter: app.alerter,
		Metrics: app.metrics,
	})
	return err
}

// Start starts the dashboard server
func (app *Application) Start() error {
	if err := app.initializeServer(); err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}
	if err := app.server.Start(app.ctx); err != nil {
		return err
	}

	app.logs.Info(models.CategorySystem, "Admin console started", map[string]interface{}{
		"version":     AppVersion,
		"environment": app.config.App.Environment,
		"api_url":     app.config.API.BaseURL,
	})
	return nil
}

// Stop stops the application gracefully
func (app *Application) Stop() error {
	app.cancel()

	if app.server != nil {
		if err := app.server.Stop(); err != nil {
			app.logger.WithError(err).Error("Failed to stop HTTP server")
		}
	}

	if app.alerter != nil {
		if err := app.alerter.Stop(); err != nil {
			app.logger.WithError(err).Error("Failed to stop alerter")
		}
	}

	if app.storage != nil {
		if err := app.storage.Close(); err != nil {
			app.logger.WithError(err).Error("Failed to close storage")
		}
	}

	return nil
}

// loadConfig loads configuration and applies command line overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if level := viper.GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if viper.GetBool("debug") {
		cfg.App.Debug = true
		cfg.Logging.Level = "debug"
	}
	if apiURL := viper.GetString("api-url"); apiURL != "" {
		cfg.API.BaseURL = strings.TrimRight(apiURL, "/")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// withApplication runs fn against a fully initialized application
func withApplication(fn func(app *Application) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	app, err := NewApplication(cfg)
	if err != nil {
		return err
	}
	defer app.Stop()

	return fn(app)
}

// main is the entry point
func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
