// File: internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/siidaa/admin-console/internal/api"
	"github.com/siidaa/admin-console/internal/catalog"
	"github.com/siidaa/admin-console/internal/config"
	"github.com/siidaa/admin-console/internal/diagnostics"
	"github.com/siidaa/admin-console/internal/metrics"
	"github.com/siidaa/admin-console/internal/models"
	"github.com/siidaa/admin-console/internal/notification"
	"github.com/siidaa/admin-console/internal/session"
	"github.com/siidaa/admin-console/internal/storage"
	"github.com/siidaa/admin-console/pkg/utils"
)

// Route prefixes reachable without a session
var publicPrefixes = []string{"/api/v1/session/login", "/api/v1/debug"}

// Components are the collaborators the dashboard exposes
type Components struct {
	Config  *config.Config
	Session *session.Manager
	Logs    *diagnostics.Store
	Prober  *diagnostics.Prober
	Catalog *catalog.Client
	Storage storage.Storage
	Alerter *notification.Alerter // optional
	Metrics *metrics.Manager      // optional
}

// HTTPServer serves the diagnostics dashboard API
type HTTPServer struct {
	config         *config.ServerConfig
	appConfig      *config.Config
	server         *http.Server
	router         *mux.Router
	session        *session.Manager
	logs           *diagnostics.Store
	prober         *diagnostics.Prober
	catalog        *catalog.Client
	storage        storage.Storage
	alerter        *notification.Alerter
	metricsManager *metrics.Manager
	logger         *logrus.Entry
	startTime      time.Time
	loginPath      string
}

// NewHTTPServer creates a new HTTP server
func NewHTTPServer(c Components) (*HTTPServer, error) {
	if c.Config == nil || c.Session == nil || c.Logs == nil {
		return nil, utils.NewAppError(utils.ErrCodeConfiguration, "Incomplete server components",
			"config, session and logs are required")
	}

	loginPath := c.Config.Session.LoginPath
	if loginPath == "" {
		loginPath = "/login"
	}

	server := &HTTPServer{
		config:         &c.Config.Server,
		appConfig:      c.Config,
		session:        c.Session,
		logs:           c.Logs,
		prober:         c.Prober,
		catalog:        c.Catalog,
		storage:        c.Storage,
		alerter:        c.Alerter,
		metricsManager: c.Metrics,
		logger:         utils.GetLogger().WithField("component", "http_server"),
		startTime:      time.Now(),
		loginPath:      loginPath,
	}

	server.setupRouter()

	server.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", server.config.Host, server.config.Port),
		Handler:      server.router,
		ReadTimeout:  server.config.ReadTimeout,
		WriteTimeout: server.config.WriteTimeout,
	}

	return server, nil
}

// Handler returns the root handler
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

// setupRouter sets up the HTTP routes
func (s *HTTPServer) setupRouter() {
	s.router = mux.NewRouter()

	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.corsMiddleware)
	if s.metricsManager != nil {
		s.router.Use(s.metricsMiddleware)
	}

	if s.config.EnableMetrics && s.metricsManager != nil {
		s.router.Handle("/metrics", s.metricsManager.Handler()).Methods("GET")
	}

	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.Use(s.authMiddleware)

	// Debug
	if s.config.EnableHealth {
		v1.HandleFunc("/debug/health", s.healthHandler).Methods("GET")
	}
	v1.HandleFunc("/debug/environment", s.environmentHandler).Methods("GET")
	v1.HandleFunc("/debug/connectivity", s.connectivityHandler).Methods("POST")

	// Logs
	v1.HandleFunc("/logs", s.listLogsHandler).Methods("GET")
	v1.HandleFunc("/logs", s.clearLogsHandler).Methods("DELETE")
	v1.HandleFunc("/logs/stats", s.logStatsHandler).Methods("GET")
	v1.HandleFunc("/logs/export", s.exportLogsHandler).Methods("GET")

	// Session
	v1.HandleFunc("/session", s.sessionHandler).Methods("GET")
	v1.HandleFunc("/session/login", s.loginHandler).Methods("POST")
	v1.HandleFunc("/session/logout", s.logoutHandler).Methods("POST")
	v1.HandleFunc("/session/refresh", s.refreshHandler).Methods("POST")

	// Catalog
	v1.HandleFunc("/catalog/summary", s.summaryHandler).Methods("GET")
	v1.HandleFunc("/catalog/{kind}", s.listCatalogHandler).Methods("GET")
	v1.HandleFunc("/catalog/{kind}/{id:[0-9]+}", s.getCatalogHandler).Methods("GET")
	v1.HandleFunc("/catalog/{kind}/{id:[0-9]+}", s.deleteCatalogHandler).Methods("DELETE")

	// Payments
	v1.HandleFunc("/payments/transactions", s.transactionsHandler).Methods("GET")
	v1.HandleFunc("/payments/purchases", s.purchasesHandler).Methods("GET")

	// Preflight for any path; corsMiddleware answers it
	s.router.PathPrefix("/").Methods("OPTIONS").HandlerFunc(func(http.ResponseWriter, *http.Request) {})
}

// Start starts the HTTP server
func (s *HTTPServer) Start(ctx context.Context) error {
	s.logger.WithFields(logrus.Fields{
		"address":         s.server.Addr,
		"metrics_enabled": s.config.EnableMetrics,
	}).Info("Starting HTTP server")

	if s.metricsManager != nil {
		s.updateComponentMetrics()
		go s.systemMetricsUpdater(ctx)
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("HTTP server error")
			errChan <- err
		}
	}()

	// Catch immediate binding errors
	select {
	case err := <-errChan:
		return fmt.Errorf("failed to start HTTP server: %w", err)
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// systemMetricsUpdater updates system metrics periodically
func (s *HTTPServer) systemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.updateComponentMetrics()
		}
	}
}

func (s *HTTPServer) updateComponentMetrics() {
	s.metricsManager.UpdateSystemMetrics()
	pm := s.metricsManager.GetPrometheusMetrics()
	pm.UpdateSessionActive(s.session.IsAuthenticated())
	pm.UpdateLogStoreSize(s.logs.Len())
	if s.storage != nil {
		pm.UpdateComponentHealth("storage", s.storage.Ping() == nil)
	}
	if s.alerter != nil {
		pm.UpdateComponentHealth("alerter", s.alerter.GetStats().Running)
	}
}

// Stop stops the HTTP server
func (s *HTTPServer) Stop() error {
	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// Debug handlers

// healthHandler returns dashboard health and component status
func (s *HTTPServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	components := map[string]interface{}{
		"log_store": map[string]interface{}{"entries": s.logs.Len(), "min_level": s.logs.MinLevel().String()},
		"session":   s.session.State(),
	}
	status := "healthy"
	if s.storage != nil {
		storageHealth := map[string]interface{}{"backend": s.storage.Backend(), "healthy": true}
		if err := s.storage.Ping(); err != nil {
			storageHealth["healthy"] = false
			storageHealth["error"] = err.Error()
			status = "degraded"
		}
		components["storage"] = storageHealth
	}
	if s.alerter != nil {
		components["alerts"] = s.alerter.GetStats()
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":          status,
		"timestamp":       time.Now().UTC().Format(time.RFC3339Nano),
		"version":         s.appConfig.App.Version,
		"uptime":          time.Since(s.startTime).Round(time.Second).String(),
		"metrics_enabled": s.config.EnableMetrics,
		"components":      components,
	})
}

// environmentHandler returns a fresh environment snapshot
func (s *HTTPServer) environmentHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, diagnostics.EnvironmentSnapshot(r.Context(), s.appConfig, s.storage, s.logs))
}

// connectivityHandler probes the backend. An optional JSON body
// {"endpoints": [...]} overrides the configured endpoints.
func (s *HTTPServer) connectivityHandler(w http.ResponseWriter, r *http.Request) {
	if s.prober == nil {
		s.writeError(w, http.StatusServiceUnavailable, "Connectivity probe is not configured", nil)
		return
	}

	endpoints := s.appConfig.API.ProbeEndpoints
	if r.ContentLength != 0 {
		r.Body = http.MaxBytesReader(w, r.Body, 16<<10)
		var req struct {
			Endpoints []string `json:"endpoints"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid JSON", err)
			return
		}
		if len(req.Endpoints) > 0 {
			if err := diagnostics.ValidateEndpoints(req.Endpoints); err != nil {
				s.writeError(w, http.StatusBadRequest, "Invalid endpoints", err)
				return
			}
			endpoints = req.Endpoints
		}
	}

	results := s.prober.Probe(r.Context(), endpoints)
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"base_url": s.appConfig.API.BaseURL,
		"results":  results,
	})
}

// Log handlers

// listLogsHandler returns entries newest first, filtered by query params
func (s *HTTPServer) listLogsHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := models.LogFilter{Category: query.Get("category")}

	if levelStr := query.Get("level"); levelStr != "" {
		level, err := models.ParseLevel(levelStr)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid level parameter", err)
			return
		}
		filter.MinLevel = &level
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			s.writeError(w, http.StatusBadRequest, "Invalid limit parameter", err)
			return
		}
		filter.Limit = limit
	}

	entries := s.logs.Query(filter)
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"logs":  entries,
		"count": len(entries),
	})
}

// logStatsHandler returns aggregate counts
func (s *HTTPServer) logStatsHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.logs.Stats())
}

// exportLogsHandler downloads the export document
func (s *HTTPServer) exportLogsHandler(w http.ResponseWriter, r *http.Request) {
	data, err := s.logs.Export()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to export logs", err)
		return
	}

	filename := fmt.Sprintf("siidaa-admin-logs-%s.json", time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// clearLogsHandler empties the store
func (s *HTTPServer) clearLogsHandler(w http.ResponseWriter, r *http.Request) {
	s.logs.Clear()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"message": "Logs cleared"})
}

// Session handlers

func (s *HTTPServer) sessionHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *HTTPServer) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}
	if req.Username == "" || req.Password == "" {
		s.writeError(w, http.StatusBadRequest, "Username and password are required", nil)
		return
	}

	if err := s.session.Login(r.Context(), req.Username, req.Password); err != nil {
		switch {
		case errors.Is(err, session.ErrLoginInProgress):
			s.writeError(w, http.StatusConflict, err.Error(), nil)
		case errors.Is(err, session.ErrInvalidCredentials):
			s.writeError(w, http.StatusUnauthorized, err.Error(), nil)
		case errors.Is(err, session.ErrProfileFetchFailed):
			s.writeError(w, http.StatusBadGateway, err.Error(), err)
		default:
			s.writeError(w, http.StatusBadGateway, "Login failed", err)
		}
		return
	}

	s.writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *HTTPServer) logoutHandler(w http.ResponseWriter, r *http.Request) {
	s.session.Logout(r.Context())
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "Logged out",
		"redirect": s.loginPath,
	})
}

func (s *HTTPServer) refreshHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Refresh(r.Context()); err != nil {
		s.writeRedirect(w)
		return
	}
	s.writeJSON(w, http.StatusOK, s.session.Snapshot())
}

// Catalog handlers

func (s *HTTPServer) summaryHandler(w http.ResponseWriter, r *http.Request) {
	if !s.requireCatalog(w) {
		return
	}
	summary, err := s.catalog.Summary(r.Context())
	if err != nil {
		s.writeBackendError(w, "Failed to load summary", err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *HTTPServer) listCatalogHandler(w http.ResponseWriter, r *http.Request) {
	if !s.requireCatalog(w) {
		return
	}
	kind := mux.Vars(r)["kind"]
	items, err := s.catalog.List(r.Context(), kind)
	if err != nil {
		s.writeBackendError(w, "Failed to list "+kind, err)
		return
	}
	s.writeJSON(w, http.StatusOK, items)
}

func (s *HTTPServer) getCatalogHandler(w http.ResponseWriter, r *http.Request) {
	if !s.requireCatalog(w) {
		return
	}
	vars := mux.Vars(r)
	id, _ := strconv.ParseInt(vars["id"], 10, 64)
	item, err := s.catalog.Get(r.Context(), vars["kind"], id)
	if err != nil {
		s.writeBackendError(w, "Failed to get "+vars["kind"], err)
		return
	}
	s.writeJSON(w, http.StatusOK, item)
}

func (s *HTTPServer) deleteCatalogHandler(w http.ResponseWriter, r *http.Request) {
	if !s.requireCatalog(w) {
		return
	}
	vars := mux.Vars(r)
	id, _ := strconv.ParseInt(vars["id"], 10, 64)
	if err := s.catalog.Delete(r.Context(), vars["kind"], id); err != nil {
		s.writeBackendError(w, "Failed to delete "+vars["kind"], err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"message": "Deleted", "id": id})
}

func (s *HTTPServer) transactionsHandler(w http.ResponseWriter, r *http.Request) {
	if !s.requireCatalog(w) {
		return
	}
	transactions, err := s.catalog.PaymentTransactions(r.Context())
	if err != nil {
		s.writeBackendError(w, "Failed to list transactions", err)
		return
	}
	s.writeJSON(w, http.StatusOK, transactions)
}

func (s *HTTPServer) purchasesHandler(w http.ResponseWriter, r *http.Request) {
	if !s.requireCatalog(w) {
		return
	}
	purchases, err := s.catalog.Purchases(r.Context())
	if err != nil {
		s.writeBackendError(w, "Failed to list purchases", err)
		return
	}
	s.writeJSON(w, http.StatusOK, purchases)
}

func (s *HTTPServer) requireCatalog(w http.ResponseWriter) bool {
	if s.catalog == nil {
		s.writeError(w, http.StatusServiceUnavailable, "Catalog client is not configured", nil)
		return false
	}
	return true
}

// Utility Methods

// writeJSON writes a JSON response
func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string, err error) {
	errorResponse := map[string]interface{}{
		"error":     message,
		"status":    status,
		"timestamp": time.Now().UTC(),
	}

	if err != nil {
		errorResponse["details"] = err.Error()
		s.logger.WithFields(logrus.Fields{
			"status":  status,
			"message": message,
		}).WithError(err).Error("HTTP error")
	}

	s.writeJSON(w, status, errorResponse)
}

// writeRedirect answers 401 with the login redirect body
func (s *HTTPServer) writeRedirect(w http.ResponseWriter) {
	s.writeJSON(w, http.StatusUnauthorized, map[string]string{
		"error":    "authentication required",
		"redirect": s.loginPath,
	})
}

// writeBackendError maps request helper failures onto dashboard responses
func (s *HTTPServer) writeBackendError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, api.ErrUnauthorized):
		s.writeRedirect(w)
	case utils.ErrorCode(err) == utils.ErrCodeValidation:
		s.writeError(w, http.StatusBadRequest, message, err)
	case api.StatusCode(err) == http.StatusNotFound:
		s.writeError(w, http.StatusNotFound, message, err)
	default:
		s.writeError(w, http.StatusBadGateway, message, err)
	}
}
