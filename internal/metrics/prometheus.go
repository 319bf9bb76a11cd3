package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics contains all Prometheus metrics for the admin console
type PrometheusMetrics struct {
	// Backend API metrics
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec
	UnauthorizedTotal  prometheus.Counter

	// Session metrics
	AuthEventsTotal *prometheus.CounterVec
	SessionActive   prometheus.Gauge

	// Diagnostic log metrics
	LogEntriesTotal *prometheus.CounterVec
	LogStoreSize    prometheus.Gauge
	PersistFailures prometheus.Counter

	// Storage metrics
	StorageOperationsTotal   *prometheus.CounterVec
	StorageOperationDuration *prometheus.HistogramVec

	// Notification metrics
	NotificationsSentTotal    *prometheus.CounterVec
	NotificationFailuresTotal *prometheus.CounterVec
	NotificationDuration      *prometheus.HistogramVec

	// Dashboard HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Application health metrics
	ApplicationUptime prometheus.Gauge
	ComponentHealth   *prometheus.GaugeVec
	MemoryUsage       prometheus.Gauge
	GoroutineCount    prometheus.Gauge
}

// NewPrometheusMetrics creates all metrics and registers them on reg
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		APIRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siidaa_admin_api_requests_total",
				Help: "Total number of requests made to the Siidaa backend",
			},
			[]string{"method", "endpoint", "status"},
		),

		APIRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "siidaa_admin_api_request_duration_seconds",
				Help:    "Duration of requests made to the Siidaa backend",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		UnauthorizedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "siidaa_admin_api_unauthorized_total",
				Help: "Total number of backend responses that invalidated the session",
			},
		),

		AuthEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siidaa_admin_auth_events_total",
				Help: "Total number of session lifecycle events",
			},
			[]string{"event"},
		),

		SessionActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "siidaa_admin_session_authenticated",
				Help: "Whether an operator session is currently authenticated (1 = yes)",
			},
		),

		LogEntriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siidaa_admin_log_entries_total",
				Help: "Total number of diagnostic entries accepted by the log store",
			},
			[]string{"level", "category"},
		),

		LogStoreSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "siidaa_admin_log_store_entries",
				Help: "Number of diagnostic entries currently held in memory",
			},
		),

		PersistFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "siidaa_admin_log_persist_failures_total",
				Help: "Total number of failed diagnostic snapshot writes",
			},
		),

		StorageOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siidaa_admin_storage_operations_total",
				Help: "Total number of durable key-value operations",
			},
			[]string{"operation", "backend", "status"},
		),

		StorageOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "siidaa_admin_storage_operation_duration_seconds",
				Help:    "Duration of durable key-value operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "backend"},
		),

		NotificationsSentTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siidaa_admin_notifications_sent_total",
				Help: "Total number of alerts delivered",
			},
			[]string{"channel", "category"},
		),

		NotificationFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siidaa_admin_notification_failures_total",
				Help: "Total number of alerts that could not be delivered",
			},
			[]string{"channel", "category", "error_type"},
		),

		NotificationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "siidaa_admin_notification_duration_seconds",
				Help:    "Time spent delivering alerts",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"channel"},
		),

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siidaa_admin_http_requests_total",
				Help: "Total number of dashboard HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "siidaa_admin_http_request_duration_seconds",
				Help:    "Duration of dashboard HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		ApplicationUptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "siidaa_admin_uptime_seconds",
				Help: "Application uptime in seconds",
			},
		),

		ComponentHealth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "siidaa_admin_component_health",
				Help: "Health status of application components (1 = healthy, 0 = unhealthy)",
			},
			[]string{"component"},
		),

		MemoryUsage: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "siidaa_admin_memory_usage_bytes",
				Help: "Current memory usage in bytes",
			},
		),

		GoroutineCount: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "siidaa_admin_goroutines",
				Help: "Number of active goroutines",
			},
		),
	}
}

// RecordAPIRequest records a backend request with its outcome
func (m *PrometheusMetrics) RecordAPIRequest(method, endpoint, status string, duration time.Duration) {
	m.APIRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	m.APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordUnauthorized records a 401 that invalidated the session
func (m *PrometheusMetrics) RecordUnauthorized() {
	m.UnauthorizedTotal.Inc()
}

// RecordAuthEvent records a session event such as login_success or logout
func (m *PrometheusMetrics) RecordAuthEvent(event string) {
	m.AuthEventsTotal.WithLabelValues(event).Inc()
}

// UpdateSessionActive sets the authenticated gauge
func (m *PrometheusMetrics) UpdateSessionActive(active bool) {
	if active {
		m.SessionActive.Set(1)
	} else {
		m.SessionActive.Set(0)
	}
}

// RecordLogEntry records an accepted diagnostic entry
func (m *PrometheusMetrics) RecordLogEntry(level, category string) {
	m.LogEntriesTotal.WithLabelValues(level, category).Inc()
}

// UpdateLogStoreSize sets the in-memory entry count
func (m *PrometheusMetrics) UpdateLogStoreSize(count int) {
	m.LogStoreSize.Set(float64(count))
}

// RecordPersistFailure records a failed snapshot write
func (m *PrometheusMetrics) RecordPersistFailure() {
	m.PersistFailures.Inc()
}

// RecordStorageOperation records a key-value operation
func (m *PrometheusMetrics) RecordStorageOperation(operation, backend, status string, duration time.Duration) {
	m.StorageOperationsTotal.WithLabelValues(operation, backend, status).Inc()
	m.StorageOperationDuration.WithLabelValues(operation, backend).Observe(duration.Seconds())
}

// RecordNotificationSent records a successful notification
func (m *PrometheusMetrics) RecordNotificationSent(channel, category string, duration time.Duration) {
	m.NotificationsSentTotal.WithLabelValues(channel, category).Inc()
	m.NotificationDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

// RecordNotificationFailure records a failed notification
func (m *PrometheusMetrics) RecordNotificationFailure(channel, category, errorType string) {
	m.NotificationFailuresTotal.WithLabelValues(channel, category, errorType).Inc()
}

// RecordHTTPRequest records a dashboard HTTP request
func (m *PrometheusMetrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// UpdateApplicationUptime updates the application uptime
func (m *PrometheusMetrics) UpdateApplicationUptime(startTime time.Time) {
	m.ApplicationUptime.Set(time.Since(startTime).Seconds())
}

// UpdateComponentHealth updates the health status of a component
func (m *PrometheusMetrics) UpdateComponentHealth(component string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	m.ComponentHealth.WithLabelValues(component).Set(value)
}

// UpdateMemoryUsage updates memory usage
func (m *PrometheusMetrics) UpdateMemoryUsage(bytes uint64) {
	m.MemoryUsage.Set(float64(bytes))
}

// UpdateGoroutineCount updates the goroutine count
func (m *PrometheusMetrics) UpdateGoroutineCount(count int) {
	m.GoroutineCount.Set(float64(count))
}
