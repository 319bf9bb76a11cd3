// Package notification forwards ERROR diagnostics to an operator webhook.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/siidaa/admin-console/internal/config"
	"github.com/siidaa/admin-console/internal/metrics"
	"github.com/siidaa/admin-console/internal/models"
)

const (
	AlertPending = "pending"
	AlertSent    = "sent"
	AlertFailed  = "failed"

	channelWebhook = "webhook"
)

// AlertStats provides alert delivery statistics
type AlertStats struct {
	Queued        uint64     `json:"queued"`
	Sent          uint64     `json:"sent"`
	Failed        uint64     `json:"failed"`
	Dropped       uint64     `json:"dropped"`
	QueueLength   int        `json:"queue_length"`
	Running       bool       `json:"running"`
	LastError     *string    `json:"last_error,omitempty"`
	LastErrorTime *time.Time `json:"last_error_time,omitempty"`
}

type queuedAlert struct {
	alert *models.Alert
	entry models.LogEntry
}

// Alerter is a log store sink that queues ERROR entries and delivers them
// from a single worker. Delivery failures go to the console only.
type Alerter struct {
	sender         *WebhookSender
	logger         *logrus.Entry
	metricsManager *metrics.Manager
	target         string

	queue chan queuedAlert

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	stats   AlertStats
}

// NewAlerter creates an alerter from configuration
func NewAlerter(cfg *config.AlertsConfig, logger *logrus.Logger, metricsManager *metrics.Manager) *Alerter {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 100
	}
	retry := RetryConfig{
		MaxAttempts: cfg.RetryAttempts,
		BaseDelay:   cfg.RetryDelay,
		Backoff:     "exponential",
	}

	return &Alerter{
		sender:         NewWebhookSender(cfg.WebhookURL, cfg.Timeout, retry, logger),
		logger:         logger.WithField("component", "alerter"),
		metricsManager: metricsManager,
		target:         cfg.WebhookURL,
		queue:          make(chan queuedAlert, queueSize),
	}
}

// Start launches the delivery worker
func (a *Alerter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})
	a.running = true

	go a.worker(ctx, a.done)
	a.logger.WithField("target", a.target).Info("Alerter started")
	return nil
}

// Stop stops the worker. Alerts still queued are dropped.
func (a *Alerter) Stop() error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	cancel, done := a.cancel, a.done
	a.mu.Unlock()

	cancel()
	<-done
	a.logger.Info("Alerter stopped")
	return nil
}

// HandleEntry queues ERROR entries for delivery without blocking
func (a *Alerter) HandleEntry(entry models.LogEntry) {
	if entry.Level < models.LevelError {
		return
	}

	alert := &models.Alert{
		ID:        uuid.NewString(),
		EntryID:   entry.ID,
		Title:     "[" + entry.Category + "] " + entry.Message,
		Message:   entry.Message,
		Category:  entry.Category,
		Target:    a.target,
		Status:    AlertPending,
		CreatedAt: time.Now().UTC(),
	}
	if entry.Error != nil {
		alert.Message = entry.Message + ": " + entry.Error.Message
	}

	select {
	case a.queue <- queuedAlert{alert: alert, entry: entry}:
		a.mu.Lock()
		a.stats.Queued++
		a.mu.Unlock()
	default:
		a.mu.Lock()
		a.stats.Dropped++
		a.mu.Unlock()
		a.logger.WithField("entry_id", entry.ID).Warn("Alert queue full, dropping alert")
	}
}

// GetStats returns delivery statistics
func (a *Alerter) GetStats() AlertStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	stats := a.stats
	stats.QueueLength = len(a.queue)
	stats.Running = a.running
	return stats
}

func (a *Alerter) worker(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-a.queue:
			a.deliver(ctx, item)
		}
	}
}

func (a *Alerter) deliver(ctx context.Context, item queuedAlert) {
	start := time.Now()
	payload := &WebhookPayload{
		Alert:     item.alert,
		Entry:     item.entry,
		Timestamp: time.Now().UTC(),
		Source:    "siidaa-admin",
		Type:      "diagnostic_error",
		Version:   "1.0",
	}

	response := a.sender.Send(ctx, payload)

	a.mu.Lock()
	defer a.mu.Unlock()
	if response.Success {
		now := time.Now().UTC()
		item.alert.Status = AlertSent
		item.alert.SentAt = &now
		a.stats.Sent++
		if a.metricsManager != nil {
			a.metricsManager.GetPrometheusMetrics().RecordNotificationSent(channelWebhook, item.alert.Category, time.Since(start))
		}
		return
	}

	msg := "unknown error"
	if response.Error != nil {
		msg = response.Error.Error()
	}
	now := time.Now().UTC()
	item.alert.Status = AlertFailed
	item.alert.Error = &msg
	a.stats.Failed++
	a.stats.LastError = &msg
	a.stats.LastErrorTime = &now
	if a.metricsManager != nil {
		a.metricsManager.GetPrometheusMetrics().RecordNotificationFailure(channelWebhook, item.alert.Category, "send_error")
	}
	a.logger.WithFields(logrus.Fields{
		"alert_id": item.alert.ID,
		"attempts": item.alert.Attempts,
	}).Error("Failed to deliver alert: " + msg)
}
