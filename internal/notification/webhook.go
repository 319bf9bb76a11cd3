// File: internal/notification/webhook.go
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/siidaa/admin-console/internal/models"
	"github.com/siidaa/admin-console/pkg/utils"
)

// WebhookSender posts alerts to a webhook
type WebhookSender struct {
	url        string
	retry      RetryConfig
	logger     *logrus.Entry
	httpClient *http.Client
}

// RetryConfig defines retry configuration for webhooks
type RetryConfig struct {
	MaxAttempts int           `json:"max_attempts"`
	BaseDelay   time.Duration `json:"base_delay"`
	MaxDelay    time.Duration `json:"max_delay"`
	Backoff     string        `json:"backoff"` // linear, exponential, fixed
}

// WebhookPayload defines the webhook payload structure
type WebhookPayload struct {
	Alert     *models.Alert   `json:"alert"`
	Entry     models.LogEntry `json:"entry"`
	Timestamp time.Time       `json:"timestamp"`
	Source    string          `json:"source"`
	Type      string          `json:"type"`
	Version   string          `json:"version"`
}

// WebhookResponse represents a webhook response
type WebhookResponse struct {
	StatusCode   int
	ResponseTime time.Duration
	Success      bool
	Error        error
	Body         string
}

// NewWebhookSender creates a new webhook sender
func NewWebhookSender(url string, timeout time.Duration, retry RetryConfig, logger *logrus.Logger) *WebhookSender {
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = 1
	}
	if retry.MaxDelay <= 0 {
		retry.MaxDelay = 30 * time.Second
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSender{
		url:    url,
		retry:  retry,
		logger: logger.WithField("component", "webhook_sender"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     30 * time.Second,
			},
		},
	}
}

// Send delivers payload with retries and returns the final response
func (ws *WebhookSender) Send(ctx context.Context, payload *WebhookPayload) *WebhookResponse {
	var lastResponse *WebhookResponse

	for attempt := 1; attempt <= ws.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := ws.calculateRetryDelay(attempt)
			ws.logger.WithFields(logrus.Fields{
				"attempt":      attempt,
				"max_attempts": ws.retry.MaxAttempts,
				"delay":        delay,
			}).Debug("Retrying webhook")

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return &WebhookResponse{Error: ctx.Err()}
			}
		}

		payload.Alert.Attempts = attempt
		response := ws.sendOnce(ctx, payload)
		lastResponse = response
		if response.Success {
			return response
		}

		if attempt < ws.retry.MaxAttempts {
			ws.logger.WithFields(logrus.Fields{
				"url":         ws.url,
				"attempt":     attempt,
				"status_code": response.StatusCode,
			}).WithError(response.Error).Warn("Webhook attempt failed, retrying")
		}
	}

	return lastResponse
}

func (ws *WebhookSender) sendOnce(ctx context.Context, payload *WebhookPayload) *WebhookResponse {
	startTime := time.Now()
	response := &WebhookResponse{}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		response.Error = utils.NewAppError(utils.ErrCodeSerialization, "Failed to marshal webhook payload", err.Error())
		return response
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ws.url, bytes.NewReader(jsonData))
	if err != nil {
		response.Error = utils.NewAppError(utils.ErrCodeInternal, "Failed to create webhook request", err.Error())
		return response
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Siidaa-Admin/1.0")
	req.Header.Set("X-Timestamp", fmt.Sprintf("%d", time.Now().Unix()))
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := ws.httpClient.Do(req)
	response.ResponseTime = time.Since(startTime)
	if err != nil {
		response.Error = utils.NewAppError(utils.ErrCodeNetwork, "Failed to send webhook", err.Error())
		return response
	}
	defer resp.Body.Close()

	response.StatusCode = resp.StatusCode
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	response.Body = string(body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		response.Success = true
	} else {
		response.Error = utils.NewAppError(utils.ErrCodeNetwork,
			"Webhook returned non-success status",
			fmt.Sprintf("status: %d, body: %s", resp.StatusCode, response.Body))
	}
	return response
}

func (ws *WebhookSender) calculateRetryDelay(attempt int) time.Duration {
	var delay time.Duration

	switch ws.retry.Backoff {
	case "exponential":
		// base_delay * 2^(attempt-2), so the first retry waits base_delay
		delay = time.Duration(int64(ws.retry.BaseDelay) << uint(attempt-2))
	case "linear":
		delay = time.Duration(int64(ws.retry.BaseDelay) * int64(attempt-1))
	default:
		delay = ws.retry.BaseDelay
	}

	if delay > ws.retry.MaxDelay {
		delay = ws.retry.MaxDelay
	}
	return delay
}
