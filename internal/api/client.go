// Package api is the single path for calls to the Siidaa backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/siidaa/admin-console/internal/config"
	"github.com/siidaa/admin-console/internal/diagnostics"
	"github.com/siidaa/admin-console/internal/metrics"
	"github.com/siidaa/admin-console/pkg/utils"
)

const maxErrorBody = 4 << 10

// Session is the part of the session manager the client needs
type Session interface {
	Token() string
	Invalidate(ctx context.Context, reason string)
}

// Client sends authenticated requests to the backend and logs each of them
type Client struct {
	baseURL        string
	httpClient     *http.Client
	session        Session
	logs           *diagnostics.Store
	metricsManager *metrics.Manager
	logger         *logrus.Entry

	mu             sync.RWMutex
	onUnauthorized func()
}

// NewClient creates a backend client. metricsManager may be nil.
func NewClient(cfg *config.APIConfig, session Session, logs *diagnostics.Store, metricsManager *metrics.Manager) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:     &http.Client{Timeout: timeout},
		session:        session,
		logs:           logs,
		metricsManager: metricsManager,
		logger:         utils.GetLogger().WithField("component", "api_client"),
	}
}

// OnUnauthorized sets the callback fired once for every 401 response, after
// the session has been invalidated.
func (c *Client) OnUnauthorized(fn func()) {
	c.mu.Lock()
	c.onUnauthorized = fn
	c.mu.Unlock()
}

// BaseURL returns the backend base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// URL returns the full URL of an endpoint
func (c *Client) URL(endpoint string) string {
	return c.baseURL + "/api" + endpoint
}

// Do sends a request to <base>/api<endpoint>. body may be nil, a
// *MultipartBody or any JSON-encodable value. On 2xx the response JSON is
// decoded into out when out is non-nil.
func (c *Client) Do(ctx context.Context, method, endpoint string, body interface{}, out interface{}) error {
	url := c.URL(endpoint)

	var reader io.Reader
	contentType := ""
	logData := map[string]interface{}(nil)
	switch b := body.(type) {
	case nil:
	case *MultipartBody:
		buf, ct, err := b.encode()
		if err != nil {
			return utils.Wrap(err, utils.ErrCodeSerialization, "Failed to encode multipart body")
		}
		reader, contentType = buf, ct
		logData = map[string]interface{}{"multipart": true, "files": len(b.Files)}
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return utils.Wrap(err, utils.ErrCodeSerialization, "Failed to encode request body")
		}
		reader, contentType = bytes.NewReader(data), "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return utils.Wrap(err, utils.ErrCodeInternal, "Failed to create request")
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token := c.session.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.logs.APIRequest(method, url, logData)
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		duration := time.Since(start)
		c.logs.APIError(method, url, err, duration)
		c.recordMetrics(method, endpoint, "error", duration)
		return utils.Wrap(err, utils.ErrCodeNetwork, "Request failed")
	}
	defer resp.Body.Close()

	duration := time.Since(start)
	c.logs.APIResponse(method, url, resp.StatusCode, duration, nil)
	c.recordMetrics(method, endpoint, strconv.Itoa(resp.StatusCode), duration)

	if resp.StatusCode == http.StatusUnauthorized {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.session.Invalidate(ctx, fmt.Sprintf("%s %s returned 401", method, endpoint))
		if c.metricsManager != nil {
			c.metricsManager.GetPrometheusMetrics().RecordUnauthorized()
		}
		c.mu.RLock()
		fn := c.onUnauthorized
		c.mu.RUnlock()
		if fn != nil {
			fn()
		}
		return newHTTPError(resp.StatusCode, method, endpoint, raw)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return newHTTPError(resp.StatusCode, method, endpoint, raw)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return utils.Wrap(err, utils.ErrCodeNetwork, "Failed to read response")
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.logger.WithFields(logrus.Fields{"method": method, "endpoint": endpoint}).WithError(err).Debug("Undecodable response body")
		return utils.Wrap(err, utils.ErrCodeSerialization, "Failed to decode response")
	}
	return nil
}

// Get is Do with GET and no body
func (c *Client) Get(ctx context.Context, endpoint string, out interface{}) error {
	return c.Do(ctx, http.MethodGet, endpoint, nil, out)
}

// Post is Do with POST
func (c *Client) Post(ctx context.Context, endpoint string, body, out interface{}) error {
	return c.Do(ctx, http.MethodPost, endpoint, body, out)
}

// Put is Do with PUT
func (c *Client) Put(ctx context.Context, endpoint string, body, out interface{}) error {
	return c.Do(ctx, http.MethodPut, endpoint, body, out)
}

// Patch is Do with PATCH
func (c *Client) Patch(ctx context.Context, endpoint string, body, out interface{}) error {
	return c.Do(ctx, http.MethodPatch, endpoint, body, out)
}

// Delete is Do with DELETE and no body
func (c *Client) Delete(ctx context.Context, endpoint string) error {
	return c.Do(ctx, http.MethodDelete, endpoint, nil, nil)
}

func (c *Client) recordMetrics(method, endpoint, status string, duration time.Duration) {
	if c.metricsManager == nil {
		return
	}
	c.metricsManager.GetPrometheusMetrics().RecordAPIRequest(method, endpointLabel(endpoint), status, duration)
}

// endpointLabel replaces numeric path segments so ids do not become labels
func endpointLabel(endpoint string) string {
	if i := strings.IndexByte(endpoint, '?'); i >= 0 {
		endpoint = endpoint[:i]
	}
	parts := strings.Split(endpoint, "/")
	for i, p := range parts {
		if p == "" {
			continue
		}
		if _, err := strconv.ParseInt(p, 10, 64); err == nil {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}

func newHTTPError(status int, method, endpoint string, raw []byte) *HTTPError {
	httpErr := &HTTPError{Status: status, Method: method, Endpoint: endpoint, Body: string(raw)}
	var detail struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(raw, &detail) == nil {
		httpErr.Detail = detail.Detail
	}
	return httpErr
}
