// Package session owns the operator's access token and profile: restore at
// startup, login, logout, invalidation on 401 and manual refresh.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/siidaa/admin-console/internal/config"
	"github.com/siidaa/admin-console/internal/diagnostics"
	"github.com/siidaa/admin-console/internal/metrics"
	"github.com/siidaa/admin-console/internal/models"
	"github.com/siidaa/admin-console/internal/storage"
	"github.com/siidaa/admin-console/pkg/utils"
)

const (
	tokenEndpoint   = "/api/token/"
	refreshEndpoint = "/api/token/refresh/"
	profileEndpoint = "/api/user/profile/"

	storageTimeout = 5 * time.Second
)

// Manager holds the current session. Token and user are always set and
// cleared together.
type Manager struct {
	mu           sync.RWMutex
	state        models.SessionState
	token        string
	refreshToken string
	user         *models.User
	loading      bool
	loginPending bool

	baseURL        string
	client         *http.Client
	kv             storage.KV
	logs           *diagnostics.Store
	metricsManager *metrics.Manager
	logger         *logrus.Entry
}

// NewManager creates a session manager in the Unknown state
func NewManager(cfg *config.APIConfig, kv storage.KV, logs *diagnostics.Store, metricsManager *metrics.Manager, logger *logrus.Logger) *Manager {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = utils.GetLogger()
	}
	return &Manager{
		state:          models.SessionUnknown,
		loading:        true,
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		client:         &http.Client{Timeout: timeout},
		kv:             kv,
		logs:           logs,
		metricsManager: metricsManager,
		logger:         logger.WithField("component", "session"),
	}
}

// Restore loads the persisted session. A corrupt record is discarded and the
// session starts unauthenticated; Restore never fails.
func (m *Manager) Restore(ctx context.Context) {
	m.mu.Lock()
	m.state = models.SessionRestoring
	m.loading = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.loading = false
		m.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, storageTimeout)
	defer cancel()

	token, tokenFound, err := m.kv.Get(ctx, models.TokenKey)
	if err != nil {
		m.logger.WithError(err).Warn("Failed to read persisted token")
		tokenFound = false
	}
	rawUser, userFound, err := m.kv.Get(ctx, models.UserKey)
	if err != nil {
		m.logger.WithError(err).Warn("Failed to read persisted user")
		userFound = false
	}

	if !tokenFound || !userFound || token == "" {
		m.setUnauthenticated()
		m.logs.Info(models.CategoryAuth, "No persisted session found", nil)
		return
	}

	var user *models.User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil || user == nil {
		if err == nil {
			err = fmt.Errorf("empty user record")
		}
		m.clearPersisted(ctx)
		m.setUnauthenticated()
		m.logs.Error(models.CategoryAuth, "Failed to restore persisted session",
			fmt.Errorf("%w: %v", ErrPersistedStateCorrupt, err), nil)
		return
	}

	refresh, _, err := m.kv.Get(ctx, models.RefreshTokenKey)
	if err != nil {
		m.logger.WithError(err).Warn("Failed to read persisted refresh token")
	}

	m.mu.Lock()
	m.token = token
	m.refreshToken = refresh
	m.user = user
	m.state = models.SessionAuthenticated
	m.mu.Unlock()
	m.updateGauge(true)

	m.logs.Info(models.CategoryAuth, "Session restored for user: "+user.Username, nil)
}

// Login exchanges credentials for a token pair, then fetches the profile
// with the new token. A second call while one is pending fails with
// ErrLoginInProgress.
func (m *Manager) Login(ctx context.Context, username, password string) error {
	m.mu.Lock()
	if m.loginPending {
		m.mu.Unlock()
		return ErrLoginInProgress
	}
	m.loginPending = true
	m.loading = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.loginPending = false
		m.loading = false
		m.mu.Unlock()
	}()

	m.logs.AuthAttempt(username)

	user, tokens, err := m.authenticate(ctx, username, password)
	if err != nil {
		m.logs.AuthFailure(username, err.Error())
		m.recordAuthEvent("login_failure")
		return err
	}

	m.persist(ctx, tokens, user)

	m.mu.Lock()
	m.token = tokens.Access
	m.refreshToken = tokens.Refresh
	m.user = user
	m.state = models.SessionAuthenticated
	m.mu.Unlock()
	m.updateGauge(true)

	m.logs.AuthSuccess(username)
	m.recordAuthEvent("login_success")
	return nil
}

func (m *Manager) authenticate(ctx context.Context, username, password string) (*models.User, *models.TokenPair, error) {
	body := map[string]string{"username": username, "password": password}
	status, raw, err := m.call(ctx, http.MethodPost, tokenEndpoint, "", body)
	if err != nil {
		return nil, nil, err
	}
	if status < 200 || status >= 300 {
		var detail struct {
			Detail string `json:"detail"`
		}
		_ = json.Unmarshal(raw, &detail)
		msg := detail.Detail
		if msg == "" {
			msg = "Invalid credentials"
		}
		return nil, nil, &CredentialsError{Status: status, Message: msg}
	}

	var tokens models.TokenPair
	if err := json.Unmarshal(raw, &tokens); err != nil || tokens.Access == "" {
		return nil, nil, &CredentialsError{Status: status, Message: "Invalid token response"}
	}

	status, raw, err = m.call(ctx, http.MethodGet, profileEndpoint, tokens.Access, nil)
	if err != nil {
		return nil, nil, &ProfileError{Err: err}
	}
	if status < 200 || status >= 300 {
		return nil, nil, &ProfileError{Status: status}
	}

	var user models.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, nil, &ProfileError{Status: status, Err: err}
	}
	return &user, &tokens, nil
}

// Logout clears the persisted and in-memory session
func (m *Manager) Logout(ctx context.Context) {
	previous := m.clear(ctx)
	m.logs.AuthLogout(previous)
	m.recordAuthEvent("logout")
}

// Invalidate clears the session after the backend rejected its token
func (m *Manager) Invalidate(ctx context.Context, reason string) {
	previous := m.clear(ctx)
	if previous == "" {
		previous = "unknown"
	}
	m.logs.Warn(models.CategoryAuth, "Session invalidated: "+reason, map[string]interface{}{"username": previous})
	m.recordAuthEvent("invalidated")
}

// Refresh obtains a new access token with the refresh token. It is only
// called on request; on failure the session is logged out.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.RLock()
	refresh := m.refreshToken
	m.mu.RUnlock()

	err := m.refresh(ctx, refresh)
	if err != nil {
		m.logs.Error(models.CategoryAuth, "Token refresh failed", err, nil)
		m.recordAuthEvent("refresh_failure")
		m.Logout(ctx)
		return err
	}

	m.recordAuthEvent("refresh_success")
	m.logs.Info(models.CategoryAuth, "Access token refreshed", nil)
	return nil
}

func (m *Manager) refresh(ctx context.Context, refresh string) error {
	if refresh == "" {
		return ErrNoRefreshToken
	}

	status, raw, err := m.call(ctx, http.MethodPost, refreshEndpoint, "", map[string]string{"refresh": refresh})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	if status < 200 || status >= 300 {
		return refreshError(status)
	}

	var tokens models.TokenPair
	if err := json.Unmarshal(raw, &tokens); err != nil || tokens.Access == "" {
		return fmt.Errorf("%w: invalid response", ErrRefreshFailed)
	}

	m.mu.Lock()
	if m.user == nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: session ended during refresh", ErrRefreshFailed)
	}
	m.token = tokens.Access
	if tokens.Refresh != "" {
		m.refreshToken = tokens.Refresh
	}
	newRefresh := m.refreshToken
	m.mu.Unlock()

	sctx, cancel := context.WithTimeout(ctx, storageTimeout)
	defer cancel()
	if err := m.kv.Set(sctx, models.TokenKey, tokens.Access); err != nil {
		m.logger.WithError(err).Warn("Failed to persist refreshed token")
	}
	if tokens.Refresh != "" {
		if err := m.kv.Set(sctx, models.RefreshTokenKey, newRefresh); err != nil {
			m.logger.WithError(err).Warn("Failed to persist rotated refresh token")
		}
	}
	return nil
}

// IsAuthenticated reports whether both a token and a user are held
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token != "" && m.user != nil
}

// IsLoading reports whether a restore or login is in flight
func (m *Manager) IsLoading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loading
}

// State returns the lifecycle state
func (m *Manager) State() models.SessionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Token returns the access token, or "" when unauthenticated
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// User returns a copy of the current user, or nil
func (m *Manager) User() *models.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// Snapshot returns a read-only view of the session without the raw token
func (m *Manager) Snapshot() models.SessionSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := models.SessionSnapshot{
		State:            m.state,
		Authenticated:    m.token != "" && m.user != nil,
		Loading:          m.loading,
		TokenFingerprint: utils.TokenFingerprint(m.token),
		HasRefreshToken:  m.refreshToken != "",
		ExpiresAt:        TokenExpiry(m.token),
	}
	if m.user != nil {
		u := *m.user
		snap.User = &u
	}
	return snap
}

// clear resets memory and persisted keys, returning the previous username
func (m *Manager) clear(ctx context.Context) string {
	m.mu.Lock()
	previous := ""
	if m.user != nil {
		previous = m.user.Username
	}
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, storageTimeout)
	defer cancel()
	m.clearPersisted(ctx)
	m.setUnauthenticated()
	return previous
}

func (m *Manager) setUnauthenticated() {
	m.mu.Lock()
	m.token = ""
	m.refreshToken = ""
	m.user = nil
	m.state = models.SessionUnauthenticated
	m.mu.Unlock()
	m.updateGauge(false)
}

func (m *Manager) clearPersisted(ctx context.Context) {
	if err := m.kv.Delete(ctx, models.TokenKey, models.UserKey, models.RefreshTokenKey); err != nil {
		m.logger.WithError(err).Warn("Failed to remove persisted session")
	}
}

// persist writes the session keys. Failures leave the in-memory session intact.
func (m *Manager) persist(ctx context.Context, tokens *models.TokenPair, user *models.User) {
	ctx, cancel := context.WithTimeout(ctx, storageTimeout)
	defer cancel()

	userJSON, err := json.Marshal(user)
	if err != nil {
		m.logger.WithError(err).Warn("Failed to encode user record")
		return
	}
	for key, value := range map[string]string{
		models.TokenKey:        tokens.Access,
		models.UserKey:         string(userJSON),
		models.RefreshTokenKey: tokens.Refresh,
	} {
		if err := m.kv.Set(ctx, key, value); err != nil {
			m.logger.WithError(err).WithField("key", key).Warn("Failed to persist session")
		}
	}
}

// call performs one identity request, logging it as an API entry
func (m *Manager) call(ctx context.Context, method, endpoint, token string, body interface{}) (int, []byte, error) {
	url := m.baseURL + endpoint

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, utils.Wrap(err, utils.ErrCodeSerialization, "Failed to encode request")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, utils.Wrap(err, utils.ErrCodeInternal, "Failed to create request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	m.logs.APIRequest(method, url, nil)
	start := time.Now()
	resp, err := m.client.Do(req)
	if err != nil {
		m.logs.APIError(method, url, err, time.Since(start))
		return 0, nil, utils.Wrap(err, utils.ErrCodeNetwork, "Identity request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	duration := time.Since(start)
	if err != nil {
		m.logs.APIError(method, url, err, duration)
		return resp.StatusCode, nil, utils.Wrap(err, utils.ErrCodeNetwork, "Failed to read response")
	}
	m.logs.APIResponse(method, url, resp.StatusCode, duration, nil)
	return resp.StatusCode, raw, nil
}

func (m *Manager) recordAuthEvent(event string) {
	if m.metricsManager != nil {
		m.metricsManager.GetPrometheusMetrics().RecordAuthEvent(event)
	}
}

func (m *Manager) updateGauge(active bool) {
	if m.metricsManager != nil {
		m.metricsManager.GetPrometheusMetrics().UpdateSessionActive(active)
	}
}
