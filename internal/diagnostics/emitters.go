package diagnostics

import (
	"errors"
	"fmt"
	"time"

	"github.com/siidaa/admin-console/internal/models"
)

// Debug records a DEBUG entry
func (s *Store) Debug(category, message string, data map[string]interface{}) {
	s.Record(models.LevelDebug, category, message, data, nil, nil)
}

// Info records an INFO entry
func (s *Store) Info(category, message string, data map[string]interface{}) {
	s.Record(models.LevelInfo, category, message, data, nil, nil)
}

// Warn records a WARN entry
func (s *Store) Warn(category, message string, data map[string]interface{}) {
	s.Record(models.LevelWarn, category, message, data, nil, nil)
}

// Error records an ERROR entry
func (s *Store) Error(category, message string, err error, data map[string]interface{}) {
	s.Record(models.LevelError, category, message, data, err, nil)
}

// APIRequest records the start of a backend call
func (s *Store) APIRequest(method, url string, data map[string]interface{}) {
	s.Record(models.LevelInfo, models.CategoryAPI, fmt.Sprintf("%s %s", method, url), data, nil,
		&models.HTTPMeta{URL: url, Method: method})
}

// APIResponse records a completed backend call. Statuses >= 400 are ERROR.
func (s *Store) APIResponse(method, url string, status int, duration time.Duration, data map[string]interface{}) {
	level := models.LevelInfo
	if status >= 400 {
		level = models.LevelError
	}
	s.Record(level, models.CategoryAPI, fmt.Sprintf("%s %s - %d", method, url, status), data, nil,
		&models.HTTPMeta{URL: url, Method: method, Status: &status, Duration: &duration})
}

// APIError records a backend call that failed before a response arrived
func (s *Store) APIError(method, url string, err error, duration time.Duration) {
	s.Record(models.LevelError, models.CategoryAPI, fmt.Sprintf("%s %s - Failed", method, url), nil, err,
		&models.HTTPMeta{URL: url, Method: method, Duration: &duration})
}

// AuthAttempt records the start of a login
func (s *Store) AuthAttempt(username string) {
	s.Info(models.CategoryAuth, "Login attempt for user: "+username, nil)
}

// AuthSuccess records a successful login
func (s *Store) AuthSuccess(username string) {
	s.Info(models.CategoryAuth, "Login successful for user: "+username, nil)
}

// AuthFailure records a failed login
func (s *Store) AuthFailure(username, reason string) {
	s.Error(models.CategoryAuth, "Login failed for user: "+username, errors.New(reason), nil)
}

// AuthLogout records a logout of username
func (s *Store) AuthLogout(username string) {
	if username == "" {
		username = "unknown"
	}
	s.Info(models.CategoryAuth, "User logged out", map[string]interface{}{"username": username})
}

// NetworkTest records the outcome of a connectivity check
func (s *Store) NetworkTest(url string, success bool, duration time.Duration, err error) {
	data := map[string]interface{}{"duration": duration.Milliseconds()}
	if success {
		s.Info(models.CategoryNetwork, "Connection test successful: "+url, data)
		return
	}
	s.Error(models.CategoryNetwork, "Connection test failed: "+url, err, data)
}

// Environment records an environment snapshot
func (s *Store) Environment(data map[string]interface{}) {
	s.Info(models.CategoryEnv, "Environment information", data)
}
