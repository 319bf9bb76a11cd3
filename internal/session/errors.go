package session

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials matches any *CredentialsError
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrProfileFetchFailed matches any *ProfileError
	ErrProfileFetchFailed = errors.New("failed to fetch user profile")
	// ErrLoginInProgress is returned when Login is called while another login is pending
	ErrLoginInProgress = errors.New("login already in progress")
	// ErrPersistedStateCorrupt marks an unreadable persisted session. It is logged, never returned.
	ErrPersistedStateCorrupt = errors.New("persisted session state is corrupt")
	ErrNoRefreshToken        = errors.New("no refresh token available")
	ErrRefreshFailed         = errors.New("token refresh failed")
)

// CredentialsError is returned when the token endpoint rejects a login
type CredentialsError struct {
	Status  int
	Message string
}

func (e *CredentialsError) Error() string { return e.Message }

// Is reports whether target is ErrInvalidCredentials
func (e *CredentialsError) Is(target error) bool { return target == ErrInvalidCredentials }

// ProfileError is returned when the profile of a freshly issued token cannot be read
type ProfileError struct {
	Status int
	Err    error
}

func (e *ProfileError) Error() string { return "Failed to fetch user profile" }

func (e *ProfileError) Unwrap() error { return e.Err }

// Is reports whether target is ErrProfileFetchFailed
func (e *ProfileError) Is(target error) bool { return target == ErrProfileFetchFailed }

func refreshError(status int) error {
	return fmt.Errorf("%w: status %d", ErrRefreshFailed, status)
}
