package models

import "time"

// Durable keys owned by the session manager
const (
	TokenKey        = "admin_token"
	UserKey         = "admin_user"
	RefreshTokenKey = "admin_refresh_token"
)

// User is the authenticated operator's profile as returned by /api/user/profile/
type User struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	IsStaff     bool   `json:"is_staff"`
	IsSuperuser bool   `json:"is_superuser"`
}

// TokenPair is the response of the token endpoint
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// SessionState is the lifecycle state of the session manager
type SessionState string

const (
	SessionUnknown         SessionState = "unknown"
	SessionRestoring       SessionState = "restoring"
	SessionUnauthenticated SessionState = "unauthenticated"
	SessionAuthenticated   SessionState = "authenticated"
)

// SessionSnapshot is a read-only view of the current session
type SessionSnapshot struct {
	State            SessionState `json:"state"`
	Authenticated    bool         `json:"authenticated"`
	Loading          bool         `json:"loading"`
	User             *User        `json:"user,omitempty"`
	TokenFingerprint string       `json:"token_fingerprint,omitempty"`
	HasRefreshToken  bool         `json:"has_refresh_token"`
	ExpiresAt        *time.Time   `json:"expires_at,omitempty"`
}
