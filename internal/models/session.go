package models

import "time"

// UserMetadata is the request context recorded on the session row.
type UserMetadata struct {
	UserAgent string `json:"user_agent"`
	IPAddress string `json:"ip_address"`
}

// Session is the authoritative server-side record of one authenticated
// login. At most one session per user has IsActive=true at any time: a new
// login deactivates the previous one.
//
// RefreshFingerprint is a one-way hash of the refresh token's verifier; the
// raw token is never stored. ActiveAccessTokenID holds the jti of the most
// recently issued access token, so issuing a new one (or deactivating the
// session) instantly invalidates every earlier access token without a
// blocklist.
type Session struct {
	SessionID           string    `json:"session_id"`
	UserID              int64     `json:"user_id"`
	RefreshFingerprint  string    `json:"-"`
	ActiveAccessTokenID string    `json:"-"`
	IsActive            bool      `json:"is_active"`
	IPAddress           string    `json:"ip_address,omitempty"`
	UserAgent           string    `json:"user_agent,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	LastActivityAt      time.Time `json:"last_activity_at"`
	ExpiresAt           time.Time `json:"expires_at"`
}
