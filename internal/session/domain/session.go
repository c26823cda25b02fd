package domain

import "time"

// Revocation reasons recorded on the session row.
const (
	RevokeReasonUserLogout = "user_logout"
)

// Session is a live refresh-token grant. RefreshTokenHash is the SHA-256
// digest of the current refresh token; the raw value is never stored. A
// session authorizes a refresh only while not revoked and not past ExpiresAt.
// Revocation is terminal.
type Session struct {
	ID               string
	UserID           string
	RefreshTokenHash string
	ExpiresAt        time.Time
	CreatedAt        time.Time
	LastSeenAt       *time.Time
	IPAddress        string
	UserAgent        string
	Revoked          bool
	RevokedAt        *time.Time
	RevokeReason     string
}

// Active reports whether the session can authorize a refresh at the given time.
func (s *Session) Active(now time.Time) bool {
	return !s.Revoked && s.ExpiresAt.After(now)
}
