package domain

import "time"

// EventType is the closed set of audit event types emitted by the auth
// subsystem.
type EventType string

const (
	EventUserRegistered             EventType = "UserRegistered"
	EventLoginSuccess               EventType = "LoginSuccess"
	EventLoginFailedUnknownUser     EventType = "LoginFailedUnknownUser"
	EventLoginFailedInvalidPassword EventType = "LoginFailedInvalidPassword"
	EventRefreshTokenRotated        EventType = "RefreshTokenRotated"
	EventSessionRevoked             EventType = "SessionRevoked"
)

// AuditLog is an append-only security event record. UserID is empty for
// pre-authentication failures. Entries are never mutated or deleted.
type AuditLog struct {
	ID        string
	UserID    string // empty when the event has no authenticated subject
	EventType EventType
	IPAddress string
	UserAgent string
	Metadata  string // optional free-form JSON or text
	CreatedAt time.Time
}
