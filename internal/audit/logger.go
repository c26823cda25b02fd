package audit

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/deevee3/perryMillNews/internal/audit/domain"
	auditrepo "github.com/deevee3/perryMillNews/internal/audit/repository"
)

// ClientInfo carries the request's client address and user agent into audit
// entries and session rows.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// Recorder writes a single audit event. LogEvent is best-effort by contract:
// a storage failure is logged and never propagated, so an audit outage cannot
// block the auth action it describes. The signature has no error return to
// make that visible at the interface.
type Recorder interface {
	LogEvent(ctx context.Context, userID string, eventType domain.EventType, client ClientInfo, metadata string)
}

// Logger implements Recorder backed by the audit repository.
type Logger struct {
	repo auditrepo.Repository
}

// NewLogger returns a Recorder that persists to repo. A nil repo disables
// auditing (every LogEvent is a no-op).
func NewLogger(repo auditrepo.Repository) *Logger {
	return &Logger{repo: repo}
}

// LogEvent writes one audit log entry. Best-effort: errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, userID string, eventType domain.EventType, client ClientInfo, metadata string) {
	if l.repo == nil {
		return
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		UserID:    userID,
		EventType: eventType,
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		log.Printf("audit: failed to log event %s: %v", eventType, err)
	}
}
