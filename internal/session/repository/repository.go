package repository

import (
	"context"
	"time"

	"github.com/deevee3/perryMillNews/internal/session/domain"
)

// Repository defines persistence for sessions. Implementations store only the
// refresh-token digest, never the raw token.
type Repository interface {
	Create(ctx context.Context, s *domain.Session) error
	// GetByRefreshTokenHash looks up by exact digest match.
	GetByRefreshTokenHash(ctx context.Context, hash string) (*domain.Session, error)
	// Rotate replaces the session's digest and expiry and stamps last-seen, in
	// a single update with no intermediate state observable.
	Rotate(ctx context.Context, sessionID, newHash string, newExpiresAt, lastSeenAt time.Time) error
	// Revoke marks the session revoked with the given reason. Idempotent:
	// revoking an already-revoked session is a no-op, not an error.
	Revoke(ctx context.Context, sessionID, reason string) error
	// DeleteExpiredBefore removes sessions whose expiry is before cutoff,
	// revoked or not. Used by the hygiene sweep only.
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
