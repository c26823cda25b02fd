package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/deevee3/perryMillNews/internal/session/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const sessionColumns = `id, user_id, refresh_token, expires_at, created_at, last_seen_at,
	ip_address, user_agent, revoked, revoked_at, revoke_reason`

// Create persists the session. The session must have ID and RefreshTokenHash set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, refresh_token, expires_at, created_at, last_seen_at,
			ip_address, user_agent, revoked, revoked_at, revoke_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		s.ID, s.UserID, s.RefreshTokenHash, s.ExpiresAt, s.CreatedAt, timeToNullTime(s.LastSeenAt),
		sql.NullString{String: s.IPAddress, Valid: s.IPAddress != ""},
		sql.NullString{String: s.UserAgent, Valid: s.UserAgent != ""},
		s.Revoked, timeToNullTime(s.RevokedAt),
		sql.NullString{String: s.RevokeReason, Valid: s.RevokeReason != ""},
	)
	return err
}

// GetByRefreshTokenHash returns the session holding the digest, or nil if no
// exact match exists.
func (r *PostgresRepository) GetByRefreshTokenHash(ctx context.Context, hash string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE refresh_token = $1`, hash)
	return scanSession(row)
}

// Rotate replaces the stored digest and expiry and stamps last-seen in a
// single UPDATE keyed by session id. Concurrent rotations are last-writer-wins.
func (r *PostgresRepository) Rotate(ctx context.Context, sessionID, newHash string, newExpiresAt, lastSeenAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions
		SET refresh_token = $2, expires_at = $3, last_seen_at = $4
		WHERE id = $1`,
		sessionID, newHash, newExpiresAt, lastSeenAt,
	)
	return err
}

// Revoke marks the session revoked. The WHERE clause skips already-revoked
// rows, so a revoked session can never change reason or un-revoke.
func (r *PostgresRepository) Revoke(ctx context.Context, sessionID, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions
		SET revoked = TRUE, revoked_at = $2, revoke_reason = $3
		WHERE id = $1 AND revoked = FALSE`,
		sessionID, time.Now().UTC(), reason,
	)
	return err
}

// DeleteExpiredBefore removes sessions whose expiry is before cutoff and
// returns the number of rows deleted.
func (r *PostgresRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanSession(row *sql.Row) (*domain.Session, error) {
	var s domain.Session
	var lastSeen, revokedAt sql.NullTime
	var ip, ua, reason sql.NullString
	err := row.Scan(&s.ID, &s.UserID, &s.RefreshTokenHash, &s.ExpiresAt, &s.CreatedAt, &lastSeen,
		&ip, &ua, &s.Revoked, &revokedAt, &reason)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.LastSeenAt = nullTimeToPtr(lastSeen)
	s.RevokedAt = nullTimeToPtr(revokedAt)
	s.IPAddress = ip.String
	s.UserAgent = ua.String
	s.RevokeReason = reason.String
	return &s, nil
}

func timeToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullTimeToPtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	return &n.Time
}
