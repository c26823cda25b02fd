package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/deevee3/perryMillNews/internal/audit"
	auditdomain "github.com/deevee3/perryMillNews/internal/audit/domain"
	"github.com/deevee3/perryMillNews/internal/auth/device"
	"github.com/deevee3/perryMillNews/internal/auth/metrics"
	"github.com/deevee3/perryMillNews/internal/security"
	sessiondomain "github.com/deevee3/perryMillNews/internal/session/domain"
	userdomain "github.com/deevee3/perryMillNews/internal/user/domain"
)

// Sentinel errors for the auth service; the handler maps them to HTTP status
// codes. ErrInvalidCredentials deliberately merges unknown-email and
// wrong-password; ErrInvalidSession merges missing, revoked, and expired
// refresh tokens. The distinctions survive only in the audit trail.
var (
	ErrUserExists         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidSession     = errors.New("invalid or expired session")
	ErrUnauthenticated    = errors.New("unauthenticated")
)

// ValidationError reports a specific, non-secret input rule violation.
type ValidationError struct {
	Rule string
}

func (e *ValidationError) Error() string { return e.Rule }

// Input policy. Email length per RFC 5321; password minimum per account policy.
const (
	maxEmailLength    = 254
	minPasswordLength = 12
)

// decoyPassword backs the digest burned on unknown-email logins.
const decoyPassword = "perrymill-decoy-credential"

// AuthResult is returned by Login and Refresh: a fresh token pair plus the
// sanitized user.
type AuthResult struct {
	AccessToken       string
	RefreshToken      string
	RefreshTTLSeconds int64
	User              *userdomain.Sanitized
}

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
}

// SessionRepo is the minimal session repository needed by the auth service.
type SessionRepo interface {
	Create(ctx context.Context, s *sessiondomain.Session) error
	GetByRefreshTokenHash(ctx context.Context, hash string) (*sessiondomain.Session, error)
	Rotate(ctx context.Context, sessionID, newHash string, newExpiresAt, lastSeenAt time.Time) error
	Revoke(ctx context.Context, sessionID, reason string) error
}

// AuditReader lists a user's audit history for the security-events surface.
type AuditReader interface {
	ListByUser(ctx context.Context, userID string, limit, offset int32) ([]*auditdomain.AuditLog, error)
}

// AuthService implements register, login, refresh, logout, authenticate, and
// whoami. It holds no mutable state beyond injected configuration; all
// coordination is pushed to the backing store.
type AuthService struct {
	users      UserRepo
	sessions   SessionRepo
	auditor    audit.Recorder
	auditRead  AuditReader
	hasher     *security.Hasher
	codec      *security.TokenCodec
	metrics    *metrics.Metrics
	refreshTTL time.Duration

	// decoyDigest is verified against on the unknown-email login path so that
	// rejection costs one key derivation whether or not the email exists.
	decoyDigest string

	// Now overrides the clock for session expiry decisions. Nil means time.Now.
	Now func() time.Time
}

// NewAuthService returns an AuthService with the given dependencies. auditor
// and m may be nil (auditing and metrics disabled); auditRead may be nil if
// the security-events surface is not exposed.
func NewAuthService(
	users UserRepo,
	sessions SessionRepo,
	auditor audit.Recorder,
	auditRead AuditReader,
	hasher *security.Hasher,
	codec *security.TokenCodec,
	refreshTTL time.Duration,
	m *metrics.Metrics,
) *AuthService {
	s := &AuthService{
		users:      users,
		sessions:   sessions,
		auditor:    auditor,
		auditRead:  auditRead,
		hasher:     hasher,
		codec:      codec,
		metrics:    m,
		refreshTTL: refreshTTL,
	}
	s.decoyDigest, _ = hasher.Hash(decoyPassword)
	return s
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *AuthService) logEvent(ctx context.Context, userID string, event auditdomain.EventType, client audit.ClientInfo, metadata string) {
	if s.auditor != nil {
		s.auditor.LogEvent(ctx, userID, event, client, metadata)
	}
}

// Register validates input, creates the user, and returns the sanitized user.
// Validation runs before any store access. The store's unique constraint is
// the source of truth for duplicates; a conflict surfaces as ErrUserExists.
func (s *AuthService) Register(ctx context.Context, email, password, role string, client audit.ClientInfo) (*userdomain.Sanitized, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if len(password) < minPasswordLength {
		return nil, &ValidationError{Rule: fmt.Sprintf("password must be at least %d characters", minPasswordLength)}
	}

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	if role == "" {
		role = userdomain.DefaultRole
	}
	now := s.now().UTC()
	user := &userdomain.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hashed,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := user.Validate(); err != nil {
		return nil, &ValidationError{Rule: err.Error()}
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, userdomain.ErrDuplicateEmail) {
			return nil, ErrUserExists
		}
		return nil, err
	}

	s.logEvent(ctx, user.ID, auditdomain.EventUserRegistered, client, "")
	s.metrics.IncrementUsersCreated()
	return user.Sanitize(), nil
}

// Login authenticates with email/password, creates a session, and returns a
// token pair. Unknown email and wrong password produce the identical
// ErrInvalidCredentials outward; the audit trail records which case applied.
func (s *AuthService) Login(ctx context.Context, email, password string, client audit.ClientInfo) (*AuthResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		// Burn a key derivation against the decoy digest: an unknown email must
		// not reject measurably faster than a wrong password.
		s.hasher.Verify(password, s.decoyDigest)
		s.logEvent(ctx, "", auditdomain.EventLoginFailedUnknownUser, client, fmt.Sprintf(`{"email":%q}`, email))
		s.metrics.IncrementLoginFailures()
		return nil, ErrInvalidCredentials
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		s.logEvent(ctx, user.ID, auditdomain.EventLoginFailedInvalidPassword, client, "")
		s.metrics.IncrementLoginFailures()
		return nil, ErrInvalidCredentials
	}

	result, refreshToken, err := s.issueTokenPair(user)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	sess := &sessiondomain.Session{
		ID:               uuid.New().String(),
		UserID:           user.ID,
		RefreshTokenHash: security.HashRefreshToken(refreshToken),
		ExpiresAt:        now.Add(s.refreshTTL),
		CreatedAt:        now,
		IPAddress:        client.IPAddress,
		UserAgent:        client.UserAgent,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}

	s.logEvent(ctx, user.ID, auditdomain.EventLoginSuccess, client,
		fmt.Sprintf(`{"device":%q}`, device.Label(client.UserAgent)))
	s.metrics.IncrementLoginSuccesses()
	return result, nil
}

// Refresh rotates the session matching the presented refresh token and
// returns a new token pair. A token that matches no session (including one
// superseded by a prior rotation), a revoked session, an expired session, and
// a session whose user no longer exists all collapse to ErrInvalidSession.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, client audit.ClientInfo) (*AuthResult, error) {
	if refreshToken == "" {
		return nil, ErrInvalidSession
	}
	sess, err := s.sessions.GetByRefreshTokenHash(ctx, security.HashRefreshToken(refreshToken))
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if sess == nil || !sess.Active(now) {
		return nil, ErrInvalidSession
	}
	if !security.RefreshTokenHashEqual(refreshToken, sess.RefreshTokenHash) {
		return nil, ErrInvalidSession
	}

	user, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidSession
	}

	result, newRefresh, err := s.issueTokenPair(user)
	if err != nil {
		return nil, err
	}
	// Single atomic update; the superseded digest stops matching immediately,
	// which is what prevents replay of the old token.
	if err := s.sessions.Rotate(ctx, sess.ID, security.HashRefreshToken(newRefresh), now.Add(s.refreshTTL), now); err != nil {
		return nil, err
	}

	s.logEvent(ctx, user.ID, auditdomain.EventRefreshTokenRotated, client, "")
	s.metrics.IncrementTokenRefreshes()
	return result, nil
}

// Logout revokes the session matching the refresh token. It always succeeds:
// an unknown, already-rotated, or already-revoked token is a no-op, so client
// retries never surface an error.
func (s *AuthService) Logout(ctx context.Context, refreshToken string, client audit.ClientInfo) error {
	if refreshToken == "" {
		return nil
	}
	sess, err := s.sessions.GetByRefreshTokenHash(ctx, security.HashRefreshToken(refreshToken))
	if err != nil || sess == nil || sess.Revoked {
		return nil
	}
	if err := s.sessions.Revoke(ctx, sess.ID, sessiondomain.RevokeReasonUserLogout); err != nil {
		return nil
	}
	s.logEvent(ctx, sess.UserID, auditdomain.EventSessionRevoked, client,
		fmt.Sprintf(`{"reason":%q}`, sessiondomain.RevokeReasonUserLogout))
	s.metrics.IncrementSessionsRevoked()
	return nil
}

// Authenticate verifies the access token against the shared secret and
// returns its claims. Stateless: it never touches the store, so it can run on
// every request cheaply. Every verification failure collapses to
// ErrUnauthenticated.
func (s *AuthService) Authenticate(accessToken string) (*security.AccessClaims, error) {
	claims, err := s.codec.VerifyAccess(accessToken)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	return claims, nil
}

// WhoAmI re-fetches the user behind the claims so role and email reflect the
// latest stored state rather than the token snapshot. Fails ErrUnauthenticated
// if the user has since been removed.
func (s *AuthService) WhoAmI(ctx context.Context, claims *security.AccessClaims) (*userdomain.Sanitized, error) {
	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUnauthenticated
	}
	return user.Sanitize(), nil
}

// SecurityEvents returns the user's recent audit history, newest first.
func (s *AuthService) SecurityEvents(ctx context.Context, userID string, limit, offset int32) ([]*auditdomain.AuditLog, error) {
	if s.auditRead == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.auditRead.ListByUser(ctx, userID, limit, offset)
}

// issueTokenPair mints an access token and a fresh opaque refresh token for
// the user. The access TTL lives in the codec and the refresh TTL in the
// service; both are fixed policy constants, not per-call parameters.
func (s *AuthService) issueTokenPair(user *userdomain.User) (*AuthResult, string, error) {
	accessToken, _, err := s.codec.IssueAccess(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, "", err
	}
	refreshToken, err := security.NewRefreshToken()
	if err != nil {
		return nil, "", err
	}
	return &AuthResult{
		AccessToken:       accessToken,
		RefreshToken:      refreshToken,
		RefreshTTLSeconds: int64(s.refreshTTL.Seconds()),
		User:              user.Sanitize(),
	}, refreshToken, nil
}

func validateEmail(email string) error {
	if email == "" {
		return &ValidationError{Rule: "email is required"}
	}
	if !strings.Contains(email, "@") {
		return &ValidationError{Rule: "email must contain @"}
	}
	if len(email) > maxEmailLength {
		return &ValidationError{Rule: fmt.Sprintf("email must be at most %d characters", maxEmailLength)}
	}
	return nil
}
