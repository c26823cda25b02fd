package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/deevee3/perryMillNews/internal/audit"
	auditdomain "github.com/deevee3/perryMillNews/internal/audit/domain"
	"github.com/deevee3/perryMillNews/internal/security"
	sessiondomain "github.com/deevee3/perryMillNews/internal/session/domain"
	userdomain "github.com/deevee3/perryMillNews/internal/user/domain"
)

type memUserRepo struct {
	mu          sync.Mutex
	byID        map[string]*userdomain.User
	byEmail     map[string]*userdomain.User
	createCalls int
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{byID: make(map[string]*userdomain.User), byEmail: make(map[string]*userdomain.User)}
}

func (r *memUserRepo) GetByID(ctx context.Context, id string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[id], nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byEmail[email], nil
}

func (r *memUserRepo) Create(ctx context.Context, u *userdomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createCalls++
	if _, exists := r.byEmail[u.Email]; exists {
		return userdomain.ErrDuplicateEmail
	}
	u2 := *u
	r.byID[u.ID] = &u2
	r.byEmail[u.Email] = &u2
	return nil
}

func (r *memUserRepo) delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[id]; ok {
		delete(r.byEmail, u.Email)
		delete(r.byID, id)
	}
}

type memSessionRepo struct {
	mu sync.Mutex
	m  map[string]*sessiondomain.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{m: make(map[string]*sessiondomain.Session)}
}

func (r *memSessionRepo) Create(ctx context.Context, s *sessiondomain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s2 := *s
	r.m[s.ID] = &s2
	return nil
}

func (r *memSessionRepo) GetByRefreshTokenHash(ctx context.Context, hash string) (*sessiondomain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.m {
		if s.RefreshTokenHash == hash {
			s2 := *s
			return &s2, nil
		}
	}
	return nil, nil
}

func (r *memSessionRepo) Rotate(ctx context.Context, sessionID, newHash string, newExpiresAt, lastSeenAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.m[sessionID]; ok {
		s.RefreshTokenHash = newHash
		s.ExpiresAt = newExpiresAt
		s.LastSeenAt = &lastSeenAt
	}
	return nil
}

func (r *memSessionRepo) Revoke(ctx context.Context, sessionID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.m[sessionID]; ok && !s.Revoked {
		now := time.Now().UTC()
		s.Revoked = true
		s.RevokedAt = &now
		s.RevokeReason = reason
	}
	return nil
}

func (r *memSessionRepo) get(id string) *sessiondomain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.m[id]; ok {
		s2 := *s
		return &s2
	}
	return nil
}

func (r *memSessionRepo) only(t *testing.T) *sessiondomain.Session {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.m) != 1 {
		t.Fatalf("sessions = %d, want 1", len(r.m))
	}
	for _, s := range r.m {
		s2 := *s
		return &s2
	}
	return nil
}

type capturedEvent struct {
	userID   string
	event    auditdomain.EventType
	metadata string
}

type memRecorder struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (r *memRecorder) LogEvent(ctx context.Context, userID string, eventType auditdomain.EventType, client audit.ClientInfo, metadata string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, capturedEvent{userID: userID, event: eventType, metadata: metadata})
}

func (r *memRecorder) last(t *testing.T) capturedEvent {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		t.Fatal("no audit events recorded")
	}
	return r.events[len(r.events)-1]
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	svc      *AuthService
	users    *memUserRepo
	sessions *memSessionRepo
	recorder *memRecorder
	clock    *testClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	users := newMemUserRepo()
	sessions := newMemSessionRepo()
	recorder := &memRecorder{}
	clock := &testClock{now: time.Now().UTC()}

	codec := security.NewTokenCodec("test-secret", 15*time.Minute)
	codec.Now = clock.Now
	svc := NewAuthService(users, sessions, recorder, nil, security.NewHasher(1000), codec, 14*24*time.Hour, nil)
	svc.Now = clock.Now

	return &fixture{svc: svc, users: users, sessions: sessions, recorder: recorder, clock: clock}
}

const (
	testEmail    = "alice@example.com"
	testPassword = "correct-horse-battery"
)

func (f *fixture) register(t *testing.T) *userdomain.Sanitized {
	t.Helper()
	u, err := f.svc.Register(context.Background(), testEmail, testPassword, "", audit.ClientInfo{})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return u
}

func (f *fixture) login(t *testing.T) *AuthResult {
	t.Helper()
	res, err := f.svc.Login(context.Background(), testEmail, testPassword, audit.ClientInfo{IPAddress: "203.0.113.7", UserAgent: "test-agent"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	return res
}

func TestRegister(t *testing.T) {
	f := newFixture(t)

	u := f.register(t)
	if u.ID == "" {
		t.Fatal("expected user id")
	}
	if u.Email != testEmail {
		t.Errorf("email = %q, want %q", u.Email, testEmail)
	}
	if u.Role != "user" {
		t.Errorf("role = %q, want default \"user\"", u.Role)
	}

	stored := f.users.byID[u.ID]
	if stored.PasswordHash == "" || stored.PasswordHash == testPassword {
		t.Fatal("stored password hash must be a digest, not the raw password")
	}
	if e := f.recorder.last(t); e.event != auditdomain.EventUserRegistered || e.userID != u.ID {
		t.Errorf("audit = %+v, want UserRegistered for %s", e, u.ID)
	}
}

func TestRegister_NormalizesEmail(t *testing.T) {
	f := newFixture(t)
	u, err := f.svc.Register(context.Background(), "  Alice@Example.COM ", testPassword, "", audit.ClientInfo{})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Errorf("email = %q, want lowercase trimmed", u.Email)
	}
}

func TestRegister_ValidationBeforeStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"missing @", "not-an-email", testPassword},
		{"empty email", "", testPassword},
		{"overlong email", strings255() + "@x.co", testPassword},
		{"11-char password", testEmail, "elevenchars"},
		{"empty password", testEmail, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Register(ctx, tc.email, tc.password, "", audit.ClientInfo{})
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("want ValidationError, got %v", err)
			}
			if ve.Rule == "" {
				t.Error("validation error should cite the rule")
			}
		})
	}
	if f.users.createCalls != 0 {
		t.Fatalf("store Create called %d times before validation passed, want 0", f.users.createCalls)
	}
}

func strings255() string {
	b := make([]byte, 255)
	for i := range b {
		b[i] = 'a'
	}
	return string(b)
}

func TestRegister_Duplicate(t *testing.T) {
	f := newFixture(t)
	f.register(t)

	_, err := f.svc.Register(context.Background(), testEmail, "another-long-password", "", audit.ClientInfo{})
	if !errors.Is(err, ErrUserExists) {
		t.Fatalf("duplicate email: want ErrUserExists, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	f.register(t)

	res := f.login(t)
	if res.AccessToken == "" || res.RefreshToken == "" {
		t.Fatal("login must return both tokens")
	}
	if res.RefreshTTLSeconds != int64((14 * 24 * time.Hour).Seconds()) {
		t.Errorf("RefreshTTLSeconds = %d, want 14d", res.RefreshTTLSeconds)
	}
	if res.User == nil || res.User.Email != testEmail {
		t.Fatalf("unexpected user in result: %+v", res.User)
	}

	sess := f.sessions.only(t)
	if sess.RefreshTokenHash == res.RefreshToken {
		t.Fatal("session must store a digest, not the raw refresh token")
	}
	if sess.RefreshTokenHash != security.HashRefreshToken(res.RefreshToken) {
		t.Fatal("stored digest should match the issued token's digest")
	}
	if sess.IPAddress != "203.0.113.7" || sess.UserAgent != "test-agent" {
		t.Errorf("client info not recorded on session: %+v", sess)
	}
	if e := f.recorder.last(t); e.event != auditdomain.EventLoginSuccess {
		t.Errorf("audit = %v, want LoginSuccess", e.event)
	}
}

func TestLogin_FailuresIndistinguishable(t *testing.T) {
	f := newFixture(t)
	f.register(t)
	ctx := context.Background()

	_, errUnknown := f.svc.Login(ctx, "nobody@example.com", testPassword, audit.ClientInfo{})
	unknownEvent := f.recorder.last(t)
	_, errWrongPw := f.svc.Login(ctx, testEmail, "wrong-password-long", audit.ClientInfo{})
	wrongPwEvent := f.recorder.last(t)

	// Outward: the exact same error value for both cases.
	if errUnknown != errWrongPw || !errors.Is(errUnknown, ErrInvalidCredentials) {
		t.Fatalf("unknown=%v wrongpw=%v, want identical ErrInvalidCredentials", errUnknown, errWrongPw)
	}

	// Inward: the audit trail distinguishes them.
	if unknownEvent.event != auditdomain.EventLoginFailedUnknownUser {
		t.Errorf("unknown-user audit = %v", unknownEvent.event)
	}
	if unknownEvent.userID != "" {
		t.Error("unknown-user audit should have no user id")
	}
	if unknownEvent.metadata == "" {
		t.Error("unknown-user audit should carry the attempted email")
	}
	if wrongPwEvent.event != auditdomain.EventLoginFailedInvalidPassword {
		t.Errorf("wrong-password audit = %v", wrongPwEvent.event)
	}
}

func TestLogin_RejectionCostsKeyDerivation(t *testing.T) {
	// Enough iterations that a key derivation dominates a map lookup by a wide
	// margin, small enough to keep the test quick.
	const iterations = 20000

	users := newMemUserRepo()
	hasher := security.NewHasher(iterations)
	codec := security.NewTokenCodec("test-secret", 15*time.Minute)
	svc := NewAuthService(users, newMemSessionRepo(), nil, nil, hasher, codec, 14*24*time.Hour, nil)
	ctx := context.Background()

	if _, err := svc.Register(ctx, testEmail, testPassword, "", audit.ClientInfo{}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	measure := func(email string) time.Duration {
		start := time.Now()
		if _, err := svc.Login(ctx, email, "wrong-password-long", audit.ClientInfo{}); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("login %q: want ErrInvalidCredentials, got %v", email, err)
		}
		return time.Since(start)
	}

	// Warm both paths once before timing.
	measure(testEmail)
	measure("nobody@example.com")

	var wrongPassword, unknownEmail time.Duration
	const reps = 3
	for i := 0; i < reps; i++ {
		wrongPassword += measure(testEmail)
		unknownEmail += measure("nobody@example.com")
	}

	// Both rejections burn one derivation; without the decoy the unknown-email
	// path is faster by four orders of magnitude.
	if unknownEmail*10 < wrongPassword {
		t.Fatalf("unknown-email rejection avg %v vs wrong-password avg %v; timing reveals whether the email exists",
			unknownEmail/reps, wrongPassword/reps)
	}
}

func TestRefresh_RotationAndReuse(t *testing.T) {
	f := newFixture(t)
	f.register(t)
	res1 := f.login(t)
	ctx := context.Background()

	res2, err := f.svc.Refresh(ctx, res1.RefreshToken, audit.ClientInfo{})
	if err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	if res2.RefreshToken == res1.RefreshToken {
		t.Fatal("rotation must mint a different refresh token")
	}

	// The superseded token no longer matches any stored digest.
	if _, err := f.svc.Refresh(ctx, res1.RefreshToken, audit.ClientInfo{}); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("reused old token: want ErrInvalidSession, got %v", err)
	}

	// The current token still works, against the same session identity.
	res3, err := f.svc.Refresh(ctx, res2.RefreshToken, audit.ClientInfo{})
	if err != nil {
		t.Fatalf("refresh with rotated token: %v", err)
	}
	if res3.AccessToken == "" {
		t.Fatal("expected a fresh access token")
	}
	sess := f.sessions.only(t)
	if sess.LastSeenAt == nil {
		t.Error("rotation should stamp last-seen")
	}
}

func TestRefresh_InvalidCases(t *testing.T) {
	f := newFixture(t)
	f.register(t)
	res := f.login(t)
	ctx := context.Background()

	t.Run("unknown token", func(t *testing.T) {
		if _, err := f.svc.Refresh(ctx, "no-such-token", audit.ClientInfo{}); !errors.Is(err, ErrInvalidSession) {
			t.Fatalf("want ErrInvalidSession, got %v", err)
		}
	})

	t.Run("empty token", func(t *testing.T) {
		if _, err := f.svc.Refresh(ctx, "", audit.ClientInfo{}); !errors.Is(err, ErrInvalidSession) {
			t.Fatalf("want ErrInvalidSession, got %v", err)
		}
	})

	t.Run("expired session", func(t *testing.T) {
		f.clock.Advance(14*24*time.Hour + time.Minute)
		if _, err := f.svc.Refresh(ctx, res.RefreshToken, audit.ClientInfo{}); !errors.Is(err, ErrInvalidSession) {
			t.Fatalf("want ErrInvalidSession, got %v", err)
		}
	})
}

func TestRefresh_RevokedSession(t *testing.T) {
	f := newFixture(t)
	f.register(t)
	res := f.login(t)
	ctx := context.Background()

	sess := f.sessions.only(t)
	if err := f.sessions.Revoke(ctx, sess.ID, "admin_action"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := f.svc.Refresh(ctx, res.RefreshToken, audit.ClientInfo{}); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("revoked session refresh: want ErrInvalidSession, got %v", err)
	}
}

func TestRefresh_UserRemoved(t *testing.T) {
	f := newFixture(t)
	u := f.register(t)
	res := f.login(t)

	f.users.delete(u.ID)
	if _, err := f.svc.Refresh(context.Background(), res.RefreshToken, audit.ClientInfo{}); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("refresh for removed user: want ErrInvalidSession, got %v", err)
	}
}

func TestLogout_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.register(t)
	res := f.login(t)
	ctx := context.Background()

	if err := f.svc.Logout(ctx, res.RefreshToken, audit.ClientInfo{}); err != nil {
		t.Fatalf("logout: %v", err)
	}
	sess := f.sessions.only(t)
	if !sess.Revoked || sess.RevokeReason != sessiondomain.RevokeReasonUserLogout {
		t.Fatalf("session not revoked with user_logout: %+v", sess)
	}
	if e := f.recorder.last(t); e.event != auditdomain.EventSessionRevoked {
		t.Errorf("audit = %v, want SessionRevoked", e.event)
	}
	firstRevokedAt := sess.RevokedAt

	// Second logout with the same token: still success, no state change.
	if err := f.svc.Logout(ctx, res.RefreshToken, audit.ClientInfo{}); err != nil {
		t.Fatalf("second logout: %v", err)
	}
	sess = f.sessions.only(t)
	if sess.RevokedAt == nil || firstRevokedAt == nil || !sess.RevokedAt.Equal(*firstRevokedAt) {
		t.Error("second logout must not mutate the revoked session")
	}

	// Unknown token: also success.
	if err := f.svc.Logout(ctx, "never-issued", audit.ClientInfo{}); err != nil {
		t.Fatalf("logout with unknown token: %v", err)
	}

	// The revoked session can never authorize a refresh again.
	if _, err := f.svc.Refresh(ctx, res.RefreshToken, audit.ClientInfo{}); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("refresh after logout: want ErrInvalidSession, got %v", err)
	}
}

func TestAuthenticateAndWhoAmI(t *testing.T) {
	f := newFixture(t)
	u := f.register(t)
	res := f.login(t)
	ctx := context.Background()

	claims, err := f.svc.Authenticate(res.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if claims.Subject != u.ID || claims.Email != testEmail || claims.Role != "user" {
		t.Fatalf("claims = %+v", claims)
	}

	me, err := f.svc.WhoAmI(ctx, claims)
	if err != nil {
		t.Fatalf("WhoAmI: %v", err)
	}
	if me.ID != u.ID {
		t.Errorf("WhoAmI id = %q, want %q", me.ID, u.ID)
	}

	if _, err := f.svc.Authenticate("garbage"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("garbage token: want ErrUnauthenticated, got %v", err)
	}

	f.users.delete(u.ID)
	if _, err := f.svc.WhoAmI(ctx, claims); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("WhoAmI for removed user: want ErrUnauthenticated, got %v", err)
	}
}

func TestEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.svc.Register(ctx, testEmail, testPassword, "", audit.ClientInfo{})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	res, err := f.svc.Login(ctx, testEmail, testPassword, audit.ClientInfo{})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := f.svc.Authenticate(res.AccessToken)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if claims.Subject != u.ID || claims.Email != testEmail || claims.Role != "user" {
		t.Fatalf("claims = %+v", claims)
	}

	// Past the access TTL the token stops authenticating, but the refresh
	// token is still good for two weeks.
	f.clock.Advance(16 * time.Minute)
	if _, err := f.svc.Authenticate(res.AccessToken); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expired access token: want ErrUnauthenticated, got %v", err)
	}

	res2, err := f.svc.Refresh(ctx, res.RefreshToken, audit.ClientInfo{})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	claims2, err := f.svc.Authenticate(res2.AccessToken)
	if err != nil {
		t.Fatalf("authenticate after refresh: %v", err)
	}
	if claims2.Subject != u.ID {
		t.Errorf("refreshed claims subject = %q, want %q", claims2.Subject, u.ID)
	}
}
