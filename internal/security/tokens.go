package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verification failure kinds. Callers normally collapse these to a single
// unauthenticated result; the distinction exists for logging and tests.
var (
	ErrMalformedToken       = errors.New("malformed token")
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")
	ErrSignatureInvalid     = errors.New("token signature invalid")
	ErrTokenExpired         = errors.New("token expired")
)

// AccessClaims holds the JWT claims carried by an access token: subject user
// id, email, role, iat, exp. Possession of a valid token is sufficient proof
// of identity; verification never touches the store.
type AccessClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

// TokenCodec signs and verifies compact HS256 access tokens with a shared
// secret. It is deliberately single-algorithm: the verifier rejects any token
// whose header claims anything but HS256, precluding alg-confusion attacks.
type TokenCodec struct {
	secret    []byte
	accessTTL time.Duration

	// Now overrides the clock for issuance and expiry checks. Nil means time.Now.
	Now func() time.Time
}

// NewTokenCodec returns a TokenCodec signing with secret and stamping
// exp = iat + accessTTL on issued tokens.
func NewTokenCodec(secret string, accessTTL time.Duration) *TokenCodec {
	return &TokenCodec{secret: []byte(secret), accessTTL: accessTTL}
}

func (c *TokenCodec) clock() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// IssueAccess signs an access token for the given user. Returns the compact
// token and its expiry.
func (c *TokenCodec) IssueAccess(userID, email, role string) (string, time.Time, error) {
	now := c.clock().UTC()
	expiresAt := now.Add(c.accessTTL)
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email: email,
		Role:  role,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// VerifyAccess parses and verifies a compact token. On success it returns the
// decoded claims; on failure one of ErrMalformedToken, ErrUnsupportedAlgorithm,
// ErrSignatureInvalid, or ErrTokenExpired. No iat-skew leeway is applied.
func (c *TokenCodec) VerifyAccess(tokenString string) (*AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok || t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, ErrUnsupportedAlgorithm
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(c.clock))
	if err != nil {
		return nil, classifyTokenError(err)
	}
	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, ErrMalformedToken
	}
	return claims, nil
}

func classifyTokenError(err error) error {
	switch {
	case errors.Is(err, ErrUnsupportedAlgorithm):
		return ErrUnsupportedAlgorithm
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformedToken
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrSignatureInvalid
	default:
		return ErrMalformedToken
	}
}
