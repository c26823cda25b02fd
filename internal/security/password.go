package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2 parameters for new hashes. Stored hashes carry their own iteration
// count, so DefaultIterations can be raised without invalidating old records.
const (
	DefaultIterations = 150000
	saltLen           = 16
	keyLen            = 32
)

// ErrEmptyPassword is returned by Hash when the password is empty.
var ErrEmptyPassword = errors.New("password must not be empty")

// Hasher derives and verifies salted password digests using PBKDF2-HMAC-SHA-256.
// Callers must not log or persist plaintext passwords.
type Hasher struct {
	Iterations int
}

// NewHasher returns a Hasher with the given iteration count. Non-positive
// counts fall back to DefaultIterations.
func NewHasher(iterations int) *Hasher {
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	return &Hasher{Iterations: iterations}
}

// Hash derives a key from password with a fresh random salt and returns it in
// a self-describing string: $pbkdf2$sha256$<iterations>$<salt>$<key>, salt and
// key base64url-encoded without padding.
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	key := pbkdf2.Key([]byte(password), salt, h.Iterations, keyLen, sha256.New)
	return fmt.Sprintf("$pbkdf2$sha256$%d$%s$%s",
		h.Iterations,
		base64.RawURLEncoding.EncodeToString(salt),
		base64.RawURLEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches the encoded digest. It re-derives
// with the iteration count stored in the digest, not the Hasher's own, and
// compares in constant time. Any parse failure, unsupported algorithm, or
// non-positive iteration count verifies false; Verify never panics or returns
// an error for the caller to branch on.
func (h *Hasher) Verify(password, encoded string) bool {
	salt, key, iterations, ok := decodeDigest(encoded)
	if !ok {
		return false
	}
	candidate := pbkdf2.Key([]byte(password), salt, iterations, len(key), sha256.New)
	if len(candidate) != len(key) {
		return false
	}
	return subtle.ConstantTimeCompare(candidate, key) == 1
}

// decodeDigest parses the $-delimited digest format. ok is false for any
// malformed input.
func decodeDigest(encoded string) (salt, key []byte, iterations int, ok bool) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, nil, 0, false
	}
	if parts[1] != "pbkdf2" || parts[2] != "sha256" {
		return nil, nil, 0, false
	}
	iterations, err := strconv.Atoi(parts[3])
	if err != nil || iterations <= 0 {
		return nil, nil, 0, false
	}
	salt, err = base64.RawURLEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return nil, nil, 0, false
	}
	key, err = base64.RawURLEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return nil, nil, 0, false
	}
	return salt, key, iterations, true
}
