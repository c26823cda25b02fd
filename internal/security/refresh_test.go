package security

import (
	"encoding/base64"
	"testing"
)

func TestNewRefreshToken_EntropyAndUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok, err := NewRefreshToken()
		if err != nil {
			t.Fatalf("NewRefreshToken: %v", err)
		}
		raw, err := base64.RawURLEncoding.DecodeString(tok)
		if err != nil {
			t.Fatalf("token is not base64url: %v", err)
		}
		if len(raw) < 32 {
			t.Fatalf("token entropy = %d bytes, want >= 32", len(raw))
		}
		if seen[tok] {
			t.Fatal("duplicate refresh token generated")
		}
		seen[tok] = true
	}
}

func TestHashRefreshToken_StableAndOpaque(t *testing.T) {
	tok, err := NewRefreshToken()
	if err != nil {
		t.Fatalf("NewRefreshToken: %v", err)
	}
	a := HashRefreshToken(tok)
	b := HashRefreshToken(tok)
	if a != b {
		t.Fatal("digest of the same token should be stable")
	}
	if a == tok {
		t.Fatal("digest must differ from the raw token")
	}
	if _, err := base64.RawURLEncoding.DecodeString(a); err != nil {
		t.Fatalf("digest is not base64url: %v", err)
	}
}

func TestRefreshTokenHashEqual(t *testing.T) {
	tok, err := NewRefreshToken()
	if err != nil {
		t.Fatalf("NewRefreshToken: %v", err)
	}
	stored := HashRefreshToken(tok)

	if !RefreshTokenHashEqual(tok, stored) {
		t.Fatal("matching token should compare equal")
	}
	if RefreshTokenHashEqual(tok+"x", stored) {
		t.Fatal("non-matching token should not compare equal")
	}
	if RefreshTokenHashEqual(tok, "") {
		t.Fatal("empty stored hash should not compare equal")
	}
}
