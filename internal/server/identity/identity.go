// Package identity carries the authenticated caller's claims through a
// request context.
package identity

import (
	"context"

	"github.com/deevee3/perryMillNews/internal/security"
)

type contextKey struct{}

// WithClaims returns a context carrying the verified access claims.
func WithClaims(ctx context.Context, claims *security.AccessClaims) context.Context {
	return context.WithValue(ctx, contextKey{}, claims)
}

// FromContext returns the claims stored by WithClaims, if any.
func FromContext(ctx context.Context) (*security.AccessClaims, bool) {
	claims, ok := ctx.Value(contextKey{}).(*security.AccessClaims)
	return claims, ok
}
