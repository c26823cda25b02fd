// Package server assembles the HTTP router: public auth routes, protected
// API routes behind bearer authentication, and the health and metrics
// endpoints.
package server

import (
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/deevee3/perryMillNews/internal/security"
	"github.com/deevee3/perryMillNews/internal/server/identity"
)

const bearerPrefix = "bearer "

// Authenticator verifies an access token and returns its claims.
type Authenticator interface {
	Authenticate(accessToken string) (*security.AccessClaims, error)
}

// RouteRegistrar mounts routes on a chi router. Handlers with both public and
// protected surfaces implement it twice via Register/RegisterProtected.
type RouteRegistrar interface {
	Register(r chi.Router)
}

// ProtectedRegistrar mounts routes that require an authenticated identity.
type ProtectedRegistrar interface {
	RegisterProtected(r chi.Router)
}

// New builds the full router. db may be nil, in which case the health
// endpoint reports only process liveness.
func New(auth Authenticator, db *sql.DB, public []RouteRegistrar, protected []ProtectedRegistrar) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", healthHandler(db))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	for _, reg := range public {
		reg.Register(r)
	}

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(auth))
		for _, reg := range protected {
			reg.RegisterProtected(r)
		}
	})

	return r
}

// RequireAuth rejects requests without a valid Bearer access token and stores
// the verified claims in the request context.
func RequireAuth(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearer(r.Header.Get("Authorization"))
			if token == "" {
				unauthorized(w)
				return
			}
			claims, err := auth.Authenticate(token)
			if err != nil {
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(identity.WithClaims(r.Context(), claims)))
		})
	}
}

// extractBearer returns the Bearer token from an Authorization header value,
// or "" if missing or malformed.
func extractBearer(header string) string {
	v := strings.TrimSpace(header)
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"missing or invalid authorization"}`))
}

func healthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded","database":"unreachable"}`))
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}
