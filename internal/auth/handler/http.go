package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/deevee3/perryMillNews/internal/audit"
	auditdomain "github.com/deevee3/perryMillNews/internal/audit/domain"
	"github.com/deevee3/perryMillNews/internal/auth/service"
	"github.com/deevee3/perryMillNews/internal/security"
	"github.com/deevee3/perryMillNews/internal/server/identity"
	userdomain "github.com/deevee3/perryMillNews/internal/user/domain"
)

// Service is the auth surface the handler needs.
type Service interface {
	Register(ctx context.Context, email, password, role string, client audit.ClientInfo) (*userdomain.Sanitized, error)
	Login(ctx context.Context, email, password string, client audit.ClientInfo) (*service.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string, client audit.ClientInfo) (*service.AuthResult, error)
	Logout(ctx context.Context, refreshToken string, client audit.ClientInfo) error
	WhoAmI(ctx context.Context, claims *security.AccessClaims) (*userdomain.Sanitized, error)
	SecurityEvents(ctx context.Context, userID string, limit, offset int32) ([]*auditdomain.AuditLog, error)
}

// Handler exposes the auth service over HTTP.
type Handler struct {
	auth Service
}

func New(auth Service) *Handler {
	return &Handler{auth: auth}
}

// Register mounts the public auth routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/auth/register", h.handleRegister)
	r.Post("/api/auth/login", h.handleLogin)
	r.Post("/api/auth/refresh", h.handleRefresh)
	r.Post("/api/auth/logout", h.handleLogout)
}

// RegisterProtected mounts routes that require an authenticated identity.
func (h *Handler) RegisterProtected(r chi.Router) {
	r.Get("/api/auth/me", h.handleMe)
	r.Get("/api/auth/security-events", h.handleSecurityEvents)
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenResponse struct {
	AccessToken      string                `json:"accessToken"`
	RefreshToken     string                `json:"refreshToken"`
	RefreshExpiresIn int64                 `json:"refreshExpiresIn"`
	User             *userdomain.Sanitized `json:"user"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Role is never read from the request body; a wire caller could otherwise
	// register itself with any role. Every registration gets the default.
	user, err := h.auth.Register(r.Context(), req.Email, req.Password, "", clientInfo(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.auth.Login(r.Context(), req.Email, req.Password, clientInfo(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse(res))
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.auth.Refresh(r.Context(), req.RefreshToken, clientInfo(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse(res))
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.auth.Logout(r.Context(), req.RefreshToken, clientInfo(r)); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := identity.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	user, err := h.auth.WhoAmI(r.Context(), claims)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) handleSecurityEvents(w http.ResponseWriter, r *http.Request) {
	claims, ok := identity.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	limit := queryInt32(r, "limit", 50)
	offset := queryInt32(r, "offset", 0)
	events, err := h.auth.SecurityEvents(r.Context(), claims.Subject, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if events == nil {
		events = []*auditdomain.AuditLog{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func authResponse(res *service.AuthResult) tokenResponse {
	return tokenResponse{
		AccessToken:      res.AccessToken,
		RefreshToken:     res.RefreshToken,
		RefreshExpiresIn: res.RefreshTTLSeconds,
		User:             res.User,
	}
}

// clientInfo extracts the caller's address and user agent for the audit trail.
// X-Forwarded-For wins over RemoteAddr when a proxy sets it.
func clientInfo(r *http.Request) audit.ClientInfo {
	ip := r.Header.Get("X-Forwarded-For")
	if ip != "" {
		if i := strings.IndexByte(ip, ','); i >= 0 {
			ip = ip[:i]
		}
		ip = strings.TrimSpace(ip)
	} else {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		ip = host
	}
	return audit.ClientInfo{IPAddress: ip, UserAgent: r.UserAgent()}
}

func queryInt32(r *http.Request, key string, fallback int32) int32 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || n < 0 {
		return fallback
	}
	return int32(n)
}

// writeServiceError maps service errors to HTTP statuses. Unexpected errors
// are logged and surface as an opaque 500.
func writeServiceError(w http.ResponseWriter, err error) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Rule)
	case errors.Is(err, service.ErrUserExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidSession),
		errors.Is(err, service.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, err.Error())
	default:
		log.Printf("auth handler: internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("auth handler: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
