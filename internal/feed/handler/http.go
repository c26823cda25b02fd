package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/deevee3/perryMillNews/internal/feed/domain"
	"github.com/deevee3/perryMillNews/internal/feed/service"
)

// Fetcher retrieves a curated feed category.
type Fetcher interface {
	Fetch(ctx context.Context, slug string, limit int) (*domain.Result, error)
}

// Analyzer produces an editorial narrative for a fetched feed.
type Analyzer interface {
	Enabled() bool
	Analyze(ctx context.Context, feed *domain.Result) (*domain.Analysis, error)
}

// Handler exposes the digest endpoints. The config endpoint is public; feed
// fetching and analysis require an authenticated caller.
type Handler struct {
	feeds    Fetcher
	analyzer Analyzer
}

func New(feeds Fetcher, analyzer Analyzer) *Handler {
	return &Handler{feeds: feeds, analyzer: analyzer}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/api/config", h.handleConfig)
}

func (h *Handler) RegisterProtected(r chi.Router) {
	r.Post("/api/feed", h.handleFeed)
	r.Post("/api/analyze", h.handleAnalyze)
}

func (h *Handler) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"hasOpenAIKey": h.analyzer.Enabled(),
		"feeds":        domain.Categories(),
	})
}

type feedRequest struct {
	Category string `json:"category"`
	Limit    int    `json:"limit"`
}

func (h *Handler) handleFeed(w http.ResponseWriter, r *http.Request) {
	var req feedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.feeds.Fetch(r.Context(), req.Category, req.Limit)
	if err != nil {
		if errors.Is(err, service.ErrUnknownCategory) {
			writeError(w, http.StatusBadRequest, "unknown feed category")
			return
		}
		log.Printf("feed handler: fetch %q: %v", req.Category, err)
		writeError(w, http.StatusBadGateway, "failed to fetch feed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type analyzeRequest struct {
	Feed *domain.Result `json:"feed"`
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if !h.analyzer.Enabled() {
		writeError(w, http.StatusInternalServerError, "analysis is not configured")
		return
	}

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Feed == nil {
		writeError(w, http.StatusBadRequest, "feed payload is required for analysis")
		return
	}

	analysis, err := h.analyzer.Analyze(r.Context(), req.Feed)
	if err != nil {
		log.Printf("feed handler: analyze: %v", err)
		writeError(w, http.StatusBadGateway, "analysis failed")
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("feed handler: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
