package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/castlens/castlens/internal/profile"
	"github.com/castlens/castlens/internal/scorecache"
)

// ScoreLookup is the slice of the cache coordinator the handler needs.
type ScoreLookup interface {
	GetWithCache(ctx context.Context, fid string, fetch scorecache.FetchFunc, forceRefresh bool) (scorecache.Result, bool)
}

// Searcher is the slice of the user directory client the handler needs.
type Searcher interface {
	Search(ctx context.Context, query string) []profile.SearchUser
}

// Handler serves the widget-facing JSON API: user search, score lookup,
// and health.
type Handler struct {
	scores       ScoreLookup
	fetch        scorecache.FetchFunc
	search       Searcher
	storeBackend string
	logger       *slog.Logger
}

// NewHandler wires the API surface to the cache coordinator and the
// upstream search client. fetch is the profile fetch operation injected
// into every score lookup.
func NewHandler(scores ScoreLookup, fetch scorecache.FetchFunc, search Searcher, storeBackend string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		scores:       scores,
		fetch:        fetch,
		search:       search,
		storeBackend: storeBackend,
		logger:       logger.With(slog.String("component", "api")),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == "/healthz" || path == "/health":
		h.serveHealth(w)
	case path == "/api/search":
		h.serveSearch(w, r)
	case strings.HasPrefix(path, "/api/scores/"):
		h.serveScores(w, r, strings.TrimPrefix(path, "/api/scores/"))
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *Handler) serveHealth(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"store":  h.storeBackend,
	})
}

func (h *Handler) serveSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter q required")
		return
	}
	users := h.search.Search(r.Context(), query)
	if users == nil {
		users = []profile.SearchUser{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (h *Handler) serveScores(w http.ResponseWriter, r *http.Request, fid string) {
	if !validFID(fid) {
		writeError(w, http.StatusBadRequest, "fid must be a positive number")
		return
	}
	forceRefresh := strings.EqualFold(r.URL.Query().Get("refresh"), "true")

	result, ok := h.scores.GetWithCache(r.Context(), fid, h.fetch, forceRefresh)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no scores found for fid %s", fid))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// validFID accepts the numeric Farcaster id domain and nothing else.
func validFID(fid string) bool {
	if fid == "" {
		return false
	}
	for _, r := range fid {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
