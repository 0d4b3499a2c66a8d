package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/peropkp00-ai/IA-EVOLUTIVA/internal/store"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// HistoryHandler serves the recorded session history.
type HistoryHandler struct {
	rec store.Recorder
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(rec store.Recorder) *HistoryHandler {
	return &HistoryHandler{rec: rec}
}

// RegisterRoutes registers history routes.
func (h *HistoryHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/sessions", h.ListSessions)
		r.Get("/updates", h.ListUpdates)
	})
}

// ListSessions returns the most recently updated session records.
func (h *HistoryHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	records, err := h.rec.ListRecentSessions(r.Context(), listLimit(r))
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"sessions": records})
}

// ListUpdates returns the recorded status updates for one session. The
// session name is a query parameter because remote session names contain
// slashes (e.g. "sessions/abc").
func (h *HistoryHandler) ListUpdates(w http.ResponseWriter, r *http.Request) {
	sessionName := r.URL.Query().Get("session")
	if sessionName == "" {
		Error(w, http.StatusBadRequest, `missing "session" query parameter`)
		return
	}

	records, err := h.rec.ListStatuses(r.Context(), sessionName, listLimit(r))
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to list status updates")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"updates": records})
}

func listLimit(r *http.Request) int {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit
}
