package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"honeypot-lab/internal/domain/services"
	"honeypot-lab/pkg/logger"
)

// SessionsHandler exposes accumulated session intelligence
type SessionsHandler struct {
	turns   TurnService
	reports ReportLister
	logger  *logger.Logger
}

// NewSessionsHandler creates a new sessions handler
func NewSessionsHandler(turns TurnService, reports ReportLister, log *logger.Logger) *SessionsHandler {
	return &SessionsHandler{
		turns:   turns,
		reports: reports,
		logger:  log.WithComponent("sessions-handler"),
	}
}

// Get handles GET /api/v1/sessions/{id}
func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	snapshot, err := h.turns.Session(r.Context(), id)
	if errors.Is(err, services.ErrSessionNotFound) {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("session_id", id).Msg("failed to load session")
		respondError(w, http.StatusInternalServerError, "failed to load session")
		return
	}

	respondJSON(w, http.StatusOK, snapshot)
}

// ListReports handles GET /api/v1/sessions/{id}/reports
func (h *SessionsHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		respondError(w, http.StatusServiceUnavailable, "report archive not configured")
		return
	}

	id := chi.URLParam(r, "id")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	deliveries, err := h.reports.ListBySession(r.Context(), id, limit)
	if err != nil {
		h.logger.Error().Err(err).Str("session_id", id).Msg("failed to list reports")
		respondError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"reports":    deliveries,
		"count":      len(deliveries),
	})
}
