package handlers

import (
	"net/http"

	"honeypot-lab/internal/domain/services"
	"honeypot-lab/internal/streaming"
	"honeypot-lab/pkg/logger"
)

// StatsHandler handles statistics endpoints
type StatsHandler struct {
	stats  StatsSource
	queue  QueueReporter
	wsHub  *streaming.WebSocketHub
	logger *logger.Logger
}

// NewStatsHandler creates a new StatsHandler
func NewStatsHandler(stats StatsSource, queue QueueReporter, wsHub *streaming.WebSocketHub, log *logger.Logger) *StatsHandler {
	return &StatsHandler{
		stats:  stats,
		queue:  queue,
		wsHub:  wsHub,
		logger: log.WithComponent("stats"),
	}
}

// StatsResponse is the body of GET /api/v1/stats
type StatsResponse struct {
	services.StatsSnapshot
	CallbackQueue    int `json:"callback_queue"`
	WebSocketClients int `json:"websocket_clients"`
}

// Get handles GET /api/v1/stats
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	var resp StatsResponse
	if h.stats != nil {
		resp.StatsSnapshot = h.stats.Snapshot(r.Context())
	}
	if h.queue != nil {
		resp.CallbackQueue = h.queue.QueueLen()
	}
	if h.wsHub != nil {
		resp.WebSocketClients = h.wsHub.ClientCount()
	}

	w.Header().Set("Cache-Control", "no-store")
	respondJSON(w, http.StatusOK, resp)
}
