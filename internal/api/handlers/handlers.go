package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"honeypot-lab/internal/domain/models"
	"honeypot-lab/internal/domain/services"
	"honeypot-lab/internal/streaming"
	"honeypot-lab/pkg/logger"
)

// TurnService processes turns and exposes session snapshots
type TurnService interface {
	ProcessTurn(ctx context.Context, req models.TurnRequest) models.TurnResult
	Session(ctx context.Context, sessionID string) (models.SessionSnapshot, error)
}

// StatsSource provides pipeline counters
type StatsSource interface {
	Snapshot(ctx context.Context) services.StatsSnapshot
}

// QueueReporter exposes the callback backlog
type QueueReporter interface {
	QueueLen() int
}

// ReportLister reads archived callback deliveries
type ReportLister interface {
	ListBySession(ctx context.Context, sessionID string, limit int) ([]*models.ReportDelivery, error)
}

// Handlers holds all API handlers
type Handlers struct {
	Health    *HealthHandler
	Message   *MessageHandler
	Sessions  *SessionsHandler
	Stats     *StatsHandler
	Streaming *StreamingHandler
}

// Dependencies holds dependencies for handlers. Optional ones may be nil.
type Dependencies struct {
	Turns    TurnService
	Stats    StatsSource
	Queue    QueueReporter
	Reports  ReportLister
	Checks   map[string]HealthCheck
	EventBus *streaming.EventBus
	WSHub    *streaming.WebSocketHub
	Version  string
	Logger   *logger.Logger
}

// NewHandlers creates all handlers
func NewHandlers(deps Dependencies) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(deps.Checks, deps.Version, deps.Logger),
		Message:   NewMessageHandler(deps.Turns, deps.Logger),
		Sessions:  NewSessionsHandler(deps.Turns, deps.Reports, deps.Logger),
		Stats:     NewStatsHandler(deps.Stats, deps.Queue, deps.WSHub, deps.Logger),
		Streaming: NewStreamingHandler(deps.WSHub, deps.EventBus, deps.Logger),
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
