package streaming

import (
	"time"

	"github.com/google/uuid"

	"honeypot-lab/internal/domain/models"
)

// EventType represents the type of engagement event
type EventType string

const (
	EventTypeTurnProcessed   EventType = "turn_processed"
	EventTypeReportDelivered EventType = "report_delivered"
)

// Event is one entry of the live engagement feed
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id"`

	Turn   *models.TurnEvent      `json:"turn,omitempty"`
	Report *models.ReportDelivery `json:"report,omitempty"`
}

// NewTurnEvent wraps a processed turn
func NewTurnEvent(turn *models.TurnEvent) *Event {
	ts := turn.ProcessedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return &Event{
		ID:        uuid.New().String(),
		Type:      EventTypeTurnProcessed,
		Timestamp: ts,
		SessionID: turn.SessionID,
		Turn:      turn,
	}
}

// NewReportEvent wraps a callback delivery attempt
func NewReportEvent(delivery *models.ReportDelivery) *Event {
	ts := delivery.AttemptedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return &Event{
		ID:        uuid.New().String(),
		Type:      EventTypeReportDelivered,
		Timestamp: ts,
		SessionID: delivery.SessionID,
		Report:    delivery,
	}
}

// Subscription represents a client's feed filter
type Subscription struct {
	// Filter by event types (empty = all)
	Types []EventType `json:"types,omitempty"`

	// Follow a single session
	SessionID string `json:"session_id,omitempty"`

	// Skip benign turns
	ScamOnly bool `json:"scam_only,omitempty"`
}

// Matches checks if an event matches the subscription filters
func (s *Subscription) Matches(event *Event) bool {
	if s == nil {
		return true
	}

	if len(s.Types) > 0 {
		found := false
		for _, t := range s.Types {
			if t == event.Type {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if s.SessionID != "" && s.SessionID != event.SessionID {
		return false
	}

	if s.ScamOnly && event.Turn != nil && !event.Turn.ScamDetected {
		return false
	}

	return true
}
