package models

import (
	"time"

	"github.com/google/uuid"
)

// CallbackReport is the payload sent to the case-management endpoint
type CallbackReport struct {
	SessionID              string                `json:"sessionId"`
	ScamDetected           bool                  `json:"scamDetected"`
	TotalMessagesExchanged int                   `json:"totalMessagesExchanged"`
	ExtractedIntelligence  ExtractedIntelligence `json:"extractedIntelligence"`
	AgentNotes             string                `json:"agentNotes"`
}

// ReportStatus is the outcome of a delivery attempt
type ReportStatus string

const (
	ReportStatusSent    ReportStatus = "sent"
	ReportStatusFailed  ReportStatus = "failed"
	ReportStatusDropped ReportStatus = "dropped"
)

// ReportDelivery records one attempt to deliver a CallbackReport
type ReportDelivery struct {
	ID          uuid.UUID      `json:"id" db:"id"`
	SessionID   string         `json:"session_id" db:"session_id"`
	Report      CallbackReport `json:"report" db:"payload"`
	Status      ReportStatus   `json:"status" db:"status"`
	StatusCode  int            `json:"status_code,omitempty" db:"status_code"`
	Error       string         `json:"error,omitempty" db:"error"`
	DurationMs  int64          `json:"duration_ms" db:"duration_ms"`
	AttemptedAt time.Time      `json:"attempted_at" db:"attempted_at"`
}
