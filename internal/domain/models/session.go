package models

import "time"

// SessionState is the per-session accumulator owned by the session aggregator
type SessionState struct {
	SessionID    string          `json:"sessionId"`
	Intelligence IntelligenceSet `json:"intelligence"`
	MessageCount int             `json:"messageCount"`
	ScamDetected bool            `json:"scamDetected"`
	ReportsFired int             `json:"reportsFired"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// NewSessionState creates an empty session
func NewSessionState(id string) *SessionState {
	now := time.Now().UTC()
	return &SessionState{
		SessionID:    id,
		Intelligence: NewIntelligenceSet(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Clone returns a deep copy safe to hand out of a critical section
func (s *SessionState) Clone() SessionState {
	c := *s
	c.Intelligence = s.Intelligence.Clone()
	return c
}

// Touch updates the modification time
func (s *SessionState) Touch() {
	s.UpdatedAt = time.Now().UTC()
}

// SessionSnapshot is the read-only API view of a session
type SessionSnapshot struct {
	SessionID             string                `json:"sessionId"`
	ScamDetected          bool                  `json:"scamDetected"`
	MessageCount          int                   `json:"messageCount"`
	TotalItems            int                   `json:"totalItems"`
	ReportsFired          int                   `json:"reportsFired"`
	ExtractedIntelligence ExtractedIntelligence `json:"extractedIntelligence"`
	CreatedAt             time.Time             `json:"createdAt"`
	UpdatedAt             time.Time             `json:"updatedAt"`
}

// Snapshot converts the state into its API view
func (s SessionState) Snapshot() SessionSnapshot {
	return SessionSnapshot{
		SessionID:             s.SessionID,
		ScamDetected:          s.ScamDetected,
		MessageCount:          s.MessageCount,
		TotalItems:            s.Intelligence.Total(),
		ReportsFired:          s.ReportsFired,
		ExtractedIntelligence: s.Intelligence.Lists(),
		CreatedAt:             s.CreatedAt,
		UpdatedAt:             s.UpdatedAt,
	}
}
