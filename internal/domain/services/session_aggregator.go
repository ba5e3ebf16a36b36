package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"honeypot-lab/internal/domain/models"
	"honeypot-lab/pkg/logger"
)

// AggregatorConfig holds the report sufficiency thresholds
type AggregatorConfig struct {
	MinIntelligenceItems int
	MinMessages          int
}

// DefaultAggregatorConfig returns the standard thresholds: 3 items or 5 messages
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{
		MinIntelligenceItems: 3,
		MinMessages:          5,
	}
}

// SessionAggregator owns all mutations of session state
type SessionAggregator struct {
	store  SessionStore
	config AggregatorConfig
	logger *logger.Logger
}

// NewSessionAggregator creates a new session aggregator
func NewSessionAggregator(store SessionStore, cfg AggregatorConfig, log *logger.Logger) *SessionAggregator {
	def := DefaultAggregatorConfig()
	if cfg.MinIntelligenceItems <= 0 {
		cfg.MinIntelligenceItems = def.MinIntelligenceItems
	}
	if cfg.MinMessages <= 0 {
		cfg.MinMessages = def.MinMessages
	}

	return &SessionAggregator{
		store:  store,
		config: cfg,
		logger: log.WithComponent("session-aggregator"),
	}
}

// Config returns the active thresholds
func (a *SessionAggregator) Config() AggregatorConfig {
	return a.config
}

// GetOrCreate returns the session, creating an empty one on first reference
func (a *SessionAggregator) GetOrCreate(ctx context.Context, sessionID string) (models.SessionState, error) {
	return a.store.Update(ctx, sessionID, func(*models.SessionState) error { return nil })
}

// Lookup returns an existing session without creating it
func (a *SessionAggregator) Lookup(ctx context.Context, sessionID string) (models.SessionState, error) {
	return a.store.Get(ctx, sessionID)
}

// MergeIntelligence unions the non-empty fields of an extraction into the session
func (a *SessionAggregator) MergeIntelligence(ctx context.Context, sessionID string, r models.ExtractionResult) (models.SessionState, error) {
	state, err := a.store.Update(ctx, sessionID, func(s *models.SessionState) error {
		s.Intelligence.Merge(r)
		return nil
	})
	if err != nil {
		return state, fmt.Errorf("failed to merge intelligence: %w", err)
	}
	return state, nil
}

// IncrementTurn counts one inbound turn and returns the new count
func (a *SessionAggregator) IncrementTurn(ctx context.Context, sessionID string) (int, error) {
	state, err := a.store.Update(ctx, sessionID, func(s *models.SessionState) error {
		s.MessageCount++
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to increment turn: %w", err)
	}
	return state.MessageCount, nil
}

// ShouldReport evaluates the sufficiency threshold for a session.
// Unknown sessions never qualify.
func (a *SessionAggregator) ShouldReport(ctx context.Context, sessionID string) (bool, error) {
	state, err := a.store.Get(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load session: %w", err)
	}
	return a.thresholdMet(state), nil
}

// RecordScamTurn marks the session as a scam, merges the extraction and
// evaluates the threshold inside one critical section.
func (a *SessionAggregator) RecordScamTurn(ctx context.Context, sessionID string, r models.ExtractionResult) (models.SessionState, bool, error) {
	report := false
	state, err := a.store.Update(ctx, sessionID, func(s *models.SessionState) error {
		s.ScamDetected = true
		s.Intelligence.Merge(r)
		report = a.thresholdMet(*s)
		if report {
			s.ReportsFired++
		}
		return nil
	})
	if err != nil {
		return state, false, fmt.Errorf("failed to record scam turn: %w", err)
	}
	return state, report, nil
}

func (a *SessionAggregator) thresholdMet(s models.SessionState) bool {
	return s.Intelligence.Total() >= a.config.MinIntelligenceItems ||
		s.MessageCount >= a.config.MinMessages
}

// BuildCallbackReport derives the report payload from a session snapshot
func BuildCallbackReport(s models.SessionState) models.CallbackReport {
	lists := s.Intelligence.Lists()

	tactics := lists.SuspiciousKeywords
	if len(tactics) > 3 {
		tactics = tactics[:3]
	}

	return models.CallbackReport{
		SessionID:              s.SessionID,
		ScamDetected:           true,
		TotalMessagesExchanged: s.MessageCount,
		ExtractedIntelligence:  lists,
		AgentNotes: fmt.Sprintf("Accumulated intelligence across %d turns. Scammer tactics: %s",
			s.MessageCount, strings.Join(tactics, ", ")),
	}
}
