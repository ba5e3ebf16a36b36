package streaming

import (
	"testing"

	"honeypot-lab/internal/config"
	"honeypot-lab/internal/domain/models"
)

func TestSubscriptionMatches(t *testing.T) {
	scamTurn := NewTurnEvent(&models.TurnEvent{SessionID: "s1", ScamDetected: true})
	benignTurn := NewTurnEvent(&models.TurnEvent{SessionID: "s1"})
	report := NewReportEvent(&models.ReportDelivery{SessionID: "s2", Status: models.ReportStatusSent})

	tests := []struct {
		name  string
		sub   *Subscription
		event *Event
		want  bool
	}{
		{"nil subscription", nil, benignTurn, true},
		{"empty subscription", &Subscription{}, report, true},
		{"type match", &Subscription{Types: []EventType{EventTypeReportDelivered}}, report, true},
		{"type mismatch", &Subscription{Types: []EventType{EventTypeReportDelivered}}, scamTurn, false},
		{"session match", &Subscription{SessionID: "s1"}, scamTurn, true},
		{"session mismatch", &Subscription{SessionID: "s1"}, report, false},
		{"scam only skips benign", &Subscription{ScamOnly: true}, benignTurn, false},
		{"scam only keeps scam", &Subscription{ScamOnly: true}, scamTurn, true},
		{"scam only keeps reports", &Subscription{ScamOnly: true}, report, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sub.Matches(tt.event); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSubjectFor(t *testing.T) {
	subjects := config.NATSSubjectsConfig{Turns: "honeypot.turns", Reports: "honeypot.reports"}

	tests := []struct {
		name  string
		event *Event
		want  string
	}{
		{"turn with channel", NewTurnEvent(&models.TurnEvent{Channel: models.ChannelSMS}), "honeypot.turns.sms"},
		{"turn without channel", NewTurnEvent(&models.TurnEvent{}), "honeypot.turns.unknown"},
		{"failed report", NewReportEvent(&models.ReportDelivery{Status: models.ReportStatusFailed}), "honeypot.reports.failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SubjectFor(subjects, tt.event); got != tt.want {
				t.Errorf("SubjectFor() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewEventsCarryIdentity(t *testing.T) {
	e := NewTurnEvent(&models.TurnEvent{SessionID: "abc"})
	if e.ID == "" || e.Timestamp.IsZero() || e.SessionID != "abc" || e.Type != EventTypeTurnProcessed {
		t.Errorf("unexpected event: %+v", e)
	}
}
