package services

import (
	"context"
	"reflect"
	"testing"

	"honeypot-lab/internal/domain/models"
	"honeypot-lab/pkg/logger"
)

func newTestAggregator(t *testing.T) *SessionAggregator {
	t.Helper()
	store := NewMemorySessionStore(0, logger.NewNop())
	t.Cleanup(func() { store.Close() })
	return NewSessionAggregator(store, AggregatorConfig{}, logger.NewNop())
}

func TestSessionAggregator_GetOrCreate(t *testing.T) {
	a := newTestAggregator(t)

	state, err := a.GetOrCreate(context.Background(), "s1")
	if err != nil {
		t.Fatal(err)
	}
	if state.MessageCount != 0 || state.ScamDetected || state.Intelligence.Total() != 0 {
		t.Errorf("new session not empty: %+v", state)
	}
}

func TestSessionAggregator_MergeIsIdempotentAndNeverClears(t *testing.T) {
	a := newTestAggregator(t)
	ctx := context.Background()

	r := models.ExtractionResult{
		UpiIDs:             []string{"badguy@okaxis"},
		PhoneNumbers:       []string{"+919876543210"},
		SuspiciousKeywords: []string{"kyc", "urgent"},
	}

	once, _ := a.MergeIntelligence(ctx, "s1", r)
	twice, _ := a.MergeIntelligence(ctx, "s1", r)
	if !reflect.DeepEqual(once.Intelligence.Lists(), twice.Intelligence.Lists()) {
		t.Errorf("second merge changed state:\n%+v\n%+v", once.Intelligence.Lists(), twice.Intelligence.Lists())
	}

	after, _ := a.MergeIntelligence(ctx, "s1", models.ExtractionResult{})
	if after.Intelligence.Total() != 4 {
		t.Errorf("empty merge changed total to %d", after.Intelligence.Total())
	}
}

func TestSessionAggregator_MergeIsCommutative(t *testing.T) {
	a := newTestAggregator(t)
	ctx := context.Background()

	r1 := models.ExtractionResult{UpiIDs: []string{"a@ybl"}, SuspiciousKeywords: []string{"pay"}}
	r2 := models.ExtractionResult{UpiIDs: []string{"b@ybl"}, PhishingLinks: []string{"http://x.test"}}

	a.MergeIntelligence(ctx, "ab", r1)
	ab, _ := a.MergeIntelligence(ctx, "ab", r2)
	a.MergeIntelligence(ctx, "ba", r2)
	ba, _ := a.MergeIntelligence(ctx, "ba", r1)

	if !reflect.DeepEqual(ab.Intelligence.Lists(), ba.Intelligence.Lists()) {
		t.Errorf("merge order matters:\n%+v\n%+v", ab.Intelligence.Lists(), ba.Intelligence.Lists())
	}
}

func TestSessionAggregator_ReportsAtFifthTurnWithoutEntities(t *testing.T) {
	a := newTestAggregator(t)
	ctx := context.Background()

	for turn := 1; turn <= 5; turn++ {
		if _, err := a.IncrementTurn(ctx, "s1"); err != nil {
			t.Fatal(err)
		}
		_, report, err := a.RecordScamTurn(ctx, "s1", models.ExtractionResult{})
		if err != nil {
			t.Fatal(err)
		}

		want := turn == 5
		if report != want {
			t.Errorf("turn %d: report = %v, want %v", turn, report, want)
		}
		if got, _ := a.ShouldReport(ctx, "s1"); got != want {
			t.Errorf("turn %d: ShouldReport = %v, want %v", turn, got, want)
		}
	}
}

func TestSessionAggregator_ReportsOnThreeItemsInOneTurn(t *testing.T) {
	a := newTestAggregator(t)
	ctx := context.Background()

	a.IncrementTurn(ctx, "s1")
	state, report, err := a.RecordScamTurn(ctx, "s1", models.ExtractionResult{
		UpiIDs:        []string{"x@ybl"},
		PhoneNumbers:  []string{"9876543210"},
		PhishingLinks: []string{"https://bad.test"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !report || state.MessageCount != 1 {
		t.Errorf("report = %v at message count %d, want true at 1", report, state.MessageCount)
	}
	if state.ReportsFired != 1 {
		t.Errorf("ReportsFired = %d, want 1", state.ReportsFired)
	}
}

func TestSessionAggregator_ShouldReportIsMonotonic(t *testing.T) {
	a := newTestAggregator(t)
	ctx := context.Background()

	if got, _ := a.ShouldReport(ctx, "unknown"); got {
		t.Fatal("unknown session should not report")
	}

	a.MergeIntelligence(ctx, "s1", models.ExtractionResult{BankAccounts: []string{"1", "2", "3"}})
	for i := 0; i < 10; i++ {
		if i%2 == 0 {
			a.IncrementTurn(ctx, "s1")
		}
		a.MergeIntelligence(ctx, "s1", models.ExtractionResult{})
		if got, _ := a.ShouldReport(ctx, "s1"); !got {
			t.Fatalf("ShouldReport flipped to false at step %d", i)
		}
	}
}

func TestSessionAggregator_CustomThresholds(t *testing.T) {
	store := NewMemorySessionStore(0, logger.NewNop())
	defer store.Close()
	a := NewSessionAggregator(store, AggregatorConfig{MinIntelligenceItems: 1, MinMessages: 100}, logger.NewNop())

	_, report, _ := a.RecordScamTurn(context.Background(), "s1", models.ExtractionResult{SuspiciousKeywords: []string{"otp"}})
	if !report {
		t.Error("single item should satisfy a threshold of 1")
	}
}

func TestBuildCallbackReport(t *testing.T) {
	state := models.NewSessionState("sess-9")
	state.MessageCount = 6
	state.Intelligence.Merge(models.ExtractionResult{
		UpiIDs:             []string{"b@ybl", "a@ybl"},
		SuspiciousKeywords: []string{"urgent", "kyc", "bank", "otp"},
	})

	report := BuildCallbackReport(*state)

	if report.SessionID != "sess-9" || !report.ScamDetected || report.TotalMessagesExchanged != 6 {
		t.Errorf("report header = %+v", report)
	}
	if !reflect.DeepEqual(report.ExtractedIntelligence.UpiIDs, []string{"a@ybl", "b@ybl"}) {
		t.Errorf("UpiIDs = %v", report.ExtractedIntelligence.UpiIDs)
	}
	if report.ExtractedIntelligence.BankAccounts == nil {
		t.Error("empty lists must be non-nil so they encode as []")
	}

	want := "Accumulated intelligence across 6 turns. Scammer tactics: bank, kyc, otp"
	if report.AgentNotes != want {
		t.Errorf("AgentNotes = %q, want %q", report.AgentNotes, want)
	}
}
