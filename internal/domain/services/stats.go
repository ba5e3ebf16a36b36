package services

import (
	"context"
	"sync/atomic"

	"honeypot-lab/pkg/logger"
)

// Counter names shared by the local and external counters
const (
	CounterTurns          = "turns"
	CounterScamTurns      = "scam_turns"
	CounterReportsQueued  = "reports_queued"
	CounterReportsDropped = "reports_dropped"
	CounterReportsSent    = "reports_sent"
	CounterReportsFailed  = "reports_failed"
)

// CounterSink mirrors counters into a shared store so several instances
// can report fleet-wide totals
type CounterSink interface {
	IncrCounter(ctx context.Context, name string, delta int64) error
	Counters(ctx context.Context) (map[string]int64, error)
}

// EngagementStats tracks pipeline counters
type EngagementStats struct {
	turns          atomic.Int64
	scamTurns      atomic.Int64
	reportsQueued  atomic.Int64
	reportsDropped atomic.Int64
	reportsSent    atomic.Int64
	reportsFailed  atomic.Int64

	sink   CounterSink
	logger *logger.Logger
}

// StatsSnapshot is the API view of the counters
type StatsSnapshot struct {
	Turns          int64  `json:"turns"`
	ScamTurns      int64  `json:"scam_turns"`
	ReportsQueued  int64  `json:"reports_queued"`
	ReportsDropped int64  `json:"reports_dropped"`
	ReportsSent    int64  `json:"reports_sent"`
	ReportsFailed  int64  `json:"reports_failed"`
	Source         string `json:"source"`
}

// NewEngagementStats creates a counter set. sink may be nil.
func NewEngagementStats(sink CounterSink, log *logger.Logger) *EngagementStats {
	return &EngagementStats{
		sink:   sink,
		logger: log.WithComponent("stats"),
	}
}

func (s *EngagementStats) incr(ctx context.Context, c *atomic.Int64, name string) {
	c.Add(1)
	if s.sink == nil {
		return
	}
	if err := s.sink.IncrCounter(ctx, name, 1); err != nil {
		s.logger.Debug().Err(err).Str("counter", name).Msg("failed to mirror counter")
	}
}

func (s *EngagementStats) TurnProcessed(ctx context.Context, scam bool) {
	s.incr(ctx, &s.turns, CounterTurns)
	if scam {
		s.incr(ctx, &s.scamTurns, CounterScamTurns)
	}
}

func (s *EngagementStats) ReportQueued(ctx context.Context)  { s.incr(ctx, &s.reportsQueued, CounterReportsQueued) }
func (s *EngagementStats) ReportDropped(ctx context.Context) { s.incr(ctx, &s.reportsDropped, CounterReportsDropped) }
func (s *EngagementStats) ReportSent(ctx context.Context)    { s.incr(ctx, &s.reportsSent, CounterReportsSent) }
func (s *EngagementStats) ReportFailed(ctx context.Context)  { s.incr(ctx, &s.reportsFailed, CounterReportsFailed) }

// Snapshot returns shared counters when available, local ones otherwise
func (s *EngagementStats) Snapshot(ctx context.Context) StatsSnapshot {
	if s.sink != nil {
		counters, err := s.sink.Counters(ctx)
		if err == nil {
			return StatsSnapshot{
				Turns:          counters[CounterTurns],
				ScamTurns:      counters[CounterScamTurns],
				ReportsQueued:  counters[CounterReportsQueued],
				ReportsDropped: counters[CounterReportsDropped],
				ReportsSent:    counters[CounterReportsSent],
				ReportsFailed:  counters[CounterReportsFailed],
				Source:         "shared",
			}
		}
		s.logger.Warn().Err(err).Msg("shared counters unavailable, using local")
	}

	return StatsSnapshot{
		Turns:          s.turns.Load(),
		ScamTurns:      s.scamTurns.Load(),
		ReportsQueued:  s.reportsQueued.Load(),
		ReportsDropped: s.reportsDropped.Load(),
		ReportsSent:    s.reportsSent.Load(),
		ReportsFailed:  s.reportsFailed.Load(),
		Source:         "local",
	}
}
