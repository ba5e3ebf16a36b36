package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"honeypot-lab/internal/domain/models"
	"honeypot-lab/pkg/logger"
)

// ReportArchive stores delivery attempts
type ReportArchive interface {
	SaveDelivery(ctx context.Context, delivery *models.ReportDelivery) error
}

// EventSink receives pipeline events for streaming to observers
type EventSink interface {
	TurnProcessed(ctx context.Context, event *models.TurnEvent)
	ReportDelivered(ctx context.Context, delivery *models.ReportDelivery)
}

// ReportQueue accepts reports for asynchronous delivery
type ReportQueue interface {
	Enqueue(report models.CallbackReport) bool
}

// CallbackDispatcherConfig contains configuration for the dispatcher
type CallbackDispatcherConfig struct {
	WorkerCount int
	QueueSize   int
	SendTimeout time.Duration
}

// DefaultCallbackDispatcherConfig returns sensible defaults
func DefaultCallbackDispatcherConfig() CallbackDispatcherConfig {
	return CallbackDispatcherConfig{
		WorkerCount: 4,
		QueueSize:   256,
		SendTimeout: 5 * time.Second,
	}
}

type reportJob struct {
	id       uuid.UUID
	report   models.CallbackReport
	queuedAt time.Time
}

// CallbackDispatcher delivers reports off the request path. Enqueue never
// blocks; a full queue drops the report with a warning. Failed sends are
// logged and not retried, since later turns send a superset anyway.
type CallbackDispatcher struct {
	sender  ReportSender
	archive ReportArchive
	events  EventSink
	stats   *EngagementStats
	config  CallbackDispatcherConfig
	logger  *logger.Logger

	queue    chan *reportJob
	wg       sync.WaitGroup
	stopCh   chan struct{}
	stopped  atomic.Bool
	stopOnce sync.Once
}

// DispatcherOption configures optional collaborators
type DispatcherOption func(*CallbackDispatcher)

// WithReportArchive records every delivery attempt
func WithReportArchive(archive ReportArchive) DispatcherOption {
	return func(d *CallbackDispatcher) { d.archive = archive }
}

// WithDispatchEvents publishes delivery outcomes
func WithDispatchEvents(events EventSink) DispatcherOption {
	return func(d *CallbackDispatcher) { d.events = events }
}

// WithDispatchStats counts queue and delivery outcomes
func WithDispatchStats(stats *EngagementStats) DispatcherOption {
	return func(d *CallbackDispatcher) { d.stats = stats }
}

// NewCallbackDispatcher creates a dispatcher and starts its workers
func NewCallbackDispatcher(sender ReportSender, log *logger.Logger, cfg CallbackDispatcherConfig, opts ...DispatcherOption) *CallbackDispatcher {
	def := DefaultCallbackDispatcherConfig()
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = def.WorkerCount
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = def.SendTimeout
	}

	d := &CallbackDispatcher{
		sender: sender,
		config: cfg,
		logger: log.WithComponent("callback-dispatcher"),
		queue:  make(chan *reportJob, cfg.QueueSize),
		stopCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.startWorkers()

	return d
}

func (d *CallbackDispatcher) startWorkers() {
	for i := 0; i < d.config.WorkerCount; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	d.logger.Info().Int("workers", d.config.WorkerCount).Msg("callback workers started")
}

func (d *CallbackDispatcher) worker(id int) {
	defer d.wg.Done()

	for {
		select {
		case <-d.stopCh:
			d.drain(id)
			return
		case job := <-d.queue:
			d.deliver(job)
		}
	}
}

// drain delivers what is left in the queue after Stop; each send keeps its own timeout
func (d *CallbackDispatcher) drain(id int) {
	for {
		select {
		case job := <-d.queue:
			d.deliver(job)
		default:
			d.logger.Debug().Int("worker", id).Msg("callback worker stopping")
			return
		}
	}
}

// Enqueue schedules a report for delivery and returns immediately.
// It reports whether the report was accepted.
func (d *CallbackDispatcher) Enqueue(report models.CallbackReport) bool {
	ctx := context.Background()

	if d.stopped.Load() {
		d.logger.Warn().Str("session_id", report.SessionID).Msg("dispatcher stopped, dropping report")
		d.countDropped(ctx)
		return false
	}

	job := &reportJob{id: uuid.New(), report: report, queuedAt: time.Now()}

	select {
	case d.queue <- job:
		d.logger.Debug().
			Str("session_id", report.SessionID).
			Str("report_id", job.id.String()).
			Msg("report queued")
		if d.stats != nil {
			d.stats.ReportQueued(ctx)
		}
		return true
	default:
		d.logger.Warn().
			Str("session_id", report.SessionID).
			Msg("callback queue full, dropping report")
		d.countDropped(ctx)
		return false
	}
}

func (d *CallbackDispatcher) countDropped(ctx context.Context) {
	if d.stats != nil {
		d.stats.ReportDropped(ctx)
	}
}

// QueueLen returns the number of reports waiting for a worker
func (d *CallbackDispatcher) QueueLen() int {
	return len(d.queue)
}

func (d *CallbackDispatcher) deliver(job *reportJob) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().Interface("panic", r).Str("session_id", job.report.SessionID).Msg("report delivery panicked")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.config.SendTimeout)
	defer cancel()

	start := time.Now()
	err := d.sender.Send(ctx, job.report)

	delivery := &models.ReportDelivery{
		ID:          job.id,
		SessionID:   job.report.SessionID,
		Report:      job.report,
		Status:      models.ReportStatusSent,
		DurationMs:  time.Since(start).Milliseconds(),
		AttemptedAt: start.UTC(),
	}

	if err != nil {
		delivery.Status = models.ReportStatusFailed
		delivery.Error = err.Error()
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			delivery.StatusCode = statusErr.StatusCode
		}
		d.logger.Warn().
			Err(err).
			Str("session_id", job.report.SessionID).
			Int("messages", job.report.TotalMessagesExchanged).
			Msg("report delivery failed")
		if d.stats != nil {
			d.stats.ReportFailed(context.Background())
		}
	} else {
		d.logger.Info().
			Str("session_id", job.report.SessionID).
			Int("messages", job.report.TotalMessagesExchanged).
			Dur("duration", time.Since(start)).
			Dur("queued_for", start.Sub(job.queuedAt)).
			Msg("report delivered")
		if d.stats != nil {
			d.stats.ReportSent(context.Background())
		}
	}

	// Fresh context: the send timeout may already be spent
	postCtx, postCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer postCancel()

	if d.archive != nil {
		if err := d.archive.SaveDelivery(postCtx, delivery); err != nil {
			d.logger.Warn().Err(err).Str("session_id", delivery.SessionID).Msg("failed to archive report delivery")
		}
	}
	if d.events != nil {
		d.events.ReportDelivered(postCtx, delivery)
	}
}

// Stop stops accepting reports and waits for the workers to deliver
// everything already queued.
func (d *CallbackDispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.stopped.Store(true)
		close(d.stopCh)
		d.wg.Wait()
		if n := len(d.queue); n > 0 {
			d.logger.Warn().Int("undelivered", n).Msg("callback dispatcher stopped with queued reports")
		}
		d.logger.Info().Msg("callback dispatcher stopped")
	})
}
