package services

import (
	"context"
	"strings"
	"time"

	"honeypot-lab/internal/domain/models"
	"honeypot-lab/internal/domain/services/ai"
	"honeypot-lab/pkg/logger"
)

// Fixed replies and notes of the turn pipeline
const (
	BenignReply = "This doesn't appear to be a scam message."
	BenignNotes = "No scam detected."
	ScamNotes   = "Engaging scammer with 'Fixed Deposit' bait."
	SafeReply   = "I am having trouble understanding. Can you repeat that?"
	SafeNotes   = "Recovered from an internal error."
)

// Responder produces the persona reply for a scam turn
type Responder interface {
	Respond(ctx context.Context, history models.Conversation, channel models.Channel) (string, models.ExtractionResult)
}

// TurnProcessor orchestrates one inbound message end to end
type TurnProcessor struct {
	classifier     *ai.IntentClassifier
	responder      Responder
	aggregator     *SessionAggregator
	reports        ReportQueue
	events         EventSink
	stats          *EngagementStats
	defaultChannel models.Channel
	logger         *logger.Logger
}

// TurnProcessorDeps holds the processor's collaborators. Events and Stats are optional.
type TurnProcessorDeps struct {
	Classifier     *ai.IntentClassifier
	Responder      Responder
	Aggregator     *SessionAggregator
	Reports        ReportQueue
	Events         EventSink
	Stats          *EngagementStats
	DefaultChannel models.Channel
}

// NewTurnProcessor creates a new turn processor
func NewTurnProcessor(deps TurnProcessorDeps, log *logger.Logger) *TurnProcessor {
	if deps.Classifier == nil {
		deps.Classifier = ai.NewIntentClassifier()
	}
	if deps.DefaultChannel == "" {
		deps.DefaultChannel = models.ChannelWhatsApp
	}

	return &TurnProcessor{
		classifier:     deps.Classifier,
		responder:      deps.Responder,
		aggregator:     deps.Aggregator,
		reports:        deps.Reports,
		events:         deps.Events,
		stats:          deps.Stats,
		defaultChannel: deps.DefaultChannel,
		logger:         log.WithComponent("turn-processor"),
	}
}

// ProcessTurn handles one inbound message. It never fails: store errors are
// logged, and a panic anywhere yields the safe reply.
// Caller cancellation does not stop a turn once it has started; the
// generative timeout is the only bound on it.
func (p *TurnProcessor) ProcessTurn(ctx context.Context, req models.TurnRequest) (result models.TurnResult) {
	ctx = context.WithoutCancel(ctx)
	channel := p.resolveChannel(req.Channel)
	log := p.logger.WithSessionID(req.SessionID).WithChannel(string(channel))

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("turn processing panicked")
			result = models.TurnResult{Reply: SafeReply, Notes: SafeNotes}
		}
	}()

	history := make(models.Conversation, 0, len(req.ConversationHistory)+1)
	history = append(history, req.ConversationHistory...)
	history = append(history, req.Message)

	messageCount, err := p.aggregator.IncrementTurn(ctx, req.SessionID)
	if err != nil {
		log.Error().Err(err).Msg("failed to count turn")
	}

	if !p.classifier.Classify(req.Message.Text) {
		log.Debug().Int("message_count", messageCount).Msg("message not classified as scam")
		p.finish(ctx, req.SessionID, channel, false, messageCount, 0, false)
		return models.TurnResult{
			ScamDetected: false,
			Reply:        BenignReply,
			Notes:        BenignNotes,
		}
	}

	reply, extracted := p.responder.Respond(ctx, history, channel)

	state, report, err := p.aggregator.RecordScamTurn(ctx, req.SessionID, extracted)
	if err != nil {
		log.Error().Err(err).Msg("failed to record scam turn")
		report = false
	}
	if state.MessageCount > 0 {
		messageCount = state.MessageCount
	}

	queued := false
	if report && p.reports != nil {
		queued = p.reports.Enqueue(BuildCallbackReport(state))
		log.Info().
			Int("items", state.Intelligence.Total()).
			Int("message_count", state.MessageCount).
			Bool("queued", queued).
			Msg("intelligence threshold reached, report dispatched")
	}

	log.Info().
		Int("message_count", messageCount).
		Int("extracted", extracted.Count()).
		Msg("engaged scammer")

	p.finish(ctx, req.SessionID, channel, true, messageCount, extracted.Count(), queued)

	return models.TurnResult{
		ScamDetected:          true,
		Reply:                 reply,
		ExtractedIntelligence: extracted,
		Notes:                 ScamNotes,
	}
}

func (p *TurnProcessor) resolveChannel(ch models.Channel) models.Channel {
	c := models.Channel(strings.ToLower(strings.TrimSpace(string(ch))))
	if c == "" {
		return p.defaultChannel
	}
	return c
}

func (p *TurnProcessor) finish(ctx context.Context, sessionID string, channel models.Channel, scam bool, count, items int, queued bool) {
	if p.stats != nil {
		p.stats.TurnProcessed(ctx, scam)
	}
	if p.events != nil {
		p.events.TurnProcessed(ctx, &models.TurnEvent{
			SessionID:      sessionID,
			Channel:        channel,
			ScamDetected:   scam,
			MessageCount:   count,
			ExtractedItems: items,
			ReportQueued:   queued,
			ProcessedAt:    time.Now().UTC(),
		})
	}
}

// Session returns the read-only view of a session
func (p *TurnProcessor) Session(ctx context.Context, sessionID string) (models.SessionSnapshot, error) {
	state, err := p.aggregator.Lookup(ctx, sessionID)
	if err != nil {
		return models.SessionSnapshot{}, err
	}
	return state.Snapshot(), nil
}
