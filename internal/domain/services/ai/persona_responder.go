package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"honeypot-lab/internal/domain/models"
	"honeypot-lab/pkg/logger"
)

// Fallback replies, chosen by the first matching rule
const (
	replyUpiTemplate   = "I am trying to send money to %s but it says 'Payment Failed'. What should I do?"
	replyPhoneTemplate = "Okay, I will call %s. Can you please stay on the line?"
	replyKYC           = "What is this KYC? I updated it last year. Why is it asking again?"
	replyOTP           = "I am not receiving any code. Can you send it again?"
	replyCard          = "I have my card but I am scared to share details. Is this really the bank?"
	replyBill          = "I already paid the bill online. Why are you saying it is pending?"
	replyDefault       = "I don't understand what you mean. Please explain properly."
)

// agentSenders are the sender labels that mark a message as our own reply
var agentSenders = []string{"agent", "user", "honeypot", "aaji"}

// ResponderConfig bounds the generative attempt
type ResponderConfig struct {
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

// DefaultResponderConfig returns the persona generation bounds
func DefaultResponderConfig() ResponderConfig {
	return ResponderConfig{
		Timeout:     10 * time.Second,
		MaxTokens:   150,
		Temperature: 0.7,
	}
}

// PersonaResponder produces the deception persona's reply: generative first,
// rule-based fallback on any failure.
type PersonaResponder struct {
	logger    *logger.Logger
	generator TextGenerator
	extractor *EntityExtractor
	config    ResponderConfig
}

// NewPersonaResponder creates a new persona responder. generator may be nil.
func NewPersonaResponder(log *logger.Logger, generator TextGenerator, extractor *EntityExtractor, cfg ResponderConfig) *PersonaResponder {
	def := DefaultResponderConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = def.Temperature
	}
	if extractor == nil {
		extractor = NewEntityExtractor(log, nil, false)
	}

	return &PersonaResponder{
		logger:    log.WithComponent("persona-responder"),
		generator: generator,
		extractor: extractor,
		config:    cfg,
	}
}

// Respond extracts intelligence from the latest message and produces a reply.
// It never fails.
func (p *PersonaResponder) Respond(ctx context.Context, history models.Conversation, channel models.Channel) (string, models.ExtractionResult) {
	latest := history.Latest().Text
	extracted := p.extractor.Extract(ctx, latest)

	if reply, ok := p.generate(ctx, history, channel); ok {
		return reply, extracted
	}

	return FallbackReply(latest, extracted), extracted
}

func (p *PersonaResponder) generate(ctx context.Context, history models.Conversation, channel models.Channel) (reply string, ok bool) {
	if p.generator == nil {
		return "", false
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Interface("panic", r).Msg("persona generation panicked, using fallback")
			reply, ok = "", false
		}
	}()

	res := p.generator.Complete(ctx, CompletionRequest{
		System:      PersonaPrompt(channel),
		Messages:    ToChatTurns(history),
		MaxTokens:   p.config.MaxTokens,
		Temperature: p.config.Temperature,
		Timeout:     p.config.Timeout,
	})
	if !res.OK() {
		p.logger.Debug().Err(res.Err).Msg("generative reply unavailable, using fallback")
		return "", false
	}

	return strings.TrimSpace(res.Text), true
}

// FallbackReply picks the templated reply for a message. The first matching
// rule wins: UPI, phone, kyc, otp, card, bill/electricity, default.
func FallbackReply(text string, extracted models.ExtractionResult) string {
	lower := strings.ToLower(text)

	switch {
	case extracted.FirstUpiID() != "":
		return fmt.Sprintf(replyUpiTemplate, extracted.FirstUpiID())
	case extracted.FirstPhone() != "":
		return fmt.Sprintf(replyPhoneTemplate, extracted.FirstPhone())
	case strings.Contains(lower, "kyc"):
		return replyKYC
	case strings.Contains(lower, "otp"):
		return replyOTP
	case strings.Contains(lower, "card"):
		return replyCard
	case strings.Contains(lower, "electricity"), strings.Contains(lower, "bill"):
		return replyBill
	default:
		return replyDefault
	}
}

// ToChatTurns maps a conversation onto chat roles: our own messages become
// assistant turns, everything else is the counterpart.
func ToChatTurns(history models.Conversation) []ChatTurn {
	turns := make([]ChatTurn, 0, len(history))
	for _, m := range history {
		role := RoleUser
		if containsString(agentSenders, strings.ToLower(strings.TrimSpace(m.Sender))) {
			role = RoleAssistant
		}
		turns = append(turns, ChatTurn{Role: role, Text: m.Text})
	}
	return turns
}

func errPanicked(r interface{}) error {
	return fmt.Errorf("recovered panic: %v", r)
}
