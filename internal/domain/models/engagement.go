package models

import "time"

// Channel identifies the medium a conversation arrives on
type Channel string

const (
	ChannelWhatsApp  Channel = "whatsapp"
	ChannelSMS       Channel = "sms"
	ChannelEmail     Channel = "email"
	ChannelInstagram Channel = "instagram"
)

// Message is a single conversational utterance.
// Timestamp may be an ISO string or epoch milliseconds and is carried as-is.
type Message struct {
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Timestamp any    `json:"timestamp,omitempty"`
}

// Conversation is the caller-owned message history
type Conversation []Message

// Latest returns the most recent message, or the zero value for an empty history
func (c Conversation) Latest() Message {
	if len(c) == 0 {
		return Message{}
	}
	return c[len(c)-1]
}

// TurnRequest is one inbound scammer message plus its context
type TurnRequest struct {
	SessionID           string       `json:"sessionId"`
	Message             Message      `json:"message"`
	ConversationHistory Conversation `json:"conversationHistory"`
	Channel             Channel      `json:"channel,omitempty"`
}

// TurnResult is the synchronous answer for one turn
type TurnResult struct {
	ScamDetected          bool             `json:"scamDetected"`
	Reply                 string           `json:"reply"`
	ExtractedIntelligence ExtractionResult `json:"extractedIntelligence"`
	Notes                 string           `json:"notes"`
}

// TurnEvent is emitted on the event stream for every processed turn
type TurnEvent struct {
	SessionID      string    `json:"sessionId"`
	Channel        Channel   `json:"channel"`
	ScamDetected   bool      `json:"scamDetected"`
	MessageCount   int       `json:"messageCount"`
	ExtractedItems int       `json:"extractedItems"`
	ReportQueued   bool      `json:"reportQueued"`
	ProcessedAt    time.Time `json:"processedAt"`
}
