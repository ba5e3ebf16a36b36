package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedPayload means the body is not JSON at all
	ErrMalformedPayload = errors.New("malformed JSON payload")
	// ErrInvalidTurn means the JSON does not describe a turn
	ErrInvalidTurn = errors.New("invalid turn payload")
)

type inboundMessage struct {
	Sender    *string `json:"sender"`
	Text      *string `json:"text"`
	Timestamp any     `json:"timestamp"`
}

type inboundTurn struct {
	SessionID    string          `json:"sessionId"`
	SessionIDAlt string          `json:"session_id"`
	Message      *inboundMessage `json:"message"`
	History      Conversation    `json:"conversationHistory"`
	HistoryAlt   Conversation    `json:"conversation_history"`
	Channel      string          `json:"channel"`
	Metadata     map[string]any  `json:"metadata"`
}

// DecodeTurnRequest parses an inbound turn payload. The canonical form is
// camelCase; session_id and conversation_history are accepted as aliases and
// the channel may come from metadata.channel or a top-level channel field.
// Non-JSON input yields ErrMalformedPayload, anything else invalid ErrInvalidTurn.
func DecodeTurnRequest(data []byte) (TurnRequest, error) {
	if !json.Valid(data) {
		return TurnRequest{}, ErrMalformedPayload
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var in inboundTurn
	if err := dec.Decode(&in); err != nil {
		return TurnRequest{}, fmt.Errorf("%w: %v", ErrInvalidTurn, err)
	}

	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		sessionID = strings.TrimSpace(in.SessionIDAlt)
	}
	if sessionID == "" {
		return TurnRequest{}, fmt.Errorf("%w: sessionId is required", ErrInvalidTurn)
	}

	if in.Message == nil || in.Message.Sender == nil || in.Message.Text == nil {
		return TurnRequest{}, fmt.Errorf("%w: message.sender and message.text are required", ErrInvalidTurn)
	}

	history := in.History
	if history == nil {
		history = in.HistoryAlt
	}
	if history == nil {
		history = Conversation{}
	}

	channel := in.Channel
	if c, ok := in.Metadata["channel"].(string); ok && c != "" {
		channel = c
	}

	return TurnRequest{
		SessionID: sessionID,
		Message: Message{
			Sender:    *in.Message.Sender,
			Text:      *in.Message.Text,
			Timestamp: in.Message.Timestamp,
		},
		ConversationHistory: history,
		Channel:             Channel(strings.ToLower(strings.TrimSpace(channel))),
	}, nil
}
