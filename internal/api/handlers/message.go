package handlers

import (
	"errors"
	"io"
	"net/http"

	"honeypot-lab/internal/domain/models"
	"honeypot-lab/pkg/logger"
)

// Replies for payloads that never reach the pipeline. The endpoint answers
// 200 in every case so the caller always has something to show the scammer.
const (
	ReplyUnparseable = "I could not understand that message."
	ReplyInvalid     = "I am confused beta, please explain again."
	ReplyUnavailable = "I am having trouble understanding. Can you repeat that?"

	maxMessageBody = 1 << 20
)

// MessageHandler serves the canonical turn endpoint
type MessageHandler struct {
	turns  TurnService
	logger *logger.Logger
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(turns TurnService, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		turns:  turns,
		logger: log.WithComponent("message-handler"),
	}
}

// MessageResponse is the body of every /message answer
type MessageResponse struct {
	Status string `json:"status"`
	Reply  string `json:"reply"`
}

// Handle handles POST /message
func (h *MessageHandler) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMessageBody))
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to read message body")
		h.reply(w, ReplyUnparseable)
		return
	}

	req, err := models.DecodeTurnRequest(body)
	switch {
	case errors.Is(err, models.ErrMalformedPayload):
		h.logger.Warn().Int("bytes", len(body)).Msg("message body is not JSON")
		h.reply(w, ReplyUnparseable)
		return
	case err != nil:
		h.logger.Warn().Err(err).Msg("message failed schema validation")
		h.reply(w, ReplyInvalid)
		return
	}

	if h.turns == nil {
		h.reply(w, ReplyUnavailable)
		return
	}

	result := h.turns.ProcessTurn(r.Context(), req)
	h.reply(w, result.Reply)
}

func (h *MessageHandler) reply(w http.ResponseWriter, text string) {
	respondJSON(w, http.StatusOK, MessageResponse{Status: "success", Reply: text})
}
