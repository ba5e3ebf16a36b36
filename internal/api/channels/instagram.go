package channels

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"honeypot-lab/internal/domain/models"
)

type instagramWebhook struct {
	Object string `json:"object"`
	Entry  []struct {
		ID        string `json:"id"`
		Messaging []struct {
			Sender struct {
				ID string `json:"id"`
			} `json:"sender"`
			Message struct {
				Text string `json:"text"`
			} `json:"message"`
		} `json:"messaging"`
	} `json:"entry"`
}

// InstagramVerify handles the GET /meta/instagram subscription handshake
func (a *Adapters) InstagramVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	expected := a.config.Instagram.VerifyToken
	if mode != "subscribe" || expected == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
		a.logger.Warn().Str("mode", mode).Msg("instagram verification failed")
		http.Error(w, "verification failed", http.StatusForbidden)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(challenge))
}

// InstagramEvent handles POST /meta/instagram. Meta expects a fast 200, so
// every text message is processed in the background; replies are logged.
func (a *Adapters) InstagramEvent(w http.ResponseWriter, r *http.Request) {
	var payload instagramWebhook
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&payload); err != nil {
		a.logger.Warn().Err(err).Msg("invalid instagram webhook body")
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	queued := 0
	for _, entry := range payload.Entry {
		for _, event := range entry.Messaging {
			senderID := event.Sender.ID
			text := event.Message.Text
			if senderID == "" || text == "" {
				continue
			}

			sessionID := "ig-" + senderID
			a.processAsync(models.TurnRequest{
				SessionID:           sessionID,
				Message:             inboundMessage(text),
				ConversationHistory: models.Conversation{},
				Channel:             models.ChannelInstagram,
			}, func(result models.TurnResult) {
				a.logger.Info().
					Str("session_id", sessionID).
					Bool("scam_detected", result.ScamDetected).
					Str("reply", result.Reply).
					Msg("instagram turn processed")
			})
			queued++
		}
	}

	a.logger.Debug().Int("messages", queued).Msg("instagram webhook accepted")

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("EVENT_RECEIVED"))
}
