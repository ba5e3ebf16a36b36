package channels

import (
	"encoding/xml"
	"net/http"

	"honeypot-lab/internal/domain/models"
)

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

// TwilioWhatsApp handles POST /twilio/whatsapp. Each sender number is its
// own session; the reply goes back inline as TwiML.
func (a *Adapters) TwilioWhatsApp(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form body", http.StatusBadRequest)
		return
	}

	from := r.PostForm.Get("From")
	body := r.PostForm.Get("Body")
	if from == "" || !r.PostForm.Has("Body") {
		http.Error(w, "From and Body are required", http.StatusBadRequest)
		return
	}

	sessionID := "wa-" + from
	a.logger.Debug().
		Str("session_id", sessionID).
		Str("profile_name", r.PostForm.Get("ProfileName")).
		Msg("twilio message received")

	result := a.processor.ProcessTurn(r.Context(), models.TurnRequest{
		SessionID:           sessionID,
		Message:             inboundMessage(body),
		ConversationHistory: models.Conversation{},
		Channel:             models.ChannelWhatsApp,
	})

	out, err := xml.Marshal(twimlResponse{Message: result.Reply})
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to encode TwiML")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(xml.Header))
	w.Write(out)
}
