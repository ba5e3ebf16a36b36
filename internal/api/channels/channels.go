package channels

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"honeypot-lab/internal/config"
	"honeypot-lab/internal/domain/models"
	"honeypot-lab/pkg/logger"
)

// TurnProcessor handles one normalized inbound message
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, req models.TurnRequest) models.TurnResult
}

// Adapters converts third-party messaging webhooks into turns
type Adapters struct {
	processor    TurnProcessor
	config       config.ChannelsConfig
	asyncTimeout time.Duration
	logger       *logger.Logger

	wg sync.WaitGroup
}

// NewAdapters creates the channel adapters
func NewAdapters(processor TurnProcessor, cfg config.ChannelsConfig, log *logger.Logger) *Adapters {
	return &Adapters{
		processor:    processor,
		config:       cfg,
		asyncTimeout: 30 * time.Second,
		logger:       log.WithComponent("channels"),
	}
}

// Router returns a gorilla/mux router with the enabled webhooks.
// Paths are absolute so it can be mounted under any prefix-preserving router.
func (a *Adapters) Router() *mux.Router {
	r := mux.NewRouter()

	if a.config.Twilio.Enabled {
		r.HandleFunc("/twilio/whatsapp", a.TwilioWhatsApp).Methods(http.MethodPost)
	}
	if a.config.Instagram.Enabled {
		r.HandleFunc("/meta/instagram", a.InstagramVerify).Methods(http.MethodGet)
		r.HandleFunc("/meta/instagram", a.InstagramEvent).Methods(http.MethodPost)
	}

	return r
}

// Wait blocks until background turns finish
func (a *Adapters) Wait() {
	a.wg.Wait()
}

// processAsync runs a turn off the request path with its own deadline
func (a *Adapters) processAsync(req models.TurnRequest, done func(models.TurnResult)) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), a.asyncTimeout)
		defer cancel()

		result := a.processor.ProcessTurn(ctx, req)
		if done != nil {
			done(result)
		}
	}()
}

func inboundMessage(text string) models.Message {
	return models.Message{
		Sender:    "scammer",
		Text:      text,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
