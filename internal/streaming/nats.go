package streaming

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"honeypot-lab/internal/config"
	"honeypot-lab/pkg/logger"
)

// ErrNATSDisconnected is returned when publishing without a live connection
var ErrNATSDisconnected = errors.New("NATS not connected")

// NATSPublisher handles publishing events to NATS JetStream
type NATSPublisher struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	config config.NATSConfig
	logger *logger.Logger
}

// NewNATSPublisher connects and creates or updates the event stream
func NewNATSPublisher(ctx context.Context, cfg config.NATSConfig, log *logger.Logger) (*NATSPublisher, error) {
	log = log.WithComponent("nats")

	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.StreamName == "" {
		cfg.StreamName = "HONEYPOT_EVENTS"
	}
	if cfg.Subjects.Turns == "" {
		cfg.Subjects.Turns = "honeypot.turns"
	}
	if cfg.Subjects.Reports == "" {
		cfg.Subjects.Reports = "honeypot.reports"
	}

	log.Info().Str("url", cfg.URL).Str("stream", cfg.StreamName).Msg("connecting to NATS")

	conn, err := nats.Connect(cfg.URL,
		nats.Name("honeypot"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info().Msg("NATS reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Info().Msg("NATS connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	streamCfg := jetstream.StreamConfig{
		Name:        cfg.StreamName,
		Description: "Honeypot engagement events",
		Subjects:    []string{cfg.Subjects.Turns + ".>", cfg.Subjects.Reports + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      72 * time.Hour,
		MaxMsgs:     500000,
		MaxBytes:    256 * 1024 * 1024,
		Discard:     jetstream.DiscardOld,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	}

	stream, err := js.CreateOrUpdateStream(ctx, streamCfg)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	log.Info().Str("stream", stream.CachedInfo().Config.Name).Msg("NATS stream ready")

	return &NATSPublisher{
		conn:   conn,
		js:     js,
		config: cfg,
		logger: log,
	}, nil
}

// Close drains and closes the NATS connection
func (p *NATSPublisher) Close() {
	if p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}

// IsConnected returns whether NATS is connected
func (p *NATSPublisher) IsConnected() bool {
	return p.conn != nil && p.conn.IsConnected()
}

// Publish publishes an event with JetStream acknowledgement
func (p *NATSPublisher) Publish(ctx context.Context, event *Event) error {
	if !p.IsConnected() {
		return ErrNATSDisconnected
	}

	subject := SubjectFor(p.config.Subjects, event)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := p.js.Publish(ctx, subject, data, jetstream.WithMsgID(event.ID)); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug().
		Str("subject", subject).
		Str("event_type", string(event.Type)).
		Str("session_id", event.SessionID).
		Msg("published engagement event")

	return nil
}

// SubjectFor returns the subject for an event.
// Turns go to <turns>.<channel>, reports to <reports>.<status>.
func SubjectFor(subjects config.NATSSubjectsConfig, event *Event) string {
	switch event.Type {
	case EventTypeReportDelivered:
		status := "unknown"
		if event.Report != nil && event.Report.Status != "" {
			status = string(event.Report.Status)
		}
		return fmt.Sprintf("%s.%s", subjects.Reports, status)
	default:
		channel := "unknown"
		if event.Turn != nil && event.Turn.Channel != "" {
			channel = string(event.Turn.Channel)
		}
		return fmt.Sprintf("%s.%s", subjects.Turns, channel)
	}
}
