package streaming

import (
	"context"

	"honeypot-lab/internal/domain/models"
)

// EventBusPublisher implements services.EventSink on top of the EventBus and WebSocket hub
type EventBusPublisher struct {
	eventBus *EventBus
	wsHub    *WebSocketHub
}

// NewEventBusPublisher creates a new publisher adapter. Either side may be nil.
func NewEventBusPublisher(eventBus *EventBus, wsHub *WebSocketHub) *EventBusPublisher {
	return &EventBusPublisher{
		eventBus: eventBus,
		wsHub:    wsHub,
	}
}

// TurnProcessed publishes a processed turn
func (p *EventBusPublisher) TurnProcessed(ctx context.Context, turn *models.TurnEvent) {
	p.publish(ctx, NewTurnEvent(turn))
}

// ReportDelivered publishes a callback delivery attempt
func (p *EventBusPublisher) ReportDelivered(ctx context.Context, delivery *models.ReportDelivery) {
	p.publish(ctx, NewReportEvent(delivery))
}

func (p *EventBusPublisher) publish(ctx context.Context, event *Event) {
	// NATS + local subscribers (gRPC watchers)
	if p.eventBus != nil {
		p.eventBus.Publish(ctx, event)
	}

	// Dashboard feed
	if p.wsHub != nil {
		p.wsHub.BroadcastEvent(event)
	}
}
