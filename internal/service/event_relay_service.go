package service

import (
	"context"

	"research-agent-be/internal/pkg/logger"
	"research-agent-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
)

type IEventRelayService interface {
	Consume(ctx context.Context) error
}

// EventBroadcaster delivers events to live websocket clients
type EventBroadcaster interface {
	Broadcast(event events.Event)
}

// EventForwarder delivers events to an external broker
type EventForwarder interface {
	Publish(ctx context.Context, event events.Event) error
	Connected() bool
}

type eventRelayService struct {
	subscriber message.Subscriber
	topic      string
	hub        EventBroadcaster
	forwarder  EventForwarder
	logger     logger.ILogger
}

// NewEventRelayService fans pipeline events out of the in-process bus. hub
// and forwarder may be nil.
func NewEventRelayService(
	subscriber message.Subscriber,
	topic string,
	hub EventBroadcaster,
	forwarder EventForwarder,
	log logger.ILogger,
) IEventRelayService {
	return &eventRelayService{
		subscriber: subscriber,
		topic:      topic,
		hub:        hub,
		forwarder:  forwarder,
		logger:     log,
	}
}

func (s *eventRelayService) Consume(ctx context.Context) error {
	messages, err := s.subscriber.Subscribe(ctx, s.topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			s.relay(ctx, msg)
		}
	}()

	return nil
}

func (s *eventRelayService) relay(ctx context.Context, msg *message.Message) {
	// Events are best effort; a bad payload is dropped, never redelivered
	defer msg.Ack()

	event, err := events.Decode(msg.Payload)
	if err != nil {
		s.logger.Warn("EventRelay", "Dropping undecodable event", map[string]interface{}{
			"message_id": msg.UUID,
			"error":      err.Error(),
		})
		return
	}

	if s.hub != nil {
		s.hub.Broadcast(event)
	}
	if s.forwarder != nil && s.forwarder.Connected() {
		if err := s.forwarder.Publish(ctx, event); err != nil {
			s.logger.Warn("EventRelay", "Failed to forward event", map[string]interface{}{
				"type":  event.EventType(),
				"error": err.Error(),
			})
		}
	}
}
