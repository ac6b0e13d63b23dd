package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dukex/conductor/pkg/events"
)

type WatermillEventBus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     *slog.Logger
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber, logger *slog.Logger) *WatermillEventBus {
	return &WatermillEventBus{
		publisher:  pub,
		subscriber: sub,
		logger:     logger.With("module", "event_bus"),
	}
}

func (eb *WatermillEventBus) Publish(ctx context.Context, topic string, event events.Message) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", event.Type, err)
	}

	msg := message.NewMessage("msg-"+watermill.NewULID(), payload)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.Type))
	msg.SetContext(ctx)

	return eb.publisher.Publish(topic, msg)
}

// Subscribe delivers messages on topic to handler until ctx is cancelled or
// the bus is closed.
func (eb *WatermillEventBus) Subscribe(ctx context.Context, topic string, handler Handler) error {
	messages, err := eb.subscriber.Subscribe(ctx, topic)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	go func() {
		for msg := range messages {
			var event events.Message

			err := json.Unmarshal(msg.Payload, &event)
			if err != nil {
				eb.logger.WarnContext(ctx, "Dropping undecodable message", "topic", topic, "message_id", msg.UUID, "error", err)
				msg.Ack()

				continue
			}

			err = handler(ctx, event)
			if err != nil {
				eb.logger.ErrorContext(ctx, "Event handler failed",
					"topic", topic,
					"event_type", event.Type,
					"event_id", event.ID,
					"error", err,
				)
			}

			msg.Ack()
		}
	}()

	return nil
}

func (eb *WatermillEventBus) Close() error {
	err := eb.publisher.Close()
	if err != nil {
		return err
	}

	return eb.subscriber.Close()
}
