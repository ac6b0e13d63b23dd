// Package eventbus carries lifecycle events and trigger inputs between modules.
package eventbus

import (
	"context"

	"github.com/dukex/conductor/pkg/events"
)

type Publisher interface {
	Publish(ctx context.Context, topic string, msg events.Message) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, topic string, handler Handler) error
}

// Handler processes one delivered message. Errors are logged; the message is
// not redelivered.
type Handler func(ctx context.Context, msg events.Message) error

type EventBus interface {
	Publisher
	Subscriber
	Close() error
}
