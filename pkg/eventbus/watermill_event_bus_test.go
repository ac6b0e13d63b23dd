package eventbus_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/conductor/pkg/channels/gochannel"
	"github.com/dukex/conductor/pkg/eventbus"
	"github.com/dukex/conductor/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBus(t *testing.T) *eventbus.WatermillEventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub, slog.Default())
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestWatermillEventBus_RoundTrip(t *testing.T) {
	bus := newBus(t)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	received := make(chan events.Message, 1)

	err := bus.Subscribe(ctx, events.Topic, func(_ context.Context, msg events.Message) error {
		received <- msg

		return nil
	})
	require.NoError(t, err)

	sent := events.New(events.WorkflowCreatedEvent, map[string]any{"workflow_id": "wf-1"})
	require.NoError(t, bus.Publish(ctx, events.Topic, sent))

	select {
	case msg := <-received:
		assert.Equal(t, sent.ID, msg.ID)
		assert.Equal(t, events.WorkflowCreatedEvent, msg.Type)
		assert.Equal(t, "wf-1", msg.Data["workflow_id"])
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}
}

func TestWatermillEventBus_HandlerErrorDoesNotRedeliver(t *testing.T) {
	bus := newBus(t)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	calls := make(chan struct{}, 10)

	err := bus.Subscribe(ctx, events.InputTopic, func(context.Context, events.Message) error {
		calls <- struct{}{}

		return errors.New("boom")
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, events.InputTopic, events.New(events.InputReceivedEvent, nil)))
	require.NoError(t, bus.Publish(ctx, events.InputTopic, events.New(events.InputReceivedEvent, nil)))

	for range 2 {
		select {
		case <-calls:
		case <-time.After(2 * time.Second):
			t.Fatal("message not delivered")
		}
	}

	select {
	case <-calls:
		t.Fatal("message redelivered")
	case <-time.After(100 * time.Millisecond):
	}
}
