// Package mocks provides testify mocks of the engine collaborators.
package mocks

import (
	"context"

	"github.com/dukex/conductor/pkg/eventbus"
	"github.com/dukex/conductor/pkg/events"
	"github.com/stretchr/testify/mock"
)

// MockEventBus is a mock implementation of eventbus.EventBus interface.
type MockEventBus struct {
	mock.Mock
}

func (m *MockEventBus) Publish(ctx context.Context, topic string, msg events.Message) error {
	args := m.Called(ctx, topic, msg)

	return args.Error(0)
}

func (m *MockEventBus) Subscribe(ctx context.Context, topic string, handler eventbus.Handler) error {
	args := m.Called(ctx, topic, handler)

	return args.Error(0)
}

func (m *MockEventBus) Close() error {
	args := m.Called()

	return args.Error(0)
}

// PublishedTypes lists the event types of every Publish call so far.
func (m *MockEventBus) PublishedTypes() []events.EventType {
	types := make([]events.EventType, 0)

	for _, call := range m.Calls {
		if call.Method != "Publish" {
			continue
		}

		types = append(types, call.Arguments.Get(2).(events.Message).Type)
	}

	return types
}
