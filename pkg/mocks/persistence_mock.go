package mocks

import (
	"context"

	"github.com/dukex/conductor/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockStore is a mock implementation of persistence.Store interface.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Index(ctx context.Context, collection, id string, document any) error {
	args := m.Called(ctx, collection, id, document)

	return args.Error(0)
}

func (m *MockStore) Get(ctx context.Context, collection, id string) (persistence.Document, error) {
	args := m.Called(ctx, collection, id)

	return args.Get(0).(persistence.Document), args.Error(1)
}

func (m *MockStore) Search(ctx context.Context, collection string, query persistence.Query) ([]persistence.Document, error) {
	args := m.Called(ctx, collection, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]persistence.Document), args.Error(1)
}

func (m *MockStore) Delete(ctx context.Context, collection, id string) error {
	args := m.Called(ctx, collection, id)

	return args.Error(0)
}

func (m *MockStore) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockStore) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
