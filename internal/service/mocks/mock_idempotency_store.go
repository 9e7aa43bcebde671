package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/shaharia-lab/mailworker/internal/notification"
)

// MockIdempotencyStore is a mock implementation of service.IdempotencyStore.
type MockIdempotencyStore struct {
	mock.Mock
}

//nolint:revive
func (m *MockIdempotencyStore) IsSent(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

//nolint:revive
func (m *MockIdempotencyStore) MarkSent(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockEventPublisher is a mock implementation of service.EventPublisher.
type MockEventPublisher struct {
	mock.Mock
}

//nolint:revive
func (m *MockEventPublisher) Publish(events ...notification.Event) {
	m.Called(events)
}
