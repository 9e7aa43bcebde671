package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/shaharia-lab/mailworker/internal/notification"
)

// MockTransport is a mock implementation of notification.Transport.
type MockTransport struct {
	mock.Mock
}

//nolint:revive
func (m *MockTransport) Name() string {
	args := m.Called()
	return args.String(0)
}

//nolint:revive
func (m *MockTransport) Send(ctx context.Context, n *notification.Notification) (notification.SendResult, error) {
	args := m.Called(ctx, n)
	return args.Get(0).(notification.SendResult), args.Error(1)
}
