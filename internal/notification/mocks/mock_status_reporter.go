package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/shaharia-lab/mailworker/internal/notification"
)

// MockStatusReporter is a mock implementation of notification.StatusReporter.
type MockStatusReporter struct {
	mock.Mock
}

//nolint:revive
func (m *MockStatusReporter) PublishStatus(ctx context.Context, id uuid.UUID, status notification.Status, errorMessage string) error {
	args := m.Called(ctx, id, status, errorMessage)
	return args.Error(0)
}
