package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/shaharia-lab/mailworker/internal/storage"
)

// MockDeliveryStore is a mock implementation of storage.DeliveryStore.
type MockDeliveryStore struct {
	mock.Mock
}

//nolint:revive
func (m *MockDeliveryStore) Record(ctx context.Context, rec storage.DeliveryRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

//nolint:revive
func (m *MockDeliveryStore) List(ctx context.Context, limit int) ([]storage.DeliveryRecord, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.DeliveryRecord), args.Error(1)
}

//nolint:revive
func (m *MockDeliveryStore) ListByNotification(ctx context.Context, notificationID string) ([]storage.DeliveryRecord, error) {
	args := m.Called(ctx, notificationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.DeliveryRecord), args.Error(1)
}

//nolint:revive
func (m *MockDeliveryStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}
