package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/shaharia-lab/mailworker/internal/notification"
	"github.com/shaharia-lab/mailworker/internal/service"
	"github.com/shaharia-lab/mailworker/internal/storage"
	smocks "github.com/shaharia-lab/mailworker/internal/storage/mocks"
)

func TestEventRecorder_Listen(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e := notification.Event{
		Kind:           notification.EventFailed,
		EmailID:        uuid.New(),
		NotificationID: uuid.New(),
		OccurredAt:     at,
		ErrorMessage:   "smtp down",
		RetryCount:     1,
	}

	store := &smocks.MockDeliveryStore{}
	store.On("Record", mock.Anything, storage.DeliveryRecord{
		EmailID:        e.EmailID.String(),
		NotificationID: e.NotificationID.String(),
		Event:          "email.failed",
		Status:         "Failed",
		ErrorMessage:   "smtp down",
		RetryCount:     1,
		OccurredAt:     at,
	}).Return(nil)

	service.NewEventRecorder(store, nil).Listen(e)
	store.AssertExpectations(t)
}

func TestEventRecorder_StoreErrorIsSwallowed(t *testing.T) {
	store := &smocks.MockDeliveryStore{}
	store.On("Record", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	service.NewEventRecorder(store, nil).Listen(notification.Event{Kind: notification.EventSent})
	store.AssertExpectations(t)
}

func TestEventRecorder_UsesDeadline(t *testing.T) {
	store := &smocks.MockDeliveryStore{}
	store.On("Record", mock.MatchedBy(func(ctx context.Context) bool {
		_, ok := ctx.Deadline()
		return ok
	}), mock.Anything).Return(nil)

	service.NewEventRecorder(store, nil).Listen(notification.Event{Kind: notification.EventReceived})
	store.AssertExpectations(t)
}
