package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/shaharia-lab/mailworker/internal/notification"
	"github.com/shaharia-lab/mailworker/internal/storage"
)

const recordTimeout = 5 * time.Second

// EventRecorder writes lifecycle events to the delivery log. Its Listen
// method is subscribed to the event bus.
type EventRecorder struct {
	store  storage.DeliveryStore
	logger *slog.Logger
}

func NewEventRecorder(store storage.DeliveryStore, log *slog.Logger) *EventRecorder {
	if log == nil {
		log = slog.Default()
	}
	return &EventRecorder{store: store, logger: log}
}

// Listen records e. Failures are logged; the delivery log is best effort.
func (r *EventRecorder) Listen(e notification.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	rec := storage.DeliveryRecord{
		EmailID:           e.EmailID.String(),
		NotificationID:    e.NotificationID.String(),
		Event:             string(e.Kind),
		Status:            e.Kind.Status().String(),
		ExternalMessageID: e.ExternalMessageID,
		ErrorMessage:      e.ErrorMessage,
		RetryCount:        e.RetryCount,
		OccurredAt:        e.OccurredAt,
	}
	if err := r.store.Record(ctx, rec); err != nil {
		r.logger.Error("failed to record delivery event",
			"notification_id", e.NotificationID, "event", string(e.Kind), "error", err)
	}
}
