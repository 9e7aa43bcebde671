package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/shaharia-lab/mailworker/internal/notification"
)

// EventPublisher receives the lifecycle events produced by one handling call.
// Services use this interface to emit events without depending on a concrete
// event bus implementation.
type EventPublisher interface {
	Publish(events ...notification.Event)
}

// IdempotencyStore remembers which correlation ids were already sent.
type IdempotencyStore interface {
	IsSent(ctx context.Context, notificationID uuid.UUID) (bool, error)
	MarkSent(ctx context.Context, notificationID uuid.UUID) error
}
