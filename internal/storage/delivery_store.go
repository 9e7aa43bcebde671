package storage

import (
	"context"
	"time"
)

// DeliveryRecord is one lifecycle event of one email, as kept in the
// delivery log.
type DeliveryRecord struct {
	ID                int64     `json:"id"`
	EmailID           string    `json:"emailId"`
	NotificationID    string    `json:"notificationId"`
	Event             string    `json:"event"`
	Status            string    `json:"status"`
	ExternalMessageID string    `json:"externalMessageId,omitempty"`
	ErrorMessage      string    `json:"errorMessage,omitempty"`
	RetryCount        int       `json:"retryCount"`
	OccurredAt        time.Time `json:"occurredAt"`
}

// DeliveryStore persists the delivery log.
type DeliveryStore interface {
	// Record appends one event.
	Record(ctx context.Context, rec DeliveryRecord) error
	// List returns the most recent records, newest first, up to limit.
	List(ctx context.Context, limit int) ([]DeliveryRecord, error)
	// ListByNotification returns every record for a correlation id in the
	// order they were written.
	ListByNotification(ctx context.Context, notificationID string) ([]DeliveryRecord, error)
	// Prune deletes records that occurred before cutoff and reports how many.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}
