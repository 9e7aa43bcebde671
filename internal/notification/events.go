package notification

import (
	"time"

	"github.com/google/uuid"
)

// EventKind names a lifecycle transition.
type EventKind string

const (
	EventReceived   EventKind = "email.received"
	EventProcessing EventKind = "email.processing"
	EventSent       EventKind = "email.sent"
	EventDelivered  EventKind = "email.delivered"
	EventFailed     EventKind = "email.failed"
)

// Status returns the lifecycle status the entity holds after this event.
func (k EventKind) Status() Status {
	switch k {
	case EventProcessing:
		return StatusProcessing
	case EventSent:
		return StatusSent
	case EventDelivered:
		return StatusDelivered
	case EventFailed:
		return StatusFailed
	default:
		return StatusPending
	}
}

// Event records one transition of a Notification. Events are returned by the
// lifecycle methods and are informational only; nothing in the lifecycle
// depends on them being consumed.
type Event struct {
	Kind           EventKind
	EmailID        uuid.UUID
	NotificationID uuid.UUID
	OccurredAt     time.Time

	// ExternalMessageID is set on EventSent.
	ExternalMessageID string
	// ErrorMessage and RetryCount are set on EventFailed.
	ErrorMessage string
	RetryCount   int
}
