package notification

import (
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxRetries is the retry budget used when callers have no policy of their own.
const DefaultMaxRetries = 3

// now is swapped in tests.
var now = func() time.Time { return time.Now().UTC() }

// Params are the inputs to New.
type Params struct {
	NotificationID uuid.UUID
	RecipientEmail string
	RecipientName  string
	Subject        string
	Body           string
	IsHTML         bool
	Priority       Priority
	Metadata       map[string]string
}

// Notification tracks one outbound email from receipt to delivery or failure.
// It is owned by a single handling call and is not safe for concurrent use.
// State only changes through the lifecycle methods, each of which returns
// the Event describing the transition.
// The name is intentional: it reads as notification.Notification at call sites.
//
//nolint:revive
type Notification struct {
	id                uuid.UUID
	notificationID    uuid.UUID
	recipient         Recipient
	content           Content
	priority          Priority
	status            Status
	errorMessage      string
	retryCount        int
	createdAt         time.Time
	processedAt       time.Time
	sentAt            time.Time
	externalMessageID string
	metadata          map[string]string
}

// New builds a Pending notification. It fails with an error wrapping
// ErrInvalidArgument when the address, body or priority is invalid; no
// notification is produced in that case.
func New(p Params) (*Notification, Event, error) {
	if !p.Priority.Valid() {
		return nil, Event{}, fmt.Errorf("%w: priority %d out of range", ErrInvalidArgument, int(p.Priority))
	}
	recipient, err := NewRecipient(p.RecipientEmail, p.RecipientName)
	if err != nil {
		return nil, Event{}, err
	}
	content, err := NewContent(p.Subject, p.Body, p.IsHTML)
	if err != nil {
		return nil, Event{}, err
	}

	n := &Notification{
		id:             uuid.New(),
		notificationID: p.NotificationID,
		recipient:      recipient,
		content:        content,
		priority:       p.Priority,
		status:         StatusPending,
		createdAt:      now(),
	}
	if p.Metadata != nil {
		n.metadata = maps.Clone(p.Metadata)
	}
	return n, n.event(EventReceived), nil
}

// MarkProcessing moves a Pending or Failed notification to Processing.
func (n *Notification) MarkProcessing() (Event, error) {
	if n.status != StatusPending && n.status != StatusFailed {
		return Event{}, n.transitionError(StatusProcessing)
	}
	n.status = StatusProcessing
	n.processedAt = now()
	return n.event(EventProcessing), nil
}

// MarkSent records a successful hand-off to the transport.
func (n *Notification) MarkSent(externalMessageID string) (Event, error) {
	if n.status != StatusProcessing {
		return Event{}, n.transitionError(StatusSent)
	}
	n.status = StatusSent
	n.sentAt = now()
	n.externalMessageID = externalMessageID
	n.errorMessage = ""

	e := n.event(EventSent)
	e.ExternalMessageID = externalMessageID
	return e, nil
}

// MarkDelivered moves a Sent notification to Delivered.
func (n *Notification) MarkDelivered() (Event, error) {
	if n.status != StatusSent {
		return Event{}, n.transitionError(StatusDelivered)
	}
	n.status = StatusDelivered
	return n.event(EventDelivered), nil
}

// MarkFailed is allowed from any state. It always bumps RetryCount by one.
func (n *Notification) MarkFailed(reason string) Event {
	n.status = StatusFailed
	n.errorMessage = reason
	n.retryCount++

	e := n.event(EventFailed)
	e.ErrorMessage = reason
	e.RetryCount = n.retryCount
	return e
}

// CanRetry reports whether the notification is Failed with fewer than
// maxRetries failures so far.
func (n *Notification) CanRetry(maxRetries int) bool {
	return n.status == StatusFailed && n.retryCount < maxRetries
}

// PrepareForRetry resets a retryable Failed notification to Pending.
// Scheduling the retry is up to the caller.
func (n *Notification) PrepareForRetry(maxRetries int) error {
	if !n.CanRetry(maxRetries) {
		return fmt.Errorf("%w: status %s, %d of %d attempts used",
			ErrRetryExhausted, n.status, n.retryCount, maxRetries)
	}
	n.status = StatusPending
	n.errorMessage = ""
	return nil
}

func (n *Notification) transitionError(to Status) error {
	return fmt.Errorf("%w: cannot move email %s from %s to %s",
		ErrInvalidStateTransition, n.notificationID, n.status, to)
}

func (n *Notification) event(kind EventKind) Event {
	return Event{
		Kind:           kind,
		EmailID:        n.id,
		NotificationID: n.notificationID,
		OccurredAt:     now(),
	}
}

func (n *Notification) ID() uuid.UUID             { return n.id }
func (n *Notification) NotificationID() uuid.UUID { return n.notificationID }
func (n *Notification) Recipient() Recipient      { return n.recipient }
func (n *Notification) Content() Content          { return n.content }
func (n *Notification) Priority() Priority        { return n.priority }
func (n *Notification) Status() Status            { return n.status }
func (n *Notification) ErrorMessage() string      { return n.errorMessage }
func (n *Notification) RetryCount() int           { return n.retryCount }
func (n *Notification) CreatedAt() time.Time      { return n.createdAt }

// ProcessedAt returns the zero time until MarkProcessing has succeeded.
func (n *Notification) ProcessedAt() time.Time { return n.processedAt }

// SentAt returns the zero time until MarkSent has succeeded.
func (n *Notification) SentAt() time.Time { return n.sentAt }

// ExternalMessageID is the transport's id for the sent email, empty until sent.
func (n *Notification) ExternalMessageID() string { return n.externalMessageID }

// Metadata returns a copy of the opaque key/value map supplied at creation.
func (n *Notification) Metadata() map[string]string { return maps.Clone(n.metadata) }
