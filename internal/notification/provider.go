// Package notification models an outbound email through its lifecycle and
// defines the contracts for the collaborators that send it (Transport) and
// report on it (StatusReporter).
package notification

import (
	"context"

	"github.com/google/uuid"
)

// SendResult is the outcome of a Transport.Send call that completed
// without an infrastructure error.
type SendResult struct {
	Success      bool
	MessageID    string
	ErrorMessage string
}

// Transport is the interface for outbound email backends.
// Implementations must be safe for concurrent use, must not block
// indefinitely and must honor ctx cancellation.
type Transport interface {
	// Name returns the transport identifier (e.g. "smtp").
	Name() string
	// Send delivers n. A rejected send is reported as SendResult{Success: false};
	// a returned error means the attempt could not be made at all.
	Send(ctx context.Context, n *Notification) (SendResult, error)
}

// StatusReporter publishes lifecycle status to an external observer.
// It must be safe to call from concurrent handling calls.
type StatusReporter interface {
	PublishStatus(ctx context.Context, notificationID uuid.UUID, status Status, errorMessage string) error
}
