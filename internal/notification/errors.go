package notification

import "errors"

var (
	// ErrInvalidArgument marks construction failures of value types
	// (malformed address, blank body).
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidStateTransition is returned by a lifecycle method called from
	// a state that does not allow it. The notification is left unchanged.
	ErrInvalidStateTransition = errors.New("invalid state transition")
	// ErrRetryExhausted is returned by PrepareForRetry once the retry budget is spent.
	ErrRetryExhausted = errors.New("retry budget exhausted")
)
