package notification

import "time"

// SetNow replaces the package clock and returns a func restoring it.
func SetNow(f func() time.Time) func() {
	prev := now
	now = f
	return func() { now = prev }
}
