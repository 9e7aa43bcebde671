package storage

import "time"

// SetClock replaces the store's time source.
func (s *MemoryIdempotencyStore) SetClock(now func() time.Time) {
	s.now = now
}
