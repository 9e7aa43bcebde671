package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryIdempotencyStore remembers sent correlation ids in process memory
// for ttl. Expired keys are ignored on lookup and removed by Sweep.
type MemoryIdempotencyStore struct {
	mu   sync.Mutex
	ttl  time.Duration
	sent map[uuid.UUID]time.Time
	now  func() time.Time
}

// NewMemoryIdempotencyStore returns a store keeping ids for ttl.
func NewMemoryIdempotencyStore(ttl time.Duration) *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		ttl:  ttl,
		sent: make(map[uuid.UUID]time.Time),
		now:  time.Now,
	}
}

func (s *MemoryIdempotencyStore) IsSent(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	expires, ok := s.sent[id]
	return ok && s.now().Before(expires), nil
}

func (s *MemoryIdempotencyStore) MarkSent(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent[id] = s.now().Add(s.ttl)
	return nil
}

// Sweep drops expired ids and returns how many were removed.
func (s *MemoryIdempotencyStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for id, expires := range s.sent {
		if !now.Before(expires) {
			delete(s.sent, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked ids, expired or not.
func (s *MemoryIdempotencyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}
