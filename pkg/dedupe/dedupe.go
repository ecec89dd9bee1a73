package dedupe

import (
	"context"
	"sync"
	"time"
)

type Result int

const (
	Fresh Result = iota
	Duplicate
)

func (r Result) String() string {
	if r == Duplicate {
		return "duplicate"
	}
	return "fresh"
}

// Store inserts a presence marker for a key unless an unexpired marker is
// already there. Implementations must make the insert-if-absent atomic so two
// consumers racing on the same key cannot both observe absence.
type Store interface {
	// Mark returns false when an unexpired marker already holds the key.
	Mark(ctx context.Context, key string, expireAt time.Time) (bool, error)
}

// Guard suppresses duplicate deliveries of the same queued message. The mark
// is written before any side-effecting work begins, and is never rolled back:
// a message is "handled" once marked, whatever happens downstream.
type Guard struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

func NewGuard(store Store, ttlSec int64) *Guard {
	return &Guard{
		store: store,
		ttl:   time.Duration(ttlSec) * time.Second,
		now:   time.Now,
	}
}

// CheckAndMark records the delivery identifier and reports whether it was
// seen before within the TTL window. A store error is returned alongside
// Fresh; callers may fail open and process anyway, since redelivery is
// already bounded by the queue's own policy.
func (g *Guard) CheckAndMark(ctx context.Context, deliveryID string) (Result, error) {
	inserted, err := g.store.Mark(ctx, deliveryID, g.now().Add(g.ttl))
	if err != nil {
		return Fresh, err
	}
	if !inserted {
		return Duplicate, nil
	}
	return Fresh, nil
}

// MemoryStore is an in-process Store for tests and single-node runs.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (s *MemoryStore) Mark(ctx context.Context, key string, expireAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if exp, ok := s.entries[key]; ok && s.now().Before(exp) {
		return false, nil
	}
	s.entries[key] = expireAt
	return true, nil
}
