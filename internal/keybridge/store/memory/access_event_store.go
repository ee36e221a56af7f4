package memory

import (
	"context"
	"sync"

	"github.com/accesslab/keybridge/internal/keybridge/store"
)

// AccessEventStore is an in-memory append-only log of access decisions.
// It is intended for use in tests and dev environments.
type AccessEventStore struct {
	mu     sync.Mutex
	nextID int64
	events []store.AccessEventRecord
}

func NewAccessEventStore() *AccessEventStore {
	return &AccessEventStore{nextID: 1}
}

func (s *AccessEventStore) RecordEvent(_ context.Context, rec store.AccessEventRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.EventID = s.nextID
	s.nextID++
	s.events = append(s.events, rec)
	return rec.EventID, nil
}

func (s *AccessEventStore) ListEvents(_ context.Context, limit int) ([]store.AccessEventRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.events)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]store.AccessEventRecord, n)
	for i := 0; i < n; i++ {
		out[i] = s.events[len(s.events)-1-i]
	}
	return out, nil
}

// Events returns a copy of all recorded events. Test-only helper.
func (s *AccessEventStore) Events() []store.AccessEventRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.AccessEventRecord, len(s.events))
	copy(out, s.events)
	return out
}
