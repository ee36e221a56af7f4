package memory

import (
	"context"
	"sync"
	"time"

	"github.com/accesslab/keybridge/internal/keybridge/store"
)

type WorkSessionStore struct {
	mu       sync.Mutex
	nextID   int64
	sessions []store.WorkSessionRecord
}

func NewWorkSessionStore() *WorkSessionStore {
	return &WorkSessionStore{nextID: 1}
}

func (s *WorkSessionStore) FindOpen(_ context.Context, employeeID int64) (store.WorkSessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.sessions {
		if rec.EmployeeID == employeeID && rec.ShiftEnd == nil {
			return rec, nil
		}
	}
	return store.WorkSessionRecord{}, store.ErrNoOpenSession
}

func (s *WorkSessionStore) OpenSession(_ context.Context, employeeID int64, start time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.sessions {
		if rec.EmployeeID == employeeID && rec.ShiftEnd == nil {
			return store.ErrSessionOpen
		}
	}
	s.sessions = append(s.sessions, store.WorkSessionRecord{
		SessionID:  s.nextID,
		EmployeeID: employeeID,
		ShiftStart: start,
	})
	s.nextID++
	return nil
}

func (s *WorkSessionStore) CloseSession(_ context.Context, sessionID int64, end time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, rec := range s.sessions {
		if rec.SessionID == sessionID && rec.ShiftEnd == nil {
			e := end
			s.sessions[i].ShiftEnd = &e
			return nil
		}
	}
	return store.ErrNoOpenSession
}

func (s *WorkSessionStore) CloseOlderThan(_ context.Context, cutoff, end time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var closed int64
	for i, rec := range s.sessions {
		if rec.ShiftEnd == nil && rec.ShiftStart.Before(cutoff) {
			e := end
			s.sessions[i].ShiftEnd = &e
			closed++
		}
	}
	return closed, nil
}

// Sessions returns a copy of all sessions. Test-only helper.
func (s *WorkSessionStore) Sessions() []store.WorkSessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.WorkSessionRecord, len(s.sessions))
	copy(out, s.sessions)
	return out
}
