package memory

import (
	"context"
	"sync"

	"github.com/accesslab/keybridge/internal/keybridge/store"
)

type EmployeeStore struct {
	mu        sync.RWMutex
	employees map[int64]store.EmployeeRecord
	tags      *TagStore // for InfoByTag resolution; may be nil
}

func NewEmployeeStore(tags *TagStore) *EmployeeStore {
	return &EmployeeStore{
		employees: make(map[int64]store.EmployeeRecord),
		tags:      tags,
	}
}

func (s *EmployeeStore) GetEmployee(_ context.Context, employeeID int64) (store.EmployeeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.employees[employeeID]
	if !ok {
		return store.EmployeeRecord{}, store.ErrEmployeeNotFound
	}
	return rec, nil
}

func (s *EmployeeStore) InfoByTag(ctx context.Context, tagID string) (store.EmployeeRecord, error) {
	if s.tags == nil {
		return store.EmployeeRecord{}, store.ErrEmployeeNotFound
	}
	tag, err := s.tags.GetTag(ctx, tagID)
	if err != nil || tag.EmployeeID == nil {
		return store.EmployeeRecord{}, store.ErrEmployeeNotFound
	}
	return s.GetEmployee(ctx, *tag.EmployeeID)
}

// Put seeds an employee directly. Test-only helper.
func (s *EmployeeStore) Put(rec store.EmployeeRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employees[rec.EmployeeID] = rec
}
