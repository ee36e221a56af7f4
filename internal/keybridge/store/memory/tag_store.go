package memory

import (
	"context"
	"sync"

	"github.com/accesslab/keybridge/internal/keybridge/store"
)

type TagStore struct {
	mu   sync.RWMutex
	tags map[string]store.TagRecord
}

func NewTagStore() *TagStore {
	return &TagStore{tags: make(map[string]store.TagRecord)}
}

func (s *TagStore) GetTag(_ context.Context, tagID string) (store.TagRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.tags[tagID]
	if !ok {
		return store.TagRecord{}, store.ErrTagNotFound
	}
	return rec, nil
}

func (s *TagStore) SaveEnrolled(_ context.Context, rec store.TagRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.tags[rec.TagID]; ok {
		if existing.EmployeeID != nil && rec.EmployeeID != nil &&
			*existing.EmployeeID != *rec.EmployeeID {
			return store.ErrTagAssigned
		}
	}
	s.tags[rec.TagID] = rec
	return nil
}

func (s *TagStore) UpdateSecret(_ context.Context, tagID, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tags[tagID]
	if !ok {
		return store.ErrTagNotFound
	}
	rec.Secret = &secret
	s.tags[tagID] = rec
	return nil
}

func (s *TagStore) DeleteTag(_ context.Context, tagID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tags[tagID]; !ok {
		return store.ErrTagNotFound
	}
	delete(s.tags, tagID)
	return nil
}

func (s *TagStore) ListTags(_ context.Context) ([]store.TagRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.TagRecord, 0, len(s.tags))
	for _, rec := range s.tags {
		out = append(out, rec)
	}
	return out, nil
}

// Put seeds a tag directly. Test-only helper.
func (s *TagStore) Put(rec store.TagRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags[rec.TagID] = rec
}
