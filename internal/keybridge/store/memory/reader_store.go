package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/accesslab/keybridge/internal/keybridge/store"
)

type ReaderStore struct {
	mu      sync.RWMutex
	readers map[string]store.ReaderRecord
}

func NewReaderStore() *ReaderStore {
	return &ReaderStore{readers: make(map[string]store.ReaderRecord)}
}

func (s *ReaderStore) GetReader(_ context.Context, deviceID string) (store.ReaderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.readers[deviceID]
	if !ok {
		return store.ReaderRecord{}, store.ErrReaderNotFound
	}
	return rec, nil
}

func (s *ReaderStore) ListReaders(_ context.Context) ([]store.ReaderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.ReaderRecord, 0, len(s.readers))
	for _, rec := range s.readers {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out, nil
}

func (s *ReaderStore) UpsertReader(_ context.Context, rec store.ReaderRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.readers[rec.DeviceID]; ok {
		if rec.Name == "" {
			rec.Name = existing.Name
		}
		if rec.Location == "" {
			rec.Location = existing.Location
		}
	}
	s.readers[rec.DeviceID] = rec
	return nil
}

func (s *ReaderStore) RenameReader(_ context.Context, deviceID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.readers[deviceID]
	if !ok {
		return store.ErrReaderNotFound
	}
	rec.Name = name
	s.readers[deviceID] = rec
	return nil
}

func (s *ReaderStore) DeleteReader(_ context.Context, deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.readers[deviceID]; !ok {
		return store.ErrReaderNotFound
	}
	delete(s.readers, deviceID)
	return nil
}

func (s *ReaderStore) SetOnline(_ context.Context, deviceID string, online bool, seen time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.readers[deviceID]
	if !ok {
		rec = store.ReaderRecord{DeviceID: deviceID}
	}
	rec.Online = online
	t := seen
	rec.LastSeen = &t
	s.readers[deviceID] = rec
	return nil
}
