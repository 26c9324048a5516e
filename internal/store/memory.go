package store

import (
	"context"
	"sync"
	"time"

	"github.com/castlens/castlens/internal/profile"
)

type memoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemory returns a process-local store, the default backend for
// development and tests. Entries live until the process exits.
func NewMemory() Store {
	return &memoryStore{entries: make(map[string]Entry)}
}

func (s *memoryStore) Get(_ context.Context, fid string) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[fid]
	if !ok {
		return Entry{}, false, nil
	}
	return cloneEntry(entry), true, nil
}

func (s *memoryStore) Upsert(_ context.Context, fid string, p profile.Profile, refreshedAt time.Time) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := Entry{
		FID:           fid,
		Profile:       p.Clone(),
		LastRefreshed: refreshedAt.UTC(),
	}
	if existing, ok := s.entries[fid]; ok {
		entry.CreatedAt = existing.CreatedAt
	} else {
		entry.CreatedAt = refreshedAt.UTC()
	}
	s.entries[fid] = entry
	return cloneEntry(entry), nil
}

func (s *memoryStore) Close(context.Context) error {
	return nil
}

func cloneEntry(in Entry) Entry {
	out := in
	out.Profile = in.Profile.Clone()
	return out
}
