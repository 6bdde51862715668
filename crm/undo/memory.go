package undo

import (
	"context"
	"sync"
)

// MemoryStore keeps entries in process memory. Entries do not survive a
// restart.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) Save(_ context.Context, e Entry) error {
	e, err := normalize(e)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.entries[e.UserID] = e
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Load(_ context.Context, userID string) (Entry, error) {
	key, err := userKey(userID)
	if err != nil {
		return Entry{}, err
	}
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

func (s *MemoryStore) Clear(_ context.Context, userID string) error {
	key, err := userKey(userID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}
