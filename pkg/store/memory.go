package store

import (
	"context"
	"sync"
)

var _ Store = &MemoryStore{}

// MemoryStore keeps values for the lifetime of the process. It backs the
// session-scoped records that are discarded with their browser session.
type MemoryStore struct {
	lock   sync.RWMutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string]string),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	value, ok := s.values[key]
	if !ok {
		return "", &ErrNotFound{Key: key}
	}
	return value, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.values, key)
	return nil
}

// Close drops every value.
func (s *MemoryStore) Close(_ context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.values = make(map[string]string)
	return nil
}

// Len returns the number of stored keys.
func (s *MemoryStore) Len() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.values)
}
