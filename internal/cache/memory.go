package cache

import (
	"context"
	"sync"
)

// MemoryEntryStore is an unbounded in-process map. Entries are tiny
// (key, URL, content type) and artifacts are immutable, so no TTL or
// eviction is applied; operators can wrap a bounded policy around it.
type MemoryEntryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemoryEntryStore() *MemoryEntryStore {
	return &MemoryEntryStore{entries: make(map[string]Entry)}
}

func (s *MemoryEntryStore) Get(_ context.Context, key string) (Entry, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	return e, ok, nil
}

func (s *MemoryEntryStore) Set(_ context.Context, key string, e Entry) error {
	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
	return nil
}

// Len returns the number of cached entries.
func (s *MemoryEntryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear removes all entries. Useful for tests or manual resets.
func (s *MemoryEntryStore) Clear() {
	s.mu.Lock()
	s.entries = make(map[string]Entry)
	s.mu.Unlock()
}
