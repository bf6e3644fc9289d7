package storage

import (
	"context"
	"fmt"
	"sync"

	"imagegate/internal/apperr"
)

type memoryObject struct {
	data        []byte
	contentType string
}

// Memory is an in-process store for tests and the IN_MEMORY backend.
// Everything is lost on restart.
type Memory struct {
	mu         sync.RWMutex
	objects    map[string]memoryObject
	cdnBaseURL string
}

// NewMemory creates an empty in-memory store. With an empty base URL a
// synthetic memory:// scheme is used for public URLs.
func NewMemory(cdnBaseURL string) *Memory {
	if cdnBaseURL == "" {
		cdnBaseURL = "memory://artifacts"
	}
	return &Memory{
		objects:    make(map[string]memoryObject),
		cdnBaseURL: cdnBaseURL,
	}
}

func (m *Memory) Put(_ context.Context, key string, data []byte, contentType string) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	m.mu.Lock()
	m.objects[key] = memoryObject{data: cp, contentType: contentType}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, string, error) {
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, "", apperr.E(apperr.KindNotFound, "memory.get",
			fmt.Errorf("key %s", key))
	}
	return obj.data, obj.contentType, nil
}

func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	_, ok := m.objects[key]
	m.mu.RUnlock()
	return ok, nil
}

func (m *Memory) PublicURL(key string) string {
	return joinURL(m.cdnBaseURL, key)
}

// Len reports the number of stored objects. Useful in tests.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
