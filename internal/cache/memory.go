package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryBackend is a map-backed Backend for local development and
// tests. Expired entries are dropped lazily on read.
type MemoryBackend struct {
	data  map[string]memoryEntry
	mu    sync.RWMutex
	clock clock
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		data:  make(map[string]memoryEntry),
		clock: realClock{},
	}
}

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	entry, ok := m.data[key]
	m.mu.RUnlock()

	if !ok || m.clock.Now().After(entry.expiresAt) {
		return nil, nil
	}
	return entry.data, nil
}

func (m *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = memoryEntry{
		data:      value,
		expiresAt: m.clock.Now().Add(ttl),
	}
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}
