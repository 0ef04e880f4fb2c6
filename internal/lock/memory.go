package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryLock is a single-process Locker used when no Redis address is configured.
type MemoryLock struct {
	mu    sync.Mutex
	held  map[string]time.Time
	clock func() time.Time
}

func NewMemoryLock() *MemoryLock {
	return &MemoryLock{
		held:  make(map[string]time.Time),
		clock: time.Now,
	}
}

func (m *MemoryLock) Lock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	if expires, ok := m.held[key]; ok && now.Before(expires) {
		return false, nil
	}

	m.held[key] = now.Add(ttl)

	return true, nil
}

func (m *MemoryLock) Unlock(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.held, key)

	return nil
}

func (m *MemoryLock) Close() error {
	return nil
}
