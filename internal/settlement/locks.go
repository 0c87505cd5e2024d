package settlement

import (
	"context"
	"sync"
)

// Locker guards a table or order while a multi-step operation runs on it.
type Locker interface {
	Lock(ctx context.Context, key, owner string) (bool, error)
	Unlock(ctx context.Context, key, owner string) error
	IsLocked(ctx context.Context, key string) (bool, error)
	LockAll(ctx context.Context, keys []string, owner string) (bool, error)
	UnlockAll(ctx context.Context, keys []string, owner string) error
}

// MemoryLocker is a single-process Locker for deployments without Redis.
type MemoryLocker struct {
	mu     sync.Mutex
	owners map[string]string
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{owners: make(map[string]string)}
}

func (m *MemoryLocker) Lock(_ context.Context, key, owner string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.owners[key]; held {
		return false, nil
	}
	m.owners[key] = owner
	return true, nil
}

func (m *MemoryLocker) Unlock(_ context.Context, key, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.owners[key] == owner {
		delete(m.owners, key)
	}
	return nil
}

func (m *MemoryLocker) IsLocked(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, held := m.owners[key]
	return held, nil
}

// LockAll takes every key or none of them.
func (m *MemoryLocker) LockAll(_ context.Context, keys []string, owner string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		if _, held := m.owners[key]; held {
			return false, nil
		}
	}
	for _, key := range keys {
		m.owners[key] = owner
	}
	return true, nil
}

func (m *MemoryLocker) UnlockAll(ctx context.Context, keys []string, owner string) error {
	for _, key := range keys {
		_ = m.Unlock(ctx, key, owner)
	}
	return nil
}
