package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/adsync-core/internal/core/ports/driven"
)

var _ driven.DistributedLock = (*MockDistributedLock)(nil)

// MockDistributedLock is an in-memory DistributedLock. Locks expire by wall
// clock; HoldElsewhere simulates another instance owning a lock.
type MockDistributedLock struct {
	mu       sync.Mutex
	held     map[string]time.Time
	acquires int
	extends  int
	releases int

	AcquireErr error
	PingErr    error
}

// NewMockDistributedLock creates a new MockDistributedLock
func NewMockDistributedLock() *MockDistributedLock {
	return &MockDistributedLock{held: make(map[string]time.Time)}
}

func (m *MockDistributedLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acquires++
	if m.AcquireErr != nil {
		return false, m.AcquireErr
	}
	if m.heldLocked(name) {
		return false, nil
	}
	m.held[name] = time.Now().Add(ttl)
	return true, nil
}

func (m *MockDistributedLock) Release(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releases++
	delete(m.held, name)
	return nil
}

func (m *MockDistributedLock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extends++
	if !m.heldLocked(name) {
		return fmt.Errorf("lock %s not held", name)
	}
	m.held[name] = time.Now().Add(ttl)
	return nil
}

func (m *MockDistributedLock) Ping(ctx context.Context) error {
	return m.PingErr
}

// HoldElsewhere marks name as owned by another instance for ttl
func (m *MockDistributedLock) HoldElsewhere(name string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.held[name] = time.Now().Add(ttl)
}

// IsHeld reports whether name is currently locked
func (m *MockDistributedLock) IsHeld(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.heldLocked(name)
}

// Counts returns how often Acquire, Extend and Release were called
func (m *MockDistributedLock) Counts() (acquires, extends, releases int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acquires, m.extends, m.releases
}

func (m *MockDistributedLock) heldLocked(name string) bool {
	expiry, ok := m.held[name]
	return ok && time.Now().Before(expiry)
}
