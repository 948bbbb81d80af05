package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/adsync-core/internal/core/domain"
	"github.com/custodia-labs/adsync-core/internal/core/ports/driven"
)

var _ driven.ConnectionStore = (*MockConnectionStore)(nil)

// MockConnectionStore is a mock implementation of ConnectionStore for testing.
// Listings are ordered by ID so sweeps run in a predictable order.
type MockConnectionStore struct {
	mu          sync.RWMutex
	connections map[string]*domain.Connection

	// Custom behavior hooks (optional)
	ListActiveFn func(platform domain.Platform) ([]*domain.Connection, error)
	MarkSyncedFn func(id string, at time.Time) error
}

// NewMockConnectionStore creates a new MockConnectionStore
func NewMockConnectionStore() *MockConnectionStore {
	return &MockConnectionStore{
		connections: make(map[string]*domain.Connection),
	}
}

func (m *MockConnectionStore) Save(ctx context.Context, conn *domain.Connection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *conn
	m.connections[conn.ID] = &cp
	return nil
}

func (m *MockConnectionStore) Get(ctx context.Context, id string) (*domain.Connection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conn, ok := m.connections[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *conn
	return &cp, nil
}

func (m *MockConnectionStore) List(ctx context.Context, platform domain.Platform) ([]*domain.Connection, error) {
	return m.filter(func(c *domain.Connection) bool { return c.Platform == platform }), nil
}

func (m *MockConnectionStore) ListActive(ctx context.Context, platform domain.Platform) ([]*domain.Connection, error) {
	if m.ListActiveFn != nil {
		return m.ListActiveFn(platform)
	}
	return m.filter(func(c *domain.Connection) bool { return c.Platform == platform && c.IsActive }), nil
}

func (m *MockConnectionStore) ListByTenant(ctx context.Context, tenantID string, platform domain.Platform) ([]*domain.Connection, error) {
	return m.filter(func(c *domain.Connection) bool { return c.Platform == platform && c.TenantID == tenantID }), nil
}

func (m *MockConnectionStore) SetActive(ctx context.Context, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conn, ok := m.connections[id]
	if !ok {
		return domain.ErrNotFound
	}
	conn.IsActive = active
	return nil
}

func (m *MockConnectionStore) MarkSynced(ctx context.Context, id string, at time.Time) error {
	if m.MarkSyncedFn != nil {
		return m.MarkSyncedFn(id, at)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	conn, ok := m.connections[id]
	if !ok {
		return domain.ErrNotFound
	}
	t := at
	conn.LastSyncedAt = &t
	conn.LastError = ""
	return nil
}

func (m *MockConnectionStore) MarkFailed(ctx context.Context, id string, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conn, ok := m.connections[id]
	if !ok {
		return domain.ErrNotFound
	}
	conn.LastError = message
	return nil
}

func (m *MockConnectionStore) filter(keep func(*domain.Connection) bool) []*domain.Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Connection
	for _, conn := range m.connections {
		if keep(conn) {
			cp := *conn
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}
