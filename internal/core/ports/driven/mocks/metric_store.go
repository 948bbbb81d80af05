package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/adsync-core/internal/core/domain"
	"github.com/custodia-labs/adsync-core/internal/core/ports/driven"
)

var _ driven.MetricStore = (*MockMetricStore)(nil)

// MockMetricStore is a mock implementation of MetricStore for testing
type MockMetricStore struct {
	mu      sync.RWMutex
	records map[string][]*domain.MetricRecord

	SaveMetricsFn func(records []*domain.MetricRecord) error
}

// NewMockMetricStore creates a new MockMetricStore
func NewMockMetricStore() *MockMetricStore {
	return &MockMetricStore{
		records: make(map[string][]*domain.MetricRecord),
	}
}

func (m *MockMetricStore) SaveMetrics(ctx context.Context, records []*domain.MetricRecord) error {
	if m.SaveMetricsFn != nil {
		return m.SaveMetricsFn(records)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		m.records[r.ConnectionID] = append(m.records[r.ConnectionID], r)
	}
	return nil
}

func (m *MockMetricStore) ListByConnection(ctx context.Context, connectionID string) ([]*domain.MetricRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*domain.MetricRecord(nil), m.records[connectionID]...), nil
}

// Count returns the number of rows stored for a connection
func (m *MockMetricStore) Count(connectionID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records[connectionID])
}
