package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/adsync-core/internal/core/domain"
	"github.com/custodia-labs/adsync-core/internal/core/ports/driven"
)

var _ driven.SyncSettingsStore = (*MockSyncSettingsStore)(nil)

// MockSyncSettingsStore is a mock implementation of SyncSettingsStore for testing
type MockSyncSettingsStore struct {
	mu   sync.Mutex
	mode *domain.SyncMode

	SaveSyncModeFn func(mode domain.SyncMode) error
}

// NewMockSyncSettingsStore creates a new MockSyncSettingsStore
func NewMockSyncSettingsStore() *MockSyncSettingsStore {
	return &MockSyncSettingsStore{}
}

func (m *MockSyncSettingsStore) GetSyncMode(ctx context.Context) (domain.SyncMode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mode == nil {
		return domain.SyncMode{}, domain.ErrNotFound
	}
	return *m.mode, nil
}

func (m *MockSyncSettingsStore) SaveSyncMode(ctx context.Context, mode domain.SyncMode) error {
	if m.SaveSyncModeFn != nil {
		return m.SaveSyncModeFn(mode)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mode = &mode
	return nil
}
