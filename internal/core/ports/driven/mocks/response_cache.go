package mocks

import (
	"context"
	"strings"
	"sync"

	"github.com/custodia-labs/adsync-core/internal/core/domain"
	"github.com/custodia-labs/adsync-core/internal/core/ports/driven"
)

var _ driven.ResponseCache = (*MockResponseCache)(nil)

// MockResponseCache is an expiry-free ResponseCache for testing.
// It counts hits and misses for assertions.
type MockResponseCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	Hits    int
	Misses  int
}

// NewMockResponseCache creates a new MockResponseCache
func NewMockResponseCache() *MockResponseCache {
	return &MockResponseCache{entries: make(map[string][]byte)}
}

func (m *MockResponseCache) Get(ctx context.Context, class domain.EndpointClass, params map[string]string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payload, ok := m.entries[domain.CacheKey(class, params)]
	if ok {
		m.Hits++
	} else {
		m.Misses++
	}
	return payload, ok
}

func (m *MockResponseCache) Set(ctx context.Context, class domain.EndpointClass, params map[string]string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[domain.CacheKey(class, params)] = payload
	return nil
}

func (m *MockResponseCache) Clear(ctx context.Context, class domain.EndpointClass, params map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case class == "":
		m.entries = make(map[string][]byte)
	case params == nil:
		prefix := domain.CacheKeyPrefix(class)
		for k := range m.entries {
			if strings.HasPrefix(k, prefix) {
				delete(m.entries, k)
			}
		}
	default:
		delete(m.entries, domain.CacheKey(class, params))
	}
	return nil
}
