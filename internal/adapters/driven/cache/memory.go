// Package cache provides the in-process response cache used when no Redis
// is configured.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/adsync-core/internal/clock"
	"github.com/custodia-labs/adsync-core/internal/core/domain"
	"github.com/custodia-labs/adsync-core/internal/core/ports/driven"
	"github.com/custodia-labs/adsync-core/internal/metrics"
)

// Verify interface compliance
var _ driven.ResponseCache = (*Memory)(nil)

// entry is a stored payload and the time it was stored
type entry struct {
	class    domain.EndpointClass
	payload  []byte
	storedAt time.Time
}

// Stats tracks cache efficiency
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Entries   int   `json:"entries"`
}

// Memory is a thread-safe in-memory ResponseCache.
// Entries are valid while now - storedAt < class TTL and are evicted lazily
// on lookup or by Sweep.
type Memory struct {
	mu      sync.Mutex
	clock   clock.Clock
	entries map[string]entry
	stats   Stats
}

// NewMemory creates an empty memory cache. A nil clock uses wall time.
func NewMemory(c clock.Clock) *Memory {
	if c == nil {
		c = clock.Real()
	}
	return &Memory{
		clock:   c,
		entries: make(map[string]entry),
	}
}

// Get returns the payload for the class and params when it is still fresh
func (m *Memory) Get(ctx context.Context, class domain.EndpointClass, params map[string]string) ([]byte, bool) {
	key := domain.CacheKey(class, params)

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		m.stats.Misses++
		metrics.RecordCacheLookup(string(class), false)
		return nil, false
	}
	if !m.fresh(e) {
		delete(m.entries, key)
		m.stats.Misses++
		m.stats.Evictions++
		metrics.RecordCacheLookup(string(class), false)
		return nil, false
	}

	m.stats.Hits++
	metrics.RecordCacheLookup(string(class), true)
	return append([]byte(nil), e.payload...), true
}

// Set stores the payload, replacing any previous entry for the key
func (m *Memory) Set(ctx context.Context, class domain.EndpointClass, params map[string]string, payload []byte) error {
	key := domain.CacheKey(class, params)
	stored := append([]byte(nil), payload...)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry{class: class, payload: stored, storedAt: m.clock.Now()}
	return nil
}

// Clear removes everything for an empty class, one class for nil params,
// otherwise the single matching entry
func (m *Memory) Clear(ctx context.Context, class domain.EndpointClass, params map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case class == "":
		m.entries = make(map[string]entry)
	case params == nil:
		prefix := domain.CacheKeyPrefix(class)
		for key := range m.entries {
			if strings.HasPrefix(key, prefix) {
				delete(m.entries, key)
			}
		}
	default:
		delete(m.entries, domain.CacheKey(class, params))
	}
	return nil
}

// Sweep evicts every expired entry and returns how many were removed
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, e := range m.entries {
		if !m.fresh(e) {
			delete(m.entries, key)
			removed++
		}
	}
	m.stats.Evictions += int64(removed)
	return removed
}

// Run sweeps expired entries every interval until ctx is done
func (m *Memory) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Stats returns a copy of the cache counters
func (m *Memory) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats
	s.Entries = len(m.entries)
	return s
}

func (m *Memory) fresh(e entry) bool {
	return m.clock.Now().Sub(e.storedAt) < e.class.TTL()
}
