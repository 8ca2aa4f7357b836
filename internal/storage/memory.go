package storage

import (
	"context"
	"sync"

	"github.com/mselser95/execution-harness/internal/scenario"
)

const defaultMemoryCapacity = 100

// MemoryStorage keeps the most recent results in memory. It backs the results
// endpoint and doubles as the storage fake in tests.
type MemoryStorage struct {
	mu       sync.Mutex
	results  []*scenario.Result
	capacity int
}

// NewMemoryStorage creates a memory storage holding up to capacity results.
func NewMemoryStorage(capacity int) *MemoryStorage {
	if capacity <= 0 {
		capacity = defaultMemoryCapacity
	}
	return &MemoryStorage{capacity: capacity}
}

// StoreResult appends result, evicting the oldest one when full.
func (m *MemoryStorage) StoreResult(ctx context.Context, result *scenario.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.results = append(m.results, result)
	if len(m.results) > m.capacity {
		m.results = m.results[len(m.results)-m.capacity:]
	}
	return nil
}

// Latest returns stored results, oldest first.
func (m *MemoryStorage) Latest() []*scenario.Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]*scenario.Result, len(m.results))
	copy(result, m.results)
	return result
}

// Close is a no-op for memory storage.
func (m *MemoryStorage) Close() error {
	return nil
}
