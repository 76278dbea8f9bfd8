package store

import (
	"context"
	"sort"
	"sync"
)

type scoredEntry struct {
	timestamp int64
	data      []byte
}

// Memory is an in-process Store used when no database is configured
// and as the test double for the gateway contract.
type Memory struct {
	mu       sync.RWMutex
	snapshot []byte
	hasSnap  bool
	entries  []scoredEntry
}

func NewMemory() *Memory {
	return &Memory{entries: make([]scoredEntry, 0)}
}

func (m *Memory) SaveSnapshot(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = append([]byte(nil), data...)
	m.hasSnap = true
	return nil
}

func (m *Memory) LoadSnapshot(context.Context) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.hasSnap {
		return nil, false, nil
	}
	return append([]byte(nil), m.snapshot...), true, nil
}

func (m *Memory) Append(_ context.Context, timestamp int64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := scoredEntry{timestamp: timestamp, data: append([]byte(nil), data...)}
	// Insert after the last entry with the same or smaller score so
	// equal timestamps keep append order.
	idx := sort.Search(len(m.entries), func(i int) bool {
		return m.entries[i].timestamp > timestamp
	})
	m.entries = append(m.entries, scoredEntry{})
	copy(m.entries[idx+1:], m.entries[idx:])
	m.entries[idx] = entry
	return nil
}

func (m *Memory) All(context.Context) ([][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.entries) == 0 {
		return nil, nil
	}
	out := make([][]byte, len(m.entries))
	for i, entry := range m.entries {
		out[i] = append([]byte(nil), entry.data...)
	}
	return out, nil
}

func (m *Memory) LastAtOrBefore(_ context.Context, timestamp int64) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx := sort.Search(len(m.entries), func(i int) bool {
		return m.entries[i].timestamp > timestamp
	})
	if idx == 0 {
		return nil, false, nil
	}
	return append([]byte(nil), m.entries[idx-1].data...), true, nil
}
