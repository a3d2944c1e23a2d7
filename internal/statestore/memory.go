package statestore

import (
	"context"
	"sync"
	"time"

	"github.com/juju/clock"
)

type memoryEntry struct {
	handshake Handshake
	expiresAt time.Time
}

// MemoryStore keeps handshakes in process. It is only correct for a single
// instance deployment.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	clock   clock.Clock
}

// NewMemoryStore creates a MemoryStore; a nil clock means the wall clock.
func NewMemoryStore(clk clock.Clock) *MemoryStore {
	if clk == nil {
		clk = clock.WallClock
	}
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		clock:   clk,
	}
}

func (m *MemoryStore) Put(_ context.Context, h *Handshake, ttl time.Duration) error {
	if err := validate(h); err != nil {
		return err
	}
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep(now)
	m.entries[h.Key] = memoryEntry{handshake: *h, expiresAt: now.Add(ttl)}
	return nil
}

func (m *MemoryStore) Take(_ context.Context, key string) (*Handshake, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key]
	if !ok {
		return nil, ErrStateNotFound
	}
	delete(m.entries, key)
	if !m.clock.Now().Before(entry.expiresAt) {
		return nil, ErrStateNotFound
	}
	h := entry.handshake
	return &h, nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MemoryStore) Close() {}

// Len returns the number of stored handshakes, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// sweep drops expired entries. Caller holds mu.
func (m *MemoryStore) sweep(now time.Time) {
	for k, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, k)
		}
	}
}
