package credential

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore provides an in-memory implementation of the Store interface.
// Records are lost when the program exits; it is intended for tests and
// ephemeral sessions.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]TokenConfig
}

// NewMemoryStore creates a new instance of MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]TokenConfig),
	}
}

// Store implements Store.Store
func (m *MemoryStore) Store(_ context.Context, cfg TokenConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !IsValid(cfg) {
		return ErrInvalid
	}

	cfg.Domain = strings.ToLower(cfg.Domain)
	m.records[cfg.Domain] = cfg
	return nil
}

// Retrieve implements Store.Retrieve
func (m *MemoryStore) Retrieve(_ context.Context, domain string) (TokenConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg, exists := m.records[strings.ToLower(domain)]
	if !exists {
		return TokenConfig{}, ErrNotFound
	}
	return cfg, nil
}

// Delete implements Store.Delete
func (m *MemoryStore) Delete(_ context.Context, domain string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, strings.ToLower(domain))
	return nil
}

// List implements Store.List
func (m *MemoryStore) List(_ context.Context) ([]TokenConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]TokenConfig, 0, len(m.records))
	for _, cfg := range m.records {
		out = append(out, cfg)
	}
	return out, nil
}

// Touch implements Store.Touch
func (m *MemoryStore) Touch(_ context.Context, domain string, when time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(domain)
	cfg, exists := m.records[key]
	if !exists {
		return ErrNotFound
	}
	cfg.LastUsed = &when
	m.records[key] = cfg
	return nil
}

// Close implements Store.Close
func (m *MemoryStore) Close(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = make(map[string]TokenConfig)
	return nil
}
