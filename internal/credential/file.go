package credential

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// FileStore persists TokenConfig records to a JSON file, keyed by domain.
// All mutations are serialized with a single mutex and flushed to disk
// before returning, so concurrent operations sharing a domain cannot lose
// updates. The file is written with 0600 permissions since it holds token
// values.
type FileStore struct {
	path string

	mu      sync.Mutex
	records map[string]TokenConfig
	closed  bool
}

// NewFileStore loads (or initializes) the store at path. A missing file is
// not an error; it is created on the first write.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("token store path cannot be empty")
	}

	s := &FileStore{
		path:    path,
		records: make(map[string]TokenConfig),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read token store: %w", err)
	}

	var list []TokenConfig
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse token store: %w", err)
	}
	for _, cfg := range list {
		s.records[strings.ToLower(cfg.Domain)] = cfg
	}
	return s, nil
}

// flush writes the current records to disk. Caller must hold s.mu.
func (s *FileStore) flush() error {
	list := make([]TokenConfig, 0, len(s.records))
	for _, cfg := range s.records {
		list = append(list, cfg)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Domain < list[j].Domain })

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token store: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create token store directory: %w", err)
		}
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token store: %w", err)
	}
	return nil
}

// Store implements Store.Store
func (s *FileStore) Store(_ context.Context, cfg TokenConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if !IsValid(cfg) {
		return ErrInvalid
	}

	cfg.Domain = strings.ToLower(cfg.Domain)
	s.records[cfg.Domain] = cfg
	return s.flush()
}

// Retrieve implements Store.Retrieve
func (s *FileStore) Retrieve(_ context.Context, domain string) (TokenConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return TokenConfig{}, ErrStoreClosed
	}
	cfg, exists := s.records[strings.ToLower(domain)]
	if !exists {
		return TokenConfig{}, ErrNotFound
	}
	return cfg, nil
}

// Delete implements Store.Delete
func (s *FileStore) Delete(_ context.Context, domain string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	key := strings.ToLower(domain)
	if _, exists := s.records[key]; !exists {
		return nil
	}
	delete(s.records, key)
	return s.flush()
}

// List implements Store.List
func (s *FileStore) List(_ context.Context) ([]TokenConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	out := make([]TokenConfig, 0, len(s.records))
	for _, cfg := range s.records {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out, nil
}

// Touch implements Store.Touch
func (s *FileStore) Touch(_ context.Context, domain string, when time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	key := strings.ToLower(domain)
	cfg, exists := s.records[key]
	if !exists {
		return ErrNotFound
	}
	cfg.LastUsed = &when
	s.records[key] = cfg
	return s.flush()
}

// Close implements Store.Close
func (s *FileStore) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.records = nil
	return nil
}
