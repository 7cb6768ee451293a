package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// MemoryDedupStore is a mutex-serialized dedup store. With a persist hook it
// backs FileDedupStore.
type MemoryDedupStore struct {
	mu        sync.Mutex
	delivered map[string]bool
	claims    map[string]time.Time
	now       func() time.Time
	persist   func(map[string]bool) error
}

func NewMemoryDedupStore() *MemoryDedupStore {
	return &MemoryDedupStore{
		delivered: make(map[string]bool),
		claims:    make(map[string]time.Time),
		now:       time.Now,
	}
}

func (m *MemoryDedupStore) IsDelivered(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.delivered[key], nil
}

func (m *MemoryDedupStore) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if expires, ok := m.claims[key]; ok && now.Before(expires) {
		return false, nil
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	m.claims[key] = now.Add(ttl)
	return true, nil
}

func (m *MemoryDedupStore) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claims, key)
	return nil
}

func (m *MemoryDedupStore) MarkDelivered(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.delivered[key] = true
	delete(m.claims, key)
	if m.persist != nil {
		if err := m.persist(m.delivered); err != nil {
			delete(m.delivered, key)
			return err
		}
	}
	return nil
}

// FileDedupStore persists delivered flags as a JSON object on disk. Writes go
// through a temp file and rename, serialized by the store mutex, so a single
// process is the only writer.
type FileDedupStore struct {
	*MemoryDedupStore
	path string
}

// NewFileDedupStore loads path if it exists.
func NewFileDedupStore(path string) (*FileDedupStore, error) {
	store := &FileDedupStore{MemoryDedupStore: NewMemoryDedupStore(), path: path}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read dedup file: %w", err)
	case len(raw) > 0:
		if err := json.Unmarshal(raw, &store.delivered); err != nil {
			return nil, fmt.Errorf("decode dedup file: %w", err)
		}
		if store.delivered == nil {
			store.delivered = make(map[string]bool)
		}
	}

	store.persist = store.write
	return store, nil
}

func (f *FileDedupStore) write(delivered map[string]bool) error {
	raw, err := json.MarshalIndent(delivered, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".dedup-*.json")
	if err != nil {
		return fmt.Errorf("write dedup file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write dedup file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write dedup file: %w", err)
	}
	return os.Rename(tmp.Name(), f.path)
}
