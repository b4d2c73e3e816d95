package store

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/layer-3/gatekeeper/core"
	"github.com/layer-3/gatekeeper/ports"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore is an in-memory implementation of the Store interface
type MemoryStore struct {
	entries map[string]memoryEntry
	mu      sync.Mutex
	now     func() time.Time
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() ports.Store {
	return newMemoryStore(time.Now)
}

func newMemoryStore(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     now,
	}
}

// Set stores a value until ttl elapses
func (s *MemoryStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.set(key, value, ttl)
	return nil
}

// set stores the entry and schedules its eviction; s.mu must be held
func (s *MemoryStore) set(key, value string, ttl time.Duration) {
	expiresAt := s.now().Add(ttl)
	s.entries[key] = memoryEntry{value: value, expiresAt: expiresAt}

	// Evict once expired, unless the key was overwritten meanwhile
	time.AfterFunc(ttl, func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if stored, exists := s.entries[key]; exists && !stored.expiresAt.After(expiresAt) {
			delete(s.entries, key)
		}
	})
}

// Get retrieves a live value
func (s *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.live(key)
	if !ok {
		return "", core.ErrNotFound
	}
	return entry.value, nil
}

// Delete removes a key
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// Take retrieves and removes a key under a single lock
func (s *MemoryStore) Take(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.live(key)
	if !ok {
		return "", core.ErrNotFound
	}
	delete(s.entries, key)
	return entry.value, nil
}

// Incr increments a counter under a single lock
func (s *MemoryStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.live(key)
	if !ok {
		if ttl <= 0 {
			return 0, fmt.Errorf("incr %s: ttl must be positive: %w", key, core.ErrStoreOperationFailed)
		}
		s.set(key, "1", ttl)
		return 1, nil
	}

	n, err := strconv.ParseInt(entry.value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w: value is not a counter", key, core.ErrStoreOperationFailed)
	}
	n++
	entry.value = strconv.FormatInt(n, 10)
	s.entries[key] = entry
	return n, nil
}

func (s *MemoryStore) live(key string) (memoryEntry, bool) {
	entry, ok := s.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.entries, key)
		return memoryEntry{}, false
	}
	return entry, true
}
