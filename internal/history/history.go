// Package history keeps the bounded, deduplicated record of recently viewed
// content IDs. The record survives restarts through a key/value backend.
package history

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Key is the fixed namespace the history is persisted under.
const Key = "thinktok_viewed_history"

// Capacity is the maximum number of remembered IDs.
const Capacity = 10

// Backend persists a single string value per key.
// *store.Store satisfies it.
type Backend interface {
	GetValue(key string) (string, bool, error)
	SetValue(key, value string) error
}

// Store is the in-memory view of the persisted history, most recent first.
// Only Add mutates it. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	backend Backend
	entries []string
}

// Load reads the persisted history. A missing, unreadable or malformed record
// yields an empty history; Load never fails. The error is returned only so
// callers can log why the history was reset (nil when nothing went wrong).
func Load(backend Backend) (*Store, error) {
	s := &Store{backend: backend}

	raw, ok, err := backend.GetValue(Key)
	if err != nil {
		return s, fmt.Errorf("read history: %w", err)
	}
	if !ok {
		return s, nil
	}

	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return s, fmt.Errorf("decode history: %w", err)
	}
	s.entries = normalize(ids)
	return s, nil
}

// normalize drops empty and repeated IDs (first occurrence wins) and caps
// the result at Capacity.
func normalize(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, Capacity)
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
		if len(out) == Capacity {
			break
		}
	}
	return out
}

// Add moves id to the front, truncates to Capacity and persists the result
// synchronously. The in-memory copy is updated even when persisting fails.
func (s *Store) Add(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := make([]string, 0, Capacity)
	updated = append(updated, id)
	for _, existing := range s.entries {
		if existing == id {
			continue
		}
		if len(updated) == Capacity {
			break
		}
		updated = append(updated, existing)
	}
	s.entries = updated

	data, err := json.Marshal(updated)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := s.backend.SetValue(Key, string(data)); err != nil {
		return fmt.Errorf("persist history: %w", err)
	}
	return nil
}

// Contains reports whether id was viewed recently.
func (s *Store) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, existing := range s.entries {
		if existing == id {
			return true
		}
	}
	return false
}

// Entries returns a copy of the history, most recent first.
func (s *Store) Entries() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of remembered IDs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// MemoryBackend is a map-backed Backend for tests and ephemeral sessions.
type MemoryBackend struct {
	mu     sync.Mutex
	values map[string]string
	// Err, when set, is returned by every call.
	Err error
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: make(map[string]string)}
}

// GetValue implements Backend.
func (m *MemoryBackend) GetValue(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", false, m.Err
	}
	v, ok := m.values[key]
	return v, ok, nil
}

// SetValue implements Backend.
func (m *MemoryBackend) SetValue(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.values[key] = value
	return nil
}
