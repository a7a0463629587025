// Package configstore holds the runtime configuration blob (for example a
// decision threshold). The blob is any decoded JSON value, schema-free, and
// lives only in memory.
package configstore

import "sync"

// Store is a goroutine-safe holder for the current blob.
type Store struct {
	mu   sync.RWMutex
	blob any
}

// New creates a Store holding an empty JSON object.
func New() *Store {
	return &Store{blob: map[string]any{}}
}

// Update replaces the stored value wholesale and returns the stored value.
// Objects are not merged and nothing is validated; arrays, scalars and null
// are kept as given.
func (s *Store) Update(v any) any {
	next := clone(v)

	s.mu.Lock()
	s.blob = next
	s.mu.Unlock()

	return clone(next)
}

// Snapshot returns a copy of the stored value.
func (s *Store) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.blob)
}

// clone copies the containers produced by encoding/json so callers never
// share them with the store.
func clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = clone(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = clone(e)
		}
		return out
	default:
		return v
	}
}
