package facts

import (
	"context"
	"sync"
)

// MemoryStore keeps facts in insertion order. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	project Project
	values  []Value
	byPath  map[string][]int
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byPath: make(map[string][]int)}
}

// SetProject records the project fields.
func (s *MemoryStore) SetProject(p Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.project = p
}

// Add appends values.
func (s *MemoryStore) Add(values ...Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range values {
		s.byPath[v.Path] = append(s.byPath[v.Path], len(s.values))
		s.values = append(s.values, v)
	}
}

// All returns every stored value in insertion order.
func (s *MemoryStore) All() []Value {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Value, len(s.values))
	copy(out, s.values)
	return out
}

func (s *MemoryStore) Project(_ context.Context) (Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.project, nil
}

func (s *MemoryStore) Values(_ context.Context, path string, q Query) ([]Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Value
	for _, i := range s.byPath[path] {
		if v := s.values[i]; q.Match(v) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
