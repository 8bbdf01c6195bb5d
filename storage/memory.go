package storage

import (
	"context"
	"sort"
	"sync"
)

// MemorySink keeps artifacts in memory, keyed by relative path.
type MemorySink struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{data: make(map[string][]byte)}
}

// Save stores a copy of data.
func (s *MemorySink) Save(_ context.Context, kind Kind, data []byte, name string) (string, error) {
	rel, err := kind.RelativePath(name)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[rel] = append([]byte(nil), data...)
	return "mem://" + rel, nil
}

// Get returns the stored bytes for a relative path.
func (s *MemorySink) Get(rel string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.data[rel]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), raw...), true
}

// Keys returns every stored relative path, sorted.
func (s *MemorySink) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var _ Sink = (*MemorySink)(nil)
