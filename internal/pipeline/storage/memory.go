package storage

import (
	"context"
	"sync"

	"github.com/devesh1011/vyloc-backend-api/internal/pipeline"
)

var _ pipeline.ObjectStore = (*MemoryStore)(nil)

// MemoryStore keeps objects in a map. It backs local development when no
// bucket is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryStore creates an empty in-memory object store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (s *MemoryStore) Put(_ context.Context, path, _ string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	s.objects[path] = buf
	return "memory://" + path, nil
}

// Get returns a stored object.
func (s *MemoryStore) Get(path string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[path]
	return data, ok
}
