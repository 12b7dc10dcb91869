// Package mock provides in-memory collaborator fakes for pipeline tests.
package mock

import (
	"context"
	"sync"

	"github.com/devesh1011/vyloc-backend-api/internal/domain"
	"github.com/devesh1011/vyloc-backend-api/internal/pipeline"
)

var _ pipeline.Generator = (*Generator)(nil)

// Generator is a fake generation collaborator.
type Generator struct {
	// GenerateFn overrides the default behavior (echo a marker payload).
	GenerateFn func(ctx context.Context, target domain.Target, sourceLanguage string, image []byte) ([]byte, error)

	mu    sync.Mutex
	Calls []domain.Target
}

func (g *Generator) Generate(ctx context.Context, target domain.Target, sourceLanguage string, image []byte) ([]byte, error) {
	g.mu.Lock()
	g.Calls = append(g.Calls, target)
	g.mu.Unlock()
	if g.GenerateFn != nil {
		return g.GenerateFn(ctx, target, sourceLanguage, image)
	}
	return append([]byte("generated:"), image...), nil
}

// CallCount returns how many times Generate was invoked.
func (g *Generator) CallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Calls)
}

var _ pipeline.Cleaner = (*Cleaner)(nil)

// Cleaner is a fake watermark-removal collaborator.
type Cleaner struct {
	CleanFn func(ctx context.Context, image []byte) ([]byte, error)

	mu    sync.Mutex
	Calls int
}

func (c *Cleaner) Clean(ctx context.Context, image []byte) ([]byte, error) {
	c.mu.Lock()
	c.Calls++
	c.mu.Unlock()
	if c.CleanFn != nil {
		return c.CleanFn(ctx, image)
	}
	return append([]byte("cleaned:"), image...), nil
}

var _ pipeline.ObjectStore = (*ObjectStore)(nil)

// ObjectStore is a fake object store recording every Put by path.
type ObjectStore struct {
	PutFn func(ctx context.Context, path, contentType string, data []byte) (string, error)

	mu      sync.Mutex
	Objects map[string][]byte
}

func (s *ObjectStore) Put(ctx context.Context, path, contentType string, data []byte) (string, error) {
	if s.PutFn != nil {
		return s.PutFn(ctx, path, contentType, data)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Objects == nil {
		s.Objects = make(map[string][]byte)
	}
	s.Objects[path] = data
	return "https://storage.test/" + path, nil
}

// Get returns a stored object for test assertions.
func (s *ObjectStore) Get(path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.Objects[path]
	return data, ok
}
