package mock

import (
	"context"
	"sync"

	"github.com/devesh1011/vyloc-backend-api/internal/domain"
	"github.com/devesh1011/vyloc-backend-api/internal/publisher"
)

// Ensure MockPublisher implements publisher.Publisher.
var _ publisher.Publisher = (*MockPublisher)(nil)

// MockPublisher is a mock message publisher for testing.
type MockPublisher struct {
	mu        sync.Mutex
	Published []*domain.Job
	PublishFn func(ctx context.Context, job *domain.Job) error
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, job *domain.Job) error {
	if m.PublishFn != nil {
		return m.PublishFn(ctx, job)
	}
	m.mu.Lock()
	m.Published = append(m.Published, job)
	m.mu.Unlock()
	return nil
}

func (m *MockPublisher) Close() error {
	return nil
}
