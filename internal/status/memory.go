package status

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/devesh1011/vyloc-backend-api/internal/domain"
)

// subscriberBuffer bounds how far a slow in-process subscriber may lag
// before it is dropped.
const subscriberBuffer = 64

var _ Channel = (*MemoryChannel)(nil)

// MemoryChannel is an in-process Channel used by the synchronous pipeline
// and by tests. Delivery preserves publish order per job; a subscriber that
// falls more than subscriberBuffer events behind is dropped.
type MemoryChannel struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]map[*memorySubscription]struct{}
}

// NewMemoryChannel creates an in-memory status channel.
func NewMemoryChannel() *MemoryChannel {
	return &MemoryChannel{subs: make(map[uuid.UUID]map[*memorySubscription]struct{})}
}

func (c *MemoryChannel) Publish(_ context.Context, evt *domain.StatusEvent) error {
	c.mu.RLock()
	targets := make([]*memorySubscription, 0, len(c.subs[evt.JobID]))
	for sub := range c.subs[evt.JobID] {
		targets = append(targets, sub)
	}
	c.mu.RUnlock()

	for _, sub := range targets {
		select {
		case sub.events <- evt:
		default:
			// Subscriber stalled; treat as disconnected.
			c.remove(evt.JobID, sub)
		}
	}
	return nil
}

func (c *MemoryChannel) Subscribe(_ context.Context, jobID uuid.UUID) (Subscription, error) {
	sub := &memorySubscription{
		channel: c,
		jobID:   jobID,
		events:  make(chan *domain.StatusEvent, subscriberBuffer),
	}
	c.mu.Lock()
	if c.subs[jobID] == nil {
		c.subs[jobID] = make(map[*memorySubscription]struct{})
	}
	c.subs[jobID][sub] = struct{}{}
	c.mu.Unlock()
	return sub, nil
}

func (c *MemoryChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for jobID, subs := range c.subs {
		for sub := range subs {
			sub.closeOnce.Do(func() { close(sub.events) })
		}
		delete(c.subs, jobID)
	}
	return nil
}

func (c *MemoryChannel) remove(jobID uuid.UUID, sub *memorySubscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if subs, ok := c.subs[jobID]; ok {
		if _, ok := subs[sub]; ok {
			delete(subs, sub)
			if len(subs) == 0 {
				delete(c.subs, jobID)
			}
			sub.closeOnce.Do(func() { close(sub.events) })
		}
	}
}

type memorySubscription struct {
	channel   *MemoryChannel
	jobID     uuid.UUID
	events    chan *domain.StatusEvent
	closeOnce sync.Once
}

func (s *memorySubscription) Events() <-chan *domain.StatusEvent { return s.events }

func (s *memorySubscription) Close() error {
	s.channel.remove(s.jobID, s)
	return nil
}

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-process Store for the synchronous pipeline and tests.
// Retention is unbounded; callers are expected to be short-lived.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[uuid.UUID]*domain.StatusEvent
	channel   Channel
}

// NewMemoryStore creates an in-memory status store publishing into channel.
func NewMemoryStore(channel Channel) *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[uuid.UUID]*domain.StatusEvent),
		channel:   channel,
	}
}

func (s *MemoryStore) Set(ctx context.Context, evt *domain.StatusEvent) error {
	s.mu.Lock()
	s.snapshots[evt.JobID] = evt
	s.mu.Unlock()
	return s.channel.Publish(ctx, evt)
}

func (s *MemoryStore) Get(_ context.Context, jobID uuid.UUID) (*domain.StatusEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	evt, ok := s.snapshots[jobID]
	if !ok {
		return nil, domain.ErrStatusNotFound
	}
	return evt, nil
}
