package status

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/devesh1011/vyloc-backend-api/internal/domain"
)

const (
	channelKeyPrefix  = "vyloc:job:"
	snapshotKeyPrefix = "vyloc:status:"
)

func channelKey(jobID uuid.UUID) string  { return channelKeyPrefix + jobID.String() }
func snapshotKey(jobID uuid.UUID) string { return snapshotKeyPrefix + jobID.String() }

var _ Channel = (*RedisChannel)(nil)

// RedisChannel implements Channel on Redis pub/sub. Redis preserves publish
// order per channel, which gives the per-job ordering guarantee across
// process boundaries.
type RedisChannel struct {
	client *goredis.Client
}

// NewRedisChannel creates a Redis-backed status channel.
func NewRedisChannel(client *goredis.Client) *RedisChannel {
	return &RedisChannel{client: client}
}

func (c *RedisChannel) Publish(ctx context.Context, evt *domain.StatusEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("status: marshal event: %w", err)
	}
	if err := c.client.Publish(ctx, channelKey(evt.JobID), body).Err(); err != nil {
		return fmt.Errorf("status: publish: %w", err)
	}
	return nil
}

func (c *RedisChannel) Subscribe(ctx context.Context, jobID uuid.UUID) (Subscription, error) {
	pubsub := c.client.Subscribe(ctx, channelKey(jobID))
	// Force the SUBSCRIBE to complete so no event published after this call
	// is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("status: subscribe: %w", err)
	}

	sub := &redisSubscription{
		pubsub: pubsub,
		msgs:   pubsub.Channel(),
		events: make(chan *domain.StatusEvent),
		done:   make(chan struct{}),
	}
	go sub.pump()
	return sub, nil
}

func (c *RedisChannel) Close() error {
	return nil // the redis client is shared and closed by the caller
}

type redisSubscription struct {
	pubsub *goredis.PubSub
	msgs   <-chan *goredis.Message
	events chan *domain.StatusEvent

	done     chan struct{}
	stopOnce sync.Once
}

// pump forwards decoded events until the source drains or the subscription
// closes. The send also selects on done: a consumer that went away must not
// park this goroutine forever.
func (s *redisSubscription) pump() {
	defer close(s.events)
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-s.msgs:
			if !ok {
				return
			}
			evt := &domain.StatusEvent{}
			if err := json.Unmarshal([]byte(msg.Payload), evt); err != nil {
				continue // malformed payload, skip
			}
			select {
			case s.events <- evt:
			case <-s.done:
				return
			}
		}
	}
}

func (s *redisSubscription) Events() <-chan *domain.StatusEvent { return s.events }

func (s *redisSubscription) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

func (s *redisSubscription) Close() error {
	s.stop()
	return s.pubsub.Close()
}

var _ Store = (*RedisStore)(nil)

// RedisStore keeps the latest snapshot per job under a TTL'd key and
// publishes every write on the job's channel, so pollers and live
// subscribers see the same sequence.
type RedisStore struct {
	client  *goredis.Client
	channel Channel
	ttl     time.Duration
}

// NewRedisStore creates a Redis-backed status store publishing into channel.
func NewRedisStore(client *goredis.Client, channel Channel, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, channel: channel, ttl: ttl}
}

func (s *RedisStore) Set(ctx context.Context, evt *domain.StatusEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("status: marshal snapshot: %w", err)
	}
	if err := s.client.Set(ctx, snapshotKey(evt.JobID), body, s.ttl).Err(); err != nil {
		return fmt.Errorf("status: set snapshot: %w", err)
	}
	return s.channel.Publish(ctx, evt)
}

func (s *RedisStore) Get(ctx context.Context, jobID uuid.UUID) (*domain.StatusEvent, error) {
	body, err := s.client.Get(ctx, snapshotKey(jobID)).Bytes()
	if err == goredis.Nil {
		return nil, domain.ErrStatusNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("status: get snapshot: %w", err)
	}
	evt := &domain.StatusEvent{}
	if err := json.Unmarshal(body, evt); err != nil {
		return nil, fmt.Errorf("status: decode snapshot: %w", err)
	}
	return evt, nil
}
