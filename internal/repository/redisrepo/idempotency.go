// Package redisrepo implements Redis-backed repository pieces.
package redisrepo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/devesh1011/vyloc-backend-api/internal/repository"
)

var _ repository.IdempotencyStore = (*redisIdempotency)(nil)

const (
	lockKeyPrefix = "vyloc:lock:"
	lockTTL       = 10 * time.Minute
)

type redisIdempotency struct {
	client *goredis.Client
}

// NewIdempotencyStore creates a Redis-backed idempotency store.
func NewIdempotencyStore(client *goredis.Client) repository.IdempotencyStore {
	return &redisIdempotency{client: client}
}

// AcquireLock uses Redis SETNX to atomically acquire a processing lock.
func (r *redisIdempotency) AcquireLock(ctx context.Context, jobID uuid.UUID) (bool, error) {
	key := lockKeyPrefix + jobID.String()
	ok, err := r.client.SetNX(ctx, key, time.Now().Unix(), lockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("redis: acquire lock: %w", err)
	}
	return ok, nil
}

// ReleaseLock deletes the lock so a retried delivery can reprocess the
// job. Post-completion dedup is covered by the terminal status check, not
// by the lock.
func (r *redisIdempotency) ReleaseLock(ctx context.Context, jobID uuid.UUID) error {
	key := lockKeyPrefix + jobID.String()
	return r.client.Del(ctx, key).Err()
}
