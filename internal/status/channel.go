// Package status implements the job status subsystem: a per-job pub/sub
// channel, the authoritative latest-snapshot store, and the connection
// manager that relays events to live observers.
package status

import (
	"context"

	"github.com/google/uuid"

	"github.com/devesh1011/vyloc-backend-api/internal/domain"
)

// Channel is a keyed publish/subscribe primitive with one logical channel
// per job. Events published for a job are delivered to every subscriber of
// that job, in publish order. Publish/subscribe never crosses job
// boundaries.
type Channel interface {
	// Publish sends an event to all current subscribers of the job.
	Publish(ctx context.Context, evt *domain.StatusEvent) error

	// Subscribe attaches to a job's event stream. The returned subscription
	// receives every event published after the call, until Close.
	Subscribe(ctx context.Context, jobID uuid.UUID) (Subscription, error)

	// Close releases the channel's resources.
	Close() error
}

// Subscription is one attached listener on a job's channel.
type Subscription interface {
	// Events returns the stream of incoming events. The channel is closed
	// when the subscription ends.
	Events() <-chan *domain.StatusEvent

	// Close detaches the subscription.
	Close() error
}

// Store is the authoritative, queryable record of a job's latest status
// snapshot. A job has exactly one writer (the worker owning it), so writes
// are last-write-wins with no conflict. Entries expire after a bounded
// retention window.
type Store interface {
	// Set overwrites the latest snapshot for the event's job and publishes
	// the same event on the job's channel.
	Set(ctx context.Context, evt *domain.StatusEvent) error

	// Get returns the latest snapshot for a job, or domain.ErrStatusNotFound.
	Get(ctx context.Context, jobID uuid.UUID) (*domain.StatusEvent, error)
}
