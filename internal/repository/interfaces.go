// Package repository defines the persistence interfaces shared by the API
// server and the worker.
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/devesh1011/vyloc-backend-api/internal/domain"
)

// JobRepository defines the interface for job persistence operations.
// Implementations must be safe for concurrent use.
type JobRepository interface {
	// Create inserts a new job into the data store.
	Create(ctx context.Context, job *domain.Job) error

	// GetByID retrieves a job by its UUID.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// UpdateStatus moves a job's status forward. Backward moves and moves
	// out of a terminal state return domain.ErrInvalidTransition.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus) error

	// SetResult stores the aggregated result and terminal status for a job.
	SetResult(ctx context.Context, id uuid.UUID, result *domain.JobResult, errorMessage string) error
}

// Ledger manages owner credit balances. One credit covers one target.
type Ledger interface {
	// Balance returns the owner's current credit balance.
	Balance(ctx context.Context, ownerID string) (int, error)

	// CheckEligible verifies the owner can cover required credits. Returns
	// domain.ErrInsufficientCredits when the balance is too low.
	CheckEligible(ctx context.Context, ownerID string, required int) error

	// Deduct subtracts amount from the owner's balance, keyed by job id.
	// Calling it again with the same job id is a no-op, so redelivered jobs
	// are charged at most once.
	Deduct(ctx context.Context, ownerID string, jobID uuid.UUID, amount int) error
}

// IdempotencyStore defines the interface for distributed deduplication locks.
type IdempotencyStore interface {
	// AcquireLock attempts to acquire an exclusive processing lock for a job.
	// Returns true if the lock was acquired (first time), false if already locked (duplicate).
	AcquireLock(ctx context.Context, jobID uuid.UUID) (bool, error)

	// ReleaseLock releases the processing lock so the job can be retried.
	ReleaseLock(ctx context.Context, jobID uuid.UUID) error
}
