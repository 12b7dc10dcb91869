// Package mock provides test doubles for the repository interfaces.
package mock

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/devesh1011/vyloc-backend-api/internal/domain"
	"github.com/devesh1011/vyloc-backend-api/internal/repository"
)

// ---- JobRepository mock ----

var _ repository.JobRepository = (*JobRepository)(nil)

// JobRepository is a test double for repository.JobRepository.
type JobRepository struct {
	mu sync.Mutex

	CreateFn       func(ctx context.Context, job *domain.Job) error
	GetByIDFn      func(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	UpdateStatusFn func(ctx context.Context, id uuid.UUID, status domain.JobStatus) error
	SetResultFn    func(ctx context.Context, id uuid.UUID, result *domain.JobResult, errorMessage string) error

	// Recorded calls for assertions.
	Created       []*domain.Job
	StatusUpdates []StatusUpdate
	Results       []ResultUpdate
}

type StatusUpdate struct {
	ID     uuid.UUID
	Status domain.JobStatus
}

type ResultUpdate struct {
	ID           uuid.UUID
	Result       *domain.JobResult
	ErrorMessage string
}

func (m *JobRepository) Create(ctx context.Context, job *domain.Job) error {
	m.mu.Lock()
	m.Created = append(m.Created, job)
	m.mu.Unlock()
	if m.CreateFn != nil {
		return m.CreateFn(ctx, job)
	}
	return nil
}

func (m *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return nil, domain.ErrJobNotFound
}

func (m *JobRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus) error {
	m.mu.Lock()
	m.StatusUpdates = append(m.StatusUpdates, StatusUpdate{ID: id, Status: status})
	m.mu.Unlock()
	if m.UpdateStatusFn != nil {
		return m.UpdateStatusFn(ctx, id, status)
	}
	return nil
}

func (m *JobRepository) SetResult(ctx context.Context, id uuid.UUID, result *domain.JobResult, errorMessage string) error {
	m.mu.Lock()
	m.Results = append(m.Results, ResultUpdate{ID: id, Result: result, ErrorMessage: errorMessage})
	m.mu.Unlock()
	if m.SetResultFn != nil {
		return m.SetResultFn(ctx, id, result, errorMessage)
	}
	return nil
}

// ---- Ledger mock ----

var _ repository.Ledger = (*Ledger)(nil)

// Ledger is a test double for repository.Ledger. The default balance is
// generous; set BalanceFn or CheckEligibleFn to simulate poverty.
type Ledger struct {
	mu sync.Mutex

	BalanceFn       func(ctx context.Context, ownerID string) (int, error)
	CheckEligibleFn func(ctx context.Context, ownerID string, required int) error
	DeductFn        func(ctx context.Context, ownerID string, jobID uuid.UUID, amount int) error

	Deductions []Deduction
}

type Deduction struct {
	OwnerID string
	JobID   uuid.UUID
	Amount  int
}

func (m *Ledger) Balance(ctx context.Context, ownerID string) (int, error) {
	if m.BalanceFn != nil {
		return m.BalanceFn(ctx, ownerID)
	}
	return 1000, nil
}

func (m *Ledger) CheckEligible(ctx context.Context, ownerID string, required int) error {
	if m.CheckEligibleFn != nil {
		return m.CheckEligibleFn(ctx, ownerID, required)
	}
	return nil
}

func (m *Ledger) Deduct(ctx context.Context, ownerID string, jobID uuid.UUID, amount int) error {
	m.mu.Lock()
	m.Deductions = append(m.Deductions, Deduction{OwnerID: ownerID, JobID: jobID, Amount: amount})
	m.mu.Unlock()
	if m.DeductFn != nil {
		return m.DeductFn(ctx, ownerID, jobID, amount)
	}
	return nil
}

// DeductionCount returns how many times Deduct was invoked.
func (m *Ledger) DeductionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Deductions)
}

// ---- IdempotencyStore mock ----

var _ repository.IdempotencyStore = (*IdempotencyStore)(nil)

// IdempotencyStore is a test double for repository.IdempotencyStore.
type IdempotencyStore struct {
	mu sync.Mutex

	AcquireLockFn func(ctx context.Context, jobID uuid.UUID) (bool, error)
	ReleaseLockFn func(ctx context.Context, jobID uuid.UUID) error

	AcquireCalls []uuid.UUID
	ReleaseCalls []uuid.UUID
}

func (m *IdempotencyStore) AcquireLock(ctx context.Context, jobID uuid.UUID) (bool, error) {
	m.mu.Lock()
	m.AcquireCalls = append(m.AcquireCalls, jobID)
	m.mu.Unlock()
	if m.AcquireLockFn != nil {
		return m.AcquireLockFn(ctx, jobID)
	}
	return true, nil // default: lock acquired
}

func (m *IdempotencyStore) ReleaseLock(ctx context.Context, jobID uuid.UUID) error {
	m.mu.Lock()
	m.ReleaseCalls = append(m.ReleaseCalls, jobID)
	m.mu.Unlock()
	if m.ReleaseLockFn != nil {
		return m.ReleaseLockFn(ctx, jobID)
	}
	return nil
}
