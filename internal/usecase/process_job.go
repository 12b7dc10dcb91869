package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/devesh1011/vyloc-backend-api/internal/domain"
	"github.com/devesh1011/vyloc-backend-api/internal/repository"
	"github.com/devesh1011/vyloc-backend-api/internal/status"
)

// Runner executes a job's full target pipeline and aggregates the outcome.
type Runner interface {
	Run(ctx context.Context, job *domain.Job, image []byte) (*domain.JobResult, error)
}

// Outcome tells the worker pool how to settle the message lease.
type Outcome int

const (
	// OutcomeCompleted: job reached a terminal state, ack.
	OutcomeCompleted Outcome = iota
	// OutcomeDuplicate: another delivery already handled the job, ack.
	OutcomeDuplicate
	// OutcomeRetry: transient failure, nack into the backoff hop.
	OutcomeRetry
	// OutcomeFailed: retries exhausted, job marked failed, ack.
	OutcomeFailed
)

// ProcessJobUsecase orchestrates one delivery of a job on the worker:
// idempotency lock, pipeline run under the job time limits, result
// persistence, credit deduction and the terminal status event.
type ProcessJobUsecase struct {
	repo       repository.JobRepository
	ledger     repository.Ledger
	idempotent repository.IdempotencyStore
	runner     Runner
	statuses   status.Store
	maxRetries int
	softLimit  time.Duration
	hardLimit  time.Duration
	logger     *zap.Logger
}

// NewProcessJobUsecase creates a new ProcessJobUsecase. maxRetries is the
// redelivery ceiling; softLimit bounds the pipeline run and hardLimit the
// whole delivery including persistence.
func NewProcessJobUsecase(
	repo repository.JobRepository,
	ledger repository.Ledger,
	idempotent repository.IdempotencyStore,
	runner Runner,
	statuses status.Store,
	maxRetries int,
	softLimit, hardLimit time.Duration,
	logger *zap.Logger,
) *ProcessJobUsecase {
	return &ProcessJobUsecase{
		repo:       repo,
		ledger:     ledger,
		idempotent: idempotent,
		runner:     runner,
		statuses:   statuses,
		maxRetries: maxRetries,
		softLimit:  softLimit,
		hardLimit:  hardLimit,
		logger:     logger,
	}
}

// Execute processes a single delivery and reports how to settle it.
func (uc *ProcessJobUsecase) Execute(ctx context.Context, msg *domain.JobMessage) (Outcome, error) {
	job := msg.Job

	ctx, cancel := context.WithTimeout(ctx, uc.hardLimit)
	defer cancel()

	// Step 1: Idempotency lock — another worker may hold this delivery.
	acquired, err := uc.idempotent.AcquireLock(ctx, job.JobID)
	if err != nil {
		uc.logger.Error("Failed to acquire idempotency lock", zap.Error(err), zap.String("job_id", job.JobID.String()))
		return uc.failOrRetry(ctx, msg, fmt.Errorf("acquire lock: %w", err))
	}
	if !acquired {
		uc.logger.Info("Job locked by another worker, skipping", zap.String("job_id", job.JobID.String()))
		return OutcomeDuplicate, nil
	}
	defer func() {
		if err := uc.idempotent.ReleaseLock(context.WithoutCancel(ctx), job.JobID); err != nil {
			uc.logger.Warn("Failed to release idempotency lock", zap.Error(err), zap.String("job_id", job.JobID.String()))
		}
	}()

	// Step 2: Terminal check — a redelivery after a completed run must not
	// execute (or charge) again.
	stored, err := uc.repo.GetByID(ctx, job.JobID)
	if err == nil && stored.Status.IsTerminal() {
		uc.logger.Info("Job already terminal, skipping redelivery",
			zap.String("job_id", job.JobID.String()),
			zap.String("status", string(stored.Status)))
		return OutcomeDuplicate, nil
	}

	// Step 3: Mark processing and announce it.
	if err := uc.repo.UpdateStatus(ctx, job.JobID, domain.StatusProcessing); err != nil {
		uc.logger.Error("Failed to update job status", zap.Error(err), zap.String("job_id", job.JobID.String()))
		return uc.failOrRetry(ctx, msg, fmt.Errorf("mark processing: %w", err))
	}
	uc.setStatus(ctx, &domain.StatusEvent{
		JobID:    job.JobID,
		Status:   domain.StatusProcessing,
		Progress: 5,
		Message:  "Processing started",
	})

	// Step 4: Run the pipeline under the soft time limit.
	runCtx, cancelRun := context.WithTimeout(ctx, uc.softLimit)
	result, err := uc.runner.Run(runCtx, job, job.SourcePayload)
	cancelRun()
	if err != nil {
		uc.logger.Error("Pipeline run failed", zap.Error(err), zap.String("job_id", job.JobID.String()))
		return uc.failOrRetry(ctx, msg, fmt.Errorf("run pipeline: %w", err))
	}

	// Step 5: Persist the aggregated result.
	errorMessage := ""
	if result.Status == domain.StatusFailed {
		errorMessage = "all targets failed"
	}
	if err := uc.repo.SetResult(ctx, job.JobID, result, errorMessage); err != nil {
		uc.logger.Error("Failed to store result", zap.Error(err), zap.String("job_id", job.JobID.String()))
		return uc.failOrRetry(ctx, msg, fmt.Errorf("set result: %w", err))
	}

	// Step 6: Charge for completed targets. Deduction is idempotent per job
	// id, so a crash between here and the ack cannot double-charge.
	if result.CreditsUsed > 0 {
		if err := uc.ledger.Deduct(ctx, job.OwnerID, job.JobID, result.CreditsUsed); err != nil {
			uc.logger.Error("Failed to deduct credits",
				zap.Error(err),
				zap.String("job_id", job.JobID.String()),
				zap.Int("amount", result.CreditsUsed))
		}
	}

	// Step 7: Terminal status event closes every live subscription.
	uc.setStatus(ctx, &domain.StatusEvent{
		JobID:    job.JobID,
		Status:   result.Status,
		Progress: 100,
		Message:  "Job finished",
		Result:   result,
		Error:    errorMessage,
	})

	uc.logger.Info("Job processed",
		zap.String("job_id", job.JobID.String()),
		zap.String("status", string(result.Status)),
		zap.Int("completed", result.CompletedCount()),
		zap.Int64("total_ms", result.TotalProcessingTimeMs),
	)
	return OutcomeCompleted, nil
}

// failOrRetry decides between another redelivery and terminal failure.
// Attempts past the retry ceiling mark the job failed so it cannot cycle
// through the queue forever.
func (uc *ProcessJobUsecase) failOrRetry(ctx context.Context, msg *domain.JobMessage, cause error) (Outcome, error) {
	if msg.Attempt < uc.maxRetries {
		uc.logger.Warn("Job will be retried",
			zap.String("job_id", msg.Job.JobID.String()),
			zap.Int("attempt", msg.Attempt),
			zap.Int("max_retries", uc.maxRetries),
			zap.Error(cause))
		return OutcomeRetry, cause
	}

	// Retries exhausted. Use a detached context: the hard limit may already
	// have expired, but the terminal state must still be recorded.
	failCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	errorMessage := fmt.Sprintf("%v: %v", domain.ErrRetryExhausted, cause)
	if err := uc.repo.UpdateStatus(failCtx, msg.Job.JobID, domain.StatusFailed); err != nil {
		uc.logger.Error("Failed to mark job failed", zap.Error(err), zap.String("job_id", msg.Job.JobID.String()))
	}
	uc.setStatus(failCtx, &domain.StatusEvent{
		JobID:    msg.Job.JobID,
		Status:   domain.StatusFailed,
		Progress: 100,
		Message:  "Job failed",
		Error:    errorMessage,
	})

	uc.logger.Error("Job failed after exhausting retries",
		zap.String("job_id", msg.Job.JobID.String()),
		zap.Int("attempt", msg.Attempt),
		zap.Error(cause))
	return OutcomeFailed, cause
}

func (uc *ProcessJobUsecase) setStatus(ctx context.Context, evt *domain.StatusEvent) {
	if err := uc.statuses.Set(ctx, evt); err != nil {
		uc.logger.Warn("Failed to publish status event",
			zap.String("job_id", evt.JobID.String()), zap.Error(err))
	}
}
