package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/devesh1011/vyloc-backend-api/internal/domain"
	"github.com/devesh1011/vyloc-backend-api/internal/repository"
)

// LocalizeSyncUsecase runs the whole pipeline inside the request instead of
// queueing, for callers that want the result in one round trip. Same
// validation, same credit rules, no queue lease.
type LocalizeSyncUsecase struct {
	repo          repository.JobRepository
	ledger        repository.Ledger
	runner        Runner
	maxImageBytes int
	timeLimit     time.Duration
	logger        *zap.Logger
}

// NewLocalizeSyncUsecase creates a new LocalizeSyncUsecase. timeLimit
// bounds the inline pipeline run.
func NewLocalizeSyncUsecase(
	repo repository.JobRepository,
	ledger repository.Ledger,
	runner Runner,
	maxImageBytes int,
	timeLimit time.Duration,
	logger *zap.Logger,
) *LocalizeSyncUsecase {
	return &LocalizeSyncUsecase{
		repo:          repo,
		ledger:        ledger,
		runner:        runner,
		maxImageBytes: maxImageBytes,
		timeLimit:     timeLimit,
		logger:        logger,
	}
}

// Execute validates, charges eligibility, runs the pipeline inline and
// returns the aggregated result.
func (uc *LocalizeSyncUsecase) Execute(ctx context.Context, req *domain.SubmitRequest) (*domain.JobResult, error) {
	if err := req.Validate(uc.maxImageBytes); err != nil {
		return nil, err
	}
	if err := uc.ledger.CheckEligible(ctx, req.OwnerID, len(req.Targets)); err != nil {
		return nil, err
	}

	jobID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate UUIDv7: %w", err)
	}

	job := &domain.Job{
		JobID:           jobID,
		OwnerID:         req.OwnerID,
		Targets:         req.Targets,
		SourceLanguage:  req.SourceLanguage,
		RemoveWatermark: req.RemoveWatermark,
		ContentType:     req.ContentType,
		Status:          domain.StatusProcessing,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}
	if err := uc.repo.Create(ctx, job); err != nil {
		uc.logger.Error("Failed to create job in database", zap.Error(err), zap.String("job_id", jobID.String()))
		return nil, fmt.Errorf("create job: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, uc.timeLimit)
	defer cancel()

	result, err := uc.runner.Run(runCtx, job, req.Image)
	if err != nil {
		uc.logger.Error("Inline pipeline run failed", zap.Error(err), zap.String("job_id", jobID.String()))
		_ = uc.repo.UpdateStatus(ctx, jobID, domain.StatusFailed)
		return nil, fmt.Errorf("run pipeline: %w", err)
	}

	errorMessage := ""
	if result.Status == domain.StatusFailed {
		errorMessage = "all targets failed"
	}
	if err := uc.repo.SetResult(ctx, jobID, result, errorMessage); err != nil {
		uc.logger.Error("Failed to store result", zap.Error(err), zap.String("job_id", jobID.String()))
	}
	if result.CreditsUsed > 0 {
		if err := uc.ledger.Deduct(ctx, req.OwnerID, jobID, result.CreditsUsed); err != nil {
			uc.logger.Error("Failed to deduct credits", zap.Error(err), zap.String("job_id", jobID.String()))
		}
	}

	uc.logger.Info("Synchronous localization finished",
		zap.String("job_id", jobID.String()),
		zap.String("status", string(result.Status)),
		zap.Int("completed", result.CompletedCount()),
	)
	return result, nil
}
