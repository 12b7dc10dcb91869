package usecase

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/devesh1011/vyloc-backend-api/internal/domain"
	"github.com/devesh1011/vyloc-backend-api/internal/repository"
	"github.com/devesh1011/vyloc-backend-api/internal/status"
)

// GetJobUsecase handles fetching the durable job record.
type GetJobUsecase struct {
	repo   repository.JobRepository
	logger *zap.Logger
}

// NewGetJobUsecase creates a new GetJobUsecase.
func NewGetJobUsecase(repo repository.JobRepository, logger *zap.Logger) *GetJobUsecase {
	return &GetJobUsecase{
		repo:   repo,
		logger: logger,
	}
}

// Execute retrieves a job by its ID.
func (uc *GetJobUsecase) Execute(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	job, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		uc.logger.Debug("Job not found", zap.String("job_id", id.String()), zap.Error(err))
		return nil, domain.ErrJobNotFound
	}
	return job, nil
}

// GetStatusUsecase serves the latest status snapshot for polling clients.
type GetStatusUsecase struct {
	statuses status.Store
	logger   *zap.Logger
}

// NewGetStatusUsecase creates a new GetStatusUsecase.
func NewGetStatusUsecase(statuses status.Store, logger *zap.Logger) *GetStatusUsecase {
	return &GetStatusUsecase{
		statuses: statuses,
		logger:   logger,
	}
}

// Execute returns the most recent status event for the job, or
// domain.ErrStatusNotFound when the snapshot expired or never existed.
func (uc *GetStatusUsecase) Execute(ctx context.Context, id uuid.UUID) (*domain.StatusEvent, error) {
	evt, err := uc.statuses.Get(ctx, id)
	if err != nil {
		uc.logger.Debug("No status snapshot", zap.String("job_id", id.String()), zap.Error(err))
		return nil, err
	}
	return evt, nil
}
