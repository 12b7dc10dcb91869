// Package usecase holds the application services for submission, lookup
// and job processing.
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/devesh1011/vyloc-backend-api/internal/domain"
	"github.com/devesh1011/vyloc-backend-api/internal/publisher"
	"github.com/devesh1011/vyloc-backend-api/internal/repository"
	"github.com/devesh1011/vyloc-backend-api/internal/status"
)

// SubmitJobUsecase handles asynchronous job submission: validate, check
// credits, persist, enqueue.
type SubmitJobUsecase struct {
	repo          repository.JobRepository
	ledger        repository.Ledger
	publisher     publisher.Publisher
	statuses      status.Store
	maxImageBytes int
	logger        *zap.Logger
}

// NewSubmitJobUsecase creates a new SubmitJobUsecase.
func NewSubmitJobUsecase(
	repo repository.JobRepository,
	ledger repository.Ledger,
	pub publisher.Publisher,
	statuses status.Store,
	maxImageBytes int,
	logger *zap.Logger,
) *SubmitJobUsecase {
	return &SubmitJobUsecase{
		repo:          repo,
		ledger:        ledger,
		publisher:     pub,
		statuses:      statuses,
		maxImageBytes: maxImageBytes,
		logger:        logger,
	}
}

// Execute validates the submission, verifies the owner can cover one credit
// per target, creates the job and publishes it to the work queue.
func (uc *SubmitJobUsecase) Execute(ctx context.Context, req *domain.SubmitRequest) (*domain.SubmitResponse, error) {
	if err := req.Validate(uc.maxImageBytes); err != nil {
		return nil, err
	}

	if err := uc.ledger.CheckEligible(ctx, req.OwnerID, len(req.Targets)); err != nil {
		return nil, err
	}

	// Generate UUIDv7 (time-ordered)
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
		SourcePayload:   req.Image,
		Status:          domain.StatusQueued,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}

	// Persist to PostgreSQL
	if err := uc.repo.Create(ctx, job); err != nil {
		uc.logger.Error("Failed to create job in database", zap.Error(err), zap.String("job_id", jobID.String()))
		return nil, fmt.Errorf("create job: %w", err)
	}

	// Publish to RabbitMQ
	if err := uc.publisher.Publish(ctx, job); err != nil {
		uc.logger.Error("Failed to publish job to queue", zap.Error(err), zap.String("job_id", jobID.String()))
		// The job will never be processed; fail it so pollers see a terminal state.
		_ = uc.repo.UpdateStatus(ctx, jobID, domain.StatusFailed)
		return nil, domain.ErrPublishFailed
	}

	// Seed the status snapshot so subscribers connecting before the worker
	// picks the job up still get a state.
	if err := uc.statuses.Set(ctx, &domain.StatusEvent{
		JobID:   jobID,
		Status:  domain.StatusQueued,
		Message: "Job queued for processing",
	}); err != nil {
		uc.logger.Warn("Failed to seed status snapshot", zap.Error(err), zap.String("job_id", jobID.String()))
	}

	uc.logger.Info("Job submitted successfully",
		zap.String("job_id", jobID.String()),
		zap.Int("targets", len(req.Targets)),
	)

	return &domain.SubmitResponse{
		JobID:   jobID,
		Status:  domain.StatusQueued,
		Channel: "/ws/jobs/" + jobID.String(),
	}, nil
}
