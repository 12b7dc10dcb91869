package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/devesh1011/vyloc-backend-api/internal/domain"
	"github.com/devesh1011/vyloc-backend-api/internal/metrics"
	"github.com/devesh1011/vyloc-backend-api/internal/status"
)

// Executor is the per-target pipeline the coordinator fans out to.
type Executor interface {
	Generate(ctx context.Context, req *ExecuteRequest) domain.TargetResult
	Finalize(ctx context.Context, req *ExecuteRequest, in domain.TargetResult) domain.TargetResult
}

// Coordinator fans a job out to one executor per target, waits for every
// target to settle, and reduces the outcomes into a single JobResult.
//
// Aggregation rule: all targets failed -> job failed; anything else ->
// job completed, with per-target failures visible in the result list.
// Partial success is deliberately not a job-level failure.
type Coordinator struct {
	executor Executor
	store    ObjectStore
	statuses status.Store
	logger   *zap.Logger
}

// NewCoordinator creates a fan-out coordinator. statuses receives the
// intermediate checkpoint events; it may be nil for callers that do not
// stream progress.
func NewCoordinator(executor Executor, store ObjectStore, statuses status.Store, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		executor: executor,
		store:    store,
		statuses: statuses,
		logger:   logger,
	}
}

// Run executes every target of the job concurrently and returns the
// aggregated result. It never returns an error for per-target failures;
// only an empty target list is a caller bug worth an error.
func (c *Coordinator) Run(ctx context.Context, job *domain.Job, image []byte) (*domain.JobResult, error) {
	if len(job.Targets) == 0 {
		return nil, domain.ErrNoTargets
	}
	start := time.Now()

	// Persist the original asset first so the result can reference it.
	// Best effort: a missing original URL does not fail the job.
	c.checkpoint(ctx, job, 10, "Uploading original image...")
	originalURL, err := c.store.Put(ctx, OriginalPath(job.JobID, job.ContentType), job.ContentType, image)
	if err != nil {
		c.logger.Warn("failed to persist original image",
			zap.String("job_id", job.JobID.String()), zap.Error(err))
		originalURL = ""
	}

	c.checkpoint(ctx, job, 20, fmt.Sprintf("Generating %d localized versions with AI...", len(job.Targets)))

	// Phase 1: generation, all targets concurrently. One slow target delays
	// the aggregate but never drops sibling results.
	requests := make([]*ExecuteRequest, len(job.Targets))
	results := make([]domain.TargetResult, len(job.Targets))
	var wg sync.WaitGroup
	for i, target := range job.Targets {
		requests[i] = &ExecuteRequest{
			JobID:           job.JobID,
			Target:          target,
			SourceLanguage:  job.SourceLanguage,
			RemoveWatermark: job.RemoveWatermark,
			Image:           image,
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.executor.Generate(ctx, requests[i])
		}(i)
	}
	wg.Wait()

	c.checkpoint(ctx, job, 60, "Processing and uploading results...")

	// Phase 2: cleanup + upload, again concurrently. Finalize consumes each
	// result's transient payload and passes failed results through.
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.executor.Finalize(ctx, requests[i], results[i])
		}(i)
	}
	wg.Wait()

	c.checkpoint(ctx, job, 95, "Saving results...")

	result := &domain.JobResult{
		JobID:                 job.JobID,
		OriginalImageURL:      originalURL,
		Images:                results,
		TotalProcessingTimeMs: time.Since(start).Milliseconds(),
		CompletedAt:           time.Now().UTC(),
	}
	completed := result.CompletedCount()
	result.CreditsUsed = completed
	for _, r := range results {
		metrics.TargetsTotal.WithLabelValues(string(r.Language), string(r.Status)).Inc()
	}
	if completed == 0 {
		result.Status = domain.StatusFailed
	} else {
		result.Status = domain.StatusCompleted
	}

	c.logger.Info("job targets settled",
		zap.String("job_id", job.JobID.String()),
		zap.Int("completed", completed),
		zap.Int("failed", len(results)-completed),
		zap.Int64("total_ms", result.TotalProcessingTimeMs))

	return result, nil
}

// checkpoint emits a coarse-grained progress event. Status delivery is
// advisory; failures are logged and ignored.
func (c *Coordinator) checkpoint(ctx context.Context, job *domain.Job, progress int, message string) {
	if c.statuses == nil {
		return
	}
	evt := &domain.StatusEvent{
		JobID:    job.JobID,
		Status:   domain.StatusProcessing,
		Progress: progress,
		Message:  message,
	}
	if err := c.statuses.Set(ctx, evt); err != nil {
		c.logger.Warn("failed to publish status checkpoint",
			zap.String("job_id", job.JobID.String()), zap.Error(err))
	}
}
