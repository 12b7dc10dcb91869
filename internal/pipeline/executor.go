package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/devesh1011/vyloc-backend-api/internal/domain"
)

// ExecuteRequest carries everything one target's pipeline needs.
type ExecuteRequest struct {
	JobID           uuid.UUID
	Target          domain.Target
	SourceLanguage  string
	RemoveWatermark bool
	Image           []byte
}

// TargetExecutor runs a single target's pipeline: generate, clean, store.
// Every step runs inside an error boundary; no failure ever escapes as a
// panic or error, only as a failed TargetResult. Nothing an executor does
// is visible to sibling targets.
type TargetExecutor struct {
	generator Generator
	cleaner   Cleaner
	store     ObjectStore
	timeout   time.Duration
	logger    *zap.Logger
}

// NewTargetExecutor creates an executor with the given per-target
// generation timeout.
func NewTargetExecutor(gen Generator, cleaner Cleaner, store ObjectStore, timeout time.Duration, logger *zap.Logger) *TargetExecutor {
	return &TargetExecutor{
		generator: gen,
		cleaner:   cleaner,
		store:     store,
		timeout:   timeout,
		logger:    logger,
	}
}

// Execute runs the full pipeline for one target and always returns a
// settled TargetResult.
func (e *TargetExecutor) Execute(ctx context.Context, req *ExecuteRequest) domain.TargetResult {
	res := e.Generate(ctx, req)
	return e.Finalize(ctx, req, res)
}

// Generate invokes the generation collaborator under the configured
// timeout. On success the result carries the generated bytes in its
// transient payload for the finalize stage to consume.
func (e *TargetExecutor) Generate(ctx context.Context, req *ExecuteRequest) (res domain.TargetResult) {
	start := time.Now()
	res = domain.TargetResult{
		Language: req.Target.Language,
		Market:   req.Target.Market,
		Status:   domain.TargetCompleted,
	}
	defer func() {
		res.ProcessingTimeMs = time.Since(start).Milliseconds()
		if r := recover(); r != nil {
			e.logger.Error("generation panic recovered",
				zap.String("job_id", req.JobID.String()),
				zap.String("language", string(req.Target.Language)),
				zap.Any("panic", r))
			res = failed(req.Target, fmt.Sprintf("generation panic: %v", r), time.Since(start))
		}
	}()

	genCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	out, err := e.generator.Generate(genCtx, req.Target, req.SourceLanguage, req.Image)
	if err != nil {
		msg := err.Error()
		if genCtx.Err() == context.DeadlineExceeded {
			msg = fmt.Sprintf("generation timeout after %s", e.timeout)
		}
		e.logger.Warn("generation failed",
			zap.String("job_id", req.JobID.String()),
			zap.String("language", string(req.Target.Language)),
			zap.Error(err))
		return failed(req.Target, msg, time.Since(start))
	}
	if len(out) == 0 {
		return failed(req.Target, "generator returned no image data", time.Since(start))
	}

	res.Payload = out
	return res
}

// Finalize runs the post-processing stages on a generated result: cleanup
// (best-effort) then storage (required). The transient payload is consumed
// here and never carried further. A result that already failed passes
// through untouched.
func (e *TargetExecutor) Finalize(ctx context.Context, req *ExecuteRequest, in domain.TargetResult) (res domain.TargetResult) {
	res = in
	if res.Status != domain.TargetCompleted {
		return res
	}
	start := time.Now()
	defer func() {
		res.ProcessingTimeMs += time.Since(start).Milliseconds()
		res.Payload = nil
	}()

	data := res.Payload
	if len(data) == 0 {
		res.Status = domain.TargetFailed
		res.ErrorMessage = "no generated image to finalize"
		return res
	}

	if req.RemoveWatermark {
		cleaned, err := e.cleaner.Clean(ctx, data)
		if err != nil || len(cleaned) == 0 {
			// Best effort: keep the raw generated image.
			e.logger.Warn("watermark cleanup failed, keeping raw output",
				zap.String("job_id", req.JobID.String()),
				zap.String("language", string(req.Target.Language)),
				zap.Error(err))
		} else {
			data = cleaned
		}
	}

	url, err := e.store.Put(ctx, localizedPath(req.JobID, req.Target), "image/png", data)
	if err != nil {
		// An unreachable output is not a usable result.
		res.Status = domain.TargetFailed
		res.ErrorMessage = fmt.Sprintf("upload failed: %v", err)
		return res
	}
	res.ImageURL = url
	return res
}

func failed(target domain.Target, msg string, elapsed time.Duration) domain.TargetResult {
	return domain.TargetResult{
		Language:         target.Language,
		Market:           target.Market,
		Status:           domain.TargetFailed,
		ErrorMessage:     msg,
		ProcessingTimeMs: elapsed.Milliseconds(),
	}
}

// localizedPath keys stored outputs by job and target so redelivered jobs
// overwrite their own outputs.
func localizedPath(jobID uuid.UUID, t domain.Target) string {
	if t.Market != "" {
		return fmt.Sprintf("localized/%s_%s_%s.png", jobID, t.Language, t.Market)
	}
	return fmt.Sprintf("localized/%s_%s.png", jobID, t.Language)
}

// OriginalPath is where a job's source image is persisted.
func OriginalPath(jobID uuid.UUID, contentType string) string {
	ext := "png"
	switch contentType {
	case "image/jpeg":
		ext = "jpg"
	case "image/webp":
		ext = "webp"
	}
	return fmt.Sprintf("originals/%s.%s", jobID, ext)
}
