// Package pool runs a fixed-size set of workers over the job delivery
// channel.
package pool

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/devesh1011/vyloc-backend-api/internal/domain"
	"github.com/devesh1011/vyloc-backend-api/internal/metrics"
	"github.com/devesh1011/vyloc-backend-api/internal/usecase"
)

// Processor settles one job delivery and reports how to acknowledge it.
type Processor interface {
	Execute(ctx context.Context, msg *domain.JobMessage) (usecase.Outcome, error)
}

// WorkerPool manages a fixed-size pool of goroutines that process jobs.
type WorkerPool struct {
	size      int
	jobs      <-chan *domain.JobMessage
	processor Processor
	logger    *zap.Logger
	wg        sync.WaitGroup
}

// NewWorkerPool creates a new fixed-size worker pool.
func NewWorkerPool(size int, jobs <-chan *domain.JobMessage, processor Processor, logger *zap.Logger) *WorkerPool {
	return &WorkerPool{
		size:      size,
		jobs:      jobs,
		processor: processor,
		logger:    logger,
	}
}

// Start launches all worker goroutines. Call Stop to wait for them to finish.
func (p *WorkerPool) Start(ctx context.Context) {
	p.logger.Info("Starting worker pool", zap.Int("pool_size", p.size))

	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop waits for all workers to finish their current jobs and exit.
func (p *WorkerPool) Stop() {
	p.wg.Wait()
	p.logger.Info("Worker pool stopped")
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Worker panic recovered",
				zap.Int("worker_id", id),
				zap.Any("panic", r),
			)
		}
	}()

	p.logger.Debug("Worker started", zap.Int("worker_id", id))

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("Worker shutting down", zap.Int("worker_id", id))
			return
		case msg, ok := <-p.jobs:
			if !ok {
				p.logger.Debug("Job channel closed", zap.Int("worker_id", id))
				return
			}

			job := msg.Job

			p.logger.Info("Worker processing job",
				zap.Int("worker_id", id),
				zap.String("job_id", job.JobID.String()),
				zap.Int("targets", len(job.Targets)),
				zap.Int("attempt", msg.Attempt),
			)

			// Track active workers gauge.
			metrics.WorkersActive.Inc()
			startTime := time.Now()

			outcome, err := p.processor.Execute(ctx, msg)
			elapsed := time.Since(startTime).Seconds()

			metrics.WorkersActive.Dec()
			metrics.JobDuration.Observe(elapsed)

			switch outcome {
			case usecase.OutcomeRetry:
				p.logger.Warn("Job delivery nacked for retry",
					zap.Int("worker_id", id),
					zap.String("job_id", job.JobID.String()),
					zap.Error(err),
				)
				// Nack without requeue — the message dead-letters into the
				// retry hop and comes back after the backoff.
				if nackErr := msg.Nack(false); nackErr != nil {
					p.logger.Error("Failed to NACK message",
						zap.String("job_id", job.JobID.String()),
						zap.Error(nackErr),
					)
				}
				metrics.JobsTotal.WithLabelValues("retry").Inc()

			case usecase.OutcomeDuplicate:
				p.logger.Debug("Duplicate job skipped",
					zap.Int("worker_id", id),
					zap.String("job_id", job.JobID.String()),
				)
				// Duplicate → still ACK so the message is removed from the queue.
				if ackErr := msg.Ack(); ackErr != nil {
					p.logger.Error("Failed to ACK duplicate message",
						zap.String("job_id", job.JobID.String()),
						zap.Error(ackErr),
					)
				}
				metrics.JobsTotal.WithLabelValues("duplicate").Inc()

			case usecase.OutcomeFailed:
				// Terminal failure was recorded; the lease is settled.
				if ackErr := msg.Ack(); ackErr != nil {
					p.logger.Error("Failed to ACK failed message",
						zap.String("job_id", job.JobID.String()),
						zap.Error(ackErr),
					)
				}
				metrics.JobsTotal.WithLabelValues("failed").Inc()

			default:
				if ackErr := msg.Ack(); ackErr != nil {
					p.logger.Error("Failed to ACK message after processing",
						zap.String("job_id", job.JobID.String()),
						zap.Error(ackErr),
					)
				}
				metrics.JobsTotal.WithLabelValues("completed").Inc()
			}
		}
	}
}
