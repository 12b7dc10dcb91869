// Package postgres implements the repository interfaces on pgx.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/devesh1011/vyloc-backend-api/internal/domain"
	"github.com/devesh1011/vyloc-backend-api/internal/repository"
)

// Ensure pgJobRepo implements repository.JobRepository.
var _ repository.JobRepository = (*pgJobRepo)(nil)

type pgJobRepo struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new PostgreSQL-backed job repository.
func NewJobRepository(pool *pgxpool.Pool) repository.JobRepository {
	return &pgJobRepo{pool: pool}
}

func (r *pgJobRepo) Create(ctx context.Context, job *domain.Job) error {
	targets, err := json.Marshal(job.Targets)
	if err != nil {
		return fmt.Errorf("postgres: marshal targets: %w", err)
	}

	query := `
		INSERT INTO localization_jobs (job_id, owner_id, targets, source_language, remove_watermark, content_type, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	now := time.Now().UTC()
	_, err = r.pool.Exec(ctx, query,
		job.JobID, job.OwnerID, targets, job.SourceLanguage,
		job.RemoveWatermark, job.ContentType, job.Status, now, now,
	)
	if err != nil {
		return fmt.Errorf("postgres: create job: %w", err)
	}
	job.CreatedAt = now
	job.UpdatedAt = now
	return nil
}

func (r *pgJobRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	query := `
		SELECT job_id, owner_id, targets, source_language, remove_watermark, content_type,
		       status, result, error_message, created_at, updated_at
		FROM localization_jobs
		WHERE job_id = $1`

	job := &domain.Job{}
	var targets []byte
	var result []byte
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&job.JobID, &job.OwnerID, &targets, &job.SourceLanguage,
		&job.RemoveWatermark, &job.ContentType,
		&job.Status, &result, &job.ErrorMessage,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get job by id: %w", err)
	}
	if err := json.Unmarshal(targets, &job.Targets); err != nil {
		return nil, fmt.Errorf("postgres: unmarshal targets: %w", err)
	}
	if len(result) > 0 {
		job.Result = &domain.JobResult{}
		if err := json.Unmarshal(result, job.Result); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal result: %w", err)
		}
	}
	return job, nil
}

func (r *pgJobRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus) error {
	return r.transition(ctx, id, status, func(ctx context.Context, tx pgx.Tx) error {
		query := `UPDATE localization_jobs SET status = $1, updated_at = $2 WHERE job_id = $3`
		_, err := tx.Exec(ctx, query, status, time.Now().UTC(), id)
		return err
	})
}

func (r *pgJobRepo) SetResult(ctx context.Context, id uuid.UUID, result *domain.JobResult, errorMessage string) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("postgres: marshal result: %w", err)
	}
	return r.transition(ctx, id, result.Status, func(ctx context.Context, tx pgx.Tx) error {
		query := `
			UPDATE localization_jobs
			SET status = $1, result = $2, error_message = $3, updated_at = $4
			WHERE job_id = $5`
		_, err := tx.Exec(ctx, query, result.Status, payload, errorMessage, time.Now().UTC(), id)
		return err
	})
}

// transition applies update inside a transaction after checking the status
// move is legal. The current row is locked so concurrent deliveries of the
// same job serialize here.
func (r *pgJobRepo) transition(ctx context.Context, id uuid.UUID, next domain.JobStatus, update func(context.Context, pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var current domain.JobStatus
	err = tx.QueryRow(ctx,
		`SELECT status FROM localization_jobs WHERE job_id = $1 FOR UPDATE`, id,
	).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrJobNotFound
	}
	if err != nil {
		return fmt.Errorf("postgres: lock job row: %w", err)
	}

	// Re-applying the current status is a no-op so redelivered jobs can
	// re-enter processing without tripping the forward-only rule.
	if current == next && !current.IsTerminal() {
		return tx.Commit(ctx)
	}
	if !current.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current, next)
	}

	if err := update(ctx, tx); err != nil {
		return fmt.Errorf("postgres: update job: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}
