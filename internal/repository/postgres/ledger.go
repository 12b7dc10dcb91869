package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/devesh1011/vyloc-backend-api/internal/domain"
	"github.com/devesh1011/vyloc-backend-api/internal/repository"
)

var _ repository.Ledger = (*pgLedger)(nil)

type pgLedger struct {
	pool *pgxpool.Pool
}

// NewLedger creates a PostgreSQL-backed credit ledger. Deductions are
// recorded one row per job id, which is what makes Deduct idempotent under
// at-least-once delivery.
func NewLedger(pool *pgxpool.Pool) repository.Ledger {
	return &pgLedger{pool: pool}
}

func (l *pgLedger) Balance(ctx context.Context, ownerID string) (int, error) {
	var balance int
	err := l.pool.QueryRow(ctx,
		`SELECT balance FROM credit_accounts WHERE owner_id = $1`, ownerID,
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("postgres: get balance: %w", err)
	}
	return balance, nil
}

func (l *pgLedger) CheckEligible(ctx context.Context, ownerID string, required int) error {
	balance, err := l.Balance(ctx, ownerID)
	if err != nil {
		return err
	}
	if balance < required {
		return fmt.Errorf("%w: have %d, need %d", domain.ErrInsufficientCredits, balance, required)
	}
	return nil
}

func (l *pgLedger) Deduct(ctx context.Context, ownerID string, jobID uuid.UUID, amount int) error {
	if amount <= 0 {
		return nil
	}
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	// The unique job_id row is the dedup record: a second delivery of the
	// same job conflicts here and charges nothing.
	tag, err := tx.Exec(ctx, `
		INSERT INTO credit_deductions (job_id, owner_id, amount, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (job_id) DO NOTHING`,
		jobID, ownerID, amount, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("postgres: record deduction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}

	_, err = tx.Exec(ctx, `
		UPDATE credit_accounts SET balance = balance - $1, updated_at = $2
		WHERE owner_id = $3`,
		amount, time.Now().UTC(), ownerID,
	)
	if err != nil {
		return fmt.Errorf("postgres: apply deduction: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}
