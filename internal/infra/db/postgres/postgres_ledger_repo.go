package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"canvascast/internal/domain"
	"canvascast/internal/domain/model"
	"canvascast/internal/domain/ports/repository"
)

var _ repository.CreditLedgerRepository = (*ledgerRepo)(nil)

// ledgerRepo is append-only: entries are inserted, summed, listed, never
// updated.
type ledgerRepo struct {
	pool *pgxpool.Pool
}

func NewLedgerRepo(pool *pgxpool.Pool) *ledgerRepo {
	return &ledgerRepo{pool: pool}
}

func (r *ledgerRepo) Insert(ctx context.Context, tx repository.Tx, e *model.CreditLedgerEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	const q = `
INSERT INTO credit_ledger (id, user_id, job_id, entry_type, amount, note, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7);`

	_, err := execSQL(ctx, r.pool, tx, q,
		e.ID, e.UserID, e.JobID, string(e.Type), e.Amount, e.Note, e.CreatedAt)
	return err
}

func (r *ledgerRepo) BalanceByUser(ctx context.Context, tx repository.Tx, userID string) (int, error) {
	row, err := pickRow(ctx, r.pool, tx,
		`SELECT COALESCE(SUM(amount), 0) FROM credit_ledger WHERE user_id=$1;`, userID)
	if err != nil {
		return 0, err
	}
	var sum int
	if err := row.Scan(&sum); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return sum, nil
}

func (r *ledgerRepo) ListByJob(ctx context.Context, tx repository.Tx, jobID string) ([]*model.CreditLedgerEntry, error) {
	rows, err := pickRows(ctx, r.pool, tx, `
SELECT id, user_id, job_id, entry_type, amount, note, created_at
  FROM credit_ledger WHERE job_id=$1 ORDER BY created_at;`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.CreditLedgerEntry
	for rows.Next() {
		var e model.CreditLedgerEntry
		var entryType string
		if err := rows.Scan(&e.ID, &e.UserID, &e.JobID, &entryType, &e.Amount, &e.Note, &e.CreatedAt); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, domain.ErrNotFound
			}
			return nil, domain.ErrReadDatabaseRow
		}
		e.Type = model.LedgerEntryType(entryType)
		out = append(out, &e)
	}
	return out, rows.Err()
}
