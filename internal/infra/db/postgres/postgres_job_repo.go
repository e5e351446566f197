package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"canvascast/internal/domain"
	"canvascast/internal/domain/model"
	"canvascast/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*jobRepo)(nil)

type jobRepo struct {
	pool *pgxpool.Pool
}

func NewJobRepo(pool *pgxpool.Pool) *jobRepo {
	return &jobRepo{pool: pool}
}

const jobColumns = `id, project_id, user_id, status, progress,
cost_credits_reserved, cost_credits_final, retry_count, cancel_requested,
dlq_at, dlq_reason, error_code, error_message, failed_step,
started_at, finished_at, created_at, updated_at`

func scanJob(row pgx.Row) (*model.Job, error) {
	var j model.Job
	var status string
	err := row.Scan(
		&j.ID, &j.ProjectID, &j.UserID, &status, &j.Progress,
		&j.CostCreditsReserved, &j.CostCreditsFinal, &j.RetryCount, &j.CancelRequested,
		&j.DLQAt, &j.DLQReason, &j.ErrorCode, &j.ErrorMessage, &j.FailedStep,
		&j.StartedAt, &j.FinishedAt, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	j.Status = model.JobStatus(status)
	return &j, nil
}

func (r *jobRepo) Save(ctx context.Context, tx repository.Tx, job *model.Job) error {
	job.UpdatedAt = time.Now()

	const q = `
INSERT INTO jobs (` + jobColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  progress = EXCLUDED.progress,
  cost_credits_reserved = EXCLUDED.cost_credits_reserved,
  cost_credits_final = EXCLUDED.cost_credits_final,
  retry_count = EXCLUDED.retry_count,
  cancel_requested = EXCLUDED.cancel_requested,
  dlq_at = EXCLUDED.dlq_at,
  dlq_reason = EXCLUDED.dlq_reason,
  error_code = EXCLUDED.error_code,
  error_message = EXCLUDED.error_message,
  failed_step = EXCLUDED.failed_step,
  started_at = EXCLUDED.started_at,
  finished_at = EXCLUDED.finished_at,
  updated_at = EXCLUDED.updated_at;`

	_, err := execSQL(ctx, r.pool, tx, q,
		job.ID, job.ProjectID, job.UserID, string(job.Status), job.Progress,
		job.CostCreditsReserved, job.CostCreditsFinal, job.RetryCount, job.CancelRequested,
		job.DLQAt, job.DLQReason, job.ErrorCode, job.ErrorMessage, job.FailedStep,
		job.StartedAt, job.FinishedAt, job.CreatedAt, job.UpdatedAt)
	return err
}

func (r *jobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+jobColumns+` FROM jobs WHERE id=$1;`, id)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

// Update applies the non-nil patch fields in one UPDATE. The Clear groups set
// their columns back to NULL/empty so a retried job carries no stale markers.
func (r *jobRepo) Update(ctx context.Context, tx repository.Tx, id string, patch repository.JobUpdate) error {
	sets := []string{"updated_at = now()"}
	args := []interface{}{id}

	add := func(col string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if patch.Status != nil {
		add("status", string(*patch.Status))
	}
	if patch.Progress != nil {
		add("progress", *patch.Progress)
	}
	if patch.CostCreditsFinal != nil {
		add("cost_credits_final", *patch.CostCreditsFinal)
	}
	if patch.RetryCount != nil {
		add("retry_count", *patch.RetryCount)
	}
	if patch.CancelRequested != nil {
		add("cancel_requested", *patch.CancelRequested)
	}
	if patch.ErrorCode != nil {
		add("error_code", *patch.ErrorCode)
	}
	if patch.ErrorMessage != nil {
		add("error_message", *patch.ErrorMessage)
	}
	if patch.FailedStep != nil {
		add("failed_step", *patch.FailedStep)
	}
	if patch.DLQAt != nil {
		add("dlq_at", *patch.DLQAt)
	}
	if patch.DLQReason != nil {
		add("dlq_reason", *patch.DLQReason)
	}
	if patch.StartedAt != nil {
		add("started_at", *patch.StartedAt)
	}
	if patch.FinishedAt != nil {
		add("finished_at", *patch.FinishedAt)
	}
	if patch.ClearDLQ {
		sets = append(sets, "dlq_at = NULL", "dlq_reason = ''")
	}
	if patch.ClearError {
		sets = append(sets, "error_code = ''", "error_message = ''", "failed_step = ''")
	}
	if patch.ClearTiming {
		sets = append(sets, "started_at = NULL", "finished_at = NULL")
	}

	where := "id = $1"
	if patch.ExpectStatus != nil {
		args = append(args, string(*patch.ExpectStatus))
		where = fmt.Sprintf("id = $1 AND status = $%d", len(args))
	}

	q := fmt.Sprintf(`UPDATE jobs SET %s WHERE %s;`, strings.Join(sets, ", "), where)
	tag, err := execSQL(ctx, r.pool, tx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ResetStalled is the row half of crash recovery: an attempt interrupted
// anywhere between claim and requeue goes back to QUEUED so the redelivery
// can claim it. Terminal, parked, and already-queued rows are left alone.
func (r *jobRepo) ResetStalled(ctx context.Context, id string) (bool, error) {
	const q = `
UPDATE jobs
   SET status = 'QUEUED', updated_at = now()
 WHERE id = $1
   AND status NOT IN ('QUEUED', 'READY', 'CANCELED')
   AND dlq_at IS NULL;`

	tag, err := execSQL(ctx, r.pool, nil, q, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ClaimQueued is the single-writer-wins claim: the conditional UPDATE only
// matches while the row is still QUEUED, so exactly one of N racing workers
// gets the row back.
func (r *jobRepo) ClaimQueued(ctx context.Context, id string) (*model.Job, error) {
	const q = `
UPDATE jobs
   SET status = 'CLAIMED', started_at = now(), updated_at = now()
 WHERE id = $1 AND status = 'QUEUED'
RETURNING ` + jobColumns + `;`

	row, err := pickRow(ctx, r.pool, nil, q, id)
	if err != nil {
		return nil, err
	}
	job, err := scanJob(row)
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	// Distinguish a lost race from a missing row.
	if _, ferr := r.FindByID(ctx, nil, id); ferr != nil {
		return nil, ferr
	}
	return nil, domain.ErrJobNotClaimable
}

func (r *jobRepo) ListDeadLettered(ctx context.Context, tx repository.Tx) ([]*model.Job, error) {
	rows, err := pickRows(ctx, r.pool, tx,
		`SELECT `+jobColumns+` FROM jobs WHERE dlq_at IS NOT NULL ORDER BY dlq_at DESC;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}
