package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"canvascast/internal/domain"
	"canvascast/internal/domain/model"
	"canvascast/internal/domain/ports/repository"
)

var _ repository.CheckpointRepository = (*checkpointRepo)(nil)

// checkpointRepo stores one row per job; Save overwrites. The artifact bag is
// kept as JSONB so recovery does not depend on column migrations when the bag
// grows a field.
type checkpointRepo struct {
	pool *pgxpool.Pool
}

func NewCheckpointRepo(pool *pgxpool.Pool) *checkpointRepo {
	return &checkpointRepo{pool: pool}
}

func (r *checkpointRepo) Save(ctx context.Context, tx repository.Tx, cp *model.Checkpoint) error {
	artifacts, err := json.Marshal(cp.Artifacts)
	if err != nil {
		return fmt.Errorf("marshal artifacts: %w", err)
	}

	const q = `
INSERT INTO job_checkpoints (job_id, last_completed_step, artifacts, saved_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (job_id) DO UPDATE SET
  last_completed_step = EXCLUDED.last_completed_step,
  artifacts = EXCLUDED.artifacts,
  saved_at = EXCLUDED.saved_at;`

	_, err = execSQL(ctx, r.pool, tx, q, cp.JobID, cp.LastCompletedStep, artifacts, cp.SavedAt)
	return err
}

func (r *checkpointRepo) Load(ctx context.Context, tx repository.Tx, jobID string) (*model.Checkpoint, error) {
	row, err := pickRow(ctx, r.pool, tx,
		`SELECT job_id, last_completed_step, artifacts, saved_at FROM job_checkpoints WHERE job_id=$1;`, jobID)
	if err != nil {
		return nil, err
	}

	var cp model.Checkpoint
	var artifacts []byte
	if err := row.Scan(&cp.JobID, &cp.LastCompletedStep, &artifacts, &cp.SavedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if err := json.Unmarshal(artifacts, &cp.Artifacts); err != nil {
		return nil, fmt.Errorf("unmarshal artifacts: %w", err)
	}
	return &cp, nil
}

func (r *checkpointRepo) Delete(ctx context.Context, tx repository.Tx, jobID string) error {
	_, err := execSQL(ctx, r.pool, tx, `DELETE FROM job_checkpoints WHERE job_id=$1;`, jobID)
	return err
}
