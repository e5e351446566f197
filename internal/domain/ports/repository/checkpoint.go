package repository

import (
	"context"

	"canvascast/internal/domain/model"
)

type CheckpointRepository interface {
	// Save overwrites the job's checkpoint (one row per job).
	Save(ctx context.Context, tx Tx, cp *model.Checkpoint) error
	// Load returns the job's checkpoint, or domain.ErrNotFound when none has
	// ever been saved. Callers distinguish "never checkpointed" from a saved
	// checkpoint with empty artifacts.
	Load(ctx context.Context, tx Tx, jobID string) (*model.Checkpoint, error)
	Delete(ctx context.Context, tx Tx, jobID string) error
}
