package pipeline

import (
	"context"
	"errors"
	"time"

	"canvascast/internal/domain"
	"canvascast/internal/domain/model"
	"canvascast/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

// CheckpointStore persists the artifact bag and last completed step per job.
// Saves overwrite; a crash mid-pipeline therefore loses at most one step's
// work.
type CheckpointStore struct {
	repo repository.CheckpointRepository
	log  *zerolog.Logger
}

func NewCheckpointStore(repo repository.CheckpointRepository, log *zerolog.Logger) *CheckpointStore {
	return &CheckpointStore{repo: repo, log: log}
}

// Save writes the checkpoint for jobID and returns the saved record.
func (s *CheckpointStore) Save(ctx context.Context, jobID string, artifacts model.ArtifactBag, completed StepName) (*model.Checkpoint, error) {
	cp := &model.Checkpoint{
		JobID:             jobID,
		LastCompletedStep: string(completed),
		Artifacts:         artifacts,
		SavedAt:           time.Now(),
	}
	if err := s.repo.Save(ctx, nil, cp); err != nil {
		return nil, err
	}
	s.log.Debug().Str("job_id", jobID).Str("step", string(completed)).Msg("checkpoint saved")
	return cp, nil
}

// Load returns the job's checkpoint. A job that has never completed a step
// yields a well-formed empty checkpoint, not an error; only storage failures
// are returned.
func (s *CheckpointStore) Load(ctx context.Context, jobID string) (*model.Checkpoint, error) {
	cp, err := s.repo.Load(ctx, nil, jobID)
	if errors.Is(err, domain.ErrNotFound) {
		return &model.Checkpoint{JobID: jobID}, nil
	}
	if err != nil {
		return nil, err
	}
	return cp, nil
}

// Clear removes the job's checkpoint (after a successful finish).
func (s *CheckpointStore) Clear(ctx context.Context, jobID string) error {
	err := s.repo.Delete(ctx, nil, jobID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return err
}
