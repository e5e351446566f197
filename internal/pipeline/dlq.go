package pipeline

import (
	"context"

	"canvascast/internal/domain"
	"canvascast/internal/domain/model"
	"canvascast/internal/domain/ports/adapter"
	"canvascast/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

// DLQManager exposes the dead letter queue to admin tooling: listing parked
// jobs and putting one back on the queue after manual intervention.
type DLQManager struct {
	jobs  repository.JobRepository
	queue adapter.JobQueue
	log   *zerolog.Logger
}

func NewDLQManager(jobs repository.JobRepository, queue adapter.JobQueue, log *zerolog.Logger) *DLQManager {
	return &DLQManager{jobs: jobs, queue: queue, log: log}
}

// List returns all dead-lettered jobs, newest first.
func (m *DLQManager) List(ctx context.Context) ([]*model.Job, error) {
	return m.jobs.ListDeadLettered(ctx, nil)
}

// Retry resets a parked job and re-enqueues it. The job must currently be in
// the DLQ; otherwise domain.ErrNotInDeadLetter is returned and nothing is
// mutated. The checkpoint is deliberately left alone; the next attempt goes
// through the recovery advisor's normal checkpoint-aware flow.
func (m *DLQManager) Retry(ctx context.Context, jobID string) (*model.Job, error) {
	job, err := m.jobs.FindByID(ctx, nil, jobID)
	if err != nil {
		return nil, err
	}
	if !job.InDeadLetter() {
		return nil, domain.ErrNotInDeadLetter
	}

	status := model.JobStatusQueued
	zero := 0
	if err := m.jobs.Update(ctx, nil, jobID, repository.JobUpdate{
		Status:      &status,
		RetryCount:  &zero,
		ClearDLQ:    true,
		ClearError:  true,
		ClearTiming: true,
	}); err != nil {
		return nil, err
	}
	if err := m.queue.Enqueue(ctx, jobID); err != nil {
		return nil, err
	}

	job.Status = status
	job.RetryCount = 0
	job.DLQAt = nil
	job.DLQReason = ""
	job.ErrorCode = ""
	job.ErrorMessage = ""
	job.FailedStep = ""
	job.StartedAt = nil
	job.FinishedAt = nil
	m.log.Info().Str("job_id", jobID).Msg("job re-queued from dead letter queue")
	return job, nil
}
