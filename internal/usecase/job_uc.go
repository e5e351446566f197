package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"canvascast/internal/domain"
	"canvascast/internal/domain/model"
	"canvascast/internal/domain/ports/adapter"
	"canvascast/internal/domain/ports/repository"
)

// Compile-time check
var _ JobUseCase = (*jobUC)(nil)

// CostModel prices a job from the project's target duration. The reservation
// is all-or-nothing, so the estimate is what the user sees held and, on an
// early failure, refunded in full.
type CostModel struct {
	BaseCredits      int
	CreditsPerMinute int
}

func (c CostModel) Estimate(targetSecs int) int {
	minutes := (targetSecs + 59) / 60
	if minutes < 1 {
		minutes = 1
	}
	return c.BaseCredits + minutes*c.CreditsPerMinute
}

type JobUseCase interface {
	// Submit reserves credits for the project's estimated cost, creates the
	// job in QUEUED, and hands it to the queue. On an uncovered balance it
	// fails with domain.ErrInsufficientCredits and creates nothing.
	Submit(ctx context.Context, projectID string) (*model.Job, error)
	Get(ctx context.Context, jobID string) (*model.Job, error)
	// Cancel flags a running job to stop at the next step boundary. A job
	// still in QUEUED is canceled immediately and its hold released. Terminal
	// jobs fail with domain.ErrJobTerminal.
	Cancel(ctx context.Context, jobID string) error
}

type jobUC struct {
	jobs     repository.JobRepository
	projects repository.ProjectRepository
	credits  CreditsUseCase
	queue    adapter.JobQueue
	cost     CostModel
	log      *zerolog.Logger
}

func NewJobUseCase(
	jobs repository.JobRepository,
	projects repository.ProjectRepository,
	credits CreditsUseCase,
	queue adapter.JobQueue,
	cost CostModel,
	logger *zerolog.Logger,
) *jobUC {
	return &jobUC{jobs: jobs, projects: projects, credits: credits, queue: queue, cost: cost, log: logger}
}

func (u *jobUC) Submit(ctx context.Context, projectID string) (*model.Job, error) {
	project, err := u.projects.FindByID(ctx, nil, projectID)
	if err != nil {
		return nil, fmt.Errorf("load project %s: %w", projectID, err)
	}

	now := time.Now()
	job := &model.Job{
		ID:                  ulid.Make().String(),
		ProjectID:           project.ID,
		UserID:              project.UserID,
		Status:              model.JobStatusQueued,
		CostCreditsReserved: u.cost.Estimate(project.TargetSecs),
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := u.credits.Reserve(ctx, job.UserID, job.ID, job.CostCreditsReserved); err != nil {
		return nil, err
	}
	if err := u.jobs.Save(ctx, nil, job); err != nil {
		// Give the hold back; the job row never existed.
		if rerr := u.credits.ReleaseReservation(ctx, job.UserID, job.ID, job.CostCreditsReserved, "submission failed"); rerr != nil {
			u.log.Error().Err(rerr).Str("job_id", job.ID).Msg("release after failed submit")
		}
		return nil, err
	}
	if err := u.queue.Enqueue(ctx, job.ID); err != nil {
		// The row is QUEUED; the expired-lease sweeper will not find it, so
		// surface the error instead of leaving a silently stuck job.
		return nil, fmt.Errorf("enqueue job %s: %w", job.ID, err)
	}

	u.log.Info().Str("job_id", job.ID).Str("project_id", project.ID).
		Int("reserved", job.CostCreditsReserved).Msg("job submitted")
	return job, nil
}

func (u *jobUC) Get(ctx context.Context, jobID string) (*model.Job, error) {
	return u.jobs.FindByID(ctx, nil, jobID)
}

func (u *jobUC) Cancel(ctx context.Context, jobID string) error {
	job, err := u.jobs.FindByID(ctx, nil, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return domain.ErrJobTerminal
	}

	if job.Status == model.JobStatusQueued {
		// Not claimed yet: cancel directly. The write is guarded on the row
		// still being QUEUED; a worker winning the claim between the read and
		// the write drops us to the in-flight path below.
		queued := model.JobStatusQueued
		canceled := model.JobStatusCanceled
		now := time.Now()
		patch := repository.JobUpdate{ExpectStatus: &queued, Status: &canceled, FinishedAt: &now}
		switch err := u.jobs.Update(ctx, nil, jobID, patch); {
		case err == nil:
			if err := u.credits.ReleaseReservation(ctx, job.UserID, job.ID, job.CostCreditsReserved, "canceled before start"); err != nil && !errors.Is(err, domain.ErrNotFound) {
				return err
			}
			u.log.Info().Str("job_id", jobID).Msg("queued job canceled")
			return nil
		case errors.Is(err, domain.ErrNotFound):
			u.log.Info().Str("job_id", jobID).Msg("job claimed during cancel, flagging instead")
		default:
			return err
		}
	}

	// In flight: the runner observes the flag between steps and settles
	// credits itself.
	requested := true
	if err := u.jobs.Update(ctx, nil, jobID, repository.JobUpdate{CancelRequested: &requested}); err != nil {
		return err
	}
	u.log.Info().Str("job_id", jobID).Str("status", string(job.Status)).Msg("cancellation requested")
	return nil
}
