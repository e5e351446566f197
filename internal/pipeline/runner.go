package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"canvascast/internal/domain/model"
	"canvascast/internal/domain/ports/adapter"
	"canvascast/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

// CreditService is the slice of the credit ledger the runner needs: settling
// a job's reservation when it ends. Implemented by the credits use case.
type CreditService interface {
	// RefundReservation returns the full reservation to the user. Must be
	// idempotent per job: at most one refund entry regardless of retries.
	RefundReservation(ctx context.Context, userID, jobID string, amount int, note string) error
	// ConvertToSpend settles the reservation as work actually performed.
	ConvertToSpend(ctx context.Context, userID, jobID string, amount int, note string) error
	// ReleaseReservation returns the hold without charging (cancellation
	// before any billable work).
	ReleaseReservation(ctx context.Context, userID, jobID string, amount int, note string) error
}

// Config bounds a single execution attempt.
type Config struct {
	MaxRetries  int           // automatic retries before the job is parked in the DLQ
	StepTimeout time.Duration // per-step wall-clock bound; 0 disables

	// ObserveStep, when set, receives every step attempt with its duration
	// and outcome. Wired to the metrics exporter in production.
	ObserveStep func(step string, seconds float64, success bool)
}

// Runner drives one job through the step library in canonical order. It owns
// all job-row mutation during an attempt: status and progress advance only
// after a step succeeds and its checkpoint is saved, so external readers only
// ever observe completed work.
type Runner struct {
	jobs        repository.JobRepository
	projects    repository.ProjectRepository
	checkpoints *CheckpointStore
	advisor     *RecoveryAdvisor
	refund      RefundPolicy
	credits     CreditService
	queue       adapter.JobQueue
	services    *Services
	steps       []Step
	cfg         Config
	log         *zerolog.Logger
}

func NewRunner(
	jobs repository.JobRepository,
	projects repository.ProjectRepository,
	checkpoints *CheckpointStore,
	advisor *RecoveryAdvisor,
	refund RefundPolicy,
	credits CreditService,
	queue adapter.JobQueue,
	services *Services,
	cfg Config,
	log *zerolog.Logger,
) *Runner {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Runner{
		jobs:        jobs,
		projects:    projects,
		checkpoints: checkpoints,
		advisor:     advisor,
		refund:      refund,
		credits:     credits,
		queue:       queue,
		services:    services,
		steps:       Steps(),
		cfg:         cfg,
		log:         log,
	}
}

// Run executes one attempt for jobID and returns the job's final state for
// this attempt. Claiming is a single-writer-wins conditional update; a lost
// race returns domain.ErrJobNotClaimable untouched.
func (r *Runner) Run(ctx context.Context, jobID string) (*model.Job, error) {
	job, err := r.jobs.ClaimQueued(ctx, jobID)
	if err != nil {
		return nil, err
	}
	log := r.log.With().Str("job_id", job.ID).Logger()

	project, err := r.projects.FindByID(ctx, nil, job.ProjectID)
	if err != nil {
		return r.fail(ctx, job, r.steps[0], WrapStepError(CodeInputFetch, "loading project failed", err))
	}

	cp, err := r.checkpoints.Load(ctx, job.ID)
	if err != nil {
		return r.fail(ctx, job, r.steps[0], WrapStepError(CodeUnknown, "loading checkpoint failed", err))
	}

	pc := &Context{
		JobID:     job.ID,
		ProjectID: job.ProjectID,
		UserID:    job.UserID,
		Job:       job,
		Project:   project,
		Services:  r.services,
	}
	start := 0
	if opts := r.advisor.Options(cp); opts.CanResume {
		pc.Artifacts = cp.Artifacts
		start = StepIndex(r.steps, opts.NextStep)
		log.Info().Str("next_step", string(opts.NextStep)).Msg(opts.Message)
	}

	for i := start; i < len(r.steps); i++ {
		// Cancellation is honored between steps, never mid-step.
		canceled, err := r.cancelRequested(ctx, job)
		if err != nil {
			return r.fail(ctx, job, r.steps[i], WrapStepError(CodeUnknown, "reading job state failed", err))
		}
		if canceled {
			return r.cancel(ctx, job)
		}

		step := r.steps[i]
		stepStart := time.Now()
		res, err := r.invoke(ctx, step, pc)
		r.observeStep(step, stepStart, err == nil)
		if err != nil {
			log.Warn().Str("step", string(step.Name)).Err(err).Msg("step failed")
			return r.fail(ctx, job, step, err)
		}

		if res.Patch != nil {
			res.Patch(&pc.Artifacts)
		}
		for _, eff := range res.Effects {
			log.Debug().Str("step", string(step.Name)).Str("kind", eff.Kind).Str("key", eff.Key).Msg("side effect committed")
		}

		// Checkpoint strictly after the step and before advancing, so a
		// crash can never leave a checkpoint ahead of completed work.
		if _, err := r.checkpoints.Save(ctx, job.ID, pc.Artifacts, step.Name); err != nil {
			return r.fail(ctx, job, step, WrapStepError(CodeUnknown, "saving checkpoint failed", err))
		}
		if err := r.advance(ctx, job, step); err != nil {
			return r.fail(ctx, job, step, WrapStepError(CodeUnknown, "updating job state failed", err))
		}
		log.Info().
			Str("step", string(step.Name)).
			Int("progress", job.Progress).
			Dur("duration", time.Since(stepStart)).
			Msg("step completed")
	}

	return r.finish(ctx, job)
}

func (r *Runner) observeStep(step Step, start time.Time, success bool) {
	if r.cfg.ObserveStep != nil {
		r.cfg.ObserveStep(string(step.Name), time.Since(start).Seconds(), success)
	}
}

// invoke runs one step with the dependency check, timeout bound, and panic
// normalization. No step error escapes this boundary untyped.
func (r *Runner) invoke(ctx context.Context, step Step, pc *Context) (res StepResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			res = StepResult{}
			err = NewStepError(CodeUnknown, fmt.Sprintf("step %s panicked: %v", step.Name, p))
		}
	}()

	for _, need := range step.Needs {
		if !pc.Artifacts.Has(need) {
			return StepResult{}, NewStepError(step.FailCode, fmt.Sprintf("missing required artifact %q", need))
		}
	}

	sctx := ctx
	if r.cfg.StepTimeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, r.cfg.StepTimeout)
		defer cancel()
	}

	res, err = step.Run(sctx, pc)
	if err == nil {
		return res, nil
	}
	if errors.Is(sctx.Err(), context.DeadlineExceeded) {
		return StepResult{}, WrapStepError(step.FailCode, fmt.Sprintf("timed out after %s", r.cfg.StepTimeout), err)
	}
	if se := AsStepError(err); se != nil {
		return StepResult{}, se
	}
	return StepResult{}, WrapStepError(step.FailCode, "step failed", err)
}

// advance records step completion: status of the completed stage, progress at
// the step's upper bound. Progress never moves backwards within an attempt.
func (r *Runner) advance(ctx context.Context, job *model.Job, step Step) error {
	status := step.Status
	progress := step.ProgressEnd
	if progress < job.Progress {
		progress = job.Progress
	}
	if err := r.jobs.Update(ctx, nil, job.ID, repository.JobUpdate{
		Status:   &status,
		Progress: &progress,
	}); err != nil {
		return err
	}
	job.Status = status
	job.Progress = progress
	return nil
}

func (r *Runner) finish(ctx context.Context, job *model.Job) (*model.Job, error) {
	now := time.Now()
	status := model.JobStatusReady
	progress := 100
	final := job.CostCreditsReserved
	if err := r.jobs.Update(ctx, nil, job.ID, repository.JobUpdate{
		Status:           &status,
		Progress:         &progress,
		CostCreditsFinal: &final,
		FinishedAt:       &now,
		ClearError:       true,
	}); err != nil {
		return job, err
	}
	job.Status = status
	job.Progress = progress
	job.CostCreditsFinal = final
	job.FinishedAt = &now

	if err := r.credits.ConvertToSpend(ctx, job.UserID, job.ID, job.CostCreditsReserved, "video generated"); err != nil {
		r.log.Error().Str("job_id", job.ID).Err(err).Msg("spend conversion failed")
	}
	if err := r.checkpoints.Clear(ctx, job.ID); err != nil {
		r.log.Warn().Str("job_id", job.ID).Err(err).Msg("clearing checkpoint failed")
	}
	r.log.Info().Str("job_id", job.ID).Msg("job ready")
	return job, nil
}

func (r *Runner) cancelRequested(ctx context.Context, job *model.Job) (bool, error) {
	fresh, err := r.jobs.FindByID(ctx, nil, job.ID)
	if err != nil {
		return false, err
	}
	return fresh.CancelRequested, nil
}

// cancel ends the attempt at the user's request, settling credits with the
// same refund policy evaluated at the progress reached.
func (r *Runner) cancel(ctx context.Context, job *model.Job) (*model.Job, error) {
	now := time.Now()
	status := model.JobStatusCanceled
	var final int
	refundable := r.refund.ShouldRefund(job.Status, job.Progress)
	if !refundable {
		final = job.CostCreditsReserved
	}
	if err := r.jobs.Update(ctx, nil, job.ID, repository.JobUpdate{
		Status:           &status,
		CostCreditsFinal: &final,
		FinishedAt:       &now,
	}); err != nil {
		return job, err
	}
	job.Status = status
	job.CostCreditsFinal = final
	job.FinishedAt = &now

	if refundable {
		if err := r.credits.ReleaseReservation(ctx, job.UserID, job.ID, job.CostCreditsReserved, "canceled before billable work"); err != nil {
			r.log.Error().Str("job_id", job.ID).Err(err).Msg("release on cancel failed")
		}
	} else {
		if err := r.credits.ConvertToSpend(ctx, job.UserID, job.ID, job.CostCreditsReserved, "canceled after billable work"); err != nil {
			r.log.Error().Str("job_id", job.ID).Err(err).Msg("spend on cancel failed")
		}
	}
	r.log.Info().Str("job_id", job.ID).Bool("refunded", refundable).Msg("job canceled")
	return job, nil
}

// fail records the failure, settles credits at the progress reached, and
// either requeues the job for another attempt or parks it in the DLQ.
func (r *Runner) fail(ctx context.Context, job *model.Job, step Step, stepErr error) (*model.Job, error) {
	se := AsStepError(stepErr)
	if se == nil {
		se = NewStepError(CodeUnknown, stepErr.Error())
	}

	status := model.JobStatusFailed
	code := string(se.Code)
	msg := se.Message
	failed := string(step.Name)
	if err := r.jobs.Update(ctx, nil, job.ID, repository.JobUpdate{
		Status:       &status,
		ErrorCode:    &code,
		ErrorMessage: &msg,
		FailedStep:   &failed,
	}); err != nil {
		return job, err
	}
	job.Status = status
	job.ErrorCode = code
	job.ErrorMessage = msg
	job.FailedStep = failed

	// Credit settlement happens before the failure is surfaced to retries:
	// refund below the threshold, spend conversion at or above it.
	amount := r.refund.RefundAmount(job.CostCreditsReserved, job.Status, job.Progress)
	if amount > 0 {
		if err := r.credits.RefundReservation(ctx, job.UserID, job.ID, amount, fmt.Sprintf("failed at %s", step.Name)); err != nil {
			r.log.Error().Str("job_id", job.ID).Err(err).Msg("refund failed")
		}
	} else {
		final := job.CostCreditsReserved
		if err := r.credits.ConvertToSpend(ctx, job.UserID, job.ID, final, fmt.Sprintf("failed at %s after billable work", step.Name)); err != nil {
			r.log.Error().Str("job_id", job.ID).Err(err).Msg("spend conversion failed")
		}
		if err := r.jobs.Update(ctx, nil, job.ID, repository.JobUpdate{CostCreditsFinal: &final}); err == nil {
			job.CostCreditsFinal = final
		}
	}

	if job.RetryCount < r.cfg.MaxRetries {
		retries := job.RetryCount + 1
		requeued := model.JobStatusQueued
		if err := r.jobs.Update(ctx, nil, job.ID, repository.JobUpdate{
			Status:     &requeued,
			RetryCount: &retries,
		}); err != nil {
			return job, err
		}
		job.Status = requeued
		job.RetryCount = retries
		if err := r.queue.Enqueue(ctx, job.ID); err != nil {
			r.log.Error().Str("job_id", job.ID).Err(err).Msg("requeue failed")
		}
		r.log.Info().Str("job_id", job.ID).Int("retry", retries).Str("code", code).Msg("job requeued")
		return job, nil
	}

	now := time.Now()
	reason := fmt.Sprintf("retries exhausted (%d): %s: %s", job.RetryCount, code, msg)
	if err := r.jobs.Update(ctx, nil, job.ID, repository.JobUpdate{
		DLQAt:      &now,
		DLQReason:  &reason,
		FinishedAt: &now,
	}); err != nil {
		return job, err
	}
	job.DLQAt = &now
	job.DLQReason = reason
	job.FinishedAt = &now
	r.log.Error().Str("job_id", job.ID).Str("code", code).Msg("job parked in dead letter queue")
	return job, nil
}
