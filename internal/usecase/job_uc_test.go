//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"canvascast/internal/domain"
	"canvascast/internal/domain/model"
	"canvascast/internal/domain/ports/repository"
	"canvascast/internal/usecase"
)

type jobUCDeps struct {
	jobs     *MockJobRepo
	projects *MockProjectRepo
	ledger   *MockLedgerRepo
	queue    *MockQueue
	credits  usecase.CreditsUseCase
}

func newJobUCDeps() *jobUCDeps {
	d := &jobUCDeps{
		jobs:     NewMockJobRepo(),
		projects: NewMockProjectRepo(),
		ledger:   NewMockLedgerRepo(),
		queue:    NewMockQueue(),
	}
	d.credits = usecase.NewCreditsUseCase(d.ledger, &MockTxManager{}, testLogger())
	return d
}

func (d *jobUCDeps) uc() usecase.JobUseCase {
	cost := usecase.CostModel{BaseCredits: 4, CreditsPerMinute: 6}
	return usecase.NewJobUseCase(d.jobs, d.projects, d.credits, d.queue, cost, testLogger())
}

func (d *jobUCDeps) seedProject(targetSecs int) *model.Project {
	p := &model.Project{
		ID:         "prj-1",
		UserID:     "u1",
		Title:      "Oceans",
		Prompt:     "a short film about oceans",
		Style:      "watercolor",
		Voice:      "alloy",
		TargetSecs: targetSecs,
	}
	_ = d.projects.Save(context.Background(), nil, p)
	return p
}

func TestCostModelEstimate(t *testing.T) {
	t.Parallel()
	cost := usecase.CostModel{BaseCredits: 4, CreditsPerMinute: 6}

	if got := cost.Estimate(60); got != 10 {
		t.Fatalf("Estimate(60) = %d, want 10", got)
	}
	if got := cost.Estimate(61); got != 16 {
		t.Fatalf("Estimate(61) = %d, want 16 (partial minutes round up)", got)
	}
	if got := cost.Estimate(0); got != 10 {
		t.Fatalf("Estimate(0) = %d, want minimum of one minute", got)
	}
}

func TestJobSubmit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("reserves, persists and enqueues", func(t *testing.T) {
		t.Parallel()
		deps := newJobUCDeps()
		deps.seedProject(60)
		_ = deps.credits.Purchase(ctx, "u1", 50, "topup")

		job, err := deps.uc().Submit(ctx, "prj-1")
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		if job.Status != model.JobStatusQueued {
			t.Fatalf("status = %s, want QUEUED", job.Status)
		}
		if job.CostCreditsReserved != 10 {
			t.Fatalf("reserved = %d, want 10", job.CostCreditsReserved)
		}
		if got, _ := deps.credits.Balance(ctx, "u1"); got != 40 {
			t.Fatalf("balance = %d, want 40", got)
		}
		if deps.queue.Len() != 1 {
			t.Fatalf("job not enqueued")
		}
		if _, err := deps.jobs.FindByID(ctx, nil, job.ID); err != nil {
			t.Fatalf("job row missing: %v", err)
		}
	})

	t.Run("insufficient credits creates nothing", func(t *testing.T) {
		t.Parallel()
		deps := newJobUCDeps()
		deps.seedProject(60)
		_ = deps.credits.Purchase(ctx, "u1", 3, "topup")

		_, err := deps.uc().Submit(ctx, "prj-1")
		if !errors.Is(err, domain.ErrInsufficientCredits) {
			t.Fatalf("expected ErrInsufficientCredits, got %v", err)
		}
		if deps.queue.Len() != 0 {
			t.Fatalf("nothing may be enqueued on a rejected submit")
		}
	})

	t.Run("failed persist releases the hold", func(t *testing.T) {
		t.Parallel()
		deps := newJobUCDeps()
		deps.seedProject(60)
		_ = deps.credits.Purchase(ctx, "u1", 50, "topup")

		boom := errors.New("db down")
		deps.jobs.SaveFunc = func(ctx context.Context, tx repository.Tx, job *model.Job) error {
			return boom
		}

		_, err := deps.uc().Submit(ctx, "prj-1")
		if !errors.Is(err, boom) {
			t.Fatalf("expected save error, got %v", err)
		}
		if got, _ := deps.credits.Balance(ctx, "u1"); got != 50 {
			t.Fatalf("hold not released after failed persist: balance %d", got)
		}
	})

	t.Run("unknown project", func(t *testing.T) {
		t.Parallel()
		deps := newJobUCDeps()
		if _, err := deps.uc().Submit(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestJobCancel(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	seedJob := func(deps *jobUCDeps, status model.JobStatus) *model.Job {
		j := &model.Job{
			ID:                  "j1",
			ProjectID:           "prj-1",
			UserID:              "u1",
			Status:              status,
			CostCreditsReserved: 10,
			CreatedAt:           time.Now(),
		}
		_ = deps.jobs.Save(ctx, nil, j)
		return j
	}

	t.Run("queued job cancels immediately and releases", func(t *testing.T) {
		t.Parallel()
		deps := newJobUCDeps()
		_ = deps.credits.Purchase(ctx, "u1", 50, "topup")
		_ = deps.credits.Reserve(ctx, "u1", "j1", 10)
		seedJob(deps, model.JobStatusQueued)

		if err := deps.uc().Cancel(ctx, "j1"); err != nil {
			t.Fatalf("Cancel: %v", err)
		}
		job, _ := deps.jobs.FindByID(ctx, nil, "j1")
		if job.Status != model.JobStatusCanceled {
			t.Fatalf("status = %s, want CANCELED", job.Status)
		}
		if got, _ := deps.credits.Balance(ctx, "u1"); got != 50 {
			t.Fatalf("hold not released on queued cancel: balance %d", got)
		}
	})

	t.Run("claim race during queued cancel falls back to the flag", func(t *testing.T) {
		t.Parallel()
		deps := newJobUCDeps()
		_ = deps.credits.Purchase(ctx, "u1", 50, "topup")
		_ = deps.credits.Reserve(ctx, "u1", "j1", 10)
		row := seedJob(deps, model.JobStatusClaimed)

		// Simulate a worker winning the claim between the read and the write:
		// the cancel sees a stale QUEUED snapshot, but the row is CLAIMED.
		deps.jobs.FindByIDFunc = func(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
			stale := *row
			stale.Status = model.JobStatusQueued
			return &stale, nil
		}

		if err := deps.uc().Cancel(ctx, "j1"); err != nil {
			t.Fatalf("Cancel: %v", err)
		}

		deps.jobs.FindByIDFunc = nil
		job, _ := deps.jobs.FindByID(ctx, nil, "j1")
		if job.Status != model.JobStatusClaimed {
			t.Fatalf("claimed row must not be force-canceled, got %s", job.Status)
		}
		if !job.CancelRequested {
			t.Fatalf("cancel flag not set for the running attempt")
		}
		// The hold stays with the runner, which settles it at the boundary.
		if got, _ := deps.credits.Balance(ctx, "u1"); got != 40 {
			t.Fatalf("hold must not be released on a lost race, balance %d", got)
		}
	})

	t.Run("running job only gets the flag", func(t *testing.T) {
		t.Parallel()
		deps := newJobUCDeps()
		seedJob(deps, model.JobStatusRendering)

		if err := deps.uc().Cancel(ctx, "j1"); err != nil {
			t.Fatalf("Cancel: %v", err)
		}
		job, _ := deps.jobs.FindByID(ctx, nil, "j1")
		if job.Status != model.JobStatusRendering {
			t.Fatalf("running job must keep its status, got %s", job.Status)
		}
		if !job.CancelRequested {
			t.Fatalf("cancel flag not set")
		}
	})

	t.Run("terminal job refuses", func(t *testing.T) {
		t.Parallel()
		deps := newJobUCDeps()
		seedJob(deps, model.JobStatusReady)

		if err := deps.uc().Cancel(ctx, "j1"); !errors.Is(err, domain.ErrJobTerminal) {
			t.Fatalf("expected ErrJobTerminal, got %v", err)
		}
	})
}
