//go:build !integration

package usecase_test

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"canvascast/internal/domain"
	"canvascast/internal/domain/model"
	"canvascast/internal/domain/ports/adapter"
	"canvascast/internal/domain/ports/repository"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs the function immediately without a real transaction unless a
// custom WithTxFunc is assigned.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// ---- In-memory CreditLedgerRepository ----

type MockLedgerRepo struct {
	mu      sync.Mutex
	entries []*model.CreditLedgerEntry

	InsertFunc func(ctx context.Context, tx repository.Tx, e *model.CreditLedgerEntry) error
}

var _ repository.CreditLedgerRepository = (*MockLedgerRepo)(nil)

func NewMockLedgerRepo() *MockLedgerRepo { return &MockLedgerRepo{} }

func (r *MockLedgerRepo) Insert(ctx context.Context, tx repository.Tx, e *model.CreditLedgerEntry) error {
	if r.InsertFunc != nil {
		return r.InsertFunc(ctx, tx, e)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *e
	r.entries = append(r.entries, &cp)
	return nil
}

func (r *MockLedgerRepo) BalanceByUser(ctx context.Context, tx repository.Tx, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sum := 0
	for _, e := range r.entries {
		if e.UserID == userID {
			sum += e.Amount
		}
	}
	return sum, nil
}

func (r *MockLedgerRepo) ListByJob(ctx context.Context, tx repository.Tx, jobID string) ([]*model.CreditLedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.CreditLedgerEntry
	for _, e := range r.entries {
		if e.JobID == jobID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MockLedgerRepo) ByType(jobID string, t model.LedgerEntryType) []*model.CreditLedgerEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.CreditLedgerEntry
	for _, e := range r.entries {
		if e.JobID == jobID && e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// ---- In-memory JobRepository ----

type MockJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*model.Job

	SaveFunc     func(ctx context.Context, tx repository.Tx, job *model.Job) error
	FindByIDFunc func(ctx context.Context, tx repository.Tx, id string) (*model.Job, error)
}

var _ repository.JobRepository = (*MockJobRepo)(nil)

func NewMockJobRepo() *MockJobRepo {
	return &MockJobRepo{jobs: map[string]*model.Job{}}
}

func (r *MockJobRepo) Save(ctx context.Context, tx repository.Tx, job *model.Job) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, job)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r *MockJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	if r.FindByIDFunc != nil {
		return r.FindByIDFunc(ctx, tx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (r *MockJobRepo) Update(ctx context.Context, tx repository.Tx, id string, patch repository.JobUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if patch.ExpectStatus != nil && j.Status != *patch.ExpectStatus {
		return domain.ErrNotFound
	}
	if patch.Status != nil {
		j.Status = *patch.Status
	}
	if patch.Progress != nil {
		j.Progress = *patch.Progress
	}
	if patch.RetryCount != nil {
		j.RetryCount = *patch.RetryCount
	}
	if patch.CancelRequested != nil {
		j.CancelRequested = *patch.CancelRequested
	}
	if patch.FinishedAt != nil {
		j.FinishedAt = patch.FinishedAt
	}
	j.UpdatedAt = time.Now()
	return nil
}

func (r *MockJobRepo) ClaimQueued(ctx context.Context, id string) (*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if j.Status != model.JobStatusQueued {
		return nil, domain.ErrJobNotClaimable
	}
	j.Status = model.JobStatusClaimed
	cp := *j
	return &cp, nil
}

func (r *MockJobRepo) ResetStalled(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return false, nil
	}
	if j.DLQAt != nil || j.Status == model.JobStatusQueued ||
		j.Status == model.JobStatusReady || j.Status == model.JobStatusCanceled {
		return false, nil
	}
	j.Status = model.JobStatusQueued
	j.UpdatedAt = time.Now()
	return true, nil
}

func (r *MockJobRepo) ListDeadLettered(ctx context.Context, tx repository.Tx) ([]*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Job
	for _, j := range r.jobs {
		if j.DLQAt != nil {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ---- In-memory ProjectRepository ----

type MockProjectRepo struct {
	mu       sync.Mutex
	projects map[string]*model.Project
}

var _ repository.ProjectRepository = (*MockProjectRepo)(nil)

func NewMockProjectRepo() *MockProjectRepo {
	return &MockProjectRepo{projects: map[string]*model.Project{}}
}

func (r *MockProjectRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *MockProjectRepo) Save(ctx context.Context, tx repository.Tx, p *model.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.projects[p.ID] = &cp
	return nil
}

// ---- In-memory JobQueue ----

type MockQueue struct {
	mu  sync.Mutex
	ids []string

	EnqueueFunc func(ctx context.Context, jobID string) error
}

var _ adapter.JobQueue = (*MockQueue)(nil)

func NewMockQueue() *MockQueue { return &MockQueue{} }

func (q *MockQueue) Enqueue(ctx context.Context, jobID string) error {
	if q.EnqueueFunc != nil {
		return q.EnqueueFunc(ctx, jobID)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, jobID)
	return nil
}

func (q *MockQueue) Dequeue(ctx context.Context, lease time.Duration) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.ids) == 0 {
		return "", domain.ErrQueueEmpty
	}
	id := q.ids[0]
	q.ids = q.ids[1:]
	return id, nil
}

func (q *MockQueue) RenewLease(ctx context.Context, jobID string, lease time.Duration) error { return nil }
func (q *MockQueue) Ack(ctx context.Context, jobID string) error                             { return nil }

func (q *MockQueue) Nack(ctx context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append([]string{jobID}, q.ids...)
	return nil
}

func (q *MockQueue) ExpiredDeliveries(ctx context.Context) ([]string, error) { return nil, nil }

func (q *MockQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ids)
}
