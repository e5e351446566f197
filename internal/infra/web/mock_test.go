//go:build !integration

package web

import (
	"context"
	"sort"
	"time"

	"canvascast/internal/domain"
	"canvascast/internal/domain/model"
	"canvascast/internal/domain/ports/repository"
)

// ---- function-field mocks for the use cases behind the handlers ----

type mockJobUC struct {
	SubmitFunc func(ctx context.Context, projectID string) (*model.Job, error)
	GetFunc    func(ctx context.Context, jobID string) (*model.Job, error)
	CancelFunc func(ctx context.Context, jobID string) error
}

func (m *mockJobUC) Submit(ctx context.Context, projectID string) (*model.Job, error) {
	if m.SubmitFunc != nil {
		return m.SubmitFunc(ctx, projectID)
	}
	return nil, domain.ErrNotFound
}

func (m *mockJobUC) Get(ctx context.Context, jobID string) (*model.Job, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, jobID)
	}
	return nil, domain.ErrNotFound
}

func (m *mockJobUC) Cancel(ctx context.Context, jobID string) error {
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, jobID)
	}
	return domain.ErrNotFound
}

type mockCreditsUC struct {
	balances map[string]int

	PurchaseFunc func(ctx context.Context, userID string, amount int, note string) error
}

func newMockCreditsUC() *mockCreditsUC {
	return &mockCreditsUC{balances: map[string]int{}}
}

func (m *mockCreditsUC) Reserve(ctx context.Context, userID, jobID string, amount int) error {
	return nil
}
func (m *mockCreditsUC) RefundReservation(ctx context.Context, userID, jobID string, amount int, note string) error {
	return nil
}
func (m *mockCreditsUC) ConvertToSpend(ctx context.Context, userID, jobID string, amount int, note string) error {
	return nil
}
func (m *mockCreditsUC) ReleaseReservation(ctx context.Context, userID, jobID string, amount int, note string) error {
	return nil
}

func (m *mockCreditsUC) Purchase(ctx context.Context, userID string, amount int, note string) error {
	if m.PurchaseFunc != nil {
		return m.PurchaseFunc(ctx, userID, amount, note)
	}
	if amount <= 0 {
		return domain.ErrInvalidArgument
	}
	m.balances[userID] += amount
	return nil
}

func (m *mockCreditsUC) Balance(ctx context.Context, userID string) (int, error) {
	return m.balances[userID], nil
}

// ---- in-memory repos backing the real DLQ manager ----

type memJobRepo struct {
	byID map[string]*model.Job
}

func newMemJobRepo() *memJobRepo { return &memJobRepo{byID: map[string]*model.Job{}} }

func (m *memJobRepo) Save(ctx context.Context, tx repository.Tx, job *model.Job) error {
	cp := *job
	m.byID[job.ID] = &cp
	return nil
}

func (m *memJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	j, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *memJobRepo) Update(ctx context.Context, tx repository.Tx, id string, patch repository.JobUpdate) error {
	j, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	if patch.ExpectStatus != nil && j.Status != *patch.ExpectStatus {
		return domain.ErrNotFound
	}
	if patch.Status != nil {
		j.Status = *patch.Status
	}
	if patch.RetryCount != nil {
		j.RetryCount = *patch.RetryCount
	}
	if patch.ClearDLQ {
		j.DLQAt = nil
		j.DLQReason = ""
	}
	if patch.ClearError {
		j.ErrorCode = ""
		j.ErrorMessage = ""
		j.FailedStep = ""
	}
	if patch.ClearTiming {
		j.StartedAt = nil
		j.FinishedAt = nil
	}
	j.UpdatedAt = time.Now()
	return nil
}

func (m *memJobRepo) ClaimQueued(ctx context.Context, id string) (*model.Job, error) {
	j, ok := m.byID[id]
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

func (m *memJobRepo) ResetStalled(ctx context.Context, id string) (bool, error) {
	j, ok := m.byID[id]
	if !ok {
		return false, nil
	}
	if j.DLQAt != nil || j.Status == model.JobStatusQueued ||
		j.Status == model.JobStatusReady || j.Status == model.JobStatusCanceled {
		return false, nil
	}
	j.Status = model.JobStatusQueued
	return true, nil
}

func (m *memJobRepo) ListDeadLettered(ctx context.Context, tx repository.Tx) ([]*model.Job, error) {
	var out []*model.Job
	for _, j := range m.byID {
		if j.DLQAt != nil {
			cp := *j
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].DLQAt.After(*out[b].DLQAt) })
	return out, nil
}

type memProjectRepo struct {
	byID map[string]*model.Project
}

func newMemProjectRepo() *memProjectRepo {
	return &memProjectRepo{byID: map[string]*model.Project{}}
}

func (m *memProjectRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Project, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memProjectRepo) Save(ctx context.Context, tx repository.Tx, p *model.Project) error {
	cp := *p
	m.byID[p.ID] = &cp
	return nil
}

type memQueue struct {
	ids []string
}

func (q *memQueue) Enqueue(ctx context.Context, jobID string) error {
	q.ids = append(q.ids, jobID)
	return nil
}

func (q *memQueue) Dequeue(ctx context.Context, lease time.Duration) (string, error) {
	if len(q.ids) == 0 {
		return "", domain.ErrQueueEmpty
	}
	id := q.ids[0]
	q.ids = q.ids[1:]
	return id, nil
}

func (q *memQueue) RenewLease(ctx context.Context, jobID string, lease time.Duration) error {
	return nil
}
func (q *memQueue) Ack(ctx context.Context, jobID string) error  { return nil }
func (q *memQueue) Nack(ctx context.Context, jobID string) error { return nil }
func (q *memQueue) ExpiredDeliveries(ctx context.Context) ([]string, error) {
	return nil, nil
}
