package pipeline

import (
	"context"
	"sync"
	"time"

	"canvascast/internal/domain"
	"canvascast/internal/domain/model"
	"canvascast/internal/domain/ports/adapter"
	"canvascast/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// -----------------------------
// In-memory repositories
// -----------------------------

type memJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*model.Job
}

var _ repository.JobRepository = (*memJobRepo)(nil)

func newMemJobRepo() *memJobRepo { return &memJobRepo{jobs: map[string]*model.Job{}} }

func (r *memJobRepo) Save(ctx context.Context, tx repository.Tx, job *model.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r *memJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (r *memJobRepo) Update(ctx context.Context, tx repository.Tx, id string, patch repository.JobUpdate) error {
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
	if patch.CostCreditsFinal != nil {
		j.CostCreditsFinal = *patch.CostCreditsFinal
	}
	if patch.RetryCount != nil {
		j.RetryCount = *patch.RetryCount
	}
	if patch.CancelRequested != nil {
		j.CancelRequested = *patch.CancelRequested
	}
	if patch.ErrorCode != nil {
		j.ErrorCode = *patch.ErrorCode
	}
	if patch.ErrorMessage != nil {
		j.ErrorMessage = *patch.ErrorMessage
	}
	if patch.FailedStep != nil {
		j.FailedStep = *patch.FailedStep
	}
	if patch.DLQAt != nil {
		t := *patch.DLQAt
		j.DLQAt = &t
	}
	if patch.DLQReason != nil {
		j.DLQReason = *patch.DLQReason
	}
	if patch.StartedAt != nil {
		t := *patch.StartedAt
		j.StartedAt = &t
	}
	if patch.FinishedAt != nil {
		t := *patch.FinishedAt
		j.FinishedAt = &t
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

func (r *memJobRepo) ClaimQueued(ctx context.Context, id string) (*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if j.Status != model.JobStatusQueued {
		return nil, domain.ErrJobNotClaimable
	}
	now := time.Now()
	j.Status = model.JobStatusClaimed
	j.StartedAt = &now
	cp := *j
	return &cp, nil
}

func (r *memJobRepo) ResetStalled(ctx context.Context, id string) (bool, error) {
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

func (r *memJobRepo) ListDeadLettered(ctx context.Context, tx repository.Tx) ([]*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Job
	for _, j := range r.jobs {
		if j.DLQAt != nil {
			cp := *j
			out = append(out, &cp)
		}
	}
	// newest first
	for i := 0; i < len(out); i++ {
		for k := i + 1; k < len(out); k++ {
			if out[k].DLQAt.After(*out[i].DLQAt) {
				out[i], out[k] = out[k], out[i]
			}
		}
	}
	return out, nil
}

type memCheckpointRepo struct {
	mu  sync.Mutex
	cps map[string]*model.Checkpoint
}

var _ repository.CheckpointRepository = (*memCheckpointRepo)(nil)

func newMemCheckpointRepo() *memCheckpointRepo {
	return &memCheckpointRepo{cps: map[string]*model.Checkpoint{}}
}

func (r *memCheckpointRepo) Save(ctx context.Context, tx repository.Tx, cp *model.Checkpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *cp
	r.cps[cp.JobID] = &c
	return nil
}

func (r *memCheckpointRepo) Load(ctx context.Context, tx repository.Tx, jobID string) (*model.Checkpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp, ok := r.cps[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *cp
	return &c, nil
}

func (r *memCheckpointRepo) Delete(ctx context.Context, tx repository.Tx, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cps[jobID]; !ok {
		return domain.ErrNotFound
	}
	delete(r.cps, jobID)
	return nil
}

type memProjectRepo struct {
	mu       sync.Mutex
	projects map[string]*model.Project
}

var _ repository.ProjectRepository = (*memProjectRepo)(nil)

func newMemProjectRepo() *memProjectRepo {
	return &memProjectRepo{projects: map[string]*model.Project{}}
}

func (r *memProjectRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memProjectRepo) Save(ctx context.Context, tx repository.Tx, p *model.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.projects[p.ID] = &cp
	return nil
}

// -----------------------------
// Queue, storage, credits
// -----------------------------

type memQueue struct {
	mu    sync.Mutex
	ready []string
}

var _ adapter.JobQueue = (*memQueue)(nil)

func newMemQueue() *memQueue { return &memQueue{} }

func (q *memQueue) Enqueue(ctx context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ready = append(q.ready, jobID)
	return nil
}

func (q *memQueue) Dequeue(ctx context.Context, lease time.Duration) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.ready) == 0 {
		return "", domain.ErrQueueEmpty
	}
	id := q.ready[0]
	q.ready = q.ready[1:]
	return id, nil
}

func (q *memQueue) RenewLease(ctx context.Context, jobID string, lease time.Duration) error { return nil }
func (q *memQueue) Ack(ctx context.Context, jobID string) error                             { return nil }
func (q *memQueue) Nack(ctx context.Context, jobID string) error {
	return q.Enqueue(ctx, jobID)
}
func (q *memQueue) ExpiredDeliveries(ctx context.Context) ([]string, error) { return nil, nil }

func (q *memQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ready)
}

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

var _ adapter.ObjectStorage = (*memStore)(nil)

func newMemStore() *memStore { return &memStore{objects: map[string][]byte{}} }

func (s *memStore) Upload(ctx context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.objects[key] = cp
	return nil
}

func (s *memStore) Download(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (s *memStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok, nil
}

// mockCredits records settlement calls the runner makes.
type mockCredits struct {
	mu       sync.Mutex
	Refunds  []creditCall
	Spends   []creditCall
	Releases []creditCall
}

type creditCall struct {
	UserID string
	JobID  string
	Amount int
	Note   string
}

var _ CreditService = (*mockCredits)(nil)

func (m *mockCredits) RefundReservation(ctx context.Context, userID, jobID string, amount int, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Refunds = append(m.Refunds, creditCall{userID, jobID, amount, note})
	return nil
}

func (m *mockCredits) ConvertToSpend(ctx context.Context, userID, jobID string, amount int, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Spends = append(m.Spends, creditCall{userID, jobID, amount, note})
	return nil
}

func (m *mockCredits) ReleaseReservation(ctx context.Context, userID, jobID string, amount int, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Releases = append(m.Releases, creditCall{userID, jobID, amount, note})
	return nil
}

// -----------------------------
// Stub generation adapters
// -----------------------------

type stubScript struct {
	GenerateScriptFunc func(ctx context.Context, req adapter.ScriptRequest) (*model.Script, error)
}

func (s *stubScript) GenerateScript(ctx context.Context, req adapter.ScriptRequest) (*model.Script, error) {
	if s.GenerateScriptFunc != nil {
		return s.GenerateScriptFunc(ctx, req)
	}
	return &model.Script{
		Title:     "Test Video",
		Sections:  []model.ScriptSection{{Heading: "Intro", Text: "Hello world."}},
		Narration: "Hello world this is a test narration",
	}, nil
}

type stubPlanner struct {
	PlanVisualsFunc func(ctx context.Context, script *model.Script, maxScenes int) (*model.VisualPlan, error)
}

func (s *stubPlanner) PlanVisuals(ctx context.Context, script *model.Script, maxScenes int) (*model.VisualPlan, error) {
	if s.PlanVisualsFunc != nil {
		return s.PlanVisualsFunc(ctx, script, maxScenes)
	}
	return &model.VisualPlan{Scenes: []model.Scene{
		{Index: 0, Prompt: "a sunrise", StartSec: 0, EndSec: 4},
		{Index: 1, Prompt: "a city street", StartSec: 4, EndSec: 8},
	}}, nil
}

type stubSpeech struct {
	SynthesizeFunc func(ctx context.Context, text, voice string) (*adapter.SynthesisResult, error)
}

func (s *stubSpeech) Synthesize(ctx context.Context, text, voice string) (*adapter.SynthesisResult, error) {
	if s.SynthesizeFunc != nil {
		return s.SynthesizeFunc(ctx, text, voice)
	}
	return &adapter.SynthesisResult{Audio: []byte("mp3-bytes"), Seconds: 8}, nil
}

type stubAligner struct {
	AlignFunc func(ctx context.Context, audio []byte, narration string) ([]model.CaptionCue, error)
}

func (s *stubAligner) Align(ctx context.Context, audio []byte, narration string) ([]model.CaptionCue, error) {
	if s.AlignFunc != nil {
		return s.AlignFunc(ctx, audio, narration)
	}
	return []model.CaptionCue{
		{Word: "Hello", Start: 0, End: 0.4},
		{Word: "world", Start: 0.4, End: 0.9},
	}, nil
}

type stubImages struct {
	GenerateImageFunc func(ctx context.Context, prompt, style string) ([]byte, error)
}

func (s *stubImages) GenerateImage(ctx context.Context, prompt, style string) ([]byte, error) {
	if s.GenerateImageFunc != nil {
		return s.GenerateImageFunc(ctx, prompt, style)
	}
	return []byte("png-bytes"), nil
}

type stubRender struct {
	RenderFunc func(ctx context.Context, req adapter.RenderRequest) ([]byte, error)
}

func (s *stubRender) Render(ctx context.Context, req adapter.RenderRequest) ([]byte, error) {
	if s.RenderFunc != nil {
		return s.RenderFunc(ctx, req)
	}
	return []byte("mp4-bytes"), nil
}

// -----------------------------
// Harness
// -----------------------------

type harness struct {
	jobs        *memJobRepo
	projects    *memProjectRepo
	checkpoints *memCheckpointRepo
	queue       *memQueue
	store       *memStore
	credits     *mockCredits
	script      *stubScript
	planner     *stubPlanner
	speech      *stubSpeech
	aligner     *stubAligner
	images      *stubImages
	render      *stubRender
	runner      *Runner
}

func newHarness(cfg Config) *harness {
	h := &harness{
		jobs:        newMemJobRepo(),
		projects:    newMemProjectRepo(),
		checkpoints: newMemCheckpointRepo(),
		queue:       newMemQueue(),
		store:       newMemStore(),
		credits:     &mockCredits{},
		script:      &stubScript{},
		planner:     &stubPlanner{},
		speech:      &stubSpeech{},
		aligner:     &stubAligner{},
		images:      &stubImages{},
		render:      &stubRender{},
	}
	log := testLogger()
	services := &Services{
		Script: h.script,
		Plan:   h.planner,
		Speech: h.speech,
		Align:  h.aligner,
		Images: h.images,
		Render: h.render,
		Store:  h.store,
	}
	h.runner = NewRunner(
		h.jobs,
		h.projects,
		NewCheckpointStore(h.checkpoints, log),
		NewRecoveryAdvisor(Steps()),
		NewRefundPolicy(DefaultRefundThreshold),
		h.credits,
		h.queue,
		services,
		cfg,
		log,
	)
	return h
}

func (h *harness) seedJob(id string, reserved int) *model.Job {
	project := &model.Project{
		ID:         "prj-" + id,
		UserID:     "user-1",
		Title:      "Test",
		Prompt:     "make a video about testing",
		Style:      "flat",
		Voice:      "alloy",
		TargetSecs: 30,
		CreatedAt:  time.Now(),
	}
	_ = h.projects.Save(context.Background(), nil, project)
	job := &model.Job{
		ID:                  id,
		ProjectID:           project.ID,
		UserID:              project.UserID,
		Status:              model.JobStatusQueued,
		Progress:            0,
		CostCreditsReserved: reserved,
		CreatedAt:           time.Now(),
	}
	_ = h.jobs.Save(context.Background(), nil, job)
	return job
}
