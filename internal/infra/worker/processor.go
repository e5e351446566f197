package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"canvascast/internal/domain"
	"canvascast/internal/domain/model"
	"canvascast/internal/domain/ports/adapter"
	"canvascast/internal/domain/ports/repository"
	"canvascast/internal/infra/metrics"
	"canvascast/internal/pipeline"
)

// depthReporter is implemented by queue transports that can cheaply report
// the ready-list length. Optional; the metric is skipped when absent.
type depthReporter interface {
	Depth(ctx context.Context) (int64, error)
}

// SweepLock serializes the expired-lease sweep across worker processes so
// the processing set is only scanned by one of them at a time.
type SweepLock interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

const sweepLockKey = "canvascast:sweep"

// Processor connects the queue to the pipeline runner: it polls for
// deliveries, hands each one to the pool, and keeps the delivery lease alive
// while the runner works. The runner owns all job-row state; the processor
// only owns the delivery (Ack) and the crash-recovery sweep.
type Processor struct {
	queue  adapter.JobQueue
	jobs   repository.JobRepository
	runner *pipeline.Runner
	lock   SweepLock // nil means sweep without cross-process exclusion
	log    *zerolog.Logger

	poll  time.Duration
	lease time.Duration
	sweep time.Duration
}

func NewProcessor(
	queue adapter.JobQueue,
	jobs repository.JobRepository,
	runner *pipeline.Runner,
	lock SweepLock,
	poll, lease, sweep time.Duration,
	log *zerolog.Logger,
) *Processor {
	if poll <= 0 {
		poll = 2 * time.Second
	}
	if lease <= 0 {
		lease = 5 * time.Minute
	}
	if sweep <= 0 {
		sweep = time.Minute
	}
	return &Processor{
		queue:  queue,
		jobs:   jobs,
		runner: runner,
		lock:   lock,
		poll:   poll,
		lease:  lease,
		sweep:  sweep,
		log:    log,
	}
}

// Start runs the poll and sweep loops until ctx is canceled.
// This should be run in a goroutine.
func (p *Processor) Start(ctx context.Context, pool *Pool) {
	p.log.Info().Dur("poll", p.poll).Dur("lease", p.lease).Msg("job processor started")

	go p.sweepLoop(ctx)

	ticker := time.NewTicker(p.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("job processor stopping")
			return
		case <-ticker.C:
			if err := pool.Submit(func(ctx context.Context) error {
				p.processOne(ctx)
				return nil
			}); err != nil {
				// All workers busy; the delivery stays queued for a later tick.
				p.log.Debug().Err(err).Msg("poll tick skipped")
			}
		}
	}
}

func (p *Processor) processOne(ctx context.Context) {
	jobID, err := p.queue.Dequeue(ctx, p.lease)
	if err != nil {
		if !errors.Is(err, domain.ErrQueueEmpty) && ctx.Err() == nil {
			p.log.Error().Err(err).Msg("dequeue failed")
		}
		return
	}

	log := p.log.With().Str("job_id", jobID).Logger()
	log.Info().Msg("processing job")

	stopRenew := p.keepLeaseAlive(ctx, jobID)
	job, err := p.runner.Run(ctx, jobID)
	stopRenew()

	// The delivery is consumed in every outcome: a requeued retry was
	// re-enqueued by the runner as a fresh delivery, and a lost claim race
	// means another worker already owns the job row.
	if ackErr := p.queue.Ack(context.Background(), jobID); ackErr != nil {
		log.Error().Err(ackErr).Msg("ack failed")
	}

	if err != nil {
		switch {
		case errors.Is(err, domain.ErrJobNotClaimable):
			log.Debug().Msg("job already claimed, dropping delivery")
		case errors.Is(err, domain.ErrNotFound):
			log.Warn().Msg("delivery for unknown job dropped")
		default:
			log.Error().Err(err).Msg("job run failed")
		}
		return
	}

	p.observe(job)
	log.Info().Str("status", string(job.Status)).Int("progress", job.Progress).Msg("job attempt finished")
}

// keepLeaseAlive renews the delivery lease while the runner works, so slow
// renders are not stolen by the expired-lease sweep. The returned stop func
// must be called before acking.
func (p *Processor) keepLeaseAlive(ctx context.Context, jobID string) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(p.lease / 3)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := p.queue.RenewLease(ctx, jobID, p.lease); err != nil {
					p.log.Warn().Str("job_id", jobID).Err(err).Msg("lease renewal failed")
				}
			}
		}
	}()
	var once bool
	return func() {
		if !once {
			once = true
			close(done)
		}
	}
}

func (p *Processor) observe(job *model.Job) {
	switch job.Status {
	case model.JobStatusReady:
		metrics.IncJobProcessed("completed")
	case model.JobStatusCanceled:
		metrics.IncJobProcessed("canceled")
	case model.JobStatusFailed:
		metrics.IncJobProcessed("failed")
		metrics.IncStepFailure(job.FailedStep, job.ErrorCode)
	case model.JobStatusQueued:
		metrics.IncJobRetry()
		return
	default:
		return
	}
	if job.StartedAt != nil && job.FinishedAt != nil {
		metrics.ObserveJobDuration(job.FinishedAt.Sub(*job.StartedAt).Seconds())
	}
}

func (p *Processor) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(p.sweep)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sweepOnce(ctx)
		}
	}
}

func (p *Processor) sweepOnce(ctx context.Context) {
	if p.lock != nil {
		token, err := p.lock.TryLock(ctx, sweepLockKey, p.sweep)
		if err != nil {
			// Another worker holds the sweep; its pass covers us.
			return
		}
		defer func() { _ = p.lock.Unlock(ctx, sweepLockKey, token) }()
	}

	ids, err := p.queue.ExpiredDeliveries(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.log.Error().Err(err).Msg("expired-lease sweep failed")
		}
		return
	}

	recovered := 0
	for _, jobID := range ids {
		// Row first, delivery second: the redelivery must find a claimable
		// row or it gets dropped as unclaimable and the job is stuck.
		reset, err := p.jobs.ResetStalled(ctx, jobID)
		if err != nil {
			// Leave the delivery in the processing set; the next sweep
			// retries it.
			p.log.Error().Str("job_id", jobID).Err(err).Msg("resetting stalled job failed")
			continue
		}
		if err := p.queue.Nack(ctx, jobID); err != nil {
			p.log.Error().Str("job_id", jobID).Err(err).Msg("requeueing expired delivery failed")
			continue
		}
		recovered++
		p.log.Warn().Str("job_id", jobID).Bool("row_reset", reset).Msg("recovered expired lease")
	}
	if recovered > 0 {
		metrics.AddRequeued(recovered)
	}
	p.gauges(ctx)
}

func (p *Processor) gauges(ctx context.Context) {
	if dr, ok := p.queue.(depthReporter); ok {
		if depth, err := dr.Depth(ctx); err == nil {
			metrics.SetQueueDepth(depth)
		}
	}
	if parked, err := p.jobs.ListDeadLettered(ctx, nil); err == nil {
		metrics.SetDeadLetterDepth(len(parked))
	}
}
