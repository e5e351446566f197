package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
)

// Task is one unit of work handed to the pool, usually a single job attempt.
type Task func(ctx context.Context) error

var ErrPoolSaturated = errors.New("worker pool saturated")

// Pool runs submitted tasks on a fixed set of goroutines. Submission never
// blocks: when every worker is busy and the buffer is full, Submit rejects
// the task so a slow render cannot back up the poll loop. The rejected
// delivery simply stays on the queue for a later tick.
type Pool struct {
	wg    sync.WaitGroup
	tasks chan Task
	quit  chan struct{}
	size  int
	log   *zerolog.Logger
}

func NewPool(size int, log *zerolog.Logger) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	return &Pool{
		tasks: make(chan Task, size*4),
		quit:  make(chan struct{}),
		size:  size,
		log:   log,
	}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-p.quit:
					return
				case task := <-p.tasks:
					if task == nil {
						continue
					}
					if err := task(ctx); err != nil {
						p.log.Error().Int("worker", id).Err(err).Msg("task failed")
					}
				}
			}
		}(i)
	}
}

// Stop signals the workers and waits for in-flight tasks to finish.
func (p *Pool) Stop() {
	close(p.quit)
	p.wg.Wait()
}

func (p *Pool) Submit(task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrPoolSaturated
	}
}
