package redis

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"canvascast/internal/domain"
	"canvascast/internal/domain/ports/adapter"
)

const (
	readyKey      = "canvascast:queue:ready"
	processingKey = "canvascast:queue:processing"
	leasePrefix   = "canvascast:queue:lease:"

	dequeueBlock = time.Second
)

var _ adapter.JobQueue = (*JobQueue)(nil)

// JobQueue is the Redis transport behind adapter.JobQueue: a ready list for
// delivery order, a per-job lease key with TTL, and a processing set so
// expired leases can be found and requeued after a worker crash.
type JobQueue struct {
	cli *redis.Client
}

func NewJobQueue(c *Client) *JobQueue {
	return &JobQueue{cli: c.cli}
}

func leaseKey(jobID string) string { return leasePrefix + jobID }

func (q *JobQueue) Enqueue(ctx context.Context, jobID string) error {
	return q.cli.LPush(ctx, readyKey, jobID).Err()
}

// Dequeue blocks briefly for a ready job, then takes a lease on it. Callers
// poll: an empty queue returns domain.ErrQueueEmpty rather than blocking
// forever, so the worker loop stays responsive to shutdown.
func (q *JobQueue) Dequeue(ctx context.Context, lease time.Duration) (string, error) {
	res, err := q.cli.BRPop(ctx, dequeueBlock, readyKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", domain.ErrQueueEmpty
		}
		return "", err
	}
	jobID := res[1]

	pipe := q.cli.TxPipeline()
	pipe.Set(ctx, leaseKey(jobID), "1", lease)
	pipe.SAdd(ctx, processingKey, jobID)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", err
	}
	return jobID, nil
}

func (q *JobQueue) RenewLease(ctx context.Context, jobID string, lease time.Duration) error {
	ok, err := q.cli.Expire(ctx, leaseKey(jobID), lease).Result()
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound
	}
	return nil
}

func (q *JobQueue) Ack(ctx context.Context, jobID string) error {
	pipe := q.cli.TxPipeline()
	pipe.Del(ctx, leaseKey(jobID))
	pipe.SRem(ctx, processingKey, jobID)
	_, err := pipe.Exec(ctx)
	return err
}

// Nack returns the delivery to the front of the ready list for immediate
// redelivery.
func (q *JobQueue) Nack(ctx context.Context, jobID string) error {
	pipe := q.cli.TxPipeline()
	pipe.Del(ctx, leaseKey(jobID))
	pipe.SRem(ctx, processingKey, jobID)
	pipe.RPush(ctx, readyKey, jobID)
	_, err := pipe.Exec(ctx)
	return err
}

// Depth reports the number of jobs currently waiting in the ready list.
func (q *JobQueue) Depth(ctx context.Context) (int64, error) {
	return q.cli.LLen(ctx, readyKey).Result()
}

// ExpiredDeliveries scans the processing set for jobs whose lease key has
// expired. A worker that died mid-job stops renewing and its job appears
// here; the sweep resets the job row before Nacking the delivery back onto
// the ready list.
func (q *JobQueue) ExpiredDeliveries(ctx context.Context) ([]string, error) {
	ids, err := q.cli.SMembers(ctx, processingKey).Result()
	if err != nil {
		return nil, err
	}

	var expired []string
	for _, jobID := range ids {
		alive, err := q.cli.Exists(ctx, leaseKey(jobID)).Result()
		if err != nil {
			return expired, err
		}
		if alive == 0 {
			expired = append(expired, jobID)
		}
	}
	return expired, nil
}
