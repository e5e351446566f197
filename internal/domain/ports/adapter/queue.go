package adapter

import (
	"context"
	"time"
)

// JobQueue is the at-least-once delivery transport between the API and the
// workers. Dequeue takes a lease on the returned job; the worker must Ack
// when it is done with the delivery (success, requeue, or DLQ are all
// decided against the job row, not the queue) or Nack to return it
// immediately. A lease that expires without an Ack shows up in
// ExpiredDeliveries; the sweep resets the job row and Nacks the delivery,
// which is how a worker crash mid-job is recovered.
type JobQueue interface {
	Enqueue(ctx context.Context, jobID string) error
	Dequeue(ctx context.Context, lease time.Duration) (jobID string, err error)
	RenewLease(ctx context.Context, jobID string, lease time.Duration) error
	Ack(ctx context.Context, jobID string) error
	Nack(ctx context.Context, jobID string) error
	// ExpiredDeliveries lists jobs still held in the processing set whose
	// lease has lapsed, without touching them.
	ExpiredDeliveries(ctx context.Context) ([]string, error)
}
