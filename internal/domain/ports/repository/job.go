package repository

import (
	"context"
	"time"

	"canvascast/internal/domain/model"
)

// JobUpdate is a partial patch applied to a job row. Nil fields are left
// untouched. ClearDLQ / ClearError / ClearTiming reset their groups to null
// so a retried job carries no stale failure markers. ExpectStatus guards the
// write: when set, the patch only applies while the row still holds that
// status, and a changed row surfaces as domain.ErrNotFound.
type JobUpdate struct {
	ExpectStatus     *model.JobStatus
	Status           *model.JobStatus
	Progress         *int
	CostCreditsFinal *int
	RetryCount       *int
	CancelRequested  *bool
	ErrorCode        *string
	ErrorMessage     *string
	FailedStep       *string
	DLQAt            *time.Time
	DLQReason        *string
	StartedAt        *time.Time
	FinishedAt       *time.Time
	ClearDLQ         bool
	ClearError       bool
	ClearTiming      bool
}

type JobRepository interface {
	Save(ctx context.Context, tx Tx, job *model.Job) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Job, error)
	Update(ctx context.Context, tx Tx, id string, patch JobUpdate) error
	// ClaimQueued atomically moves the job from QUEUED to CLAIMED and returns
	// the claimed row. The conditional update is single-writer-wins: a second
	// worker racing on the same job gets ErrJobNotClaimable.
	ClaimQueued(ctx context.Context, id string) (*model.Job, error)
	// ResetStalled returns an interrupted attempt to QUEUED so an
	// expired-lease redelivery can claim it again. Rows that are READY,
	// CANCELED, parked in the DLQ, or already QUEUED are left untouched.
	// Reports whether the row changed.
	ResetStalled(ctx context.Context, id string) (bool, error)
	// ListDeadLettered returns jobs with a non-null dlq_at, newest first.
	ListDeadLettered(ctx context.Context, tx Tx) ([]*model.Job, error)
}
