package model

import "time"

type JobStatus string

const (
	JobStatusQueued        JobStatus = "QUEUED"
	JobStatusClaimed       JobStatus = "CLAIMED"
	JobStatusScripting     JobStatus = "SCRIPTING"
	JobStatusVoiceGen      JobStatus = "VOICE_GEN"
	JobStatusAlignment     JobStatus = "ALIGNMENT"
	JobStatusVisualPlan    JobStatus = "VISUAL_PLAN"
	JobStatusImageGen      JobStatus = "IMAGE_GEN"
	JobStatusTimelineBuild JobStatus = "TIMELINE_BUILD"
	JobStatusRendering     JobStatus = "RENDERING"
	JobStatusPackaging     JobStatus = "PACKAGING"
	JobStatusReady         JobStatus = "READY"
	JobStatusFailed        JobStatus = "FAILED"
	JobStatusCanceled      JobStatus = "CANCELED"
)

// statusOrder is the single source of truth for the canonical status order.
// All before/after comparisons derive from this index, never from string
// matching on status names.
var statusOrder = []JobStatus{
	JobStatusQueued,
	JobStatusClaimed,
	JobStatusScripting,
	JobStatusVoiceGen,
	JobStatusAlignment,
	JobStatusVisualPlan,
	JobStatusImageGen,
	JobStatusTimelineBuild,
	JobStatusRendering,
	JobStatusPackaging,
	JobStatusReady,
	JobStatusFailed,
	JobStatusCanceled,
}

// Index returns the position of s in the canonical order, or -1 for an
// unknown status.
func (s JobStatus) Index() int {
	for i, st := range statusOrder {
		if st == s {
			return i
		}
	}
	return -1
}

func (s JobStatus) Terminal() bool {
	return s == JobStatusReady || s == JobStatusFailed || s == JobStatusCanceled
}

// Before reports whether s comes strictly before other in canonical order.
func (s JobStatus) Before(other JobStatus) bool {
	return s.Index() >= 0 && other.Index() >= 0 && s.Index() < other.Index()
}

// Job is one video-generation request in flight.
type Job struct {
	ID                  string
	ProjectID           string
	UserID              string
	Status              JobStatus
	Progress            int // 0-100, non-decreasing within an attempt
	CostCreditsReserved int
	CostCreditsFinal    int
	RetryCount          int
	CancelRequested     bool
	DLQAt               *time.Time
	DLQReason           string
	ErrorCode           string
	ErrorMessage        string
	FailedStep          string
	StartedAt           *time.Time
	FinishedAt          *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// InDeadLetter reports whether the job is parked for manual intervention.
func (j *Job) InDeadLetter() bool { return j.DLQAt != nil }
