package model

import "time"

// Checkpoint is the durable snapshot of a job's accumulated artifacts and the
// last step that completed. One row per job, overwritten after every
// successful step. A job that has not completed any step yet is represented
// by an empty LastCompletedStep and an empty bag, not by an error.
type Checkpoint struct {
	JobID             string      `json:"job_id"`
	LastCompletedStep string      `json:"last_completed_step"`
	Artifacts         ArtifactBag `json:"artifacts"`
	SavedAt           time.Time   `json:"saved_at"`
}

// Empty reports whether the checkpoint records no completed work.
func (c *Checkpoint) Empty() bool {
	return c == nil || c.LastCompletedStep == ""
}
