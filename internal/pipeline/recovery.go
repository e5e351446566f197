package pipeline

import (
	"fmt"

	"canvascast/internal/domain/model"
)

// RecoveryAdvisor decides whether a retry can resume from a checkpoint or
// must restart from the beginning. Steps before the resume threshold are
// cheap to redo; image generation and everything after it is paid third-party
// work that should not be repeated needlessly.
type RecoveryAdvisor struct {
	steps []Step
	// resumeFrom is the first step considered expensive enough to preserve.
	resumeFrom StepName
}

func NewRecoveryAdvisor(steps []Step) *RecoveryAdvisor {
	return &RecoveryAdvisor{steps: steps, resumeFrom: StepImageGen}
}

// CanResume reports whether cp allows skipping already-completed steps. Nil
// or never-saved checkpoints do not.
func (a *RecoveryAdvisor) CanResume(cp *model.Checkpoint) bool {
	if cp.Empty() {
		return false
	}
	last := StepIndex(a.steps, StepName(cp.LastCompletedStep))
	threshold := StepIndex(a.steps, a.resumeFrom)
	if last < 0 || last >= len(a.steps)-1 {
		// unknown step name, or nothing left to run
		return false
	}
	return last >= threshold
}

// RetryOptions describes how the next attempt should start.
type RetryOptions struct {
	CanResume bool
	NextStep  StepName // zero when not resumable
	Message   string
}

// preservedNote maps a last-completed step to a human explanation of what a
// resumed retry keeps.
var preservedNote = map[StepName]string{
	StepImageGen: "images were generated successfully",
	StepTimeline: "images and timeline are preserved",
	StepRender:   "the rendered video is preserved",
	StepPackage:  "the packaged output is preserved",
}

// Options returns the resume decision for cp, with the next step to run and
// a message explaining what was preserved (or why a full retry is required).
func (a *RecoveryAdvisor) Options(cp *model.Checkpoint) RetryOptions {
	if !a.CanResume(cp) {
		return RetryOptions{
			CanResume: false,
			Message:   "no resumable checkpoint; a full retry from the first step is required",
		}
	}
	last := StepName(cp.LastCompletedStep)
	next := a.steps[StepIndex(a.steps, last)+1].Name

	note, ok := preservedNote[last]
	if !ok {
		note = fmt.Sprintf("work through %s is preserved", last)
	}
	return RetryOptions{
		CanResume: true,
		NextStep:  next,
		Message:   fmt.Sprintf("%s, resuming from %s", note, next),
	}
}
