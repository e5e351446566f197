package pipeline

import (
	"fmt"

	"canvascast/internal/domain/model"
	"canvascast/internal/domain/ports/adapter"
)

// Services bundles the external generation collaborators steps call out to.
// Constructed once at startup and injected; steps hold no global state.
type Services struct {
	Script adapter.ScriptGenerator
	Plan   adapter.VisualPlanner
	Speech adapter.SpeechSynthesizer
	Align  adapter.CaptionAligner
	Images adapter.ImageGenerator
	Render adapter.VideoRenderer
	Store  adapter.ObjectStorage

	// Output dimensions for the rendered video. Zero falls back to 720p.
	VideoWidth  int
	VideoHeight int
}

// Context is the per-attempt working state handed to each step. The artifact
// bag is exclusively owned by the runner for the duration of the attempt.
type Context struct {
	JobID     string
	ProjectID string
	UserID    string
	Job       *model.Job
	Project   *model.Project
	Artifacts model.ArtifactBag
	Services  *Services
}

// ObjectKey returns the deterministic storage key for a named artifact of
// this job. Determinism is what makes step side effects safely repeatable:
// re-running a step after a crash overwrites the same objects.
func (c *Context) ObjectKey(name string) string {
	return fmt.Sprintf("jobs/%s/%s", c.JobID, name)
}

// Effect describes one durable side effect a step performed, reported back to
// the runner so commit ordering and replay stay the runner's decision.
type Effect struct {
	Kind string // "object" for storage writes
	Key  string
}

// StepResult carries the artifact patch produced by a successful step plus
// the side effects it performed.
type StepResult struct {
	Patch   func(*model.ArtifactBag)
	Effects []Effect
}

func objectEffect(key string) Effect { return Effect{Kind: "object", Key: key} }
