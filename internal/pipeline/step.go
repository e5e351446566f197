package pipeline

import (
	"context"

	"canvascast/internal/domain/model"
)

// StepName identifies one pipeline stage. Checkpoints store these names, so
// they are part of the durable format and must stay stable.
type StepName string

const (
	StepIngest     StepName = "INGEST"
	StepScript     StepName = "SCRIPTING"
	StepVoice      StepName = "VOICE_GEN"
	StepAlign      StepName = "ALIGNMENT"
	StepVisualPlan StepName = "VISUAL_PLAN"
	StepImageGen   StepName = "IMAGE_GEN"
	StepTimeline   StepName = "TIMELINE_BUILD"
	StepRender     StepName = "RENDERING"
	StepPackage    StepName = "PACKAGING"
	StepPreview    StepName = "PREVIEW"
)

// Step is one static pipeline stage definition. Steps compute and call
// collaborators; they never decide pipeline progression, that is the
// runner's job.
type Step struct {
	Name   StepName
	Status model.JobStatus // status the job shows once this step completes
	// Progress range this step covers; on success the job's progress becomes
	// ProgressEnd. Ranges are strictly increasing across the canonical list.
	ProgressStart int
	ProgressEnd   int
	// Needs declares the bag fields this step requires. The runner fails the
	// step with FailCode before invoking Run when one is missing.
	Needs    []model.ArtifactField
	FailCode Code
	Run      func(ctx context.Context, pc *Context) (StepResult, error)
}

// Steps returns the canonical ordered step list. The order and progress
// ranges here are the single source of truth the recovery advisor, refund
// policy derivations, and runner all share.
func Steps() []Step {
	return []Step{
		{Name: StepIngest, Status: model.JobStatusScripting, ProgressStart: 0, ProgressEnd: 5, FailCode: CodeInputFetch, Run: runIngest},
		{Name: StepScript, Status: model.JobStatusScripting, ProgressStart: 5, ProgressEnd: 15,
			Needs: []model.ArtifactField{model.FieldMergedText}, FailCode: CodeScriptGen, Run: runScript},
		{Name: StepVoice, Status: model.JobStatusVoiceGen, ProgressStart: 15, ProgressEnd: 25,
			Needs: []model.ArtifactField{model.FieldScript}, FailCode: CodeTTS, Run: runVoice},
		{Name: StepAlign, Status: model.JobStatusAlignment, ProgressStart: 25, ProgressEnd: 35,
			Needs: []model.ArtifactField{model.FieldScript, model.FieldNarrationKey}, FailCode: CodeWhisper, Run: runAlign},
		{Name: StepVisualPlan, Status: model.JobStatusVisualPlan, ProgressStart: 35, ProgressEnd: 50,
			Needs: []model.ArtifactField{model.FieldScript}, FailCode: CodeVisualPlan, Run: runVisualPlan},
		{Name: StepImageGen, Status: model.JobStatusImageGen, ProgressStart: 50, ProgressEnd: 70,
			Needs: []model.ArtifactField{model.FieldVisualPlan}, FailCode: CodeImageGen, Run: runImageGen},
		{Name: StepTimeline, Status: model.JobStatusTimelineBuild, ProgressStart: 70, ProgressEnd: 80,
			Needs: []model.ArtifactField{model.FieldImageKeys, model.FieldNarrationKey}, FailCode: CodeTimeline, Run: runTimeline},
		{Name: StepRender, Status: model.JobStatusRendering, ProgressStart: 80, ProgressEnd: 92,
			Needs: []model.ArtifactField{model.FieldTimeline}, FailCode: CodeRender, Run: runRender},
		{Name: StepPackage, Status: model.JobStatusPackaging, ProgressStart: 92, ProgressEnd: 97,
			Needs: []model.ArtifactField{model.FieldVideoKey}, FailCode: CodePackaging, Run: runPackage},
		// Preview checks its own input so an empty image list yields the
		// user-facing "No images available" message, not a generic one.
		{Name: StepPreview, Status: model.JobStatusPackaging, ProgressStart: 97, ProgressEnd: 100, FailCode: CodePreview, Run: runPreview},
	}
}

// StepIndex returns the position of name in the canonical list, or -1.
func StepIndex(steps []Step, name StepName) int {
	for i, s := range steps {
		if s.Name == name {
			return i
		}
	}
	return -1
}
