package pipeline

import (
	"context"

	"canvascast/internal/domain/model"
)

func runVoice(ctx context.Context, pc *Context) (StepResult, error) {
	res, err := pc.Services.Speech.Synthesize(ctx, pc.Artifacts.Script.Narration, pc.Project.Voice)
	if err != nil {
		return StepResult{}, WrapStepError(CodeTTS, "voice synthesis failed", err)
	}
	if len(res.Audio) == 0 {
		return StepResult{}, NewStepError(CodeTTS, "synthesizer returned empty audio")
	}

	key := pc.ObjectKey("narration.mp3")
	if err := pc.Services.Store.Upload(ctx, key, res.Audio); err != nil {
		return StepResult{}, WrapStepError(CodeTTS, "storing narration audio failed", err)
	}

	secs := res.Seconds
	return StepResult{
		Patch: func(bag *model.ArtifactBag) {
			bag.NarrationKey = key
			bag.NarrationSecs = secs
		},
		Effects: []Effect{objectEffect(key)},
	}, nil
}

func runAlign(ctx context.Context, pc *Context) (StepResult, error) {
	audio, err := pc.Services.Store.Download(ctx, pc.Artifacts.NarrationKey)
	if err != nil {
		return StepResult{}, WrapStepError(CodeWhisper, "fetching narration audio failed", err)
	}

	cues, err := pc.Services.Align.Align(ctx, audio, pc.Artifacts.Script.Narration)
	if err != nil {
		return StepResult{}, WrapStepError(CodeWhisper, "caption alignment failed", err)
	}
	if len(cues) == 0 {
		return StepResult{}, NewStepError(CodeWhisper, "aligner produced no caption cues")
	}

	return StepResult{Patch: func(bag *model.ArtifactBag) { bag.Cues = cues }}, nil
}
