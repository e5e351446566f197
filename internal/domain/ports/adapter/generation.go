package adapter

import (
	"context"
	"errors"

	"canvascast/internal/domain/model"
)

// ErrContentModerated is returned by generation adapters when the provider
// refuses the input on safety grounds. Steps map it to a moderation failure
// rather than a generic generation error.
var ErrContentModerated = errors.New("content rejected by provider moderation")

type ScriptRequest struct {
	Prompt     string
	Style      string
	TargetSecs int
}

// ScriptGenerator turns a user prompt into a structured narration script.
type ScriptGenerator interface {
	GenerateScript(ctx context.Context, req ScriptRequest) (*model.Script, error)
}

// VisualPlanner breaks a script into scene prompts for image generation.
type VisualPlanner interface {
	PlanVisuals(ctx context.Context, script *model.Script, maxScenes int) (*model.VisualPlan, error)
}

type SynthesisResult struct {
	Audio   []byte
	Seconds float64
}

// SpeechSynthesizer renders narration text to audio.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text, voice string) (*SynthesisResult, error)
}

// CaptionAligner produces per-word timing cues for narration audio.
type CaptionAligner interface {
	Align(ctx context.Context, audio []byte, narration string) ([]model.CaptionCue, error)
}

// ImageGenerator renders one scene prompt to image bytes.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt, style string) ([]byte, error)
}

type RenderRequest struct {
	Timeline *model.Timeline
	// Assets maps object-storage keys referenced by the timeline to local
	// paths the renderer can read.
	Assets map[string]string
	Width  int
	Height int
}

// VideoRenderer composes the timeline into a finished video file and returns
// its bytes.
type VideoRenderer interface {
	Render(ctx context.Context, req RenderRequest) ([]byte, error)
}
