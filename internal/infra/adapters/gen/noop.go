package gen

import (
	"context"
	"fmt"
	"strings"

	"canvascast/internal/domain/model"
	"canvascast/internal/domain/ports/adapter"
)

var (
	_ adapter.ScriptGenerator   = (*NoopGenerators)(nil)
	_ adapter.VisualPlanner     = (*NoopGenerators)(nil)
	_ adapter.SpeechSynthesizer = (*NoopGenerators)(nil)
	_ adapter.CaptionAligner    = (*NoopGenerators)(nil)
	_ adapter.ImageGenerator    = (*NoopGenerators)(nil)
	_ adapter.VideoRenderer     = (*NoopGenerators)(nil)
)

// NoopGenerators implements every generation port with deterministic local
// output, so the whole pipeline can run in dev mode without API keys or
// ffmpeg.
type NoopGenerators struct{}

func NewNoopGenerators() *NoopGenerators { return &NoopGenerators{} }

func (n *NoopGenerators) GenerateScript(ctx context.Context, req adapter.ScriptRequest) (*model.Script, error) {
	text := fmt.Sprintf("A short narrated piece about %s.", req.Prompt)
	return &model.Script{
		Title:     "Draft: " + req.Prompt,
		Sections:  []model.ScriptSection{{Heading: "Intro", Text: text}},
		Narration: text,
		WordCount: len(strings.Fields(text)),
	}, nil
}

func (n *NoopGenerators) PlanVisuals(ctx context.Context, script *model.Script, maxScenes int) (*model.VisualPlan, error) {
	scenes := 2
	if scenes > maxScenes {
		scenes = maxScenes
	}
	plan := &model.VisualPlan{}
	for i := 0; i < scenes; i++ {
		plan.Scenes = append(plan.Scenes, model.Scene{Index: i, Prompt: fmt.Sprintf("scene %d: %s", i, script.Title)})
	}
	return plan, nil
}

func (n *NoopGenerators) Synthesize(ctx context.Context, text, voice string) (*adapter.SynthesisResult, error) {
	return &adapter.SynthesisResult{
		Audio:   []byte("noop-audio:" + voice),
		Seconds: float64(len(strings.Fields(text))) / wordsPerSecond,
	}, nil
}

func (n *NoopGenerators) Align(ctx context.Context, audio []byte, narration string) ([]model.CaptionCue, error) {
	return evenCues(narration), nil
}

func (n *NoopGenerators) GenerateImage(ctx context.Context, prompt, style string) ([]byte, error) {
	return []byte("noop-image:" + prompt), nil
}

func (n *NoopGenerators) Render(ctx context.Context, req adapter.RenderRequest) ([]byte, error) {
	return []byte(fmt.Sprintf("noop-video:%d-clips", len(req.Timeline.Clips))), nil
}
