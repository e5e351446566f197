package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"canvascast/internal/domain/model"
	"canvascast/internal/domain/ports/adapter"
)

// runIngest merges the project's authored inputs into the single text the
// script generator consumes.
func runIngest(ctx context.Context, pc *Context) (StepResult, error) {
	if pc.Project == nil || strings.TrimSpace(pc.Project.Prompt) == "" {
		return StepResult{}, NewStepError(CodeInputFetch, "project has no prompt text")
	}

	var b strings.Builder
	if pc.Project.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", pc.Project.Title)
	}
	b.WriteString(strings.TrimSpace(pc.Project.Prompt))
	if pc.Project.Style != "" {
		fmt.Fprintf(&b, "\nVisual style: %s", pc.Project.Style)
	}
	merged := b.String()

	return StepResult{Patch: func(bag *model.ArtifactBag) { bag.MergedText = merged }}, nil
}

func runScript(ctx context.Context, pc *Context) (StepResult, error) {
	script, err := pc.Services.Script.GenerateScript(ctx, adapter.ScriptRequest{
		Prompt:     pc.Artifacts.MergedText,
		Style:      pc.Project.Style,
		TargetSecs: pc.Project.TargetSecs,
	})
	if err != nil {
		if errors.Is(err, adapter.ErrContentModerated) {
			return StepResult{}, WrapStepError(CodeModeration, "prompt rejected by content moderation", err)
		}
		return StepResult{}, WrapStepError(CodeScriptGen, "script generation failed", err)
	}
	if script.Narration == "" {
		return StepResult{}, NewStepError(CodeScriptGen, "script has no narration text")
	}
	if script.WordCount == 0 {
		script.WordCount = len(strings.Fields(script.Narration))
	}

	return StepResult{Patch: func(bag *model.ArtifactBag) { bag.Script = script }}, nil
}
