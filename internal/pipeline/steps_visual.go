package pipeline

import (
	"context"
	"fmt"

	"canvascast/internal/domain/model"
)

// maxScenes caps image generation cost per job.
const maxScenes = 12

func runVisualPlan(ctx context.Context, pc *Context) (StepResult, error) {
	plan, err := pc.Services.Plan.PlanVisuals(ctx, pc.Artifacts.Script, maxScenes)
	if err != nil {
		return StepResult{}, WrapStepError(CodeVisualPlan, "visual planning failed", err)
	}
	if len(plan.Scenes) == 0 {
		return StepResult{}, NewStepError(CodeVisualPlan, "planner produced no scenes")
	}

	return StepResult{Patch: func(bag *model.ArtifactBag) { bag.VisualPlan = plan }}, nil
}

func runImageGen(ctx context.Context, pc *Context) (StepResult, error) {
	scenes := pc.Artifacts.VisualPlan.Scenes
	keys := make([]string, 0, len(scenes))
	effects := make([]Effect, 0, len(scenes))

	for _, scene := range scenes {
		img, err := pc.Services.Images.GenerateImage(ctx, scene.Prompt, pc.Project.Style)
		if err != nil {
			return StepResult{}, WrapStepError(CodeImageGen,
				fmt.Sprintf("image generation failed for scene %d", scene.Index), err)
		}
		key := pc.ObjectKey(fmt.Sprintf("scene_%03d.png", scene.Index))
		if err := pc.Services.Store.Upload(ctx, key, img); err != nil {
			return StepResult{}, WrapStepError(CodeImageGen,
				fmt.Sprintf("storing image for scene %d failed", scene.Index), err)
		}
		keys = append(keys, key)
		effects = append(effects, objectEffect(key))
	}

	return StepResult{
		Patch:   func(bag *model.ArtifactBag) { bag.ImageKeys = keys },
		Effects: effects,
	}, nil
}
