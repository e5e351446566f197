package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"canvascast/internal/domain/model"
	"canvascast/internal/domain/ports/adapter"
)

// runTimeline distributes the narration duration across the generated images.
// Pure computation: scene boundaries from the visual plan where present,
// otherwise an even split.
func runTimeline(ctx context.Context, pc *Context) (StepResult, error) {
	bag := &pc.Artifacts
	total := bag.NarrationSecs
	if total <= 0 {
		return StepResult{}, NewStepError(CodeTimeline, "narration duration is unknown")
	}

	clips := make([]model.Clip, 0, len(bag.ImageKeys))
	per := total / float64(len(bag.ImageKeys))
	for i, key := range bag.ImageKeys {
		start, end := float64(i)*per, float64(i+1)*per
		if bag.VisualPlan != nil && i < len(bag.VisualPlan.Scenes) && bag.VisualPlan.Scenes[i].EndSec > 0 {
			start, end = bag.VisualPlan.Scenes[i].StartSec, bag.VisualPlan.Scenes[i].EndSec
		}
		clips = append(clips, model.Clip{ImageKey: key, StartSec: start, EndSec: end})
	}
	// last clip always runs to the end of narration
	clips[len(clips)-1].EndSec = total

	tl := &model.Timeline{
		NarrationKey: bag.NarrationKey,
		DurationSecs: total,
		Clips:        clips,
		Cues:         bag.Cues,
	}
	return StepResult{Patch: func(b *model.ArtifactBag) { b.Timeline = tl }}, nil
}

func runRender(ctx context.Context, pc *Context) (StepResult, error) {
	tl := pc.Artifacts.Timeline

	// Stage every referenced object for the renderer.
	assets := make(map[string]string, len(tl.Clips)+1)
	stage := func(key string) error {
		data, err := pc.Services.Store.Download(ctx, key)
		if err != nil {
			return err
		}
		path, err := stageAsset(key, data)
		if err != nil {
			return err
		}
		assets[key] = path
		return nil
	}
	if err := stage(tl.NarrationKey); err != nil {
		return StepResult{}, WrapStepError(CodeRender, "staging narration for render failed", err)
	}
	for _, c := range tl.Clips {
		if err := stage(c.ImageKey); err != nil {
			return StepResult{}, WrapStepError(CodeRender, "staging image for render failed", err)
		}
	}

	width, height := pc.Services.VideoWidth, pc.Services.VideoHeight
	if width <= 0 || height <= 0 {
		width, height = 1280, 720
	}
	video, err := pc.Services.Render.Render(ctx, adapter.RenderRequest{
		Timeline: tl,
		Assets:   assets,
		Width:    width,
		Height:   height,
	})
	if err != nil {
		return StepResult{}, WrapStepError(CodeRender, "video render failed", err)
	}

	key := pc.ObjectKey("video.mp4")
	if err := pc.Services.Store.Upload(ctx, key, video); err != nil {
		return StepResult{}, WrapStepError(CodeRender, "storing rendered video failed", err)
	}

	return StepResult{
		Patch:   func(b *model.ArtifactBag) { b.VideoKey = key },
		Effects: []Effect{objectEffect(key)},
	}, nil
}

// runPackage bundles the video and an SRT caption track into one archive.
func runPackage(ctx context.Context, pc *Context) (StepResult, error) {
	video, err := pc.Services.Store.Download(ctx, pc.Artifacts.VideoKey)
	if err != nil {
		return StepResult{}, WrapStepError(CodePackaging, "fetching rendered video failed", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if err := writeZipEntry(zw, "video.mp4", video); err != nil {
		return StepResult{}, WrapStepError(CodePackaging, "building package archive failed", err)
	}
	if len(pc.Artifacts.Cues) > 0 {
		if err := writeZipEntry(zw, "captions.srt", []byte(renderSRT(pc.Artifacts.Cues))); err != nil {
			return StepResult{}, WrapStepError(CodePackaging, "building package archive failed", err)
		}
	}
	if err := zw.Close(); err != nil {
		return StepResult{}, WrapStepError(CodePackaging, "building package archive failed", err)
	}

	key := pc.ObjectKey("package.zip")
	if err := pc.Services.Store.Upload(ctx, key, buf.Bytes()); err != nil {
		return StepResult{}, WrapStepError(CodePackaging, "storing package failed", err)
	}

	return StepResult{
		Patch:   func(b *model.ArtifactBag) { b.PackageKey = key },
		Effects: []Effect{objectEffect(key)},
	}, nil
}

func writeZipEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// stageAsset writes object bytes to a local scratch path the renderer can
// read. Paths are deterministic per key so a repeated render overwrites
// rather than accumulates.
func stageAsset(key string, data []byte) (string, error) {
	path := filepath.Join(os.TempDir(), "canvascast", filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// runPreview promotes the first generated image to the job's thumbnail. The
// empty-list case fails immediately with the user-facing message instead of
// attempting generation.
func runPreview(ctx context.Context, pc *Context) (StepResult, error) {
	if len(pc.Artifacts.ImageKeys) == 0 {
		return StepResult{}, NewStepError(CodePreview, "No images available")
	}

	img, err := pc.Services.Store.Download(ctx, pc.Artifacts.ImageKeys[0])
	if err != nil {
		return StepResult{}, WrapStepError(CodePreview, "fetching preview image failed", err)
	}
	key := pc.ObjectKey("thumb.png")
	if err := pc.Services.Store.Upload(ctx, key, img); err != nil {
		return StepResult{}, WrapStepError(CodePreview, "storing thumbnail failed", err)
	}

	return StepResult{
		Patch:   func(b *model.ArtifactBag) { b.ThumbnailKey = key },
		Effects: []Effect{objectEffect(key)},
	}, nil
}

func renderSRT(cues []model.CaptionCue) string {
	var b bytes.Buffer
	for i, c := range cues {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, srtTime(c.Start), srtTime(c.End), c.Word)
	}
	return b.String()
}

func srtTime(secs float64) string {
	d := time.Duration(secs * float64(time.Second))
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	ms := int(d.Milliseconds()) % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
