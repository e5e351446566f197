package gen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"canvascast/internal/domain/ports/adapter"
)

var _ adapter.VideoRenderer = (*FFmpegRenderer)(nil)

// FFmpegRenderer shells out to ffmpeg: the timeline becomes a concat demuxer
// list of stills with durations, muxed with the narration track. Rendering
// correctness is ffmpeg's problem; this adapter only assembles inputs and
// honors the context deadline.
type FFmpegRenderer struct {
	binary string
}

func NewFFmpegRenderer(binary string) (*FFmpegRenderer, error) {
	if binary == "" {
		binary = "ffmpeg"
	}
	if _, err := exec.LookPath(binary); err != nil {
		return nil, fmt.Errorf("missing dependency: %s is not installed or not on PATH", binary)
	}
	return &FFmpegRenderer{binary: binary}, nil
}

func (r *FFmpegRenderer) Render(ctx context.Context, req adapter.RenderRequest) ([]byte, error) {
	if req.Timeline == nil || len(req.Timeline.Clips) == 0 {
		return nil, errors.New("empty timeline")
	}
	audioPath, ok := req.Assets[req.Timeline.NarrationKey]
	if !ok {
		return nil, fmt.Errorf("narration asset %q not staged", req.Timeline.NarrationKey)
	}

	workDir, err := os.MkdirTemp("", "canvascast-render-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(workDir)

	listPath := filepath.Join(workDir, "slides.txt")
	if err := os.WriteFile(listPath, []byte(concatList(req)), 0o644); err != nil {
		return nil, err
	}

	outPath := filepath.Join(workDir, "out.mp4")
	args := []string{
		"-y",
		"-f", "concat", "-safe", "0", "-i", listPath,
		"-i", audioPath,
		"-vf", fmt.Sprintf("scale=%d:%d,format=yuv420p", req.Width, req.Height),
		"-c:v", "libx264",
		"-c:a", "aac",
		"-shortest",
		outPath,
	}

	cmd := exec.CommandContext(ctx, r.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg: %w: %s", err, lastLine(stderr.String()))
	}
	return os.ReadFile(outPath)
}

// concatList renders the ffmpeg concat demuxer input. The demuxer ignores the
// duration of the final entry, so the last file is listed twice.
func concatList(req adapter.RenderRequest) string {
	var b strings.Builder
	var lastPath string
	for _, clip := range req.Timeline.Clips {
		path := req.Assets[clip.ImageKey]
		fmt.Fprintf(&b, "file '%s'\n", path)
		fmt.Fprintf(&b, "duration %.3f\n", clip.EndSec-clip.StartSec)
		lastPath = path
	}
	fmt.Fprintf(&b, "file '%s'\n", lastPath)
	return b.String()
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}
