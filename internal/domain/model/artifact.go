package model

// ArtifactBag is the working set of intermediate and final outputs a job
// accumulates. It is owned by the runner for the duration of one attempt and
// serialized into the checkpoint for durability across attempts. All media is
// referenced by object-storage key, never embedded.
type ArtifactBag struct {
	MergedText    string       `json:"merged_text,omitempty"`
	Script        *Script      `json:"script,omitempty"`
	NarrationKey  string       `json:"narration_key,omitempty"`
	NarrationSecs float64      `json:"narration_secs,omitempty"`
	Cues          []CaptionCue `json:"cues,omitempty"`
	VisualPlan    *VisualPlan  `json:"visual_plan,omitempty"`
	ImageKeys     []string     `json:"image_keys,omitempty"`
	Timeline      *Timeline    `json:"timeline,omitempty"`
	ThumbnailKey  string       `json:"thumbnail_key,omitempty"`
	VideoKey      string       `json:"video_key,omitempty"`
	PackageKey    string       `json:"package_key,omitempty"`
}

// ArtifactField names a bag field that steps can declare as a dependency.
type ArtifactField string

const (
	FieldMergedText   ArtifactField = "merged_text"
	FieldScript       ArtifactField = "script"
	FieldNarrationKey ArtifactField = "narration_key"
	FieldCues         ArtifactField = "cues"
	FieldVisualPlan   ArtifactField = "visual_plan"
	FieldImageKeys    ArtifactField = "image_keys"
	FieldTimeline     ArtifactField = "timeline"
	FieldVideoKey     ArtifactField = "video_key"
)

// Has reports whether the bag holds a usable value for the given field.
// Empty slices count as absent.
func (b *ArtifactBag) Has(f ArtifactField) bool {
	switch f {
	case FieldMergedText:
		return b.MergedText != ""
	case FieldScript:
		return b.Script != nil
	case FieldNarrationKey:
		return b.NarrationKey != ""
	case FieldCues:
		return len(b.Cues) > 0
	case FieldVisualPlan:
		return b.VisualPlan != nil && len(b.VisualPlan.Scenes) > 0
	case FieldImageKeys:
		return len(b.ImageKeys) > 0
	case FieldTimeline:
		return b.Timeline != nil
	case FieldVideoKey:
		return b.VideoKey != ""
	}
	return false
}

type Script struct {
	Title     string          `json:"title"`
	Sections  []ScriptSection `json:"sections"`
	Narration string          `json:"narration"`
	WordCount int             `json:"word_count"`
}

type ScriptSection struct {
	Heading string `json:"heading"`
	Text    string `json:"text"`
}

// CaptionCue is one word of narration with its time span in seconds.
type CaptionCue struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type VisualPlan struct {
	Scenes []Scene `json:"scenes"`
}

type Scene struct {
	Index    int     `json:"index"`
	Prompt   string  `json:"prompt"`
	StartSec float64 `json:"start_sec"`
	EndSec   float64 `json:"end_sec"`
}

// Timeline is the fully resolved edit list the renderer consumes.
type Timeline struct {
	NarrationKey string       `json:"narration_key"`
	DurationSecs float64      `json:"duration_secs"`
	Clips        []Clip       `json:"clips"`
	Cues         []CaptionCue `json:"cues,omitempty"`
}

type Clip struct {
	ImageKey string  `json:"image_key"`
	StartSec float64 `json:"start_sec"`
	EndSec   float64 `json:"end_sec"`
}
