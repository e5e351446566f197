package model

import "time"

// Project holds the user-authored inputs the pipeline reads. The web app
// owns its full lifecycle; the worker only ever reads it.
type Project struct {
	ID          string
	UserID      string
	Title       string
	Prompt      string
	Style       string // visual style hint passed to image generation
	Voice       string // narration voice name
	TargetSecs  int    // requested video length
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
