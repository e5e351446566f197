package pipeline

import (
	"errors"
	"fmt"
)

// Code classifies a step failure. Codes are stable identifiers stored on the
// job row and surfaced to admin tooling and status polling.
type Code string

const (
	CodeInputFetch Code = "ERR_INPUT_FETCH"
	CodeScriptGen  Code = "ERR_SCRIPT_GEN"
	CodeTTS        Code = "ERR_TTS"
	CodeWhisper    Code = "ERR_WHISPER"
	CodeVisualPlan Code = "ERR_VISUAL_PLAN"
	CodeImageGen   Code = "ERR_IMAGE_GEN"
	CodeTimeline   Code = "ERR_TIMELINE"
	CodePreview    Code = "ERR_PREVIEW"
	CodeRender     Code = "ERR_RENDER"
	CodePackaging  Code = "ERR_PACKAGING"
	CodeCredits    Code = "ERR_CREDITS"
	CodeModeration Code = "ERR_MODERATION"
	CodeUnknown    Code = "ERR_UNKNOWN"
)

// StepError is the only error type that crosses the step/runner boundary.
// Anything else a step produces is normalized to one at the invocation site.
type StepError struct {
	Code    Code
	Message string
	cause   error
}

func (e *StepError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *StepError) Unwrap() error { return e.cause }

// NewStepError builds a StepError with a step-specific code.
func NewStepError(code Code, msg string) *StepError {
	return &StepError{Code: code, Message: msg}
}

// WrapStepError attaches a cause so callers can still errors.Is/As through it.
func WrapStepError(code Code, msg string, cause error) *StepError {
	return &StepError{Code: code, Message: msg, cause: cause}
}

// AsStepError extracts a StepError from err, or nil if there is none.
func AsStepError(err error) *StepError {
	var se *StepError
	if errors.As(err, &se) {
		return se
	}
	return nil
}
