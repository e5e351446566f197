package gen

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"canvascast/internal/domain/model"
	"canvascast/internal/domain/ports/adapter"
)

var (
	_ adapter.SpeechSynthesizer = (*OpenAIAudioAdapter)(nil)
	_ adapter.CaptionAligner    = (*OpenAIAudioAdapter)(nil)
)

// narration pacing assumed when the provider gives no timing
const wordsPerSecond = 2.5

// OpenAIAudioAdapter covers both audio directions: narration synthesis via
// the speech endpoint and caption timing via whisper transcription with word
// granularity.
type OpenAIAudioAdapter struct {
	client       openai.Client
	speechModel  string
	whisperModel string
}

func NewOpenAIAudioAdapter(apiKey, speechModel, whisperModel string) (*OpenAIAudioAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if speechModel == "" {
		speechModel = "tts-1"
	}
	if whisperModel == "" {
		whisperModel = "whisper-1"
	}
	return &OpenAIAudioAdapter{
		client:       openai.NewClient(option.WithAPIKey(apiKey)),
		speechModel:  speechModel,
		whisperModel: whisperModel,
	}, nil
}

func (a *OpenAIAudioAdapter) Synthesize(ctx context.Context, text, voice string) (*adapter.SynthesisResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("empty narration text")
	}
	if voice == "" {
		voice = "alloy"
	}

	res, err := a.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(a.speechModel),
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		Input:          text,
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	audio, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, errors.New("speech endpoint returned no audio")
	}

	// The speech endpoint does not report duration; estimate from pacing. The
	// aligner replaces this with measured word timings downstream.
	seconds := float64(len(strings.Fields(text))) / wordsPerSecond
	return &adapter.SynthesisResult{Audio: audio, Seconds: seconds}, nil
}

func (a *OpenAIAudioAdapter) Align(ctx context.Context, audio []byte, narration string) ([]model.CaptionCue, error) {
	if len(audio) == 0 {
		return nil, errors.New("no audio to align")
	}

	tr, err := a.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		Model:                  openai.AudioModel(a.whisperModel),
		File:                   openai.File(bytes.NewReader(audio), "narration.mp3", "audio/mpeg"),
		ResponseFormat:         openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []string{"word"},
	})
	if err != nil {
		return nil, err
	}

	var cues []model.CaptionCue
	for _, w := range tr.Words {
		cues = append(cues, model.CaptionCue{Word: w.Word, Start: w.Start, End: w.End})
	}
	if len(cues) > 0 {
		return cues, nil
	}

	// Some models return no word granularity; fall back to even pacing over
	// the known narration text.
	return evenCues(narration), nil
}

func evenCues(narration string) []model.CaptionCue {
	words := strings.Fields(narration)
	perWord := 1.0 / wordsPerSecond
	cues := make([]model.CaptionCue, 0, len(words))
	for i, w := range words {
		start := float64(i) * perWord
		cues = append(cues, model.CaptionCue{Word: w, Start: start, End: start + perWord})
	}
	return cues
}
