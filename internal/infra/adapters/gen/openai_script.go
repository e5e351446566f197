package gen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/pkoukk/tiktoken-go"

	"canvascast/internal/domain/model"
	"canvascast/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the ports
var (
	_ adapter.ScriptGenerator = (*OpenAIScriptAdapter)(nil)
	_ adapter.VisualPlanner   = (*OpenAIScriptAdapter)(nil)
)

// OpenAIScriptAdapter generates narration scripts and visual plans through
// the Chat Completions API. Prompts are budgeted with tiktoken before they go
// out so oversized user input degrades to truncation, not to API errors.
type OpenAIScriptAdapter struct {
	client openai.Client
	model  string
	budget int
	enc    *tiktoken.Tiktoken
}

func NewOpenAIScriptAdapter(apiKey, model string, promptBudgetTokens int) (*OpenAIScriptAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	if promptBudgetTokens <= 0 {
		promptBudgetTokens = 3000
	}
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	return &OpenAIScriptAdapter{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		budget: promptBudgetTokens,
		enc:    enc,
	}, nil
}

// trimToBudget cuts text to the configured token budget.
func (a *OpenAIScriptAdapter) trimToBudget(text string) string {
	tokens := a.enc.Encode(text, nil, nil)
	if len(tokens) <= a.budget {
		return text
	}
	return a.enc.Decode(tokens[:a.budget])
}

type scriptPayload struct {
	Title    string `json:"title"`
	Sections []struct {
		Heading string `json:"heading"`
		Text    string `json:"text"`
	} `json:"sections"`
}

func (a *OpenAIScriptAdapter) GenerateScript(ctx context.Context, req adapter.ScriptRequest) (*model.Script, error) {
	system := "You are a scriptwriter for short narrated videos. " +
		"Respond with a single JSON object only, no markdown fences, shaped as " +
		`{"title": string, "sections": [{"heading": string, "text": string}]}. ` +
		"The section texts concatenated are the narration."
	user := fmt.Sprintf("Write a script for a video of roughly %d seconds.\nStyle: %s\nTopic: %s",
		req.TargetSecs, req.Style, a.trimToBudget(req.Prompt))

	content, err := a.complete(ctx, system, user)
	if err != nil {
		return nil, err
	}

	var payload scriptPayload
	if err := json.Unmarshal([]byte(stripFences(content)), &payload); err != nil {
		return nil, fmt.Errorf("parse script response: %w", err)
	}
	if len(payload.Sections) == 0 {
		return nil, errors.New("script response has no sections")
	}

	script := &model.Script{Title: payload.Title}
	var narration []string
	for _, s := range payload.Sections {
		script.Sections = append(script.Sections, model.ScriptSection{Heading: s.Heading, Text: s.Text})
		narration = append(narration, s.Text)
	}
	script.Narration = strings.Join(narration, " ")
	script.WordCount = len(strings.Fields(script.Narration))
	return script, nil
}

type planPayload struct {
	Scenes []struct {
		Prompt   string  `json:"prompt"`
		StartSec float64 `json:"start_sec"`
		EndSec   float64 `json:"end_sec"`
	} `json:"scenes"`
}

func (a *OpenAIScriptAdapter) PlanVisuals(ctx context.Context, script *model.Script, maxScenes int) (*model.VisualPlan, error) {
	system := "You plan visuals for narrated videos. " +
		"Respond with a single JSON object only, shaped as " +
		`{"scenes": [{"prompt": string, "start_sec": number, "end_sec": number}]}. ` +
		fmt.Sprintf("Use at most %d scenes covering the whole narration.", maxScenes)
	user := fmt.Sprintf("Title: %s\nNarration:\n%s", script.Title, a.trimToBudget(script.Narration))

	content, err := a.complete(ctx, system, user)
	if err != nil {
		return nil, err
	}

	var payload planPayload
	if err := json.Unmarshal([]byte(stripFences(content)), &payload); err != nil {
		return nil, fmt.Errorf("parse visual plan response: %w", err)
	}
	if len(payload.Scenes) == 0 {
		return nil, errors.New("visual plan has no scenes")
	}
	if len(payload.Scenes) > maxScenes {
		payload.Scenes = payload.Scenes[:maxScenes]
	}

	plan := &model.VisualPlan{}
	for i, s := range payload.Scenes {
		plan.Scenes = append(plan.Scenes, model.Scene{
			Index:    i,
			Prompt:   s.Prompt,
			StartSec: s.StartSec,
			EndSec:   s.EndSec,
		})
	}
	return plan, nil
}

func (a *OpenAIScriptAdapter) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(a.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choice content")
	}
	choice := resp.Choices[0].Message
	if choice.Refusal != "" {
		return "", adapter.ErrContentModerated
	}
	if choice.Content == "" {
		return "", errors.New("empty completion")
	}
	return choice.Content, nil
}

// stripFences tolerates models that wrap JSON in a markdown code block
// despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
