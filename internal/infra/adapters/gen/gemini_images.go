package gen

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"canvascast/internal/domain/ports/adapter"
)

var _ adapter.ImageGenerator = (*GeminiImageAdapter)(nil)

// GeminiImageAdapter renders scene prompts with the Imagen models behind the
// Gemini API.
type GeminiImageAdapter struct {
	client *genai.Client
	model  string
}

func NewGeminiImageAdapter(ctx context.Context, apiKey, model string) (*GeminiImageAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	if model == "" {
		model = "imagen-3.0-generate-002"
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &GeminiImageAdapter{client: c, model: model}, nil
}

func (g *GeminiImageAdapter) GenerateImage(ctx context.Context, prompt, style string) ([]byte, error) {
	full := prompt
	if strings.TrimSpace(style) != "" {
		full = fmt.Sprintf("%s, in %s style", prompt, style)
	}

	resp, err := g.client.Models.GenerateImages(ctx, g.model, full, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
	})
	if err != nil {
		return nil, err
	}
	// An empty result with no transport error means the safety filter ate the
	// prompt.
	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		return nil, adapter.ErrContentModerated
	}
	img := resp.GeneratedImages[0]
	if img.RAIFilteredReason != "" {
		return nil, adapter.ErrContentModerated
	}
	return img.Image.ImageBytes, nil
}
