// Package gemini implements the generation collaborator on top of the
// Gemini image model.
package gemini

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/devesh1011/vyloc-backend-api/internal/domain"
	"github.com/devesh1011/vyloc-backend-api/internal/pipeline"
)

var _ pipeline.Generator = (*Generator)(nil)

// Generator localizes images via GenerateContent with an inline source
// image and a per-target editing prompt.
type Generator struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

// NewGenerator creates a generator backed by the Gemini API.
func NewGenerator(ctx context.Context, apiKey, model string, logger *zap.Logger) (*Generator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: init client: %w", err)
	}
	return &Generator{client: client, model: model, logger: logger}, nil
}

// Generate produces the localized rendition for one target. The caller
// bounds ctx with the per-target timeout.
func (g *Generator) Generate(ctx context.Context, target domain.Target, sourceLanguage string, image []byte) ([]byte, error) {
	prompt := BuildLocalizationPrompt(target, sourceLanguage)

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
		ImageConfig:        imageConfig(target),
	}

	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromBytes(image, "image/png"),
		},
	}}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("gemini: generate content: %w", err)
	}

	out := extractImage(resp)
	if out == nil {
		return nil, fmt.Errorf("gemini: no image in response for %s", target.Language)
	}
	g.logger.Debug("localized image generated",
		zap.String("language", string(target.Language)),
		zap.Int("bytes", len(out)))
	return out, nil
}

// imageConfig maps the target's size and aspect ratio onto the model
// config, falling back to 1K / model-chosen ratio for unknown values.
func imageConfig(target domain.Target) *genai.ImageConfig {
	size := "1K"
	for _, s := range domain.ValidImageSizes {
		if target.ImageSize == s {
			size = s
			break
		}
	}
	cfg := &genai.ImageConfig{ImageSize: size}
	for _, r := range domain.ValidAspectRatios {
		if target.AspectRatio == r {
			cfg.AspectRatio = r
			break
		}
	}
	return cfg
}

// extractImage picks the final non-thought inline image out of the
// response; interim reasoning images are skipped.
func extractImage(resp *genai.GenerateContentResponse) []byte {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return nil
	}
	var out []byte
	for _, part := range candidate.Content.Parts {
		if part.Thought {
			continue
		}
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			out = part.InlineData.Data
		}
	}
	return out
}
