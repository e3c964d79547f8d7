package ai

import (
	"context"
	"strings"

	"email-assistant/pkg/gemini"
)

// geminiProvider adapts the Gemini REST client to Service.
type geminiProvider struct {
	client *gemini.GeminiService
}

func NewGeminiProvider(apiKey, model string) Service {
	return &geminiProvider{client: gemini.NewGeminiService(apiKey, model)}
}

func (g *geminiProvider) Name() string { return string(ProviderGemini) }

func (g *geminiProvider) Classify(ctx context.Context, text string, labels []string) (string, error) {
	return g.Generate(ctx, GenerateRequest{
		System:      classifySystemPrompt(labels),
		Prompt:      classifyUserPrompt(text),
		MaxTokens:   classifyMaxTokens,
		Temperature: classifyTemperature,
	})
}

func (g *geminiProvider) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	text, err := g.client.GenerateText(ctx, req.System, req.Prompt, req.MaxTokens, req.Temperature)
	if err != nil {
		return "", wrapError(g.Name(), err)
	}
	if strings.TrimSpace(text) == "" {
		return "", wrapError(g.Name(), ErrEmptyResponse)
	}
	return text, nil
}
