package ai

import "context"

// Classifier labels text with exactly one of the given labels.
type Classifier interface {
	Classify(ctx context.Context, text string, labels []string) (string, error)
}

// GenerateRequest is a single-shot completion: no streaming, no history.
type GenerateRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float32
}

// Generator produces free text for a prompt.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// Service is a model provider able to both classify and generate.
// Implement this interface to add new AI providers.
type Service interface {
	Classifier
	Generator
	Name() string
}

// Embedder turns texts into fixed-dimension vectors, preserving order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// ProviderType represents the AI provider type
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderGemini ProviderType = "gemini"
	ProviderOllama ProviderType = "ollama"
	ProviderAuto   ProviderType = "auto"
)

const (
	classifyMaxTokens   = 10
	classifyTemperature = 0.1
)

func classifySystemPrompt(labels []string) string {
	return "You are a sentiment analysis expert. Analyze the sentiment of the following text and respond with exactly one word: " + quoteLabels(labels) + "."
}

func classifyUserPrompt(text string) string {
	return "Analyze the sentiment of this text: " + text
}

func quoteLabels(labels []string) string {
	out := ""
	for i, l := range labels {
		switch {
		case i == 0:
		case i == len(labels)-1:
			out += ", or "
		default:
			out += ", "
		}
		out += "'" + l + "'"
	}
	return out
}
