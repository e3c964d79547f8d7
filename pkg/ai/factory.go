package ai

import (
	"fmt"

	"go.uber.org/zap"
)

// Config holds AI provider configuration
type Config struct {
	Provider ProviderType

	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	GeminiAPIKey string
	GeminiModel  string

	// Dynamic getters let runtime settings repoint Ollama without a restart.
	GetOllamaBaseURL func() string
	GetOllamaModel   func() string

	Logger *zap.Logger
}

// NewService builds the provider chain for cfg.Provider. Every provider is
// wrapped in a circuit breaker; "auto" chains the hosted provider with the
// local Ollama server as fallback.
func NewService(cfg Config) (Service, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	openAI := func() Service {
		return NewBreakerService(NewOpenAIService(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL), logger)
	}
	gemini := func() Service {
		return NewBreakerService(NewGeminiProvider(cfg.GeminiAPIKey, cfg.GeminiModel), logger)
	}
	ollama := func() Service {
		getBaseURL, getModel := cfg.GetOllamaBaseURL, cfg.GetOllamaModel
		if getBaseURL == nil || getModel == nil {
			return NewBreakerService(NewOllamaService("", ""), logger)
		}
		return NewBreakerService(NewOllamaServiceWithGetters(getBaseURL, getModel), logger)
	}

	switch cfg.Provider {
	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for OpenAI provider")
		}
		return openAI(), nil

	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for Gemini provider")
		}
		return gemini(), nil

	case ProviderOllama:
		return ollama(), nil

	case ProviderAuto, "":
		switch {
		case cfg.OpenAIAPIKey != "":
			return NewFallbackService(openAI(), ollama(), logger), nil
		case cfg.GeminiAPIKey != "":
			return NewFallbackService(gemini(), ollama(), logger), nil
		default:
			return ollama(), nil
		}

	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
}

// EmbedderConfig selects the embedding backend.
type EmbedderConfig struct {
	Provider      ProviderType
	Model         string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OllamaBaseURL string
}

// NewEmbedder returns the embedder for cfg.Provider. Gemini embeddings are
// served by the chroma package and are not built here.
func NewEmbedder(cfg EmbedderConfig) (Embedder, error) {
	switch cfg.Provider {
	case ProviderOpenAI, "":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for OpenAI embeddings")
		}
		return NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.Model, cfg.OpenAIBaseURL)
	case ProviderOllama:
		return NewOllamaEmbedder(cfg.OllamaBaseURL, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", cfg.Provider)
	}
}
