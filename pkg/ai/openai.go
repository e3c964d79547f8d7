package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAIService implements Service on the chat completions API.
type OpenAIService struct {
	client *openai.Client
	model  string
}

// NewOpenAIService creates a client; baseURL is optional and lets the service
// target OpenAI-compatible gateways.
func NewOpenAIService(apiKey, model, baseURL string) *OpenAIService {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4
	}
	return &OpenAIService{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (s *OpenAIService) Name() string { return string(ProviderOpenAI) }

func (s *OpenAIService) Classify(ctx context.Context, text string, labels []string) (string, error) {
	return s.complete(ctx, GenerateRequest{
		System:      classifySystemPrompt(labels),
		Prompt:      classifyUserPrompt(text),
		MaxTokens:   classifyMaxTokens,
		Temperature: classifyTemperature,
	})
}

func (s *OpenAIService) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	return s.complete(ctx, req)
}

func (s *OpenAIService) complete(ctx context.Context, req GenerateRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", wrapError(s.Name(), err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", wrapError(s.Name(), ErrEmptyResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

// OpenAIEmbedder implements Embedder on the embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
	name   string
}

// NewOpenAIEmbedder resolves model against the client's known embedding
// models. An empty model selects text-embedding-ada-002.
func NewOpenAIEmbedder(apiKey, model, baseURL string) (*OpenAIEmbedder, error) {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	m := openai.AdaEmbeddingV2
	if model != "" {
		// UnmarshalText maps unrecognized names to Unknown instead of failing.
		_ = m.UnmarshalText([]byte(model))
		if m == openai.Unknown {
			return nil, fmt.Errorf("unsupported OpenAI embedding model %q", model)
		}
	}
	return &OpenAIEmbedder{client: openai.NewClientWithConfig(cfg), model: m, name: m.String()}, nil
}

func (e *OpenAIEmbedder) Model() string { return e.name }

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: e.model,
		Input: texts,
	})
	if err != nil {
		return nil, wrapError(string(ProviderOpenAI), err)
	}
	if len(resp.Data) != len(texts) {
		return nil, &Error{Kind: KindMalformed, Provider: string(ProviderOpenAI), Err: ErrEmptyResponse}
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, &Error{Kind: KindMalformed, Provider: string(ProviderOpenAI), Err: ErrEmptyResponse}
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
