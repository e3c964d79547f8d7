package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// OllamaService implements Service using an Ollama server
type OllamaService struct {
	getBaseURL func() string // Dynamic getter for BaseURL
	getModel   func() string // Dynamic getter for Model
	httpClient *http.Client
}

// NewOllamaService creates a new Ollama service
func NewOllamaService(baseURL, model string) *OllamaService {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3"
	}
	return NewOllamaServiceWithGetters(
		func() string { return baseURL },
		func() string { return model },
	)
}

// NewOllamaServiceWithGetters creates an Ollama service whose endpoint and
// model can change at runtime.
func NewOllamaServiceWithGetters(getBaseURL, getModel func() string) *OllamaService {
	return &OllamaService{
		getBaseURL: getBaseURL,
		getModel:   getModel,
		httpClient: &http.Client{},
	}
}

func (o *OllamaService) Name() string { return string(ProviderOllama) }

func (o *OllamaService) Classify(ctx context.Context, text string, labels []string) (string, error) {
	return o.Generate(ctx, GenerateRequest{
		System:      classifySystemPrompt(labels),
		Prompt:      classifyUserPrompt(text),
		MaxTokens:   classifyMaxTokens,
		Temperature: classifyTemperature,
	})
}

func (o *OllamaService) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	payload := map[string]interface{}{
		"model":  o.getModel(),
		"prompt": req.Prompt,
		"stream": false,
		"options": map[string]interface{}{
			"temperature": req.Temperature,
			"num_predict": req.MaxTokens,
		},
	}
	if req.System != "" {
		payload["system"] = req.System
	}

	var result struct {
		Response string `json:"response"`
		Done     bool   `json:"done"`
	}
	if err := o.post(ctx, "/api/generate", payload, &result); err != nil {
		return "", err
	}
	if strings.TrimSpace(result.Response) == "" {
		return "", wrapError(o.Name(), ErrEmptyResponse)
	}
	return result.Response, nil
}

func (o *OllamaService) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.getBaseURL()+path, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return wrapError(o.Name(), fmt.Errorf("ollama request failed: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return wrapError(o.Name(), fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return wrapError(o.Name(), &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)})
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return &Error{Kind: KindMalformed, Provider: o.Name(), Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	return nil
}

// OllamaEmbedder implements Embedder via the /api/embed endpoint.
type OllamaEmbedder struct {
	svc   *OllamaService
	model string
}

func NewOllamaEmbedder(baseURL, model string) *OllamaEmbedder {
	if model == "" {
		model = "nomic-embed-text"
	}
	return &OllamaEmbedder{svc: NewOllamaService(baseURL, model), model: model}
}

func (e *OllamaEmbedder) Model() string { return e.model }

func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	var result struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	payload := map[string]interface{}{
		"model": e.model,
		"input": texts,
	}
	if err := e.svc.post(ctx, "/api/embed", payload, &result); err != nil {
		return nil, err
	}
	if len(result.Embeddings) != len(texts) {
		return nil, &Error{
			Kind:     KindMalformed,
			Provider: e.svc.Name(),
			Err:      fmt.Errorf("got %d embeddings for %d inputs", len(result.Embeddings), len(texts)),
		}
	}
	return result.Embeddings, nil
}
