package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"email-assistant/internal/email/usecase"
	"email-assistant/pkg/config"

	"github.com/gin-gonic/gin"
)

// RuntimeSettings holds the settings that can change without a restart.
// Consumers read them through getters on every call.
type RuntimeSettings struct {
	mu            sync.RWMutex
	generation    usecase.GenerationSettings
	ollamaBaseURL string
	ollamaModel   string
	httpClient    *http.Client
}

// NewRuntimeSettings initializes runtime settings from static config
func NewRuntimeSettings(cfg *config.Config) *RuntimeSettings {
	gen := usecase.DefaultGenerationSettings
	if cfg.RAGTopK > 0 {
		gen.TopK = cfg.RAGTopK
	}
	if cfg.GenerateMaxTokens > 0 {
		gen.MaxTokens = cfg.GenerateMaxTokens
	}
	if cfg.GenerateTemperature >= 0 {
		gen.Temperature = cfg.GenerateTemperature
	}
	return &RuntimeSettings{
		generation:    gen,
		ollamaBaseURL: cfg.OllamaBaseURL,
		ollamaModel:   cfg.OllamaModel,
		httpClient:    &http.Client{Timeout: 5 * time.Second},
	}
}

func (s *RuntimeSettings) Generation() usecase.GenerationSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

func (s *RuntimeSettings) TopK() int {
	return s.Generation().TopK
}

// OllamaBaseURL returns the current runtime Ollama base URL
func (s *RuntimeSettings) OllamaBaseURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ollamaBaseURL
}

// OllamaModel returns the current runtime Ollama model
func (s *RuntimeSettings) OllamaModel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ollamaModel
}

// SettingsResponse is the current runtime configuration
type SettingsResponse struct {
	TopK          int     `json:"top_k"`
	MaxTokens     int     `json:"max_tokens"`
	Temperature   float32 `json:"temperature"`
	OllamaBaseURL string  `json:"ollama_base_url"`
	OllamaModel   string  `json:"ollama_model"`
}

// UpdateSettingsRequest changes only the fields that are present
type UpdateSettingsRequest struct {
	TopK          *int     `json:"top_k"`
	MaxTokens     *int     `json:"max_tokens"`
	Temperature   *float32 `json:"temperature"`
	OllamaBaseURL *string  `json:"ollama_base_url"`
	OllamaModel   *string  `json:"ollama_model"`
}

func (r UpdateSettingsRequest) validate() error {
	if r.TopK != nil && (*r.TopK < 1 || *r.TopK > 20) {
		return fmt.Errorf("top_k must be between 1 and 20")
	}
	if r.MaxTokens != nil && (*r.MaxTokens < 1 || *r.MaxTokens > 4096) {
		return fmt.Errorf("max_tokens must be between 1 and 4096")
	}
	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > 2) {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if r.OllamaBaseURL != nil {
		if err := validateBaseURL(*r.OllamaBaseURL); err != nil {
			return err
		}
	}
	if r.OllamaModel != nil && strings.TrimSpace(*r.OllamaModel) == "" {
		return fmt.Errorf("ollama_model must not be empty")
	}
	return nil
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("ollama_base_url must be an http(s) URL")
	}
	return nil
}

func (s *RuntimeSettings) snapshot() SettingsResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SettingsResponse{
		TopK:          s.generation.TopK,
		MaxTokens:     s.generation.MaxTokens,
		Temperature:   s.generation.Temperature,
		OllamaBaseURL: s.ollamaBaseURL,
		OllamaModel:   s.ollamaModel,
	}
}

// GetGenerationSettings returns current generation and Ollama configuration
// GET /api/settings/generation
func (s *RuntimeSettings) GetGenerationSettings(c *gin.Context) {
	c.JSON(http.StatusOK, s.snapshot())
}

// UpdateGenerationSettings updates generation settings at runtime
// PUT /api/settings/generation
func (s *RuntimeSettings) UpdateGenerationSettings(c *gin.Context) {
	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	if req.TopK != nil {
		s.generation.TopK = *req.TopK
	}
	if req.MaxTokens != nil {
		s.generation.MaxTokens = *req.MaxTokens
	}
	if req.Temperature != nil {
		s.generation.Temperature = *req.Temperature
	}
	if req.OllamaBaseURL != nil {
		s.ollamaBaseURL = strings.TrimRight(*req.OllamaBaseURL, "/")
	}
	if req.OllamaModel != nil {
		s.ollamaModel = strings.TrimSpace(*req.OllamaModel)
	}
	s.mu.Unlock()

	c.JSON(http.StatusOK, s.snapshot())
}

// TestOllamaConnection tests if the Ollama server is reachable
// POST /api/settings/ollama/test
func (s *RuntimeSettings) TestOllamaConnection(c *gin.Context) {
	var req struct {
		OllamaBaseURL string `json:"ollama_base_url"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if req.OllamaBaseURL == "" {
		req.OllamaBaseURL = s.OllamaBaseURL()
	}
	if err := validateBaseURL(req.OllamaBaseURL); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status, err := s.pingOllama(c.Request.Context(), req.OllamaBaseURL)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"connected": false,
			"error":     err.Error(),
		})
		return
	}
	if status != http.StatusOK {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"connected":   false,
			"status_code": status,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"connected":       true,
		"ollama_base_url": req.OllamaBaseURL,
	})
}

// pingOllama calls Ollama's /api/tags endpoint
func (s *RuntimeSettings) pingOllama(ctx context.Context, baseURL string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/api/tags", nil)
	if err != nil {
		return 0, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}
