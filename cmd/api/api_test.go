package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"email-assistant/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() *config.Config {
	return &config.Config{
		GinMode:             gin.TestMode,
		Timezone:            "UTC",
		DBDriver:            "sqlite",
		DatabaseURL:         "file::memory:",
		AIProvider:          "openai",
		EmbeddingProvider:   "openai",
		VectorBackend:       "local",
		OllamaBaseURL:       "http://localhost:11434",
		OllamaModel:         "llama3",
		RAGTopK:             3,
		GenerateMaxTokens:   500,
		GenerateTemperature: 0.7,
		MailProvider:        "imap",
		SupportKeywords:     config.DefaultSupportKeywords,
		UrgencyKeywords:     config.DefaultUrgencyKeywords,
		SyncHoursBack:       24,
		JWTAccessExpiry:     time.Hour,
	}
}

func newTestServer(t *testing.T, cfg *config.Config) (*App, *gin.Engine) {
	t.Helper()
	app, err := Bootstrap(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { app.Close(context.Background()) })
	return app, NewHandler(app).Router()
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestBootstrap_DegradesWithoutProviders(t *testing.T) {
	app, r := newTestServer(t, testConfig())
	assert.Nil(t, app.Gmail)

	w := doJSON(t, r, http.MethodGet, "/api/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/emails/sync", nil, nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestRouter_KnowledgeAndIngest(t *testing.T) {
	_, r := newTestServer(t, testConfig())

	w := doJSON(t, r, http.MethodPost, "/api/knowledge-base", map[string]any{
		"question": "How do I reset my password?",
		"answer":   "Use the Forgot password link on the login page.",
		"category": "account",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSON(t, r, http.MethodGet, "/api/knowledge-base/search?q=reset+password&k=1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Forgot password")

	w = doJSON(t, r, http.MethodPost, "/api/emails/ingest", map[string]any{
		"emails": []map[string]any{{
			"message_id":   "m1",
			"sender_email": "jane@example.com",
			"subject":      "Urgent: cannot access account",
			"body":         "Please help immediately",
		}},
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, r, http.MethodGet, "/api/emails/priority-queue", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "jane@example.com")

	w = doJSON(t, r, http.MethodGet, "/api/analytics/dashboard", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_AuthEnabled(t *testing.T) {
	cfg := testConfig()
	cfg.JWTSecret = "s3cret"
	app, r := newTestServer(t, cfg)

	w := doJSON(t, r, http.MethodGet, "/api/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/emails", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	tok, err := app.Auth.IssueToken("reviewer")
	require.NoError(t, err)
	w = doJSON(t, r, http.MethodGet, "/api/emails", nil, http.Header{"Authorization": {"Bearer " + tok.AccessToken}})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGenerationSettings(t *testing.T) {
	app, r := newTestServer(t, testConfig())

	w := doJSON(t, r, http.MethodGet, "/api/settings/generation", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got SettingsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, SettingsResponse{TopK: 3, MaxTokens: 500, Temperature: 0.7, OllamaBaseURL: "http://localhost:11434", OllamaModel: "llama3"}, got)

	w = doJSON(t, r, http.MethodPut, "/api/settings/generation", map[string]any{
		"top_k":           5,
		"temperature":     0.2,
		"ollama_base_url": "http://ollama:11434/",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 5, app.Settings.TopK())
	assert.InDelta(t, 0.2, app.Settings.Generation().Temperature, 1e-6)
	assert.Equal(t, 500, app.Settings.Generation().MaxTokens)
	assert.Equal(t, "http://ollama:11434", app.Settings.OllamaBaseURL())

	for name, body := range map[string]map[string]any{
		"top_k too big":    {"top_k": 21},
		"negative temp":    {"temperature": -1},
		"zero max tokens":  {"max_tokens": 0},
		"bad url":          {"ollama_base_url": "ftp://x"},
		"blank model name": {"ollama_model": "  "},
	} {
		t.Run(name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPut, "/api/settings/generation", body, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
	assert.Equal(t, 5, app.Settings.TopK())
}

func TestTestOllamaConnection(t *testing.T) {
	ollama := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	defer ollama.Close()

	_, r := newTestServer(t, testConfig())

	w := doJSON(t, r, http.MethodPost, "/api/settings/ollama/test", map[string]string{"ollama_base_url": ollama.URL}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"connected":true`)

	w = doJSON(t, r, http.MethodPost, "/api/settings/ollama/test", map[string]string{"ollama_base_url": ollama.URL + "/nested"}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/settings/ollama/test", map[string]string{"ollama_base_url": "not a url"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
