package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	api "email-assistant/cmd/api"
	emaildomain "email-assistant/internal/email/domain"
	knowledgeUsecase "email-assistant/internal/knowledge/usecase"
	"email-assistant/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testFactory(t *testing.T, mutate ...func(*config.Config)) AppFactory {
	t.Helper()
	cfg := &config.Config{
		Timezone:          "UTC",
		DBDriver:          "sqlite",
		DatabaseURL:       filepath.Join(t.TempDir(), "assistant.db"),
		AIProvider:        "openai",
		EmbeddingProvider: "openai",
		VectorBackend:     "local",
		MailProvider:      "imap",
		SupportKeywords:   config.DefaultSupportKeywords,
		UrgencyKeywords:   config.DefaultUrgencyKeywords,
		SyncHoursBack:     24,
		JWTSecret:         "s3cret",
		JWTAccessExpiry:   time.Hour,
	}
	for _, m := range mutate {
		m(cfg)
	}
	return func(ctx context.Context) (*api.App, error) {
		return api.Bootstrap(ctx, cfg, zap.NewNop())
	}
}

func run(t *testing.T, factory AppFactory, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(factory, &out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSeed_DefaultThenSkip(t *testing.T) {
	factory := testFactory(t)

	out, err := run(t, factory, "seed")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("seeded %d knowledge base entries\n", len(knowledgeUsecase.DefaultSeed)), out)

	out, err = run(t, factory, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "already populated")
}

func TestSeed_FileReplace(t *testing.T) {
	factory := testFactory(t)
	_, err := run(t, factory, "seed")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "kb.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"question":"Do you ship abroad?","answer":"Yes, to 40 countries.","category":"shipping"}]`), 0o600))

	out, err := run(t, factory, "seed", "--file", path, "--replace")
	require.NoError(t, err)
	assert.Equal(t, "seeded 1 knowledge base entries\n", out)

	_, err = run(t, factory, "seed", "--file", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestSync_NoTransportFails(t *testing.T) {
	out, err := run(t, testFactory(t), "sync", "--hours", "6")
	require.Error(t, err)
	assert.Contains(t, out, "no mail transport configured")
}

func TestAnalyticsAndQueue(t *testing.T) {
	factory := testFactory(t)

	out, err := run(t, factory, "analytics", "--date", "2024-03-01")
	require.NoError(t, err)
	var row emaildomain.DailyAnalytics
	require.NoError(t, json.Unmarshal([]byte(out), &row))
	assert.Equal(t, "2024-03-01", row.Day)
	assert.Zero(t, row.TotalEmails)

	_, err = run(t, factory, "analytics", "--date", "03/01/2024")
	assert.Error(t, err)

	out, err = run(t, factory, "queue")
	require.NoError(t, err)
	assert.Equal(t, "0 pending\n", out)
}

func TestToken(t *testing.T) {
	factory := testFactory(t)
	out, err := run(t, factory, "token", "--subject", "ops")
	require.NoError(t, err)

	var tok struct {
		AccessToken string `json:"access_token"`
		Subject     string `json:"subject"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &tok))
	assert.Equal(t, "ops", tok.Subject)

	app, err := factory(context.Background())
	require.NoError(t, err)
	defer app.Close(context.Background())
	principal, err := app.Auth.ValidateToken(tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "ops", principal.Subject)

	_, err = run(t, testFactory(t, func(c *config.Config) { c.JWTSecret = "" }), "token")
	assert.Error(t, err)
}
