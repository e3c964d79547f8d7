package main

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"email-assistant/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func runConfig() *config.Config {
	return &config.Config{
		Port:              "0",
		GinMode:           gin.TestMode,
		Timezone:          "UTC",
		DBDriver:          "sqlite",
		DatabaseURL:       "file::memory:",
		AIProvider:        "openai",
		EmbeddingProvider: "openai",
		VectorBackend:     "local",
		MailProvider:      "imap",
		SupportKeywords:   config.DefaultSupportKeywords,
		UrgencyKeywords:   config.DefaultUrgencyKeywords,
		SyncHoursBack:     24,
		JWTAccessExpiry:   time.Hour,
	}
}

func TestRun_StartupErrorsAreReturned(t *testing.T) {
	cfg := runConfig()
	cfg.SyncSchedule = "every now and then"

	err := run(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync scheduler")
}

func TestRun_ListenFailureIsReturned(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := runConfig()
	cfg.Port = strconv.Itoa(ln.Addr().(*net.TCPAddr).Port)

	err = run(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server failed")
}

func TestRun_StopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, run(ctx, runConfig(), zap.NewNop()))
}

func TestShortTopicName(t *testing.T) {
	assert.Equal(t, "gmail-updates", shortTopicName(""))
	assert.Equal(t, "inbox", shortTopicName("inbox"))
	assert.Equal(t, "inbox", shortTopicName("projects/acme/topics/inbox"))
}
