package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	GinMode  string
	LogLevel string
	Timezone string

	DBDriver    string
	DatabaseURL string

	// AI provider
	AIProvider    string
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
	OllamaBaseURL string
	OllamaModel   string
	GeminiApiKey  string
	GeminiModel   string

	// Embeddings and retrieval
	EmbeddingProvider string
	EmbeddingModel    string
	VectorBackend     string
	ChromaURL         string
	ChromaAPIKey      string
	ChromaTenant      string
	ChromaDatabase    string
	ChromaCollection  string
	RAGTopK           int

	// Generation
	GenerateMaxTokens   int
	GenerateTemperature float32
	ClassifyTimeout     time.Duration
	GenerateTimeout     time.Duration

	// Mail transport
	MailProvider  string
	EmailHost     string
	EmailPort     int
	EmailUsername string
	EmailPassword string
	EmailUseSSL   bool
	SMTPHost      string
	SMTPPort      int

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRefreshToken string
	GmailSupportQuery  string

	// Triage keywords
	SupportKeywords      []string
	UrgencyKeywords      []string
	SupportFilterEnabled bool

	// Sync
	SyncSchedule  string
	SyncHoursBack int

	// Notifications
	GoogleProjectID     string
	GooglePubSubTopic   string
	GoogleCredentials   string
	FirebaseCredentials string
	FCMUrgentTopic      string

	// API auth
	JWTSecret       string
	JWTAccessExpiry time.Duration
}

var (
	DefaultSupportKeywords = []string{"support", "query", "request", "help", "issue", "problem", "assistance"}
	DefaultUrgencyKeywords = []string{"immediately", "critical", "urgent", "asap", "cannot access", "broken", "down"}
)

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:     getEnv("PORT", "8000"),
		GinMode:  getEnv("GIN_MODE", "release"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Timezone: getEnv("TIMEZONE", "UTC"),

		DBDriver:    strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DatabaseURL: getEnv("DATABASE_URL", "email_assistant.db"),

		AIProvider:    strings.ToLower(getEnv("AI_PROVIDER", "auto")),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4"),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:   getEnv("OLLAMA_MODEL", "llama3"),
		GeminiApiKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		EmbeddingProvider: strings.ToLower(getEnv("EMBEDDING_PROVIDER", "openai")),
		EmbeddingModel:    getEnv("EMBEDDING_MODEL", ""),
		VectorBackend:     strings.ToLower(getEnv("VECTOR_BACKEND", "local")),
		ChromaURL:         getEnv("CHROMA_URL", ""),
		ChromaAPIKey:      getEnv("CHROMA_API_KEY", ""),
		ChromaTenant:      getEnv("CHROMA_TENANT", ""),
		ChromaDatabase:    getEnv("CHROMA_DATABASE", ""),
		ChromaCollection:  getEnv("CHROMA_COLLECTION", "knowledge-base"),
		RAGTopK:           getEnvInt("RAG_TOP_K", 3),

		GenerateMaxTokens:   getEnvInt("GENERATE_MAX_TOKENS", 500),
		GenerateTemperature: float32(getEnvFloat("GENERATE_TEMPERATURE", 0.7)),
		ClassifyTimeout:     getEnvDuration("CLASSIFY_TIMEOUT", 15*time.Second),
		GenerateTimeout:     getEnvDuration("GENERATE_TIMEOUT", 60*time.Second),

		MailProvider:  strings.ToLower(getEnv("MAIL_PROVIDER", "imap")),
		EmailHost:     getEnv("EMAIL_HOST", "imap.gmail.com"),
		EmailPort:     getEnvInt("EMAIL_PORT", 993),
		EmailUsername: getEnv("EMAIL_USERNAME", ""),
		EmailPassword: getEnv("EMAIL_PASSWORD", ""),
		EmailUseSSL:   getEnvBool("EMAIL_USE_SSL", true),
		SMTPHost:      getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:      getEnvInt("SMTP_PORT", 587),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRefreshToken: getEnv("GOOGLE_REFRESH_TOKEN", ""),
		GmailSupportQuery:  getEnv("GMAIL_SUPPORT_QUERY", "subject:(support OR help OR issue OR problem OR question OR urgent)"),

		SupportKeywords:      getEnvList("SUPPORT_KEYWORDS", DefaultSupportKeywords),
		UrgencyKeywords:      getEnvList("URGENCY_KEYWORDS", DefaultUrgencyKeywords),
		SupportFilterEnabled: getEnvBool("SUPPORT_FILTER_ENABLED", true),

		SyncSchedule:  getEnv("SYNC_SCHEDULE", ""),
		SyncHoursBack: getEnvInt("SYNC_HOURS_BACK", 24),

		GoogleProjectID:     getEnv("GOOGLE_PROJECT_ID", ""),
		GooglePubSubTopic:   getEnv("GOOGLE_PUBSUB_TOPIC", ""),
		GoogleCredentials:   getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		FirebaseCredentials: getEnv("FIREBASE_CREDENTIALS", ""),
		FCMUrgentTopic:      getEnv("FCM_URGENT_TOPIC", "urgent-emails"),

		JWTSecret:       getEnv("JWT_SECRET", ""),
		JWTAccessExpiry: getEnvDuration("JWT_ACCESS_EXPIRY", 24*time.Hour),
	}
}

// Location resolves Timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated value, trimming and lower-casing entries.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		out := make([]string, len(defaultValue))
		copy(out, defaultValue)
		return out
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}
