package api

import (
	"context"
	"fmt"

	authUsecase "email-assistant/internal/auth/usecase"
	emailRepo "email-assistant/internal/email/repository"
	emailUsecase "email-assistant/internal/email/usecase"
	knowledgeRepo "email-assistant/internal/knowledge/repository"
	knowledgeUsecase "email-assistant/internal/knowledge/usecase"
	"email-assistant/internal/notification"
	"email-assistant/pkg/ai"
	"email-assistant/pkg/chroma"
	"email-assistant/pkg/config"
	"email-assistant/pkg/database"
	"email-assistant/pkg/fcm"
	"email-assistant/pkg/gmail"
	"email-assistant/pkg/imap"
	"email-assistant/pkg/mail"
	"email-assistant/pkg/signals"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App is the wired service shared by the HTTP server and the CLI.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	DB        *gorm.DB
	Settings  *RuntimeSettings
	Knowledge knowledgeUsecase.KnowledgeUsecase
	Triage    emailUsecase.TriageUsecase
	Auth      authUsecase.AuthUsecase
	// Gmail is set only when MAIL_PROVIDER=gmail
	Gmail *gmail.Service

	chromaStore *chroma.Store
}

// Bootstrap opens the database and wires every component. Optional remote
// services that fail to initialize are logged and left out.
func Bootstrap(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := database.NewConnection(cfg)
	if err != nil {
		return nil, err
	}
	if err := emailRepo.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate email tables: %w", err)
	}
	if err := knowledgeRepo.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate knowledge tables: %w", err)
	}

	app := &App{
		Config:   cfg,
		Logger:   logger,
		DB:       db,
		Settings: NewRuntimeSettings(cfg),
		Auth:     authUsecase.NewAuthUsecase(cfg.JWTSecret, cfg.JWTAccessExpiry),
	}

	aiService, err := ai.NewService(ai.Config{
		Provider:         ai.ProviderType(cfg.AIProvider),
		OpenAIAPIKey:     cfg.OpenAIAPIKey,
		OpenAIModel:      cfg.OpenAIModel,
		OpenAIBaseURL:    cfg.OpenAIBaseURL,
		GeminiAPIKey:     cfg.GeminiApiKey,
		GeminiModel:      cfg.GeminiModel,
		GetOllamaBaseURL: app.Settings.OllamaBaseURL,
		GetOllamaModel:   app.Settings.OllamaModel,
		Logger:           logger.Named("ai"),
	})
	if err != nil {
		logger.Warn("AI service unavailable, using neutral sentiment and fallback responses", zap.Error(err))
	} else {
		logger.Info("AI service initialized", zap.String("provider", aiService.Name()))
	}

	embedder := app.newEmbedder()
	index := app.newIndex(embedder)
	app.Knowledge = knowledgeUsecase.NewKnowledgeUsecase(knowledgeRepo.NewKnowledgeRepository(db), index, embedder, logger.Named("knowledge"))
	if err := app.Knowledge.Rebuild(ctx); err != nil {
		logger.Warn("initial knowledge index build failed", zap.Error(err))
	}

	extractorOpts := []signals.Option{
		signals.WithUrgencyKeywords(cfg.UrgencyKeywords),
		signals.WithSupportKeywords(cfg.SupportKeywords),
		signals.WithClassifyTimeout(cfg.ClassifyTimeout),
		signals.WithLogger(logger.Named("signals")),
	}
	var (
		extractor *signals.Extractor
		generator ai.Generator
	)
	if aiService != nil {
		extractor = signals.NewExtractor(aiService, extractorOpts...)
		generator = aiService
	} else {
		extractor = signals.NewExtractor(nil, extractorOpts...)
	}
	responder := emailUsecase.NewResponseGenerator(app.Knowledge, generator, app.Settings.Generation, cfg.GenerateTimeout, logger.Named("generator"))

	opts := emailUsecase.Options{
		SupportFilter:    cfg.SupportFilterEnabled,
		DefaultHoursBack: cfg.SyncHoursBack,
		Location:         cfg.Location(),
		Logger:           logger.Named("triage"),
	}
	if notifier := app.newUrgentNotifier(ctx); notifier != nil {
		opts.Notifier = notifier
	}

	app.Triage = emailUsecase.NewTriageUsecase(
		emailRepo.NewEmailRepository(db),
		emailRepo.NewAnalyticsRepository(db),
		emailRepo.NewSyncRunRepository(db),
		extractor,
		responder,
		app.newTransport(ctx),
		opts,
	)
	return app, nil
}

// newEmbedder returns nil when no embedding backend is configured; retrieval
// then ranks by text match.
func (a *App) newEmbedder() ai.Embedder {
	cfg := a.Config
	if ai.ProviderType(cfg.EmbeddingProvider) == ai.ProviderGemini {
		embedder, err := chroma.NewGeminiEmbedder(cfg.GeminiApiKey)
		if err != nil {
			a.Logger.Warn("Gemini embedder unavailable", zap.Error(err))
			return nil
		}
		return embedder
	}

	embedder, err := ai.NewEmbedder(ai.EmbedderConfig{
		Provider:      ai.ProviderType(cfg.EmbeddingProvider),
		Model:         cfg.EmbeddingModel,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		OllamaBaseURL: cfg.OllamaBaseURL,
	})
	if err != nil {
		a.Logger.Warn("embedder unavailable, retrieval falls back to text match", zap.Error(err))
		return nil
	}
	return embedder
}

func (a *App) newIndex(embedder ai.Embedder) knowledgeUsecase.Index {
	if a.Config.VectorBackend == "chroma" {
		store, err := chroma.NewStore(a.Config, a.Logger.Named("chroma"))
		if err == nil {
			a.chromaStore = store
			return knowledgeUsecase.NewChromaIndex(store)
		}
		a.Logger.Warn("Chroma unavailable, using the local index", zap.Error(err))
	}
	return knowledgeUsecase.NewLocalIndex(embedder, a.Logger.Named("index"))
}

func (a *App) newTransport(ctx context.Context) mail.Transport {
	cfg := a.Config
	switch cfg.MailProvider {
	case "gmail":
		svc, err := gmail.NewService(ctx, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRefreshToken, cfg.GmailSupportQuery, a.Logger.Named("gmail"))
		if err != nil {
			a.Logger.Warn("Gmail transport unavailable, sync and send are disabled", zap.Error(err))
			return nil
		}
		a.Gmail = svc
		return svc
	default:
		if cfg.EmailUsername == "" {
			a.Logger.Warn("EMAIL_USERNAME not set, sync and send are disabled")
			return nil
		}
		return imap.NewService(imap.Config{
			Host:     cfg.EmailHost,
			Port:     cfg.EmailPort,
			Username: cfg.EmailUsername,
			Password: cfg.EmailPassword,
			UseSSL:   cfg.EmailUseSSL,
			SMTPHost: cfg.SMTPHost,
			SMTPPort: cfg.SMTPPort,
		}, a.Logger.Named("imap"))
	}
}

func (a *App) newUrgentNotifier(ctx context.Context) emailUsecase.UrgentNotifier {
	if a.Config.FirebaseCredentials == "" {
		return nil
	}
	client, err := fcm.NewClient(ctx, a.Config.FirebaseCredentials, a.Logger.Named("fcm"))
	if err != nil {
		a.Logger.Warn("FCM unavailable, urgent alerts disabled", zap.Error(err))
		return nil
	}
	return notification.NewUrgentAlerter(client, a.Config.FCMUrgentTopic)
}

// Close releases the database and remote collections.
func (a *App) Close(ctx context.Context) {
	if a.chromaStore != nil {
		a.chromaStore.Close(ctx)
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
