package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	api "email-assistant/cmd/api"
	"email-assistant/internal/email/scheduler"
	"email-assistant/internal/notification"
	"email-assistant/pkg/config"
	"email-assistant/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg := config.Load()

	if err := logger.Init(cfg.LogLevel); err != nil {
		panic(err)
	}
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, cfg, log)
	stop()
	if err != nil {
		log.Error("Application stopped", zap.Error(err))
	}
	logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

// run serves until ctx is done. Everything it opens is closed before it
// returns, including on startup errors.
func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	app, err := api.Bootstrap(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Close(context.Background())

	if cfg.SyncSchedule != "" {
		sched, err := scheduler.New(cfg.SyncSchedule, app.Triage, cfg.SyncHoursBack, log.Named("scheduler"))
		if err != nil {
			return fmt.Errorf("failed to create sync scheduler: %w", err)
		}
		sched.Start(ctx)
		defer sched.Stop()
	}

	// Gmail push notifications only run when a project is configured
	if cfg.GoogleProjectID != "" {
		topicName := shortTopicName(cfg.GooglePubSubTopic)
		notifService, err := notification.NewService(ctx, cfg.GoogleProjectID, topicName, cfg.GoogleCredentials, app.Triage, log.Named("pubsub"))
		if err != nil {
			log.Error("Failed to initialize notification service", zap.Error(err))
		} else {
			defer notifService.Close()
			go func() {
				if err := notifService.Start(ctx); err != nil {
					log.Error("Notification service stopped", zap.Error(err))
				}
			}()

			if app.Gmail != nil {
				fullTopic := "projects/" + cfg.GoogleProjectID + "/topics/" + topicName
				historyID, err := app.Gmail.Watch(ctx, fullTopic)
				if err != nil {
					log.Warn("Failed to watch Gmail mailbox", zap.Error(err))
				} else {
					log.Info("Watching Gmail mailbox", zap.String("topic", fullTopic), zap.Uint64("history_id", historyID))
					defer func() {
						if err := app.Gmail.Stop(context.Background()); err != nil {
							log.Warn("Failed to stop Gmail watch", zap.Error(err))
						}
					}()
				}
			}
		}
	} else {
		log.Info("GOOGLE_PROJECT_ID not configured, push notifications disabled")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewHandler(app).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}

	select {
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	default:
		return nil
	}
}

// shortTopicName accepts either a bare topic or projects/<p>/topics/<name>.
func shortTopicName(topic string) string {
	if parts := strings.Split(topic, "/"); len(parts) > 1 {
		topic = parts[len(parts)-1]
	}
	if topic == "" {
		topic = "gmail-updates"
	}
	return topic
}
