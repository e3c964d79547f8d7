package api

import (
	"net/http"
	"time"

	"email-assistant/internal/auth/delivery"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func SetupRoutes(r *gin.Engine, h *Handler) {
	settings := h.app.Settings

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		protected := api.Group("")
		if h.app.Config.JWTSecret != "" {
			protected.Use(delivery.AuthMiddleware(h.app.Auth))
		}

		emails := protected.Group("/emails")
		{
			emails.GET("", h.emailHandler.ListEmails)
			emails.GET("/priority-queue", h.emailHandler.GetPriorityQueue)
			emails.POST("/sync", h.emailHandler.SyncEmails)
			emails.GET("/sync/history", h.emailHandler.GetSyncHistory)
			emails.POST("/ingest", h.emailHandler.IngestEmails)
			emails.POST("/reprocess", h.emailHandler.ReprocessEmails)
			emails.GET("/:id", h.emailHandler.GetEmailByID)
			emails.PUT("/:id", h.emailHandler.UpdateEmail)
			emails.POST("/:id/generate-response", h.emailHandler.GenerateResponse)
			emails.POST("/:id/send-response", h.emailHandler.SendResponse)
		}

		analytics := protected.Group("/analytics")
		{
			analytics.GET("", h.analyticsHandler.ListAnalytics)
			analytics.GET("/dashboard", h.analyticsHandler.GetDashboard)
			analytics.POST("/recompute", h.analyticsHandler.Recompute)
		}

		kb := protected.Group("/knowledge-base")
		{
			kb.GET("", h.knowledgeHandler.ListEntries)
			kb.POST("", h.knowledgeHandler.CreateEntry)
			kb.POST("/seed", h.knowledgeHandler.SeedEntries)
			kb.GET("/search", h.knowledgeHandler.SearchEntries)
			kb.GET("/:id", h.knowledgeHandler.GetEntry)
			kb.PUT("/:id", h.knowledgeHandler.UpdateEntry)
			kb.DELETE("/:id", h.knowledgeHandler.DeleteEntry)
		}

		// Runtime configuration
		s := protected.Group("/settings")
		{
			s.GET("/generation", settings.GetGenerationSettings)
			s.PUT("/generation", settings.UpdateGenerationSettings)
			s.POST("/ollama/test", settings.TestOllamaConnection)
		}
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
