package api

import (
	"net/http"

	emailDelivery "email-assistant/internal/email/delivery"
	knowledgeDelivery "email-assistant/internal/knowledge/delivery"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	app              *App
	emailHandler     *emailDelivery.EmailHandler
	analyticsHandler *emailDelivery.AnalyticsHandler
	knowledgeHandler *knowledgeDelivery.KnowledgeHandler
}

func NewHandler(app *App) *Handler {
	loc := app.Config.Location()
	return &Handler{
		app:              app,
		emailHandler:     emailDelivery.NewEmailHandler(app.Triage, loc),
		analyticsHandler: emailDelivery.NewAnalyticsHandler(app.Triage, loc),
		knowledgeHandler: knowledgeDelivery.NewKnowledgeHandler(app.Knowledge, app.Settings.TopK),
	}
}

// Router builds the gin engine with CORS and every route registered.
func (h *Handler) Router() *gin.Engine {
	gin.SetMode(h.app.Config.GinMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.app.Logger))

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h)
	return r
}
