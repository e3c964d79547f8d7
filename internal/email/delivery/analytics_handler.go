package delivery

import (
	"net/http"
	"time"

	"email-assistant/internal/email/usecase"

	"github.com/gin-gonic/gin"
)

// AnalyticsHandler serves the dashboard and daily snapshots
type AnalyticsHandler struct {
	triageUsecase usecase.TriageUsecase
	location      *time.Location
	now           func() time.Time
}

func NewAnalyticsHandler(triageUsecase usecase.TriageUsecase, location *time.Location) *AnalyticsHandler {
	if location == nil {
		location = time.UTC
	}
	return &AnalyticsHandler{
		triageUsecase: triageUsecase,
		location:      location,
		now:           time.Now,
	}
}

// GET /api/analytics/dashboard?date=2024-03-01
func (h *AnalyticsHandler) GetDashboard(c *gin.Context) {
	day, ok := h.dayQuery(c, "date", h.now())
	if !ok {
		return
	}

	stats, err := h.triageUsecase.DashboardStats(c.Request.Context(), day)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// POST /api/analytics/recompute?date=2024-03-01
func (h *AnalyticsHandler) Recompute(c *gin.Context) {
	day, ok := h.dayQuery(c, "date", h.now())
	if !ok {
		return
	}

	snapshot, err := h.triageUsecase.RecomputeAnalytics(c.Request.Context(), day)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// ListAnalytics returns stored snapshots, the last 30 days by default
// GET /api/analytics?from=2024-02-01&to=2024-03-01
func (h *AnalyticsHandler) ListAnalytics(c *gin.Context) {
	now := h.now()
	to, ok := h.dayQuery(c, "to", now)
	if !ok {
		return
	}
	from, ok := h.dayQuery(c, "from", to.AddDate(0, 0, -29))
	if !ok {
		return
	}
	if from.After(to) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from must not be after to"})
		return
	}

	snapshots, err := h.triageUsecase.ListAnalytics(c.Request.Context(), from, to)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"analytics": snapshots})
}

func (h *AnalyticsHandler) dayQuery(c *gin.Context, key string, def time.Time) (time.Time, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	t, err := parseTime(raw, h.location, false)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + key + ": expected YYYY-MM-DD"})
		return time.Time{}, false
	}
	return t, true
}
