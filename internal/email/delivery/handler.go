package delivery

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	emaildomain "email-assistant/internal/email/domain"
	emaildto "email-assistant/internal/email/dto"
	"email-assistant/internal/email/usecase"
	"email-assistant/pkg/signals"

	"github.com/gin-gonic/gin"
)

type EmailHandler struct {
	triageUsecase usecase.TriageUsecase
	location      *time.Location
}

// NewEmailHandler creates an EmailHandler. Dates in query strings are read in
// location; nil means UTC.
func NewEmailHandler(triageUsecase usecase.TriageUsecase, location *time.Location) *EmailHandler {
	if location == nil {
		location = time.UTC
	}
	return &EmailHandler{
		triageUsecase: triageUsecase,
		location:      location,
	}
}

// ListEmails returns emails matching the query filters
// GET /api/emails?priority=urgent&is_responded=false&q=refund&limit=20&offset=0
func (h *EmailHandler) ListEmails(c *gin.Context) {
	filter := emaildomain.EmailFilter{
		Sentiment: signals.Sentiment(c.Query("sentiment")),
		Priority:  signals.Priority(c.Query("priority")),
		Category:  signals.Category(c.Query("category")),
		Query:     c.Query("q"),
		Limit:     50,
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			filter.Limit = min(parsed, 500)
		}
	}
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			filter.Offset = parsed
		}
	}

	var err error
	if filter.IsProcessed, err = boolQuery(c, "is_processed"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if filter.IsResponded, err = boolQuery(c, "is_responded"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if raw := c.Query("from"); raw != "" {
		from, err := parseTime(raw, h.location, false)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from: " + err.Error()})
			return
		}
		filter.From = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := parseTime(raw, h.location, true)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to: " + err.Error()})
			return
		}
		filter.To = &to
	}

	emails, total, err := h.triageUsecase.ListEmails(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, emaildto.EmailsResponse{
		Emails: emails,
		Limit:  filter.Limit,
		Offset: filter.Offset,
		Total:  total,
	})
}

// GetPriorityQueue returns unanswered emails, urgent and oldest first
// GET /api/emails/priority-queue
func (h *EmailHandler) GetPriorityQueue(c *gin.Context) {
	emails, err := h.triageUsecase.PriorityQueue(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, emaildto.QueueResponse{Emails: emails, Total: len(emails)})
}

func (h *EmailHandler) GetEmailByID(c *gin.Context) {
	email, err := h.triageUsecase.GetEmail(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, email)
}

// UpdateEmail applies a partial update of triage fields and flags
// PUT /api/emails/:id
func (h *EmailHandler) UpdateEmail(c *gin.Context) {
	var req emaildomain.EmailUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	email, err := h.triageUsecase.UpdateEmail(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, email)
}

// SyncEmails fetches recent mail from the configured transport
// POST /api/emails/sync?hours_back=24
func (h *EmailHandler) SyncEmails(c *gin.Context) {
	req := usecase.SyncRequest{Source: emaildomain.SourceManual}
	if raw := c.Query("hours_back"); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil || hours <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "hours_back must be a positive integer"})
			return
		}
		req.HoursBack = hours
	}

	result := h.triageUsecase.Sync(c.Request.Context(), req)
	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadGateway
	}
	c.JSON(status, result)
}

// GetSyncHistory returns the latest sync runs
// GET /api/emails/sync/history?limit=20
func (h *EmailHandler) GetSyncHistory(c *gin.Context) {
	limit := 20
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = min(parsed, 200)
		}
	}

	runs, err := h.triageUsecase.SyncHistory(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// IngestEmails stores a batch of raw emails posted by a client
// POST /api/emails/ingest
func (h *EmailHandler) IngestEmails(c *gin.Context) {
	var req emaildto.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	raws := make([]emaildomain.RawEmail, len(req.Emails))
	for i, e := range req.Emails {
		raws[i] = e.Raw()
	}

	result := h.triageUsecase.Ingest(c.Request.Context(), raws)
	status := http.StatusOK
	if !result.Committed {
		status = http.StatusInternalServerError
	}
	c.JSON(status, result)
}

// ReprocessEmails reruns signal extraction; no ids means every email
// POST /api/emails/reprocess
func (h *EmailHandler) ReprocessEmails(c *gin.Context) {
	var req emaildto.ReprocessRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	n, err := h.triageUsecase.Reprocess(c.Request.Context(), req.EmailIDs)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reprocessed": n})
}

// GenerateResponse drafts a reply and stores it on the email
// POST /api/emails/:id/generate-response
func (h *EmailHandler) GenerateResponse(c *gin.Context) {
	var req emaildto.GenerateResponseRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	draft, err := h.triageUsecase.GenerateResponse(c.Request.Context(), c.Param("id"), req.CustomInstructions)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, draft)
}

// SendResponse mails the stored draft, or response_text when given
// POST /api/emails/:id/send-response
func (h *EmailHandler) SendResponse(c *gin.Context) {
	var req emaildto.SendResponseRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	if err := h.triageUsecase.SendResponse(c.Request.Context(), c.Param("id"), req.ResponseText); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Response sent successfully"})
}

func boolQuery(c *gin.Context, key string) (*bool, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, errors.New(key + " must be true or false")
	}
	return &v, nil
}

// parseTime accepts RFC 3339 or a bare date. A bare date used as an upper
// bound covers the whole day.
func parseTime(raw string, loc *time.Location, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(emaildomain.DayLayout, raw, loc)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1)
	}
	return t, nil
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usecase.ErrEmailNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Email not found"})
	case errors.Is(err, usecase.ErrNoResponseText), errors.Is(err, usecase.ErrInvalidUpdate):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
