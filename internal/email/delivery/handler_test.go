package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	emaildomain "email-assistant/internal/email/domain"
	emaildto "email-assistant/internal/email/dto"
	"email-assistant/internal/email/repository"
	"email-assistant/internal/email/usecase"
	"email-assistant/pkg/ai"
	"email-assistant/pkg/database"
	"email-assistant/pkg/mail"
	"email-assistant/pkg/signals"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type stubTransport struct {
	messages []mail.Message
	sent     []string
}

func (s *stubTransport) Fetch(context.Context, time.Time) ([]mail.Message, error) {
	return s.messages, nil
}

func (s *stubTransport) Send(_ context.Context, to, _, _ string) error {
	s.sent = append(s.sent, to)
	return nil
}

type stubGenerator struct{}

func (stubGenerator) Generate(context.Context, ai.GenerateRequest) (string, error) {
	return "Thanks, we are looking into it.", nil
}

func newTestRouter(t *testing.T, transport *stubTransport) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenSQLite("file::memory:", nil)
	require.NoError(t, err)
	require.NoError(t, repository.AutoMigrate(db))

	gen := usecase.NewResponseGenerator(nil, stubGenerator{}, nil, 0, nil)
	uc := usecase.NewTriageUsecase(
		repository.NewEmailRepository(db),
		repository.NewAnalyticsRepository(db),
		repository.NewSyncRunRepository(db),
		signals.NewExtractor(nil),
		gen,
		transport,
		usecase.Options{Now: func() time.Time { return testNow }},
	)

	h := NewEmailHandler(uc, nil)
	a := NewAnalyticsHandler(uc, nil)
	a.now = func() time.Time { return testNow }

	r := gin.New()
	emails := r.Group("/api/emails")
	emails.GET("", h.ListEmails)
	emails.GET("/priority-queue", h.GetPriorityQueue)
	emails.POST("/sync", h.SyncEmails)
	emails.GET("/sync/history", h.GetSyncHistory)
	emails.POST("/ingest", h.IngestEmails)
	emails.POST("/reprocess", h.ReprocessEmails)
	emails.GET("/:id", h.GetEmailByID)
	emails.PUT("/:id", h.UpdateEmail)
	emails.POST("/:id/generate-response", h.GenerateResponse)
	emails.POST("/:id/send-response", h.SendResponse)

	analytics := r.Group("/api/analytics")
	analytics.GET("", a.ListAnalytics)
	analytics.GET("/dashboard", a.GetDashboard)
	analytics.POST("/recompute", a.Recompute)
	return r
}

func do(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

var batch = emaildto.IngestRequest{Emails: []emaildto.RawEmailRequest{
	{
		MessageID:   "<a@example.com>",
		SenderEmail: "jane@example.com",
		Subject:     "Urgent: cannot access my account",
		Body:        "I am frustrated",
		ReceivedAt:  testNow.Add(-time.Hour),
	},
	{
		MessageID:   "<b@example.com>",
		SenderEmail: "bob@example.com",
		Subject:     "Question about invoices",
		Body:        "Where can I download them?",
		ReceivedAt:  testNow.Add(-2 * time.Hour),
	},
}}

func TestEmailHandler_IngestAndQueue(t *testing.T) {
	r := newTestRouter(t, &stubTransport{})

	w := do(r, http.MethodPost, "/api/emails/ingest", batch)
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[usecase.IngestResult](t, w)
	assert.Equal(t, 2, res.Processed)

	w = do(r, http.MethodPost, "/api/emails/ingest", batch)
	require.Equal(t, http.StatusOK, w.Code)
	res = decode[usecase.IngestResult](t, w)
	assert.Equal(t, 2, res.Skipped)

	w = do(r, http.MethodGet, "/api/emails/priority-queue", nil)
	require.Equal(t, http.StatusOK, w.Code)
	queue := decode[emaildto.QueueResponse](t, w)
	require.Len(t, queue.Emails, 2)
	assert.Equal(t, signals.PriorityUrgent, queue.Emails[0].Priority)

	w = do(r, http.MethodGet, "/api/emails?priority=not_urgent", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[emaildto.EmailsResponse](t, w)
	assert.EqualValues(t, 1, list.Total)

	w = do(r, http.MethodGet, "/api/emails?is_responded=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEmailHandler_RespondFlow(t *testing.T) {
	transport := &stubTransport{}
	r := newTestRouter(t, transport)

	w := do(r, http.MethodPost, "/api/emails/ingest", batch)
	res := decode[usecase.IngestResult](t, w)
	require.Len(t, res.CreatedIDs, 2)
	id := res.CreatedIDs[0]

	w = do(r, http.MethodPost, "/api/emails/"+id+"/send-response", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, transport.sent)

	w = do(r, http.MethodPost, "/api/emails/"+id+"/generate-response", emaildto.GenerateResponseRequest{})
	require.Equal(t, http.StatusOK, w.Code)
	draft := decode[usecase.GeneratedResponse](t, w)
	assert.Equal(t, "Thanks, we are looking into it.", draft.Response)

	w = do(r, http.MethodPost, "/api/emails/"+id+"/send-response", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"jane@example.com"}, transport.sent)

	w = do(r, http.MethodGet, "/api/emails/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	email := decode[emaildomain.Email](t, w)
	assert.True(t, email.IsResponded)
	assert.True(t, email.ResponseSent)
}

func TestEmailHandler_NotFoundAndInvalidUpdate(t *testing.T) {
	r := newTestRouter(t, &stubTransport{})

	w := do(r, http.MethodGet, "/api/emails/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodPost, "/api/emails/missing/generate-response", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodPost, "/api/emails/ingest", batch)
	id := decode[usecase.IngestResult](t, w).CreatedIDs[0]

	w = do(r, http.MethodPut, "/api/emails/"+id, map[string]string{"sentiment": "ecstatic"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPut, "/api/emails/"+id, map[string]string{"sentiment": "positive"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, signals.SentimentPositive, decode[emaildomain.Email](t, w).Sentiment)
}

func TestEmailHandler_SyncAndHistory(t *testing.T) {
	transport := &stubTransport{messages: []mail.Message{{
		MessageID:  "<c@example.com>",
		From:       "Carol <carol@example.com>",
		Subject:    "Need help with export",
		Body:       "The export button is broken",
		ReceivedAt: testNow.Add(-3 * time.Hour),
	}}}
	r := newTestRouter(t, transport)

	w := do(r, http.MethodPost, "/api/emails/sync?hours_back=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/emails/sync?hours_back=6", nil)
	require.Equal(t, http.StatusOK, w.Code)
	result := decode[usecase.SyncResult](t, w)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Processed)

	w = do(r, http.MethodGet, "/api/emails/sync/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	history := decode[struct {
		Runs []emaildomain.SyncRun `json:"runs"`
	}](t, w)
	require.Len(t, history.Runs, 1)
	assert.Equal(t, 6, history.Runs[0].HoursBack)
}

func TestAnalyticsHandler(t *testing.T) {
	r := newTestRouter(t, &stubTransport{})
	do(r, http.MethodPost, "/api/emails/ingest", batch)

	w := do(r, http.MethodGet, "/api/analytics/dashboard", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[emaildomain.DashboardStats](t, w)
	assert.Equal(t, "2024-03-01", stats.Date)
	assert.EqualValues(t, 2, stats.TotalEmailsToday)
	assert.EqualValues(t, 1, stats.UrgentEmails)

	w = do(r, http.MethodGet, "/api/analytics/dashboard?date=03/01/2024", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/analytics/recompute?date=2024-03-01", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode[emaildomain.DailyAnalytics](t, w).TotalEmails)

	w = do(r, http.MethodGet, "/api/analytics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Analytics []emaildomain.DailyAnalytics `json:"analytics"`
	}](t, w)
	require.Len(t, list.Analytics, 1)
	assert.Equal(t, "2024-03-01", list.Analytics[0].Day)

	w = do(r, http.MethodGet, "/api/analytics?from=2024-03-05&to=2024-03-01", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
