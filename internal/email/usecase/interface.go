package usecase

import (
	"context"
	"errors"
	"time"

	emaildomain "email-assistant/internal/email/domain"
)

var (
	ErrEmailNotFound  = errors.New("email not found")
	ErrNoResponseText = errors.New("no response text to send")
	ErrInvalidUpdate  = errors.New("invalid email update")
)

// TriageUsecase defines the email triage and reply workflow
type TriageUsecase interface {
	// Ingest stores new emails with their triage signals. It never fails as
	// a whole; per-email outcomes are counted in the result.
	Ingest(ctx context.Context, raws []emaildomain.RawEmail) *IngestResult
	// Sync fetches recent mail from the transport and ingests it.
	Sync(ctx context.Context, req SyncRequest) *SyncResult
	PriorityQueue(ctx context.Context) ([]*emaildomain.Email, error)
	GenerateResponse(ctx context.Context, id, override string) (*GeneratedResponse, error)
	SendResponse(ctx context.Context, id, overrideText string) error
	// Reprocess reruns signal extraction and returns how many emails changed.
	Reprocess(ctx context.Context, ids []string) (int, error)

	ListEmails(ctx context.Context, filter emaildomain.EmailFilter) ([]*emaildomain.Email, int64, error)
	GetEmail(ctx context.Context, id string) (*emaildomain.Email, error)
	UpdateEmail(ctx context.Context, id string, update emaildomain.EmailUpdate) (*emaildomain.Email, error)

	RecomputeAnalytics(ctx context.Context, day time.Time) (*emaildomain.DailyAnalytics, error)
	DashboardStats(ctx context.Context, day time.Time) (*emaildomain.DashboardStats, error)
	ListAnalytics(ctx context.Context, from, to time.Time) ([]*emaildomain.DailyAnalytics, error)
	SyncHistory(ctx context.Context, limit int) ([]*emaildomain.SyncRun, error)
}

// UrgentNotifier is told about every newly stored urgent email.
type UrgentNotifier interface {
	NotifyUrgent(ctx context.Context, email *emaildomain.Email) error
}

// IngestResult reports per-batch ingestion outcomes.
type IngestResult struct {
	Processed int    `json:"processed"`
	Skipped   int    `json:"skipped"`
	Failed    int    `json:"failed"`
	Committed bool   `json:"committed"`
	Message   string `json:"message"`
	// IDs of the emails created by this batch
	CreatedIDs []string `json:"created_ids,omitempty"`
}

// SyncRequest describes one sync. HistoryID is set for push-triggered syncs
// and makes repeated notifications for the same mailbox state no-ops.
type SyncRequest struct {
	HoursBack int
	Source    string
	HistoryID string
}

// SyncResult reports a sync run.
type SyncResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Fetched   int    `json:"fetched"`
	Filtered  int    `json:"filtered"`
	Processed int    `json:"processed"`
	Skipped   int    `json:"skipped"`
	Failed    int    `json:"failed"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

// GeneratedResponse is a persisted draft.
type GeneratedResponse struct {
	EmailID string `json:"email_id"`
	Draft
}
