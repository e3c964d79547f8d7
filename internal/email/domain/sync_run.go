package domain

import "time"

// What started a sync.
const (
	SourceManual = "manual"
	SourceCron   = "cron"
	SourcePubSub = "pubsub"
	SourceCLI    = "cli"
)

// SyncRun records the outcome of one mailbox sync.
type SyncRun struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	Source     string    `json:"source" gorm:"index"`
	HistoryID  string    `json:"history_id,omitempty" gorm:"index"`
	HoursBack  int       `json:"hours_back"`
	Fetched    int       `json:"fetched"`
	Filtered   int       `json:"filtered"`
	Processed  int       `json:"processed"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	Success    bool      `json:"success"`
	Message    string    `json:"message" gorm:"type:text"`
	StartedAt  time.Time `json:"started_at" gorm:"index"`
	FinishedAt time.Time `json:"finished_at"`
}

// TableName specifies the table name for GORM
func (SyncRun) TableName() string {
	return "email_sync_runs"
}
