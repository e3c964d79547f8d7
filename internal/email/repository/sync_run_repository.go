package repository

import (
	"context"

	emaildomain "email-assistant/internal/email/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SyncRunRepository records mailbox sync history
type SyncRunRepository interface {
	Create(ctx context.Context, run *emaildomain.SyncRun) error
	// Latest returns the most recent runs, newest first
	Latest(ctx context.Context, limit int) ([]*emaildomain.SyncRun, error)
	// HasHistoryID reports whether a push notification with this mailbox
	// history id was already synced
	HasHistoryID(ctx context.Context, historyID string) (bool, error)
}

type gormSyncRunRepository struct {
	db *gorm.DB
}

// NewSyncRunRepository creates a GORM-backed SyncRunRepository
func NewSyncRunRepository(db *gorm.DB) SyncRunRepository {
	return &gormSyncRunRepository{db: db}
}

func (r *gormSyncRunRepository) Create(ctx context.Context, run *emaildomain.SyncRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *gormSyncRunRepository) Latest(ctx context.Context, limit int) ([]*emaildomain.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []*emaildomain.SyncRun
	err := r.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&runs).Error
	return runs, err
}

func (r *gormSyncRunRepository) HasHistoryID(ctx context.Context, historyID string) (bool, error) {
	if historyID == "" {
		return false, nil
	}
	var n int64
	err := r.db.WithContext(ctx).Model(&emaildomain.SyncRun{}).
		Where("history_id = ? AND success = ?", historyID, true).
		Count(&n).Error
	return n > 0, err
}
