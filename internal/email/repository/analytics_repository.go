package repository

import (
	"context"
	"errors"
	"time"

	emaildomain "email-assistant/internal/email/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AnalyticsRepository defines the interface for daily analytics snapshots
type AnalyticsRepository interface {
	// Upsert inserts the snapshot or overwrites the counters of its day
	Upsert(ctx context.Context, snapshot *emaildomain.DailyAnalytics) error
	// FindByDay returns nil, nil when the day has no snapshot
	FindByDay(ctx context.Context, day string) (*emaildomain.DailyAnalytics, error)
	// List returns snapshots with from <= day <= to, oldest first
	List(ctx context.Context, from, to string) ([]*emaildomain.DailyAnalytics, error)
}

type gormAnalyticsRepository struct {
	db *gorm.DB
}

// NewAnalyticsRepository creates a GORM-backed AnalyticsRepository
func NewAnalyticsRepository(db *gorm.DB) AnalyticsRepository {
	return &gormAnalyticsRepository{db: db}
}

func (r *gormAnalyticsRepository) Upsert(ctx context.Context, s *emaildomain.DailyAnalytics) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "day"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"total_emails", "urgent_emails",
			"positive_sentiment", "negative_sentiment", "neutral_sentiment",
			"emails_resolved", "emails_pending", "updated_at",
		}),
	}).Create(s).Error
}

func (r *gormAnalyticsRepository) FindByDay(ctx context.Context, day string) (*emaildomain.DailyAnalytics, error) {
	var s emaildomain.DailyAnalytics
	err := r.db.WithContext(ctx).Where("day = ?", day).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *gormAnalyticsRepository) List(ctx context.Context, from, to string) ([]*emaildomain.DailyAnalytics, error) {
	query := r.db.WithContext(ctx).Model(&emaildomain.DailyAnalytics{})
	if from != "" {
		query = query.Where("day >= ?", from)
	}
	if to != "" {
		query = query.Where("day <= ?", to)
	}
	var out []*emaildomain.DailyAnalytics
	err := query.Order("day ASC").Find(&out).Error
	return out, err
}
