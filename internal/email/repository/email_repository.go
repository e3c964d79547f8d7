package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	emaildomain "email-assistant/internal/email/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EmailRepository defines the interface for email persistence
type EmailRepository interface {
	// Transaction runs fn against a repository bound to one transaction.
	// Calling Transaction on that repository opens a savepoint.
	Transaction(ctx context.Context, fn func(tx EmailRepository) error) error
	// FindByID returns nil, nil when no email matches
	FindByID(ctx context.Context, id string) (*emaildomain.Email, error)
	// FindByMessageID returns nil, nil when no email matches
	FindByMessageID(ctx context.Context, messageID string) (*emaildomain.Email, error)
	FindByIDs(ctx context.Context, ids []string) ([]*emaildomain.Email, error)
	Create(ctx context.Context, email *emaildomain.Email) error
	Save(ctx context.Context, email *emaildomain.Email) error
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error
	// List applies every filter field except Query. A non-positive Limit
	// returns all matches.
	List(ctx context.Context, filter emaildomain.EmailFilter) ([]*emaildomain.Email, int64, error)
	// PriorityQueue returns processed, unanswered emails, urgent first and
	// oldest first within a priority.
	PriorityQueue(ctx context.Context) ([]*emaildomain.Email, error)
	// CountRange fills the counters of a snapshot for emails received in [from, to)
	CountRange(ctx context.Context, from, to time.Time) (*emaildomain.DailyAnalytics, error)
	// Distribution counts emails received in [from, to) per value of a
	// signal column
	Distribution(ctx context.Context, column string, from, to time.Time) (map[string]int64, error)
}

type gormEmailRepository struct {
	db *gorm.DB
}

// NewEmailRepository creates a GORM-backed EmailRepository
func NewEmailRepository(db *gorm.DB) EmailRepository {
	return &gormEmailRepository{db: db}
}

// AutoMigrate creates or updates the email tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&emaildomain.Email{}, &emaildomain.DailyAnalytics{}, &emaildomain.SyncRun{})
}

func (r *gormEmailRepository) Transaction(ctx context.Context, fn func(tx EmailRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormEmailRepository{db: tx})
	})
}

func (r *gormEmailRepository) FindByID(ctx context.Context, id string) (*emaildomain.Email, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *gormEmailRepository) FindByMessageID(ctx context.Context, messageID string) (*emaildomain.Email, error) {
	return r.first(ctx, "message_id = ?", messageID)
}

func (r *gormEmailRepository) first(ctx context.Context, query string, arg interface{}) (*emaildomain.Email, error) {
	var email emaildomain.Email
	err := r.db.WithContext(ctx).Where(query, arg).First(&email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &email, nil
}

func (r *gormEmailRepository) FindByIDs(ctx context.Context, ids []string) ([]*emaildomain.Email, error) {
	if len(ids) == 0 {
		return []*emaildomain.Email{}, nil
	}
	var emails []*emaildomain.Email
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("received_at ASC, id ASC").Find(&emails).Error
	return emails, err
}

func (r *gormEmailRepository) Create(ctx context.Context, email *emaildomain.Email) error {
	if email.ID == "" {
		email.ID = uuid.New().String()
	}
	email.ReceivedAt = email.ReceivedAt.UTC()
	return r.db.WithContext(ctx).Create(email).Error
}

func (r *gormEmailRepository) Save(ctx context.Context, email *emaildomain.Email) error {
	return r.db.WithContext(ctx).Save(email).Error
}

func (r *gormEmailRepository) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&emaildomain.Email{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *gormEmailRepository) List(ctx context.Context, f emaildomain.EmailFilter) ([]*emaildomain.Email, int64, error) {
	query := r.db.WithContext(ctx).Model(&emaildomain.Email{})
	if f.Sentiment != "" {
		query = query.Where("sentiment = ?", f.Sentiment)
	}
	if f.Priority != "" {
		query = query.Where("priority = ?", f.Priority)
	}
	if f.Category != "" {
		query = query.Where("category = ?", f.Category)
	}
	if f.IsProcessed != nil {
		query = query.Where("is_processed = ?", *f.IsProcessed)
	}
	if f.IsResponded != nil {
		query = query.Where("is_responded = ?", *f.IsResponded)
	}
	if f.From != nil {
		query = query.Where("received_at >= ?", f.From.UTC())
	}
	if f.To != nil {
		query = query.Where("received_at < ?", f.To.UTC())
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("received_at DESC").Order("id ASC")
	if f.Limit > 0 {
		query = query.Limit(f.Limit).Offset(f.Offset)
	}
	var emails []*emaildomain.Email
	if err := query.Find(&emails).Error; err != nil {
		return nil, 0, err
	}
	return emails, total, nil
}

func (r *gormEmailRepository) PriorityQueue(ctx context.Context) ([]*emaildomain.Email, error) {
	var emails []*emaildomain.Email
	err := r.db.WithContext(ctx).
		Where("is_processed = ? AND is_responded = ?", true, false).
		Order("CASE priority WHEN 'urgent' THEN 0 ELSE 1 END").
		Order("received_at ASC").
		Order("id ASC").
		Find(&emails).Error
	return emails, err
}

func (r *gormEmailRepository) CountRange(ctx context.Context, from, to time.Time) (*emaildomain.DailyAnalytics, error) {
	var counts struct {
		Total    int64
		Urgent   int64
		Positive int64
		Negative int64
		Neutral  int64
		Resolved int64
		Pending  int64
	}
	err := r.db.WithContext(ctx).Model(&emaildomain.Email{}).
		Select(`COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN priority = 'urgent' THEN 1 ELSE 0 END), 0) AS urgent,
			COALESCE(SUM(CASE WHEN sentiment = 'positive' THEN 1 ELSE 0 END), 0) AS positive,
			COALESCE(SUM(CASE WHEN sentiment = 'negative' THEN 1 ELSE 0 END), 0) AS negative,
			COALESCE(SUM(CASE WHEN sentiment = 'neutral' THEN 1 ELSE 0 END), 0) AS neutral,
			COALESCE(SUM(CASE WHEN is_responded THEN 1 ELSE 0 END), 0) AS resolved,
			COALESCE(SUM(CASE WHEN is_responded THEN 0 ELSE 1 END), 0) AS pending`).
		Where("received_at >= ? AND received_at < ?", from.UTC(), to.UTC()).
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return &emaildomain.DailyAnalytics{
		TotalEmails:       counts.Total,
		UrgentEmails:      counts.Urgent,
		PositiveSentiment: counts.Positive,
		NegativeSentiment: counts.Negative,
		NeutralSentiment:  counts.Neutral,
		EmailsResolved:    counts.Resolved,
		EmailsPending:     counts.Pending,
	}, nil
}

var distributionColumns = map[string]bool{
	"sentiment": true,
	"priority":  true,
	"category":  true,
}

func (r *gormEmailRepository) Distribution(ctx context.Context, column string, from, to time.Time) (map[string]int64, error) {
	if !distributionColumns[column] {
		return nil, fmt.Errorf("unsupported distribution column %q", column)
	}
	var rows []struct {
		Label string
		Count int64
	}
	err := r.db.WithContext(ctx).Model(&emaildomain.Email{}).
		Select(column+" AS label, COUNT(*) AS count").
		Where("received_at >= ? AND received_at < ?", from.UTC(), to.UTC()).
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		if row.Label == "" {
			continue
		}
		out[row.Label] = row.Count
	}
	return out, nil
}
