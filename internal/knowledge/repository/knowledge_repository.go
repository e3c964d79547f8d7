package repository

import (
	"context"
	"errors"
	"time"

	"email-assistant/internal/knowledge/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// KnowledgeRepository defines the interface for knowledge base persistence
type KnowledgeRepository interface {
	// List returns all entries, optionally restricted to one category, oldest first
	List(ctx context.Context, category string) ([]*domain.Entry, error)
	// FindByID returns nil, nil when no entry matches
	FindByID(ctx context.Context, id string) (*domain.Entry, error)
	Count(ctx context.Context) (int64, error)
	Create(ctx context.Context, entry *domain.Entry) error
	Update(ctx context.Context, entry *domain.Entry) error
	// Delete reports whether a row was removed
	Delete(ctx context.Context, id string) (bool, error)
	// ReplaceAll swaps the whole table content in one transaction
	ReplaceAll(ctx context.Context, entries []*domain.Entry) error
	// CreateMany inserts entries in one transaction
	CreateMany(ctx context.Context, entries []*domain.Entry) error
}

type gormKnowledgeRepository struct {
	db *gorm.DB
}

// NewKnowledgeRepository creates a GORM-backed KnowledgeRepository
func NewKnowledgeRepository(db *gorm.DB) KnowledgeRepository {
	return &gormKnowledgeRepository{db: db}
}

// AutoMigrate creates or updates the knowledge base table.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&domain.Entry{})
}

func (r *gormKnowledgeRepository) List(ctx context.Context, category string) ([]*domain.Entry, error) {
	var entries []*domain.Entry
	query := r.db.WithContext(ctx).Model(&domain.Entry{})
	if category != "" {
		query = query.Where("category = ?", category)
	}
	err := query.Order("created_at ASC, id ASC").Find(&entries).Error
	return entries, err
}

func (r *gormKnowledgeRepository) FindByID(ctx context.Context, id string) (*domain.Entry, error) {
	var entry domain.Entry
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *gormKnowledgeRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.Entry{}).Count(&n).Error
	return n, err
}

func (r *gormKnowledgeRepository) Create(ctx context.Context, entry *domain.Entry) error {
	return create(r.db.WithContext(ctx), entry)
}

func (r *gormKnowledgeRepository) Update(ctx context.Context, entry *domain.Entry) error {
	entry.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Save(entry).Error
}

func (r *gormKnowledgeRepository) Delete(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&domain.Entry{}, "id = ?", id)
	return res.RowsAffected > 0, res.Error
}

func (r *gormKnowledgeRepository) ReplaceAll(ctx context.Context, entries []*domain.Entry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&domain.Entry{}).Error; err != nil {
			return err
		}
		for _, e := range entries {
			if err := create(tx, e); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *gormKnowledgeRepository) CreateMany(ctx context.Context, entries []*domain.Entry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, e := range entries {
			if err := create(tx, e); err != nil {
				return err
			}
		}
		return nil
	})
}

func create(db *gorm.DB, entry *domain.Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	return db.Create(entry).Error
}
