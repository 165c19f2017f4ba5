package repositories

import (
	"context"
	"time"

	"example.com/backstage/services/fridge/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActivityRepository persists the append-only activity log
type ActivityRepository struct {
	db *gorm.DB
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *ActivityRepository) WithTx(tx *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: tx}
}

// Create appends an entry
func (r *ActivityRepository) Create(ctx context.Context, entry *models.Activity) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return translate(r.db.WithContext(ctx).Create(entry).Error, "failed to append activity")
}

// List returns entries newest first, bounded by the optional range
func (r *ActivityRepository) List(ctx context.Context, from, to *time.Time) ([]models.Activity, error) {
	q := r.db.WithContext(ctx).Model(&models.Activity{})
	if from != nil {
		q = q.Where("occurred_at >= ?", from.UTC())
	}
	if to != nil {
		q = q.Where("occurred_at <= ?", to.UTC())
	}

	var entries []models.Activity
	if err := q.Order("occurred_at DESC").Find(&entries).Error; err != nil {
		return nil, translate(err, "failed to list activity")
	}
	return entries, nil
}
