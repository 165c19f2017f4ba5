package repositories

import (
	"context"

	"example.com/backstage/services/fridge/internal/models"

	"gorm.io/gorm"
)

// AccessCodeRepository guards the shared space of active one-time codes
type AccessCodeRepository struct {
	db *gorm.DB
}

// NewAccessCodeRepository creates a new access code repository
func NewAccessCodeRepository(db *gorm.DB) *AccessCodeRepository {
	return &AccessCodeRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *AccessCodeRepository) WithTx(tx *gorm.DB) *AccessCodeRepository {
	return &AccessCodeRepository{db: tx}
}

// Reserve claims a code. ErrDuplicateKey means the code is already active.
func (r *AccessCodeRepository) Reserve(ctx context.Context, code *models.AccessCode) error {
	return translate(r.db.WithContext(ctx).Create(code).Error, "failed to reserve access code")
}

// Active reports whether code is currently held
func (r *AccessCodeRepository) Active(ctx context.Context, code int) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.AccessCode{}).Where("code = ?", code).Count(&count).Error
	if err != nil {
		return false, translate(err, "failed to check access code")
	}
	return count > 0, nil
}

// Release frees code for reuse. Releasing an inactive code is a no-op.
func (r *AccessCodeRepository) Release(ctx context.Context, code int) error {
	err := r.db.WithContext(ctx).Where("code = ?", code).Delete(&models.AccessCode{}).Error
	return translate(err, "failed to release access code")
}
