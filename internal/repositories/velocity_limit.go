package repositories

import (
	"context"
	"time"

	"rigshare/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VelocityLimitRepository persists the per-(user, limit type) counter
// rows. WithLock is the atomic check-and-increment primitive: it holds a
// row lock while fn inspects and mutates the counters, so two concurrent
// reservations cannot both pass a check they jointly violate.
type VelocityLimitRepository interface {
	// WithLock loads (or creates with the given defaults) the limit row
	// inside a transaction under FOR UPDATE, invokes fn on it, and saves
	// the mutated row if fn returns nil. fn's error aborts the
	// transaction and is returned unchanged.
	WithLock(ctx context.Context, userID uint, limitType models.VelocityLimitType,
		defaults models.VelocityLimit, fn func(*models.VelocityLimit) error) error
	Find(userID uint, limitType models.VelocityLimitType) (*models.VelocityLimit, error)
	Upsert(limit *models.VelocityLimit) error
	ListByUser(userID uint) ([]models.VelocityLimit, error)
}

type velocityLimitRepository struct {
	db *gorm.DB
}

func NewVelocityLimitRepository(db *gorm.DB) VelocityLimitRepository {
	return &velocityLimitRepository{db: db}
}

func (r *velocityLimitRepository) WithLock(ctx context.Context, userID uint, limitType models.VelocityLimitType,
	defaults models.VelocityLimit, fn func(*models.VelocityLimit) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var limit models.VelocityLimit
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND limit_type = ?", userID, limitType).
			First(&limit).Error
		if err == gorm.ErrRecordNotFound {
			limit = defaults
			limit.UserID = userID
			limit.LimitType = limitType
			limit.WindowStart = time.Now()
			if err := tx.Create(&limit).Error; err != nil {
				return err
			}
			// Re-read under lock so concurrent creators serialize.
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("user_id = ? AND limit_type = ?", userID, limitType).
				First(&limit).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		if err := fn(&limit); err != nil {
			return err
		}
		return tx.Save(&limit).Error
	})
}

func (r *velocityLimitRepository) Find(userID uint, limitType models.VelocityLimitType) (*models.VelocityLimit, error) {
	var limit models.VelocityLimit
	err := r.db.Where("user_id = ? AND limit_type = ?", userID, limitType).First(&limit).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &limit, nil
}

func (r *velocityLimitRepository) Upsert(limit *models.VelocityLimit) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "limit_type"}},
		UpdateAll: true,
	}).Create(limit).Error
}

func (r *velocityLimitRepository) ListByUser(userID uint) ([]models.VelocityLimit, error) {
	var limits []models.VelocityLimit
	err := r.db.Where("user_id = ?", userID).Find(&limits).Error
	return limits, err
}
