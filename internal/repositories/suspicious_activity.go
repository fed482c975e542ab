package repositories

import (
	"errors"
	"time"

	domainerr "rigshare/internal/errors"
	"rigshare/internal/models"

	"gorm.io/gorm"
)

// SuspiciousActivityRepository persists detected patterns. Recurring
// matches merge into the open row instead of duplicating.
type SuspiciousActivityRepository interface {
	Create(activity *models.SuspiciousActivity) error
	FindByID(id uint) (*models.SuspiciousActivity, error)
	// FindOpenByUserAndType returns the active record of the given type
	// detected no earlier than `since`, or nil when none exists.
	FindOpenByUserAndType(userID uint, activityType models.SuspiciousActivityType, since time.Time) (*models.SuspiciousActivity, error)
	Update(activity *models.SuspiciousActivity) error
	ListByUser(userID uint, limit, offset int) ([]models.SuspiciousActivity, error)
	ListActive(limit, offset int) ([]models.SuspiciousActivity, error)
}

type suspiciousActivityRepository struct {
	db *gorm.DB
}

func NewSuspiciousActivityRepository(db *gorm.DB) SuspiciousActivityRepository {
	return &suspiciousActivityRepository{db: db}
}

func (r *suspiciousActivityRepository) Create(activity *models.SuspiciousActivity) error {
	return r.db.Create(activity).Error
}

func (r *suspiciousActivityRepository) FindByID(id uint) (*models.SuspiciousActivity, error) {
	var activity models.SuspiciousActivity
	err := r.db.First(&activity, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainerr.ErrNotFound
	}
	return &activity, err
}

func (r *suspiciousActivityRepository) FindOpenByUserAndType(userID uint, activityType models.SuspiciousActivityType, since time.Time) (*models.SuspiciousActivity, error) {
	var activity models.SuspiciousActivity
	err := r.db.Where("user_id = ? AND type = ? AND status = ? AND last_detected_at >= ?",
		userID, activityType, models.SuspicionActive, since).
		Order("last_detected_at DESC").
		First(&activity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &activity, nil
}

func (r *suspiciousActivityRepository) Update(activity *models.SuspiciousActivity) error {
	return r.db.Save(activity).Error
}

func (r *suspiciousActivityRepository) ListByUser(userID uint, limit, offset int) ([]models.SuspiciousActivity, error) {
	var activities []models.SuspiciousActivity
	err := r.db.Where("user_id = ?", userID).
		Order("last_detected_at DESC").Limit(limit).Offset(offset).
		Find(&activities).Error
	return activities, err
}

func (r *suspiciousActivityRepository) ListActive(limit, offset int) ([]models.SuspiciousActivity, error) {
	var activities []models.SuspiciousActivity
	err := r.db.Where("status = ?", models.SuspicionActive).
		Order("last_detected_at DESC").Limit(limit).Offset(offset).
		Find(&activities).Error
	return activities, err
}
