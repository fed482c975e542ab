package repositories

import (
	"errors"

	domainerr "rigshare/internal/errors"
	"rigshare/internal/models"

	"gorm.io/gorm"
)

// FraudCheckRepository persists fraud decisions. Every evaluated action
// lands here, including rejections.
type FraudCheckRepository interface {
	Create(check *models.FraudCheck) error
	FindByID(id uint) (*models.FraudCheck, error)
	UpdateReview(check *models.FraudCheck) error
	ListByUser(userID uint, limit, offset int) ([]models.FraudCheck, error)
	ListByStatus(status models.FraudCheckStatus, limit, offset int) ([]models.FraudCheck, error)
	// DeviceSeen reports whether the fingerprint has appeared in any
	// prior check for this user.
	DeviceSeen(userID uint, fingerprint string) (bool, error)
}

type fraudCheckRepository struct {
	db *gorm.DB
}

func NewFraudCheckRepository(db *gorm.DB) FraudCheckRepository {
	return &fraudCheckRepository{db: db}
}

func (r *fraudCheckRepository) Create(check *models.FraudCheck) error {
	return r.db.Create(check).Error
}

func (r *fraudCheckRepository) FindByID(id uint) (*models.FraudCheck, error) {
	var check models.FraudCheck
	err := r.db.First(&check, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainerr.ErrCheckNotFound
	}
	return &check, err
}

func (r *fraudCheckRepository) UpdateReview(check *models.FraudCheck) error {
	return r.db.Model(check).
		Select("reviewed_by", "reviewed_at", "review_notes", "status").
		Updates(check).Error
}

func (r *fraudCheckRepository) ListByUser(userID uint, limit, offset int) ([]models.FraudCheck, error) {
	var checks []models.FraudCheck
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").Limit(limit).Offset(offset).
		Find(&checks).Error
	return checks, err
}

func (r *fraudCheckRepository) ListByStatus(status models.FraudCheckStatus, limit, offset int) ([]models.FraudCheck, error) {
	var checks []models.FraudCheck
	err := r.db.Where("status = ?", status).
		Order("created_at DESC").Limit(limit).Offset(offset).
		Find(&checks).Error
	return checks, err
}

func (r *fraudCheckRepository) DeviceSeen(userID uint, fingerprint string) (bool, error) {
	if fingerprint == "" {
		return false, nil
	}
	var count int64
	err := r.db.Model(&models.FraudCheck{}).
		Where("user_id = ? AND device_fingerprint = ?", userID, fingerprint).
		Count(&count).Error
	return count > 0, err
}
