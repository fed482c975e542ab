package repositories

import (
	"errors"

	domainerr "rigshare/internal/errors"
	"rigshare/internal/models"

	"gorm.io/gorm"
)

// UserRepository reads the identity projection and records trust state
// (flags, last known location).
type UserRepository interface {
	Create(user *models.User) error
	FindByID(id uint) (*models.User, error)
	Flag(userID uint) error
	UpdateLastLocation(userID uint, lat, lng float64) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

func (r *userRepository) FindByID(id uint) (*models.User, error) {
	var user models.User
	err := r.db.First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainerr.ErrNotFound
	}
	return &user, err
}

func (r *userRepository) Flag(userID uint) error {
	return r.db.Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"flagged":    true,
			"flag_count": gorm.Expr("flag_count + 1"),
		}).Error
}

func (r *userRepository) UpdateLastLocation(userID uint, lat, lng float64) error {
	return r.db.Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"last_known_lat": lat,
			"last_known_lng": lng,
		}).Error
}
