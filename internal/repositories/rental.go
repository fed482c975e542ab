package repositories

import (
	"errors"

	domainerr "rigshare/internal/errors"
	"rigshare/internal/models"

	"gorm.io/gorm"
)

// RentalRepository reads booking projections; disputes validate party
// membership through it.
type RentalRepository interface {
	Create(rental *models.Rental) error
	FindByID(id uint) (*models.Rental, error)
}

type rentalRepository struct {
	db *gorm.DB
}

func NewRentalRepository(db *gorm.DB) RentalRepository {
	return &rentalRepository{db: db}
}

func (r *rentalRepository) Create(rental *models.Rental) error {
	return r.db.Create(rental).Error
}

func (r *rentalRepository) FindByID(id uint) (*models.Rental, error) {
	var rental models.Rental
	err := r.db.First(&rental, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainerr.ErrNotFound
	}
	return &rental, err
}
