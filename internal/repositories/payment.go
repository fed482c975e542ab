package repositories

import (
	"errors"
	"time"

	domainerr "rigshare/internal/errors"
	"rigshare/internal/models"

	"gorm.io/gorm"
)

// PaymentRepository reads payment projections and records refund
// bookkeeping. Charging itself happens in the gateway.
type PaymentRepository interface {
	Create(payment *models.Payment) error
	FindByID(id uint) (*models.Payment, error)
	Update(payment *models.Payment) error
	RecentByUser(userID uint, since time.Time) ([]models.Payment, error)
	RecentBetween(userA, userB uint, since time.Time) ([]models.Payment, error)
	AverageAmount(userID uint, since time.Time) (float64, error)
}

type paymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(payment *models.Payment) error {
	return r.db.Create(payment).Error
}

func (r *paymentRepository) FindByID(id uint) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.First(&payment, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainerr.ErrNotFound
	}
	return &payment, err
}

func (r *paymentRepository) Update(payment *models.Payment) error {
	return r.db.Save(payment).Error
}

func (r *paymentRepository) RecentByUser(userID uint, since time.Time) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.Where("payer_id = ? AND created_at >= ?", userID, since).
		Order("created_at DESC").
		Find(&payments).Error
	return payments, err
}

func (r *paymentRepository) RecentBetween(userA, userB uint, since time.Time) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.Where(
		"((payer_id = ? AND payee_id = ?) OR (payer_id = ? AND payee_id = ?)) AND created_at >= ?",
		userA, userB, userB, userA, since).
		Order("created_at ASC").
		Find(&payments).Error
	return payments, err
}

func (r *paymentRepository) AverageAmount(userID uint, since time.Time) (float64, error) {
	var avg *float64
	err := r.db.Model(&models.Payment{}).
		Select("AVG(amount)").
		Where("payer_id = ? AND created_at >= ?", userID, since).
		Scan(&avg).Error
	if err != nil || avg == nil {
		return 0, err
	}
	return *avg, nil
}
