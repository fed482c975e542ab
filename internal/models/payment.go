package models

import "gorm.io/gorm"

// Payment statuses
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusBlocked   = "blocked"
	PaymentStatusRefunded  = "refunded"
)

// Payment is a rental payment as seen by the trust engine. The gateway
// itself is external; Reference is its identifier for the charge.
type Payment struct {
	gorm.Model
	RentalID  uint    `gorm:"not null;index"`
	PayerID   uint    `gorm:"not null;index"`
	PayeeID   uint    `gorm:"not null"`
	Amount    float64 `gorm:"not null"`
	Currency  string  `gorm:"default:'USD'"`
	Status    string  `gorm:"not null;default:'pending'"`
	Reference string  `gorm:"index"`
}
