package models

import (
	"time"

	"gorm.io/gorm"
)

// Rental statuses mirrored from the booking system.
const (
	RentalStatusActive    = "active"
	RentalStatusCompleted = "completed"
	RentalStatusCancelled = "cancelled"
)

// Rental is the local projection of a booking. The catalog and booking
// logic live in another service; disputes only need the parties and the
// money involved.
type Rental struct {
	gorm.Model
	ToolID      uint    `gorm:"not null"`
	OwnerID     uint    `gorm:"not null;index"`
	RenterID    uint    `gorm:"not null;index"`
	TotalAmount float64 `gorm:"not null"`
	Status      string  `gorm:"not null;default:'active'"`
	StartDate   time.Time
	EndDate     time.Time
}

// Parties returns the two user ids with a stake in the rental.
func (r *Rental) Parties() (uint, uint) {
	return r.OwnerID, r.RenterID
}

// IsParty reports whether userID is the owner or renter.
func (r *Rental) IsParty(userID uint) bool {
	return r.OwnerID == userID || r.RenterID == userID
}

// CounterParty returns the other side of the rental, or 0 when userID is
// not a party at all.
func (r *Rental) CounterParty(userID uint) uint {
	switch userID {
	case r.OwnerID:
		return r.RenterID
	case r.RenterID:
		return r.OwnerID
	}
	return 0
}
