package models

import (
	"time"

	"gorm.io/gorm"
)

// User is the local projection of the identity directory. Authentication
// lives upstream; this table only carries what the trust engine needs to
// render messages and track flags.
type User struct {
	gorm.Model
	Email        string `gorm:"uniqueIndex;not null"`
	Name         string `gorm:"not null"`
	Role         string `gorm:"default:'user'"`
	Status       string `gorm:"default:'active'"`
	Flagged      bool   `gorm:"default:false"`
	FlagCount    int    `gorm:"default:0"`
	LastKnownLat *float64
	LastKnownLng *float64
	LastSeenAt   time.Time
}
