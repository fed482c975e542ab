package models

import (
	"time"

	"gorm.io/gorm"
)

// SearchEvent records one location-bounded tool search. The detector
// reads these back to spot a user probing another user's location from
// multiple spatially separated points.
type SearchEvent struct {
	gorm.Model
	SearcherID   uint      `gorm:"not null;index:idx_search_pair"`
	TargetUserID uint      `gorm:"not null;index:idx_search_pair"`
	Latitude     float64   `gorm:"not null"`
	Longitude    float64   `gorm:"not null"`
	SearchedAt   time.Time `gorm:"not null;index"`
}
