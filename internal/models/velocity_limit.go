package models

import (
	"time"

	"gorm.io/gorm"
)

// VelocityLimitType names a rolling window. Each type carries both an
// amount ceiling and a transaction-count ceiling; the windows are
// evaluated independently.
type VelocityLimitType string

const (
	VelocityHourly  VelocityLimitType = "hourly"
	VelocityDaily   VelocityLimitType = "daily"
	VelocityWeekly  VelocityLimitType = "weekly"
	VelocityMonthly VelocityLimitType = "monthly"
)

// AllVelocityLimitTypes in evaluation order, cheapest window first.
var AllVelocityLimitTypes = []VelocityLimitType{
	VelocityHourly, VelocityDaily, VelocityWeekly, VelocityMonthly,
}

// Window returns the rolling window duration for the limit type.
func (t VelocityLimitType) Window() time.Duration {
	switch t {
	case VelocityHourly:
		return time.Hour
	case VelocityDaily:
		return 24 * time.Hour
	case VelocityWeekly:
		return 7 * 24 * time.Hour
	case VelocityMonthly:
		return 30 * 24 * time.Hour
	}
	return time.Hour
}

// VelocityLimit is one (user, limit type) counter row. Counters are
// monotonically non-decreasing inside a window and reset atomically when
// the window elapses. ExpiresAt supports temporary tightened limits.
type VelocityLimit struct {
	gorm.Model
	UserID    uint              `gorm:"not null;uniqueIndex:idx_velocity_user_type"`
	LimitType VelocityLimitType `gorm:"not null;uniqueIndex:idx_velocity_user_type"`

	WindowStart  time.Time `gorm:"not null"`
	WindowAmount float64   `gorm:"not null;default:0"`
	WindowCount  int       `gorm:"not null;default:0"`

	MaxAmount float64 `gorm:"not null"`
	MaxCount  int     `gorm:"not null"`

	Active    bool `gorm:"not null;default:true"`
	ExpiresAt *time.Time
}
