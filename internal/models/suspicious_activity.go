package models

import (
	"time"

	"gorm.io/gorm"
)

// SuspiciousActivityType names a detection pattern.
type SuspiciousActivityType string

const (
	SuspicionRapidPayments SuspiciousActivityType = "rapid_payments"
	SuspicionRoundAmounts  SuspiciousActivityType = "round_amounts"
	SuspicionPairCycling   SuspiciousActivityType = "pair_cycling"
	SuspicionTriangulation SuspiciousActivityType = "location_triangulation"
)

// SuspiciousActivityStatus is the review state of a detection.
type SuspiciousActivityStatus string

const (
	SuspicionActive    SuspiciousActivityStatus = "active"
	SuspicionResolved  SuspiciousActivityStatus = "resolved"
	SuspicionDismissed SuspiciousActivityStatus = "dismissed"
)

// SuspiciousActivity is one detected pattern per user. A recurring match
// bumps Frequency and LastDetectedAt instead of duplicating rows.
type SuspiciousActivity struct {
	gorm.Model
	UserID      uint                   `gorm:"not null;index"`
	Type        SuspiciousActivityType `gorm:"not null;index"`
	Description string
	Score       int `gorm:"not null"`
	Frequency   int `gorm:"not null;default:1"`

	FirstDetectedAt time.Time `gorm:"not null"`
	LastDetectedAt  time.Time `gorm:"not null"`

	RelatedPaymentID *uint
	RelatedUserID    *uint

	Status          SuspiciousActivityStatus `gorm:"not null;default:'active';index"`
	ResolvedBy      *uint
	ResolvedAt      *time.Time
	ResolutionNotes string
}
