package models

import (
	"time"

	"gorm.io/gorm"
)

// MutualClosureStatus is the state of a two-party closure proposal.
type MutualClosureStatus string

const (
	MutualClosureProposed  MutualClosureStatus = "proposed"
	MutualClosureAccepted  MutualClosureStatus = "accepted"
	MutualClosureRejected  MutualClosureStatus = "rejected"
	MutualClosureExpired   MutualClosureStatus = "expired"
	MutualClosureCancelled MutualClosureStatus = "cancelled"
)

// Active reports whether the proposal is still awaiting a response.
func (s MutualClosureStatus) Active() bool {
	return s == MutualClosureProposed
}

// MutualDisputeClosure is a proposal by one rental party to settle a
// dispute without arbitration. At most one non-terminal proposal may
// exist per dispute.
type MutualDisputeClosure struct {
	gorm.Model
	DisputeID    uint   `gorm:"not null;index"`
	ProposerID   uint   `gorm:"not null"`
	Notes        string `gorm:"not null"`
	RefundAmount *float64
	Status       MutualClosureStatus `gorm:"not null;default:'proposed'"`

	ResponderID   *uint
	ResponseNotes string
	RespondedAt   *time.Time
	ExpiresAt     time.Time `gorm:"not null"`
}

// Expired reports whether the proposal has lapsed at the given instant.
func (c *MutualDisputeClosure) Expired(now time.Time) bool {
	return c.Status == MutualClosureProposed && now.After(c.ExpiresAt)
}

// MutualClosureAuditLog is the immutable trail of closure transitions,
// kept for non-repudiation. Rows are only ever appended.
type MutualClosureAuditLog struct {
	ID         uint `gorm:"primarykey"`
	ClosureID  uint `gorm:"not null;index"`
	ActorID    uint `gorm:"not null"`
	FromStatus MutualClosureStatus
	ToStatus   MutualClosureStatus `gorm:"not null"`
	Reason     string
	CreatedAt  time.Time
}
