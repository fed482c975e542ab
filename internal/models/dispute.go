package models

import (
	"time"

	"gorm.io/gorm"
)

// DisputeStatus is the state-machine state of a dispute.
type DisputeStatus string

const (
	DisputeStatusOpened      DisputeStatus = "opened"
	DisputeStatusUnderReview DisputeStatus = "under_review"
	DisputeStatusResolved    DisputeStatus = "resolved"
	DisputeStatusEscalated   DisputeStatus = "escalated"
	DisputeStatusClosed      DisputeStatus = "closed"
)

// Terminal reports whether no further transitions are allowed.
func (s DisputeStatus) Terminal() bool {
	return s == DisputeStatusResolved || s == DisputeStatusClosed
}

// DisputeType classifies what is being contested.
type DisputeType string

const (
	DisputeTypeDamage    DisputeType = "damage"
	DisputeTypeNonReturn DisputeType = "non_return"
	DisputeTypePayment   DisputeType = "payment"
)

// DisputeCategory is a coarser grouping used for admin triage.
type DisputeCategory string

const (
	DisputeCategoryQuality   DisputeCategory = "quality"
	DisputeCategoryFinancial DisputeCategory = "financial"
	DisputeCategoryConduct   DisputeCategory = "conduct"
)

// Dispute is a formal claim raised by a rental party. Messages and
// evidence are owned children; the active mutual closure is referenced
// by id only.
type Dispute struct {
	gorm.Model
	Reference     string `gorm:"uniqueIndex;not null"`
	RentalID      uint   `gorm:"not null;index"`
	PaymentID     *uint
	InitiatorID   uint            `gorm:"not null"`
	Type          DisputeType     `gorm:"not null"`
	Category      DisputeCategory `gorm:"not null"`
	Title         string          `gorm:"not null"`
	Description   string
	ClaimedAmount float64
	Status        DisputeStatus `gorm:"not null;default:'opened';index"`

	AssignedAdminID   *uint
	ExternalDisputeID *string `gorm:"index"`

	ResolutionKind  *string
	ResolutionNotes string
	RefundAmount    *float64
	RefundTxnID     *string
	ResolvedBy      *uint
	ResolvedAt      *time.Time
	ClosedAt        *time.Time
	CloseReason     string

	// Unread message counters per side of the rental.
	InitiatorUnread  int `gorm:"default:0"`
	RespondentUnread int `gorm:"default:0"`

	// Version is the optimistic concurrency token; every write bumps it.
	Version int `gorm:"not null;default:1"`
}

// DisputeMessage is an append-only message on a dispute thread.
type DisputeMessage struct {
	gorm.Model
	DisputeID        uint   `gorm:"not null;index"`
	AuthorID         uint   `gorm:"not null"`
	Body             string `gorm:"not null"`
	ReadByInitiator  bool   `gorm:"default:false"`
	ReadByRespondent bool   `gorm:"default:false"`
}

// DisputeEvidence is file metadata attached to a dispute. The bytes live
// in the external storage collaborator; the scan verdict arrives later.
type DisputeEvidence struct {
	gorm.Model
	DisputeID   uint   `gorm:"not null;index"`
	UploaderID  uint   `gorm:"not null"`
	FileName    string `gorm:"not null"`
	ContentType string
	StorageRef  string `gorm:"not null"`
	Description string
	Scanned     bool `gorm:"default:false"`
	Safe        *bool
}
