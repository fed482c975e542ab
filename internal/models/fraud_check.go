package models

import (
	"time"

	"gorm.io/gorm"
)

// FraudCheckType is the kind of action that was evaluated.
type FraudCheckType string

const (
	FraudCheckPayment FraudCheckType = "payment"
	FraudCheckSearch  FraudCheckType = "search"
)

// FraudCheckStatus is the decision recorded for the action.
type FraudCheckStatus string

const (
	FraudCheckApproved FraudCheckStatus = "approved"
	FraudCheckFlagged  FraudCheckStatus = "flagged"
	FraudCheckRejected FraudCheckStatus = "rejected"
)

// FraudRiskLevel is the banded risk classification.
type FraudRiskLevel string

const (
	RiskLevelLow      FraudRiskLevel = "low"
	RiskLevelMedium   FraudRiskLevel = "medium"
	RiskLevelHigh     FraudRiskLevel = "high"
	RiskLevelCritical FraudRiskLevel = "critical"
)

// FraudCheck is one evaluated action. Rejections are decisions, not
// errors, so every outcome lands here. Immutable once decided except for
// the manual review fields.
type FraudCheck struct {
	gorm.Model
	UserID    uint `gorm:"not null;index"`
	PaymentID *uint
	CheckType FraudCheckType   `gorm:"not null"`
	RiskLevel FraudRiskLevel   `gorm:"not null"`
	RiskScore int              `gorm:"not null"`
	Rules     StringList       `gorm:"type:jsonb"`
	Status    FraudCheckStatus `gorm:"not null;index"`

	PaymentBlocked bool `gorm:"default:false"`
	UserFlagged    bool `gorm:"default:false"`
	AdminNotified  bool `gorm:"default:false"`

	IPAddress         string
	DeviceFingerprint string `gorm:"index"`

	ReviewedBy  *uint
	ReviewedAt  *time.Time
	ReviewNotes string
}
