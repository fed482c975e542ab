package models

import (
	"time"

	"gorm.io/gorm"
)

// WebhookEvent is the durable record of a processed external event.
// The unique index on EventID is what makes webhook delivery idempotent
// under at-least-once replays.
type WebhookEvent struct {
	gorm.Model
	EventID           string `gorm:"uniqueIndex;not null"`
	EventType         string `gorm:"not null"`
	ExternalDisputeID string `gorm:"index"`
	Payload           JSON   `gorm:"type:jsonb"`
	ReceivedAt        time.Time

	// Processed flips only once the event's state change has been
	// applied; a delivery that failed mid-apply is run again on retry.
	Processed   bool `gorm:"not null;default:false"`
	ProcessedAt *time.Time
}
