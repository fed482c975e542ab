package repositories

import (
	"errors"
	"time"

	domainerr "rigshare/internal/errors"
	"rigshare/internal/models"

	"gorm.io/gorm"
)

// WebhookEventRepository is the durable dedupe ledger for external
// events. FirstSeen relies on the unique index over event ids; the
// Processed flag separates "delivered before" from "applied before".
type WebhookEventRepository interface {
	// FirstSeen inserts the event and reports true when this delivery is
	// the first one. A replay hits the unique index and returns false
	// without error.
	FirstSeen(event *models.WebhookEvent) (bool, error)
	FindByEventID(eventID string) (*models.WebhookEvent, error)
	// MarkProcessed records that the event's state change was applied.
	MarkProcessed(eventID string, at time.Time) error
	ListByExternalDispute(externalDisputeID string) ([]models.WebhookEvent, error)
}

type webhookEventRepository struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

func (r *webhookEventRepository) FirstSeen(event *models.WebhookEvent) (bool, error) {
	err := r.db.Create(event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *webhookEventRepository) FindByEventID(eventID string) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	err := r.db.Where("event_id = ?", eventID).First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainerr.ErrNotFound
	}
	return &event, err
}

func (r *webhookEventRepository) MarkProcessed(eventID string, at time.Time) error {
	return r.db.Model(&models.WebhookEvent{}).
		Where("event_id = ?", eventID).
		Updates(map[string]interface{}{
			"processed":    true,
			"processed_at": at,
		}).Error
}

func (r *webhookEventRepository) ListByExternalDispute(externalDisputeID string) ([]models.WebhookEvent, error) {
	var events []models.WebhookEvent
	err := r.db.Where("external_dispute_id = ?", externalDisputeID).
		Order("received_at ASC").
		Find(&events).Error
	return events, err
}
