package repositories

import (
	"errors"

	domainerr "rigshare/internal/errors"
	"rigshare/internal/models"

	"gorm.io/gorm"
)

// DisputeRepository owns the dispute aggregate and its owned children
// (messages, evidence).
type DisputeRepository interface {
	Create(dispute *models.Dispute) error
	FindByID(id uint) (*models.Dispute, error)
	FindByReference(ref string) (*models.Dispute, error)
	FindByExternalID(externalID string) (*models.Dispute, error)
	OpenExistsByRental(rentalID uint) (bool, error)
	// UpdateCAS persists the dispute only if its version is unchanged,
	// bumping the version on success. Returns ErrConflict on a stale write.
	UpdateCAS(dispute *models.Dispute) error
	ListByUser(userID uint, limit, offset int) ([]models.Dispute, error)
	ListByStatus(status models.DisputeStatus, limit, offset int) ([]models.Dispute, error)

	AddMessage(msg *models.DisputeMessage) error
	MessagesByDispute(disputeID uint) ([]models.DisputeMessage, error)

	AddEvidence(ev *models.DisputeEvidence) error
	EvidenceByDispute(disputeID uint) ([]models.DisputeEvidence, error)
	UpdateEvidence(ev *models.DisputeEvidence) error
	FindEvidenceByRef(storageRef string) (*models.DisputeEvidence, error)
}

type disputeRepository struct {
	db *gorm.DB
}

func NewDisputeRepository(db *gorm.DB) DisputeRepository {
	return &disputeRepository{db: db}
}

func (r *disputeRepository) Create(dispute *models.Dispute) error {
	return r.db.Create(dispute).Error
}

func (r *disputeRepository) FindByID(id uint) (*models.Dispute, error) {
	var dispute models.Dispute
	err := r.db.First(&dispute, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainerr.ErrDisputeNotFound
	}
	return &dispute, err
}

func (r *disputeRepository) FindByReference(ref string) (*models.Dispute, error) {
	var dispute models.Dispute
	err := r.db.Where("reference = ?", ref).First(&dispute).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainerr.ErrDisputeNotFound
	}
	return &dispute, err
}

func (r *disputeRepository) FindByExternalID(externalID string) (*models.Dispute, error) {
	var dispute models.Dispute
	err := r.db.Where("external_dispute_id = ?", externalID).First(&dispute).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainerr.ErrDisputeNotFound
	}
	return &dispute, err
}

func (r *disputeRepository) OpenExistsByRental(rentalID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.Dispute{}).
		Where("rental_id = ? AND status NOT IN ?", rentalID,
			[]models.DisputeStatus{models.DisputeStatusResolved, models.DisputeStatusClosed}).
		Count(&count).Error
	return count > 0, err
}

func (r *disputeRepository) UpdateCAS(dispute *models.Dispute) error {
	current := dispute.Version
	dispute.Version = current + 1

	res := r.db.Model(&models.Dispute{}).
		Where("id = ? AND version = ?", dispute.ID, current).
		Select("*").Omit("id", "created_at").
		Updates(dispute)
	if res.Error != nil {
		dispute.Version = current
		return res.Error
	}
	if res.RowsAffected == 0 {
		dispute.Version = current
		return domainerr.ErrConflict
	}
	return nil
}

func (r *disputeRepository) ListByUser(userID uint, limit, offset int) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := r.db.
		Joins("JOIN rentals ON rentals.id = disputes.rental_id").
		Where("rentals.owner_id = ? OR rentals.renter_id = ?", userID, userID).
		Order("disputes.created_at DESC").
		Limit(limit).Offset(offset).
		Find(&disputes).Error
	return disputes, err
}

func (r *disputeRepository) ListByStatus(status models.DisputeStatus, limit, offset int) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := r.db.Where("status = ?", status).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&disputes).Error
	return disputes, err
}

func (r *disputeRepository) AddMessage(msg *models.DisputeMessage) error {
	return r.db.Create(msg).Error
}

func (r *disputeRepository) MessagesByDispute(disputeID uint) ([]models.DisputeMessage, error) {
	var msgs []models.DisputeMessage
	err := r.db.Where("dispute_id = ?", disputeID).Order("created_at ASC").Find(&msgs).Error
	return msgs, err
}

func (r *disputeRepository) AddEvidence(ev *models.DisputeEvidence) error {
	return r.db.Create(ev).Error
}

func (r *disputeRepository) EvidenceByDispute(disputeID uint) ([]models.DisputeEvidence, error) {
	var evidence []models.DisputeEvidence
	err := r.db.Where("dispute_id = ?", disputeID).Order("created_at ASC").Find(&evidence).Error
	return evidence, err
}

func (r *disputeRepository) UpdateEvidence(ev *models.DisputeEvidence) error {
	return r.db.Save(ev).Error
}

func (r *disputeRepository) FindEvidenceByRef(storageRef string) (*models.DisputeEvidence, error) {
	var ev models.DisputeEvidence
	err := r.db.Where("storage_ref = ?", storageRef).First(&ev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainerr.ErrNotFound
	}
	return &ev, err
}
