package repositories

import (
	"errors"

	domainerr "rigshare/internal/errors"
	"rigshare/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MutualClosureRepository persists closure proposals and their audit
// trail. CreateActive is the single place where the "at most one active
// proposal per dispute" invariant is enforced.
type MutualClosureRepository interface {
	// CreateActive inserts the proposal unless another Proposed one
	// exists for the same dispute. Returns ErrClosureAlreadyActive in
	// that case. The check and insert run in one transaction holding
	// the parent dispute row lock.
	CreateActive(closure *models.MutualDisputeClosure) error
	FindByID(id uint) (*models.MutualDisputeClosure, error)
	ActiveByDispute(disputeID uint) (*models.MutualDisputeClosure, error)
	Update(closure *models.MutualDisputeClosure) error
	AppendAudit(entry *models.MutualClosureAuditLog) error
	AuditByClosure(closureID uint) ([]models.MutualClosureAuditLog, error)
}

type mutualClosureRepository struct {
	db *gorm.DB
}

func NewMutualClosureRepository(db *gorm.DB) MutualClosureRepository {
	return &mutualClosureRepository{db: db}
}

func (r *mutualClosureRepository) CreateActive(closure *models.MutualDisputeClosure) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		// Lock the parent dispute row so two concurrent proposals
		// serialize here.
		var dispute models.Dispute
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&dispute, closure.DisputeID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerr.ErrDisputeNotFound
			}
			return err
		}

		var count int64
		if err := tx.Model(&models.MutualDisputeClosure{}).
			Where("dispute_id = ? AND status = ?", closure.DisputeID, models.MutualClosureProposed).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return domainerr.ErrClosureAlreadyActive
		}

		return tx.Create(closure).Error
	})
}

func (r *mutualClosureRepository) FindByID(id uint) (*models.MutualDisputeClosure, error) {
	var closure models.MutualDisputeClosure
	err := r.db.First(&closure, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainerr.ErrNotFound
	}
	return &closure, err
}

func (r *mutualClosureRepository) ActiveByDispute(disputeID uint) (*models.MutualDisputeClosure, error) {
	var closure models.MutualDisputeClosure
	err := r.db.Where("dispute_id = ? AND status = ?", disputeID, models.MutualClosureProposed).
		First(&closure).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &closure, nil
}

func (r *mutualClosureRepository) Update(closure *models.MutualDisputeClosure) error {
	return r.db.Save(closure).Error
}

func (r *mutualClosureRepository) AppendAudit(entry *models.MutualClosureAuditLog) error {
	return r.db.Create(entry).Error
}

func (r *mutualClosureRepository) AuditByClosure(closureID uint) ([]models.MutualClosureAuditLog, error) {
	var entries []models.MutualClosureAuditLog
	err := r.db.Where("closure_id = ?", closureID).Order("created_at ASC, id ASC").Find(&entries).Error
	return entries, err
}
