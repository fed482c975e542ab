package dispute

import (
	"context"
	"log"
	"strings"

	domainerr "rigshare/internal/errors"
	"rigshare/internal/models"
)

// Eligibility is the result of a mutual closure pre-check. Reasons is
// empty when the dispute can take a proposal.
type Eligibility struct {
	Eligible bool     `json:"eligible"`
	Reasons  []string `json:"reasons,omitempty"`
}

// systemActor marks closure audit entries written by the engine itself
// (expiry sweeps) rather than a user.
const systemActor uint = 0

// CheckEligibility reports whether userID can propose a mutual closure
// on the dispute right now, with human-readable reasons when not.
func (s *Service) CheckEligibility(ctx context.Context, disputeID, userID uint) (*Eligibility, error) {
	d, err := s.disputes.FindByID(disputeID)
	if err != nil {
		return nil, err
	}

	var reasons []string
	if d.Status.Terminal() {
		reasons = append(reasons, "dispute is already "+string(d.Status))
	}
	rental, err := s.rentals.FindByID(d.RentalID)
	if err != nil {
		return nil, err
	}
	if !rental.IsParty(userID) {
		reasons = append(reasons, "user is not a party to the rental")
	}

	active, err := s.activeProposal(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		reasons = append(reasons, "another closure proposal is awaiting a response")
	}
	return &Eligibility{Eligible: len(reasons) == 0, Reasons: reasons}, nil
}

// InitiateMutualClosure creates a Proposed closure that the counter-party
// must answer before it expires. At most one proposal may be pending per
// dispute; the repository enforces that under the dispute row lock.
func (s *Service) InitiateMutualClosure(ctx context.Context, disputeID, proposerID uint, notes string, refundAmount *float64) (*models.MutualDisputeClosure, error) {
	if strings.TrimSpace(notes) == "" {
		return nil, domainerr.ErrValidation.WithMessage("proposal notes are required")
	}
	if refundAmount != nil && *refundAmount <= 0 {
		return nil, domainerr.ErrValidation.WithMessage("proposed refund must be positive")
	}

	d, err := s.disputes.FindByID(disputeID)
	if err != nil {
		return nil, err
	}
	if d.Status.Terminal() {
		return nil, domainerr.ErrDisputeTerminal
	}
	rental, err := s.rentals.FindByID(d.RentalID)
	if err != nil {
		return nil, err
	}
	if !rental.IsParty(proposerID) {
		return nil, domainerr.ErrNotDisputeParty
	}
	if refundAmount != nil && d.PaymentID == nil {
		return nil, domainerr.ErrValidation.WithMessage("dispute has no payment to refund")
	}

	// A lapsed proposal still sitting in Proposed does not block a new
	// one; expire it first.
	if _, err := s.activeProposal(ctx, disputeID); err != nil {
		return nil, err
	}

	closure := &models.MutualDisputeClosure{
		DisputeID:    disputeID,
		ProposerID:   proposerID,
		Notes:        notes,
		RefundAmount: refundAmount,
		Status:       models.MutualClosureProposed,
		ExpiresAt:    s.now().Add(s.policy.ClosureExpiry),
	}
	if err := s.closures.CreateActive(closure); err != nil {
		return nil, err
	}

	s.notifyParty(ctx, rental.CounterParty(proposerID), disputeID, "mutual closure proposed")
	return closure, nil
}

// RespondToMutualClosure records the counter-party's answer. Acceptance
// applies the agreed refund through the processor and closes the parent
// dispute; rejection leaves the dispute open for arbitration. Nothing is
// persisted on acceptance until the refund has succeeded.
func (s *Service) RespondToMutualClosure(ctx context.Context, closureID, responderID uint, accept bool, notes string) (*models.MutualDisputeClosure, error) {
	closure, err := s.closures.FindByID(closureID)
	if err != nil {
		return nil, err
	}
	disputeID := closure.DisputeID

	s.lock(disputeID)
	closure, err = s.closures.FindByID(closureID)
	if err != nil {
		s.unlock(disputeID)
		return nil, err
	}
	if closure.Expired(s.now()) {
		s.expireLocked(closure, "proposal expired")
		s.unlock(disputeID)
		return nil, domainerr.ErrInvalidState.WithMessage("proposal has expired")
	}
	if closure.Status != models.MutualClosureProposed {
		s.unlock(disputeID)
		return nil, domainerr.ErrInvalidState.WithMessage("proposal is already %s", closure.Status)
	}
	if err := s.authorizeResponder(closure, responderID); err != nil {
		s.unlock(disputeID)
		return nil, err
	}

	// The dispute may have been resolved or closed since the proposal
	// was made (an external resolution, say). A stale proposal must not
	// move money or reopen anything.
	d, err := s.disputes.FindByID(disputeID)
	if err != nil {
		s.unlock(disputeID)
		return nil, err
	}
	if d.Status.Terminal() {
		s.expireLocked(closure, "dispute reached a terminal state before a response")
		s.unlock(disputeID)
		return nil, domainerr.ErrDisputeTerminal
	}

	if !accept {
		now := s.now()
		closure.Status = models.MutualClosureRejected
		closure.ResponderID = &responderID
		closure.ResponseNotes = notes
		closure.RespondedAt = &now
		if err := s.closures.Update(closure); err != nil {
			s.unlock(disputeID)
			return nil, err
		}
		s.appendAudit(closure.ID, responderID, models.MutualClosureProposed, models.MutualClosureRejected, notes)
		s.unlock(disputeID)

		s.notifyParty(ctx, closure.ProposerID, disputeID, "mutual closure rejected")
		return closure, nil
	}

	// Gather what the refund needs, then release the lock for the
	// processor call.
	var payment *models.Payment
	if closure.RefundAmount != nil {
		if d.PaymentID == nil {
			s.unlock(disputeID)
			return nil, domainerr.ErrValidation.WithMessage("dispute has no payment to refund")
		}
		payment, err = s.payments.FindByID(*d.PaymentID)
		if err != nil {
			s.unlock(disputeID)
			return nil, err
		}
	}
	s.unlock(disputeID)

	var txnID string
	if closure.RefundAmount != nil {
		txnID, err = s.refund(ctx, payment, *closure.RefundAmount, "mutual closure agreement")
		if err != nil {
			// Proposal stays Proposed; the responder can retry.
			return nil, err
		}
	}

	return s.completeClosure(ctx, closureID, responderID, notes, txnID)
}

// completeClosure persists the acceptance and closes the parent dispute.
// It writes two audit entries: the acceptance transition and the
// completion record.
func (s *Service) completeClosure(ctx context.Context, closureID, responderID uint, notes, refundTxnID string) (*models.MutualDisputeClosure, error) {
	closure, err := s.closures.FindByID(closureID)
	if err != nil {
		return nil, err
	}

	s.lock(closure.DisputeID)
	defer s.unlock(closure.DisputeID)

	closure, err = s.closures.FindByID(closureID)
	if err != nil {
		return nil, err
	}
	if closure.Status != models.MutualClosureProposed {
		if refundTxnID != "" {
			log.Printf("closure %d answered concurrently; refund txn %s needs reconciliation", closureID, refundTxnID)
		}
		return nil, domainerr.ErrConflict.WithMessage("proposal was answered concurrently")
	}

	// The dispute must still be open; a concurrent resolution wins and
	// the closure stays Proposed until it is lazily expired.
	parent, err := s.disputes.FindByID(closure.DisputeID)
	if err != nil {
		return nil, err
	}
	if parent.Status.Terminal() {
		if refundTxnID != "" {
			log.Printf("dispute %d reached a terminal state during closure acceptance; refund txn %s needs reconciliation", closure.DisputeID, refundTxnID)
		}
		return nil, domainerr.ErrConflict.WithMessage("dispute state changed during closure acceptance")
	}

	now := s.now()
	closure.Status = models.MutualClosureAccepted
	closure.ResponderID = &responderID
	closure.ResponseNotes = notes
	closure.RespondedAt = &now
	if err := s.closures.Update(closure); err != nil {
		return nil, err
	}
	s.appendAudit(closure.ID, responderID, models.MutualClosureProposed, models.MutualClosureAccepted, notes)

	d, err := s.closeFromClosure(ctx, closure.DisputeID, responderID, "mutual closure accepted")
	if err != nil {
		return nil, err
	}
	if refundTxnID != "" {
		d.RefundAmount = closure.RefundAmount
		d.RefundTxnID = &refundTxnID
		if err := s.disputes.UpdateCAS(d); err != nil {
			return nil, err
		}
		s.invalidate(ctx, d.ID)
	}

	completion := "dispute closed"
	if refundTxnID != "" {
		completion = "refund applied; dispute closed"
	}
	s.appendAudit(closure.ID, responderID, models.MutualClosureAccepted, models.MutualClosureAccepted, completion)

	s.notifyParty(ctx, closure.ProposerID, closure.DisputeID, "mutual closure accepted")
	return closure, nil
}

// CancelMutualClosure withdraws a pending proposal. Proposer only.
func (s *Service) CancelMutualClosure(ctx context.Context, closureID, actorID uint) (*models.MutualDisputeClosure, error) {
	closure, err := s.closures.FindByID(closureID)
	if err != nil {
		return nil, err
	}

	s.lock(closure.DisputeID)
	defer s.unlock(closure.DisputeID)

	closure, err = s.closures.FindByID(closureID)
	if err != nil {
		return nil, err
	}
	if closure.ProposerID != actorID {
		return nil, domainerr.ErrAccessDenied.WithMessage("only the proposer can cancel the proposal")
	}
	if closure.Expired(s.now()) {
		s.expireLocked(closure, "proposal expired")
		return nil, domainerr.ErrInvalidState.WithMessage("proposal has expired")
	}
	if closure.Status != models.MutualClosureProposed {
		return nil, domainerr.ErrInvalidState.WithMessage("proposal is already %s", closure.Status)
	}

	closure.Status = models.MutualClosureCancelled
	if err := s.closures.Update(closure); err != nil {
		return nil, err
	}
	s.appendAudit(closure.ID, actorID, models.MutualClosureProposed, models.MutualClosureCancelled, "withdrawn by proposer")
	return closure, nil
}

// ClosureAuditTrail returns the append-only transition log, oldest first.
func (s *Service) ClosureAuditTrail(closureID uint) ([]models.MutualClosureAuditLog, error) {
	return s.closures.AuditByClosure(closureID)
}

// activeProposal returns the pending proposal for a dispute, lazily
// expiring one whose deadline has passed.
func (s *Service) activeProposal(ctx context.Context, disputeID uint) (*models.MutualDisputeClosure, error) {
	closure, err := s.closures.ActiveByDispute(disputeID)
	if err != nil || closure == nil {
		return nil, err
	}
	if closure.Expired(s.now()) {
		s.lock(disputeID)
		// Reload under the lock; a response may have landed meanwhile.
		closure, err = s.closures.FindByID(closure.ID)
		if err == nil && closure.Expired(s.now()) {
			s.expireLocked(closure, "proposal expired")
		}
		s.unlock(disputeID)
		return nil, err
	}
	return closure, nil
}

// expireLocked flips a stale proposal to Expired. Caller must hold the
// dispute lock.
func (s *Service) expireLocked(closure *models.MutualDisputeClosure, reason string) {
	closure.Status = models.MutualClosureExpired
	if err := s.closures.Update(closure); err != nil {
		log.Printf("closure %d: expiry update failed: %v", closure.ID, err)
		return
	}
	s.appendAudit(closure.ID, systemActor, models.MutualClosureProposed, models.MutualClosureExpired, reason)
}

// authorizeResponder permits only the counter-party of the proposer.
func (s *Service) authorizeResponder(closure *models.MutualDisputeClosure, responderID uint) error {
	d, err := s.disputes.FindByID(closure.DisputeID)
	if err != nil {
		return err
	}
	rental, err := s.rentals.FindByID(d.RentalID)
	if err != nil {
		return err
	}
	if rental.CounterParty(closure.ProposerID) != responderID {
		return domainerr.ErrAccessDenied.WithMessage("only the counter-party can respond to the proposal")
	}
	return nil
}

func (s *Service) appendAudit(closureID, actorID uint, from, to models.MutualClosureStatus, reason string) {
	entry := &models.MutualClosureAuditLog{
		ClosureID:  closureID,
		ActorID:    actorID,
		FromStatus: from,
		ToStatus:   to,
		Reason:     reason,
		CreatedAt:  s.now(),
	}
	if err := s.closures.AppendAudit(entry); err != nil {
		log.Printf("closure %d: audit append failed: %v", closureID, err)
	}
}
