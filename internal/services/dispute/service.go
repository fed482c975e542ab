// Package dispute implements the dispute lifecycle: creation, the
// message and evidence threads, admin arbitration, external processor
// escalation, and the mutual closure workflow.
//
// Mutations on one dispute are serialized by a per-id mutex plus an
// optimistic version check on every write. External processor calls run
// with their own timeout and never happen while the per-dispute lock is
// held; the local transition is applied afterwards under the lock, so a
// failed call leaves the dispute untouched.
package dispute

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"rigshare/internal/config"
	domainerr "rigshare/internal/errors"
	"rigshare/internal/models"
	"rigshare/internal/repositories"
	"rigshare/internal/services/evidence"
	"rigshare/internal/services/notification"
	"rigshare/internal/services/processor"
	"rigshare/internal/utils/lock"

	"github.com/google/uuid"
)

// Cache is the subset of the redis service the dispute flow uses. A nil
// cache is valid; everything falls through to postgres.
type Cache interface {
	GetDispute(ctx context.Context, id uint) (*models.Dispute, error)
	SetDispute(ctx context.Context, d *models.Dispute) error
	InvalidateDispute(ctx context.Context, id uint) error
	WebhookSeen(ctx context.Context, eventID string) (bool, error)
	MarkWebhookSeen(ctx context.Context, eventID string) error
}

type Service struct {
	disputes repositories.DisputeRepository
	closures repositories.MutualClosureRepository
	rentals  repositories.RentalRepository
	payments repositories.PaymentRepository
	webhooks repositories.WebhookEventRepository
	proc     processor.Processor
	storage  evidence.Storage
	notifier notification.Notifier
	cache    Cache
	locks    *lock.KeyedMutex
	policy   config.Policy
	now      func() time.Time
}

func NewService(
	disputes repositories.DisputeRepository,
	closures repositories.MutualClosureRepository,
	rentals repositories.RentalRepository,
	payments repositories.PaymentRepository,
	webhooks repositories.WebhookEventRepository,
	proc processor.Processor,
	storage evidence.Storage,
	notifier notification.Notifier,
	cache Cache,
	policy config.Policy,
) *Service {
	if disputes == nil || rentals == nil {
		panic("dispute and rental repositories are required")
	}
	return &Service{
		disputes: disputes,
		closures: closures,
		rentals:  rentals,
		payments: payments,
		webhooks: webhooks,
		proc:     proc,
		storage:  storage,
		notifier: notifier,
		cache:    cache,
		locks:    lock.NewKeyedMutex(),
		policy:   policy,
		now:      time.Now,
	}
}

func disputeLockKey(id uint) string {
	return fmt.Sprintf("dispute:%d", id)
}

func (s *Service) lock(id uint)   { s.locks.Lock(disputeLockKey(id)) }
func (s *Service) unlock(id uint) { s.locks.Unlock(disputeLockKey(id)) }

// CreateDispute opens a new dispute over a rental. The requester must be
// a party to the rental, and at most one open dispute may exist per
// rental at a time.
func (s *Service) CreateDispute(ctx context.Context, req CreateDisputeRequest) (*models.Dispute, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, domainerr.ErrValidation.WithMessage("title is required")
	}
	if req.ClaimedAmount < 0 {
		return nil, domainerr.ErrValidation.WithMessage("claimed amount cannot be negative")
	}
	switch req.Type {
	case models.DisputeTypeDamage, models.DisputeTypeNonReturn, models.DisputeTypePayment:
	default:
		return nil, domainerr.ErrValidation.WithMessage("unknown dispute type %q", req.Type)
	}
	switch req.Category {
	case models.DisputeCategoryQuality, models.DisputeCategoryFinancial, models.DisputeCategoryConduct:
	default:
		return nil, domainerr.ErrValidation.WithMessage("unknown dispute category %q", req.Category)
	}

	rental, err := s.rentals.FindByID(req.RentalID)
	if err != nil {
		return nil, domainerr.ErrValidation.WithMessage("rental %d does not exist", req.RentalID)
	}
	if !rental.IsParty(req.InitiatorID) {
		return nil, domainerr.ErrValidation.WithMessage("user %d is not a party to rental %d", req.InitiatorID, req.RentalID)
	}
	if req.PaymentID != nil {
		payment, err := s.payments.FindByID(*req.PaymentID)
		if err != nil {
			return nil, domainerr.ErrValidation.WithMessage("payment %d does not exist", *req.PaymentID)
		}
		if payment.RentalID != req.RentalID {
			return nil, domainerr.ErrValidation.WithMessage("payment %d does not belong to rental %d", *req.PaymentID, req.RentalID)
		}
	}

	exists, err := s.disputes.OpenExistsByRental(req.RentalID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domainerr.ErrDisputeDuplicate
	}

	d := &models.Dispute{
		Reference:     uuid.NewString(),
		RentalID:      req.RentalID,
		PaymentID:     req.PaymentID,
		InitiatorID:   req.InitiatorID,
		Type:          req.Type,
		Category:      req.Category,
		Title:         strings.TrimSpace(req.Title),
		Description:   req.Description,
		ClaimedAmount: req.ClaimedAmount,
		Status:        models.DisputeStatusOpened,
		Version:       1,
	}
	if err := s.disputes.Create(d); err != nil {
		return nil, err
	}

	for _, up := range req.Evidence {
		if _, err := s.storeEvidence(ctx, d.ID, req.InitiatorID, up); err != nil {
			log.Printf("dispute %d: initial evidence %q not stored: %v", d.ID, up.FileName, err)
		}
	}

	s.notifyParty(ctx, rental.CounterParty(req.InitiatorID), d.ID, "dispute opened")
	return d, nil
}

// GetDispute returns the dispute if the requester is a rental party or
// an admin. Reads go through the cache; writes invalidate it.
func (s *Service) GetDispute(ctx context.Context, id uint, requesterID uint, admin bool) (*models.Dispute, error) {
	if s.cache != nil {
		if d, err := s.cache.GetDispute(ctx, id); err == nil && d != nil {
			if err := s.authorize(d, requesterID, admin); err != nil {
				return nil, err
			}
			return d, nil
		}
	}

	d, err := s.disputes.FindByID(id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(d, requesterID, admin); err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetDispute(ctx, d); err != nil {
			log.Printf("dispute %d: cache set failed: %v", id, err)
		}
	}
	return d, nil
}

// ListForUser returns disputes over rentals the user is a party to.
func (s *Service) ListForUser(userID uint, limit, offset int) ([]models.Dispute, error) {
	return s.disputes.ListByUser(userID, normalizeLimit(limit), offset)
}

// ListByStatus is the admin triage view.
func (s *Service) ListByStatus(status models.DisputeStatus, limit, offset int) ([]models.Dispute, error) {
	return s.disputes.ListByStatus(status, normalizeLimit(limit), offset)
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 20
	}
	return limit
}

// AddMessage appends to the dispute thread and bumps the unread counter
// of the other side. Messaging stops once the dispute is terminal.
func (s *Service) AddMessage(ctx context.Context, disputeID, authorID uint, admin bool, body string) (*models.DisputeMessage, error) {
	if strings.TrimSpace(body) == "" {
		return nil, domainerr.ErrValidation.WithMessage("message body is required")
	}

	s.lock(disputeID)
	defer s.unlock(disputeID)

	d, err := s.disputes.FindByID(disputeID)
	if err != nil {
		return nil, err
	}
	if d.Status.Terminal() {
		return nil, domainerr.ErrDisputeTerminal
	}
	if err := s.authorize(d, authorID, admin); err != nil {
		return nil, err
	}

	msg := &models.DisputeMessage{
		DisputeID: disputeID,
		AuthorID:  authorID,
		Body:      body,
	}
	if err := s.disputes.AddMessage(msg); err != nil {
		return nil, err
	}

	rental, err := s.rentals.FindByID(d.RentalID)
	if err != nil {
		return nil, err
	}
	respondent := rental.CounterParty(d.InitiatorID)
	switch authorID {
	case d.InitiatorID:
		d.RespondentUnread++
	case respondent:
		d.InitiatorUnread++
	default: // admin message, both sides should see it
		d.InitiatorUnread++
		d.RespondentUnread++
	}
	if err := s.disputes.UpdateCAS(d); err != nil {
		return nil, err
	}
	s.invalidate(ctx, disputeID)
	return msg, nil
}

// Messages returns the thread in chronological order.
func (s *Service) Messages(ctx context.Context, disputeID, requesterID uint, admin bool) ([]models.DisputeMessage, error) {
	d, err := s.disputes.FindByID(disputeID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(d, requesterID, admin); err != nil {
		return nil, err
	}
	return s.disputes.MessagesByDispute(disputeID)
}

// AddEvidence stores the file with the storage collaborator and records
// its metadata. The malware scan verdict arrives later through
// RecordScanResult.
func (s *Service) AddEvidence(ctx context.Context, disputeID, uploaderID uint, admin bool, up EvidenceUpload) (*models.DisputeEvidence, error) {
	if up.FileName == "" || len(up.Data) == 0 {
		return nil, domainerr.ErrValidation.WithMessage("evidence file name and content are required")
	}

	s.lock(disputeID)
	defer s.unlock(disputeID)

	d, err := s.disputes.FindByID(disputeID)
	if err != nil {
		return nil, err
	}
	if d.Status.Terminal() {
		return nil, domainerr.ErrDisputeTerminal
	}
	if err := s.authorize(d, uploaderID, admin); err != nil {
		return nil, err
	}
	return s.storeEvidence(ctx, disputeID, uploaderID, up)
}

func (s *Service) storeEvidence(ctx context.Context, disputeID, uploaderID uint, up EvidenceUpload) (*models.DisputeEvidence, error) {
	stored, err := s.storage.Store(ctx, up.FileName, up.ContentType, up.Data)
	if err != nil {
		return nil, domainerr.ErrExternalService.WithMessage("evidence storage failed: %v", err)
	}
	ev := &models.DisputeEvidence{
		DisputeID:   disputeID,
		UploaderID:  uploaderID,
		FileName:    up.FileName,
		ContentType: up.ContentType,
		StorageRef:  stored.Reference,
		Description: up.Description,
	}
	if err := s.disputes.AddEvidence(ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// Evidence lists the attachments on a dispute.
func (s *Service) Evidence(ctx context.Context, disputeID, requesterID uint, admin bool) ([]models.DisputeEvidence, error) {
	d, err := s.disputes.FindByID(disputeID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(d, requesterID, admin); err != nil {
		return nil, err
	}
	return s.disputes.EvidenceByDispute(disputeID)
}

// RecordScanResult applies the asynchronous malware scan verdict to an
// evidence record.
func (s *Service) RecordScanResult(ctx context.Context, storageRef string, safe bool) error {
	ev, err := s.disputes.FindEvidenceByRef(storageRef)
	if err != nil {
		return err
	}
	ev.Scanned = true
	ev.Safe = &safe
	return s.disputes.UpdateEvidence(ev)
}

// AssignAdmin moves an opened dispute under review and pins the
// reviewing admin. Reassignment while under review is allowed.
func (s *Service) AssignAdmin(ctx context.Context, disputeID, adminID uint) (*models.Dispute, error) {
	s.lock(disputeID)
	defer s.unlock(disputeID)

	d, err := s.disputes.FindByID(disputeID)
	if err != nil {
		return nil, err
	}
	switch d.Status {
	case models.DisputeStatusOpened:
		d.Status = models.DisputeStatusUnderReview
	case models.DisputeStatusUnderReview:
		// reassignment only
	default:
		if d.Status.Terminal() {
			return nil, domainerr.ErrDisputeTerminal
		}
		return nil, domainerr.ErrInvalidState.WithMessage("cannot assign admin while dispute is %s", d.Status)
	}
	d.AssignedAdminID = &adminID

	if err := s.disputes.UpdateCAS(d); err != nil {
		return nil, err
	}
	s.invalidate(ctx, disputeID)
	s.notifyParty(ctx, d.InitiatorID, d.ID, "dispute under review")
	return d, nil
}

// Resolve ends the dispute with the given resolution. Only the assigned
// admin or the automated arbitration actor may resolve; refunds go
// through the payment processor first and the transition is applied only
// once the refund succeeds. Blocked while a mutual closure proposal is
// pending, same as Close.
func (s *Service) Resolve(ctx context.Context, disputeID, actorID uint, res Resolution) (*models.Dispute, error) {
	switch res.Kind {
	case ResolutionRefund:
		if res.RefundAmount <= 0 {
			return nil, domainerr.ErrValidation.WithMessage("refund amount must be positive")
		}
	case ResolutionNoAction, ResolutionReplacement:
	default:
		return nil, domainerr.ErrValidation.WithMessage("unknown resolution kind %q", res.Kind)
	}

	// Validate under the lock, then release it for the processor call.
	s.lock(disputeID)
	d, err := s.disputes.FindByID(disputeID)
	if err != nil {
		s.unlock(disputeID)
		return nil, err
	}
	if d.Status.Terminal() {
		s.unlock(disputeID)
		return nil, domainerr.ErrDisputeTerminal
	}
	if !canTransition(d.Status, models.DisputeStatusResolved) {
		s.unlock(disputeID)
		return nil, domainerr.ErrInvalidState.WithMessage("dispute in state %s cannot be resolved; it must be under review first", d.Status)
	}
	if err := s.authorizeResolver(d, actorID); err != nil {
		s.unlock(disputeID)
		return nil, err
	}
	if err := s.guardPendingClosure(disputeID); err != nil {
		s.unlock(disputeID)
		return nil, err
	}

	var payment *models.Payment
	if res.Kind == ResolutionRefund {
		if d.PaymentID == nil {
			s.unlock(disputeID)
			return nil, domainerr.ErrValidation.WithMessage("dispute has no payment to refund")
		}
		payment, err = s.payments.FindByID(*d.PaymentID)
		if err != nil {
			s.unlock(disputeID)
			return nil, err
		}
		if res.RefundAmount > payment.Amount {
			s.unlock(disputeID)
			return nil, domainerr.ErrValidation.WithMessage("refund %.2f exceeds payment amount %.2f", res.RefundAmount, payment.Amount)
		}
	}
	s.unlock(disputeID)

	var txnID string
	if res.Kind == ResolutionRefund {
		txnID, err = s.refund(ctx, payment, res.RefundAmount, res.Notes)
		if err != nil {
			return nil, err
		}
	}

	s.lock(disputeID)
	defer s.unlock(disputeID)

	d, err = s.disputes.FindByID(disputeID)
	if err != nil {
		return nil, err
	}
	if d.Status.Terminal() {
		if txnID != "" {
			log.Printf("dispute %d resolved concurrently; refund txn %s needs reconciliation", disputeID, txnID)
		}
		return nil, domainerr.ErrConflict.WithMessage("dispute state changed during resolution")
	}

	now := s.now()
	kind := string(res.Kind)
	d.Status = models.DisputeStatusResolved
	d.ResolutionKind = &kind
	d.ResolutionNotes = res.Notes
	d.ResolvedBy = &actorID
	d.ResolvedAt = &now
	if res.Kind == ResolutionRefund {
		d.RefundAmount = &res.RefundAmount
		d.RefundTxnID = &txnID
	}
	if err := s.disputes.UpdateCAS(d); err != nil {
		return nil, err
	}
	s.invalidate(ctx, disputeID)
	s.notifyParties(ctx, d, "dispute resolved")
	return d, nil
}

// Escalate hands the dispute to the external payment processor. Valid
// only from UnderReview; a failed processor call leaves the dispute
// unchanged and the error is retryable.
func (s *Service) Escalate(ctx context.Context, disputeID, adminID uint) (*models.Dispute, error) {
	s.lock(disputeID)
	d, err := s.disputes.FindByID(disputeID)
	if err != nil {
		s.unlock(disputeID)
		return nil, err
	}
	if d.Status != models.DisputeStatusUnderReview {
		s.unlock(disputeID)
		if d.Status.Terminal() {
			return nil, domainerr.ErrDisputeTerminal
		}
		return nil, domainerr.ErrInvalidState.WithMessage("only a dispute under review can be escalated, current state is %s", d.Status)
	}
	if err := s.authorizeResolver(d, adminID); err != nil {
		s.unlock(disputeID)
		return nil, err
	}

	summary := processor.DisputeSummary{
		ClaimedAmount: d.ClaimedAmount,
		Currency:      "USD",
		Reason:        d.Title,
	}
	if d.PaymentID != nil {
		if payment, err := s.payments.FindByID(*d.PaymentID); err == nil {
			summary.PaymentRef = payment.Reference
			summary.Currency = payment.Currency
		}
	}
	reference := d.Reference
	s.unlock(disputeID)

	callCtx, cancel := context.WithTimeout(ctx, s.policy.ProcessorTimeout)
	defer cancel()
	externalID, err := s.proc.EscalateDispute(callCtx, reference, summary)
	if err != nil {
		return nil, domainerr.ErrExternalService.WithMessage("escalation failed: %v", err)
	}

	s.lock(disputeID)
	defer s.unlock(disputeID)

	d, err = s.disputes.FindByID(disputeID)
	if err != nil {
		return nil, err
	}
	if d.Status != models.DisputeStatusUnderReview {
		log.Printf("dispute %d changed state during escalation; external case %s needs reconciliation", disputeID, externalID)
		return nil, domainerr.ErrConflict.WithMessage("dispute state changed during escalation")
	}
	d.Status = models.DisputeStatusEscalated
	d.ExternalDisputeID = &externalID
	if err := s.disputes.UpdateCAS(d); err != nil {
		return nil, err
	}
	s.invalidate(ctx, disputeID)
	s.notifyParties(ctx, d, "dispute escalated to payment processor")
	return d, nil
}

// Close ends the dispute without a formal resolution: admin override or
// party withdrawal. Blocked while a mutual closure proposal is pending
// so the two paths cannot race each other.
func (s *Service) Close(ctx context.Context, disputeID, actorID uint, admin bool, reason string) (*models.Dispute, error) {
	s.lock(disputeID)
	defer s.unlock(disputeID)

	d, err := s.disputes.FindByID(disputeID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(d, actorID, admin); err != nil {
		return nil, err
	}
	if err := s.guardPendingClosure(disputeID); err != nil {
		return nil, err
	}
	return s.closeLocked(ctx, d, actorID, reason)
}

// guardPendingClosure blocks unilateral resolution paths while a mutual
// closure proposal is awaiting a response, so the two paths cannot race
// each other. Lapsed proposals are expired in place. Caller must hold
// the dispute lock.
func (s *Service) guardPendingClosure(disputeID uint) error {
	if s.closures == nil {
		return nil
	}
	active, err := s.closures.ActiveByDispute(disputeID)
	if err != nil {
		return err
	}
	if active != nil {
		if !active.Expired(s.now()) {
			return domainerr.ErrClosurePending
		}
		s.expireLocked(active, "proposal expired")
	}
	return nil
}

// closeFromClosure is the completion path of an accepted mutual closure.
// The pending-proposal guard is skipped: the proposal being completed is
// the pending one. Caller must hold the dispute lock.
func (s *Service) closeFromClosure(ctx context.Context, disputeID, actorID uint, reason string) (*models.Dispute, error) {
	d, err := s.disputes.FindByID(disputeID)
	if err != nil {
		return nil, err
	}
	return s.closeLocked(ctx, d, actorID, reason)
}

func (s *Service) closeLocked(ctx context.Context, d *models.Dispute, actorID uint, reason string) (*models.Dispute, error) {
	if d.Status.Terminal() {
		return nil, domainerr.ErrDisputeTerminal
	}

	now := s.now()
	d.Status = models.DisputeStatusClosed
	d.ClosedAt = &now
	d.CloseReason = reason
	if err := s.disputes.UpdateCAS(d); err != nil {
		return nil, err
	}
	s.invalidate(ctx, d.ID)
	s.notifyParties(ctx, d, "dispute closed")
	return d, nil
}

// refund runs the processor refund with the policy timeout and records
// the payment as refunded.
func (s *Service) refund(ctx context.Context, payment *models.Payment, amount float64, reason string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.policy.ProcessorTimeout)
	defer cancel()

	txnID, err := s.proc.Refund(callCtx, payment.Reference, amount, reason)
	if err != nil {
		return "", domainerr.ErrExternalService.WithMessage("refund failed: %v", err)
	}

	payment.Status = models.PaymentStatusRefunded
	if err := s.payments.Update(payment); err != nil {
		log.Printf("payment %d: refund txn %s recorded with processor but status update failed: %v", payment.ID, txnID, err)
	}
	return txnID, nil
}

// authorize allows rental parties, the assigned admin, and admins.
func (s *Service) authorize(d *models.Dispute, userID uint, admin bool) error {
	if admin {
		return nil
	}
	if d.AssignedAdminID != nil && *d.AssignedAdminID == userID {
		return nil
	}
	rental, err := s.rentals.FindByID(d.RentalID)
	if err != nil {
		return err
	}
	if !rental.IsParty(userID) {
		return domainerr.ErrNotDisputeParty
	}
	return nil
}

// authorizeResolver allows the assigned admin or automated arbitration.
func (s *Service) authorizeResolver(d *models.Dispute, actorID uint) error {
	if actorID == ArbitrationActor {
		return nil
	}
	if d.AssignedAdminID == nil || *d.AssignedAdminID != actorID {
		return domainerr.ErrAccessDenied.WithMessage("only the assigned admin can perform this action")
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, disputeID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateDispute(ctx, disputeID); err != nil {
		log.Printf("dispute %d: cache invalidation failed: %v", disputeID, err)
	}
}

func (s *Service) notifyParty(ctx context.Context, userID, disputeID uint, event string) {
	if s.notifier == nil || userID == 0 {
		return
	}
	if err := s.notifier.NotifyDisputeUpdate(ctx, userID, disputeID, event); err != nil {
		log.Printf("dispute %d: notification to user %d failed: %v", disputeID, userID, err)
	}
}

func (s *Service) notifyParties(ctx context.Context, d *models.Dispute, event string) {
	rental, err := s.rentals.FindByID(d.RentalID)
	if err != nil {
		log.Printf("dispute %d: rental lookup for notification failed: %v", d.ID, err)
		return
	}
	owner, renter := rental.Parties()
	s.notifyParty(ctx, owner, d.ID, event)
	s.notifyParty(ctx, renter, d.ID, event)
}
