package dispute

import (
	"context"
	"log"

	domainerr "rigshare/internal/errors"
	"rigshare/internal/models"
	"rigshare/internal/services/processor"
)

// HandleWebhook applies one inbound processor event. Delivery is
// at-least-once, so the event id is deduplicated twice: a redis fast
// path and the unique index on webhook_events as the authority. An
// event only counts as seen once its state change has been applied —
// a delivery that fails mid-apply is run again when the processor
// retries it. Replays and unknown event types return nil so the
// processor never retries them.
func (s *Service) HandleWebhook(ctx context.Context, payload processor.WebhookPayload) error {
	if payload.EventID == "" || payload.DisputeID == "" {
		return domainerr.ErrValidation.WithMessage("webhook is missing event_id or dispute_id")
	}

	if s.cache != nil {
		seen, err := s.cache.WebhookSeen(ctx, payload.EventID)
		if err != nil {
			log.Printf("webhook %s: redis dedupe unavailable, falling back to database: %v", payload.EventID, err)
		} else if seen {
			return nil
		}
	}

	first, err := s.webhooks.FirstSeen(&models.WebhookEvent{
		EventID:           payload.EventID,
		EventType:         payload.EventType,
		ExternalDisputeID: payload.DisputeID,
		Payload: models.JSON{
			"event_type": payload.EventType,
			"status":     payload.Status,
			"outcome":    payload.Outcome,
			"reason":     payload.Reason,
			"amount":     payload.Amount,
			"currency":   payload.Currency,
		},
		ReceivedAt: s.now(),
	})
	if err != nil {
		return err
	}
	if !first {
		prior, err := s.webhooks.FindByEventID(payload.EventID)
		if err != nil {
			return err
		}
		if prior.Processed {
			log.Printf("webhook %s: replay ignored", payload.EventID)
			return nil
		}
		// An earlier delivery failed before its state change applied;
		// process this retry as if it were the first.
		log.Printf("webhook %s: retrying delivery that failed mid-apply", payload.EventID)
	}

	d, err := s.disputes.FindByExternalID(payload.DisputeID)
	if err != nil {
		// A dispute we do not know about is the processor's problem,
		// not a delivery failure.
		log.Printf("webhook %s: no dispute with external id %s, ignored", payload.EventID, payload.DisputeID)
		return s.markWebhookProcessed(ctx, payload.EventID)
	}

	switch payload.EventType {
	case processor.EventDisputeResolved:
		if err := s.applyExternalResolution(ctx, d.ID, payload.Outcome, payload.Amount, payload.Reason); err != nil {
			return err
		}
	case processor.EventDisputeClosed:
		if err := s.applyExternalClose(ctx, d.ID, payload.Reason); err != nil {
			return err
		}
	case processor.EventDisputeUpdated, processor.EventDisputeCreated:
		log.Printf("webhook %s: external dispute %s now %s", payload.EventID, payload.DisputeID, payload.Status)
	default:
		log.Printf("webhook %s: unknown event type %q ignored", payload.EventID, payload.EventType)
	}
	return s.markWebhookProcessed(ctx, payload.EventID)
}

// markWebhookProcessed records the terminal outcome of a delivery.
// Until it runs, a retry of the same event id is applied again.
func (s *Service) markWebhookProcessed(ctx context.Context, eventID string) error {
	if err := s.webhooks.MarkProcessed(eventID, s.now()); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.MarkWebhookSeen(ctx, eventID); err != nil {
			log.Printf("webhook %s: redis mark failed: %v", eventID, err)
		}
	}
	return nil
}

// SyncExternalDispute pulls the processor's current view of an escalated
// dispute and reconciles local state. Safe to call any number of times.
func (s *Service) SyncExternalDispute(ctx context.Context, externalID string) (*models.Dispute, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.policy.ProcessorTimeout)
	defer cancel()
	ext, err := s.proc.GetDispute(callCtx, externalID)
	if err != nil {
		return nil, domainerr.ErrExternalService.WithMessage("dispute sync failed: %v", err)
	}

	d, err := s.disputes.FindByExternalID(externalID)
	if err != nil {
		return nil, err
	}

	switch ext.Status {
	case processor.EventDisputeResolved:
		if err := s.applyExternalResolution(ctx, d.ID, ext.Outcome, ext.Amount, "reconciled from processor"); err != nil {
			return nil, err
		}
	case processor.EventDisputeClosed:
		if err := s.applyExternalClose(ctx, d.ID, "closed by processor"); err != nil {
			return nil, err
		}
	default:
		// Still open on the processor side; nothing to reconcile.
		return d, nil
	}
	return s.disputes.FindByID(d.ID)
}

// applyExternalResolution is the reducer for a processor RESOLVED event.
// A buyer-favour outcome applies the refund; the RefundTxnID guard makes
// the refund single-shot even if the event slips past the dedupe.
func (s *Service) applyExternalResolution(ctx context.Context, disputeID uint, outcome string, amount float64, reason string) error {
	s.lock(disputeID)
	d, err := s.disputes.FindByID(disputeID)
	if err != nil {
		s.unlock(disputeID)
		return err
	}
	if d.Status == models.DisputeStatusResolved {
		s.unlock(disputeID)
		return nil
	}
	if d.Status.Terminal() {
		s.unlock(disputeID)
		log.Printf("dispute %d: processor resolution arrived after local close, ignored", disputeID)
		return nil
	}

	needRefund := outcome == processor.OutcomeBuyerFavor &&
		amount > 0 &&
		d.PaymentID != nil &&
		d.RefundTxnID == nil

	var payment *models.Payment
	if needRefund {
		payment, err = s.payments.FindByID(*d.PaymentID)
		if err != nil {
			s.unlock(disputeID)
			return err
		}
	}
	s.unlock(disputeID)

	var txnID string
	if needRefund {
		txnID, err = s.refund(ctx, payment, amount, reason)
		if err != nil {
			return err
		}
	}

	s.lock(disputeID)
	defer s.unlock(disputeID)

	d, err = s.disputes.FindByID(disputeID)
	if err != nil {
		return err
	}
	if d.Status.Terminal() {
		if txnID != "" {
			log.Printf("dispute %d reached a terminal state during external resolution; refund txn %s needs reconciliation", disputeID, txnID)
		}
		return nil
	}

	now := s.now()
	kind := resolutionKindFor(outcome)
	arbitration := ArbitrationActor
	d.Status = models.DisputeStatusResolved
	d.ResolutionKind = &kind
	d.ResolutionNotes = reason
	d.ResolvedBy = &arbitration
	d.ResolvedAt = &now
	if txnID != "" {
		d.RefundAmount = &amount
		d.RefundTxnID = &txnID
	}
	if err := s.disputes.UpdateCAS(d); err != nil {
		return err
	}
	s.invalidate(ctx, disputeID)
	s.notifyParties(ctx, d, "dispute resolved by payment processor")
	return nil
}

func (s *Service) applyExternalClose(ctx context.Context, disputeID uint, reason string) error {
	s.lock(disputeID)
	defer s.unlock(disputeID)

	d, err := s.disputes.FindByID(disputeID)
	if err != nil {
		return err
	}
	if d.Status.Terminal() {
		return nil
	}
	if reason == "" {
		reason = "closed by processor"
	}
	_, err = s.closeLocked(ctx, d, ArbitrationActor, reason)
	return err
}

func resolutionKindFor(outcome string) string {
	if outcome == processor.OutcomeBuyerFavor {
		return string(ResolutionRefund)
	}
	return string(ResolutionNoAction)
}
