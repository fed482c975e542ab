// Package processor models the external payment processor contract:
// refunds, dispute escalation, and the inbound webhook payload. The
// gateway itself lives outside this service.
package processor

import (
	"context"
	"time"
)

// Processor is the escalation and refund contract. Implementations must
// honor the context deadline; callers never hold entity locks across
// these calls.
type Processor interface {
	// Refund pushes amount back to the payer of paymentRef and returns
	// the processor's transaction id.
	Refund(ctx context.Context, paymentRef string, amount float64, reason string) (string, error)
	// EscalateDispute opens a dispute case with the processor and
	// returns its external dispute id.
	EscalateDispute(ctx context.Context, disputeRef string, summary DisputeSummary) (string, error)
	// GetDispute fetches the processor's current view of an escalated
	// dispute, for reconciliation.
	GetDispute(ctx context.Context, externalID string) (*ExternalDispute, error)
}

// DisputeSummary is what we hand the processor when escalating.
type DisputeSummary struct {
	PaymentRef    string  `json:"payment_ref"`
	ClaimedAmount float64 `json:"claimed_amount"`
	Currency      string  `json:"currency"`
	Reason        string  `json:"reason"`
}

// ExternalDispute is the processor's view of an escalated case.
type ExternalDispute struct {
	ExternalID string  `json:"external_id"`
	Status     string  `json:"status"`
	Outcome    string  `json:"outcome"`
	Amount     float64 `json:"amount"`
	Currency   string  `json:"currency"`
}

// Webhook event types the processor delivers. Anything else is logged
// and ignored.
const (
	EventDisputeCreated  = "DISPUTE_CREATED"
	EventDisputeUpdated  = "DISPUTE_UPDATED"
	EventDisputeResolved = "RESOLVED"
	EventDisputeClosed   = "CLOSED"
)

// Webhook outcomes on a RESOLVED event.
const (
	OutcomeBuyerFavor  = "resolved_buyer_favour"
	OutcomeSellerFavor = "resolved_seller_favour"
)

// WebhookPayload is the inbound processor event. Delivery is
// at-least-once; EventID is the dedupe key.
type WebhookPayload struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	DisputeID string    `json:"dispute_id"`
	Status    string    `json:"status"`
	Outcome   string    `json:"outcome"`
	Reason    string    `json:"reason"`
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency"`
	EventTime time.Time `json:"event_time"`
}
