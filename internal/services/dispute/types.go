package dispute

import (
	"rigshare/internal/models"
)

// ResolutionKind tags the resolution variant. The state machine
// dispatches on the kind; only refunds touch the payment processor.
type ResolutionKind string

const (
	ResolutionRefund      ResolutionKind = "refund"
	ResolutionNoAction    ResolutionKind = "no_action"
	ResolutionReplacement ResolutionKind = "replacement"
)

// Resolution is the tagged variant describing how a dispute ends.
type Resolution struct {
	Kind              ResolutionKind
	RefundAmount      float64
	ReplacementToolID uint
	Notes             string
}

// ArbitrationActor is the synthetic actor id used when the automated
// arbitration path resolves a dispute.
const ArbitrationActor uint = 0

// EvidenceUpload carries one attachment supplied with a dispute.
type EvidenceUpload struct {
	FileName    string
	ContentType string
	Description string
	Data        []byte
}

// CreateDisputeRequest is the input for opening a dispute.
type CreateDisputeRequest struct {
	RentalID      uint
	PaymentID     *uint
	InitiatorID   uint
	Type          models.DisputeType
	Category      models.DisputeCategory
	Title         string
	Description   string
	ClaimedAmount float64
	Evidence      []EvidenceUpload
}

// transitions is the full edge set of the dispute state machine. Any
// move not listed here is rejected.
var transitions = map[models.DisputeStatus][]models.DisputeStatus{
	models.DisputeStatusOpened: {
		models.DisputeStatusUnderReview,
		models.DisputeStatusClosed,
	},
	models.DisputeStatusUnderReview: {
		models.DisputeStatusResolved,
		models.DisputeStatusEscalated,
		models.DisputeStatusClosed,
	},
	models.DisputeStatusEscalated: {
		models.DisputeStatusResolved,
		models.DisputeStatusClosed,
	},
}

func canTransition(from, to models.DisputeStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
