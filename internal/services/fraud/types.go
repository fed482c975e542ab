package fraud

import (
	"context"
	"time"

	"rigshare/internal/services/suspicion"
)

// PaymentCheckRequest is one payment attempt to gate.
type PaymentCheckRequest struct {
	UserID            uint
	PayeeID           uint
	PaymentID         *uint
	Amount            float64
	IPAddress         string
	DeviceFingerprint string
	Latitude          *float64
	Longitude         *float64
	At                time.Time
}

// SearchCheckRequest is one location-bounded search to monitor.
type SearchCheckRequest struct {
	UserID            uint
	TargetUserID      uint
	Latitude          float64
	Longitude         float64
	IPAddress         string
	DeviceFingerprint string
	At                time.Time
}

// limiter is the slice of the velocity limiter the service consumes.
type limiter interface {
	CheckAll(ctx context.Context, userID uint, amount float64) error
}

// detector is the slice of the suspicious-activity detector consumed.
type detector interface {
	InspectPayment(ctx context.Context, act suspicion.PaymentActivity) ([]suspicion.Finding, error)
	InspectSearch(ctx context.Context, act suspicion.SearchActivity) ([]suspicion.Finding, error)
}
