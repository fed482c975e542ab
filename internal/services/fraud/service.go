// Package fraud orchestrates the risk engine, velocity limiter, and
// suspicious-activity detector into one decision per monitored action.
//
// A rejection here is a first-class outcome, not an error: every
// decision (allow, flag, or block) is persisted as a FraudCheck so the
// audit trail is complete.
package fraud

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	domainerr "rigshare/internal/errors"
	"rigshare/internal/models"
	"rigshare/internal/repositories"
	"rigshare/internal/services/notification"
	"rigshare/internal/services/risk"
	"rigshare/internal/services/suspicion"
)

type Service struct {
	engine   *risk.Engine
	limiter  limiter
	detector detector
	checks   repositories.FraudCheckRepository
	users    repositories.UserRepository
	payments repositories.PaymentRepository
	notifier notification.Notifier
	now      func() time.Time
}

func NewService(
	engine *risk.Engine,
	limiter limiter,
	detector detector,
	checks repositories.FraudCheckRepository,
	users repositories.UserRepository,
	payments repositories.PaymentRepository,
	notifier notification.Notifier,
) *Service {
	if engine == nil || limiter == nil || detector == nil {
		panic("engine, limiter and detector are required")
	}
	return &Service{
		engine:   engine,
		limiter:  limiter,
		detector: detector,
		checks:   checks,
		users:    users,
		payments: payments,
		notifier: notifier,
		now:      time.Now,
	}
}

// EvaluatePayment gates one payment attempt. Velocity goes first because
// it is the cheapest check and failing it makes scoring pointless.
func (s *Service) EvaluatePayment(ctx context.Context, req PaymentCheckRequest) (*models.FraudCheck, error) {
	if req.At.IsZero() {
		req.At = s.now()
	}

	if err := s.limiter.CheckAll(ctx, req.UserID, req.Amount); err != nil {
		if errors.Is(err, domainerr.ErrLimitExceeded) {
			return s.rejectOnVelocity(ctx, req, err)
		}
		return nil, err
	}

	features, err := s.buildFeatures(req)
	if err != nil {
		return nil, err
	}
	score, rules := s.engine.Score(features)

	findings, err := s.detector.InspectPayment(ctx, suspicion.PaymentActivity{
		UserID:  req.UserID,
		PayeeID: req.PayeeID,
		Amount:  req.Amount,
		At:      req.At,
	})
	if err != nil {
		return nil, err
	}
	for _, f := range findings {
		score += f.Score
		rules = append(rules, string(f.Type))
	}
	if score > 100 {
		score = 100
	}

	check := &models.FraudCheck{
		UserID:            req.UserID,
		PaymentID:         req.PaymentID,
		CheckType:         models.FraudCheckPayment,
		RiskScore:         score,
		Rules:             rules,
		IPAddress:         req.IPAddress,
		DeviceFingerprint: req.DeviceFingerprint,
	}
	s.decide(ctx, check)

	if err := s.checks.Create(check); err != nil {
		return nil, err
	}

	if req.Latitude != nil && req.Longitude != nil {
		if err := s.users.UpdateLastLocation(req.UserID, *req.Latitude, *req.Longitude); err != nil {
			log.Printf("failed to update last location for user %d: %v", req.UserID, err)
		}
	}
	return check, nil
}

// EvaluateSearch monitors a location-bounded search against another
// user. Searches carry no velocity budget; the decision comes from the
// pattern detector alone.
func (s *Service) EvaluateSearch(ctx context.Context, req SearchCheckRequest) (*models.FraudCheck, error) {
	if req.At.IsZero() {
		req.At = s.now()
	}

	findings, err := s.detector.InspectSearch(ctx, suspicion.SearchActivity{
		SearcherID:   req.UserID,
		TargetUserID: req.TargetUserID,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		At:           req.At,
	})
	if err != nil {
		return nil, err
	}

	score := 0
	var rules models.StringList
	for _, f := range findings {
		score += f.Score
		rules = append(rules, string(f.Type))
	}
	if score > 100 {
		score = 100
	}

	check := &models.FraudCheck{
		UserID:            req.UserID,
		CheckType:         models.FraudCheckSearch,
		RiskScore:         score,
		Rules:             rules,
		IPAddress:         req.IPAddress,
		DeviceFingerprint: req.DeviceFingerprint,
	}
	s.decide(ctx, check)

	if err := s.checks.Create(check); err != nil {
		return nil, err
	}
	return check, nil
}

// Review records a manual review verdict. Only the review fields of a
// decided check may change.
func (s *Service) Review(checkID, reviewerID uint, approve bool, notes string) (*models.FraudCheck, error) {
	check, err := s.checks.FindByID(checkID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	check.ReviewedBy = &reviewerID
	check.ReviewedAt = &now
	check.ReviewNotes = notes
	if approve {
		check.Status = models.FraudCheckApproved
	} else {
		check.Status = models.FraudCheckRejected
	}
	if err := s.checks.UpdateReview(check); err != nil {
		return nil, err
	}
	return check, nil
}

// ChecksByUser lists a user's decision history.
func (s *Service) ChecksByUser(userID uint, limit, offset int) ([]models.FraudCheck, error) {
	return s.checks.ListByUser(userID, limit, offset)
}

// decide bands the score and applies side effects. Notification failures
// are logged, never propagated: the decision stands regardless.
func (s *Service) decide(ctx context.Context, check *models.FraudCheck) {
	level := s.engine.LevelFor(check.RiskScore)
	check.RiskLevel = level

	switch level {
	case models.RiskLevelCritical:
		check.Status = models.FraudCheckRejected
		check.PaymentBlocked = check.CheckType == models.FraudCheckPayment
		check.UserFlagged = true
		check.AdminNotified = true
	case models.RiskLevelHigh:
		check.Status = models.FraudCheckRejected
		check.PaymentBlocked = check.CheckType == models.FraudCheckPayment
		check.UserFlagged = true
	case models.RiskLevelMedium:
		check.Status = models.FraudCheckFlagged
	default:
		check.Status = models.FraudCheckApproved
	}

	if check.UserFlagged {
		if err := s.users.Flag(check.UserID); err != nil {
			log.Printf("failed to flag user %d: %v", check.UserID, err)
		}
		if err := s.notifier.NotifyUserFlagged(ctx, check.UserID, "high fraud risk score"); err != nil {
			log.Printf("user-flagged notification failed: %v", err)
		}
	}
	if check.AdminNotified {
		body := fmt.Sprintf("user %d scored %d on a %s check", check.UserID, check.RiskScore, check.CheckType)
		if err := s.notifier.NotifyAdmin(ctx, "critical fraud risk", body); err != nil {
			log.Printf("admin notification failed: %v", err)
		}
	}
}

// rejectOnVelocity short-circuits to a Rejected check without running
// the scoring pipeline.
func (s *Service) rejectOnVelocity(ctx context.Context, req PaymentCheckRequest, cause error) (*models.FraudCheck, error) {
	check := &models.FraudCheck{
		UserID:            req.UserID,
		PaymentID:         req.PaymentID,
		CheckType:         models.FraudCheckPayment,
		RiskLevel:         models.RiskLevelHigh,
		RiskScore:         100,
		Rules:             models.StringList{"velocity_limit"},
		Status:            models.FraudCheckRejected,
		PaymentBlocked:    true,
		IPAddress:         req.IPAddress,
		DeviceFingerprint: req.DeviceFingerprint,
	}
	if err := s.checks.Create(check); err != nil {
		return nil, err
	}
	log.Printf("payment blocked for user %d: %v", req.UserID, cause)
	return check, nil
}

func (s *Service) buildFeatures(req PaymentCheckRequest) (risk.Features, error) {
	f := risk.Features{
		Amount:             req.Amount,
		HourOfDay:          req.At.Hour(),
		DistanceFromLastKm: -1,
		HasDevice:          req.DeviceFingerprint != "",
	}

	avg, err := s.payments.AverageAmount(req.UserID, req.At.Add(-30*24*time.Hour))
	if err != nil {
		return f, err
	}
	f.AvgAmount30d = avg

	seen, err := s.checks.DeviceSeen(req.UserID, req.DeviceFingerprint)
	if err != nil {
		return f, err
	}
	f.DeviceSeen = seen

	user, err := s.users.FindByID(req.UserID)
	if err != nil {
		return f, err
	}
	f.PriorFlags = user.FlagCount
	f.AccountAge = ageBucket(req.At.Sub(user.CreatedAt))

	if req.Latitude != nil && req.Longitude != nil &&
		user.LastKnownLat != nil && user.LastKnownLng != nil {
		f.DistanceFromLastKm = suspicion.HaversineKm(
			*user.LastKnownLat, *user.LastKnownLng, *req.Latitude, *req.Longitude)
	}
	return f, nil
}

func ageBucket(age time.Duration) risk.AccountAge {
	switch {
	case age < 24*time.Hour:
		return risk.AgeUnderDay
	case age < 7*24*time.Hour:
		return risk.AgeUnderWeek
	case age < 30*24*time.Hour:
		return risk.AgeUnderMonth
	}
	return risk.AgeEstablished
}
