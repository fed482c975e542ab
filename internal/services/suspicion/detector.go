// Package suspicion pattern-matches recent transaction and search
// history for abusive behavior. Detection rules are stateless; the
// persistent SuspiciousActivity records carry dedupe state (a recurring
// match bumps Frequency instead of creating a new row).
package suspicion

import (
	"context"
	"fmt"
	"math"
	"time"

	"rigshare/internal/config"
	"rigshare/internal/models"
	"rigshare/internal/repositories"
)

// Finding is one matched pattern, carrying the score delta it
// contributes to the combined fraud decision.
type Finding struct {
	Type        models.SuspiciousActivityType
	Description string
	Score       int
	RelatedUser *uint
}

// PaymentActivity is the payment view the detector inspects.
type PaymentActivity struct {
	UserID  uint
	PayeeID uint
	Amount  float64
	At      time.Time
}

// SearchActivity is one location-bounded search against another user.
type SearchActivity struct {
	SearcherID   uint
	TargetUserID uint
	Latitude     float64
	Longitude    float64
	At           time.Time
}

// Detector runs the pattern rules and records results.
type Detector struct {
	payments repositories.PaymentRepository
	searches repositories.SearchEventRepository
	records  repositories.SuspiciousActivityRepository
	policy   config.Policy
}

func NewDetector(
	payments repositories.PaymentRepository,
	searches repositories.SearchEventRepository,
	records repositories.SuspiciousActivityRepository,
	policy config.Policy,
) *Detector {
	return &Detector{
		payments: payments,
		searches: searches,
		records:  records,
		policy:   policy,
	}
}

// InspectPayment evaluates the payment patterns and persists any match.
// The payment under evaluation is not yet stored, so history reads do
// not count it against itself.
func (d *Detector) InspectPayment(ctx context.Context, act PaymentActivity) ([]Finding, error) {
	var findings []Finding

	recent, err := d.payments.RecentByUser(act.UserID, act.At.Add(-d.policy.RapidPayments.Window))
	if err != nil {
		return nil, err
	}
	if f := d.rapidPayments(recent); f != nil {
		findings = append(findings, *f)
	}
	if f := d.roundAmounts(act, recent); f != nil {
		findings = append(findings, *f)
	}

	pair, err := d.payments.RecentBetween(act.UserID, act.PayeeID, act.At.Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}
	if f := d.pairCycling(act, pair); f != nil {
		findings = append(findings, *f)
	}

	for i := range findings {
		if err := d.record(act.UserID, act.At, &findings[i]); err != nil {
			return nil, err
		}
	}
	return findings, nil
}

// InspectSearch records the search and evaluates location triangulation
// against the recent window.
func (d *Detector) InspectSearch(ctx context.Context, act SearchActivity) ([]Finding, error) {
	if err := d.searches.Create(&models.SearchEvent{
		SearcherID:   act.SearcherID,
		TargetUserID: act.TargetUserID,
		Latitude:     act.Latitude,
		Longitude:    act.Longitude,
		SearchedAt:   act.At,
	}); err != nil {
		return nil, err
	}

	since := act.At.Add(-d.policy.Triangulation.Window)
	history, err := d.searches.RecentByPair(act.SearcherID, act.TargetUserID, since)
	if err != nil {
		return nil, err
	}

	f := d.triangulation(act, history)
	if f == nil {
		return nil, nil
	}
	if err := d.record(act.SearcherID, act.At, f); err != nil {
		return nil, err
	}
	return []Finding{*f}, nil
}

// record merges the finding into an open record of the same type inside
// the dedupe window, or creates a fresh Active one.
func (d *Detector) record(userID uint, at time.Time, f *Finding) error {
	existing, err := d.records.FindOpenByUserAndType(userID, f.Type, at.Add(-d.policy.DedupeWindow))
	if err != nil {
		return err
	}
	if existing != nil {
		existing.Frequency++
		existing.LastDetectedAt = at
		existing.Description = f.Description
		if f.Score > existing.Score {
			existing.Score = f.Score
		}
		return d.records.Update(existing)
	}
	return d.records.Create(&models.SuspiciousActivity{
		UserID:          userID,
		Type:            f.Type,
		Description:     f.Description,
		Score:           f.Score,
		Frequency:       1,
		FirstDetectedAt: at,
		LastDetectedAt:  at,
		RelatedUserID:   f.RelatedUser,
		Status:          models.SuspicionActive,
	})
}

func (d *Detector) rapidPayments(recent []models.Payment) *Finding {
	// The payment being evaluated counts as one more.
	if len(recent)+1 < d.policy.RapidPayments.MinCount {
		return nil
	}
	return &Finding{
		Type: models.SuspicionRapidPayments,
		Description: fmt.Sprintf("%d payments within %s",
			len(recent)+1, d.policy.RapidPayments.Window),
		Score: 20,
	}
}

func (d *Detector) roundAmounts(act PaymentActivity, recent []models.Payment) *Finding {
	if !isRound(act.Amount) {
		return nil
	}
	run := 1
	for _, p := range recent {
		if isRound(p.Amount) {
			run++
		}
	}
	if run < d.policy.RoundAmountRun {
		return nil
	}
	return &Finding{
		Type:        models.SuspicionRoundAmounts,
		Description: fmt.Sprintf("%d consecutive round-amount payments", run),
		Score:       15,
	}
}

func (d *Detector) pairCycling(act PaymentActivity, pair []models.Payment) *Finding {
	// Back-and-forth transfers: money moving in both directions between
	// the same two users inside a day.
	var toPayee, fromPayee int
	for _, p := range pair {
		if p.PayerID == act.UserID {
			toPayee++
		} else {
			fromPayee++
		}
	}
	if toPayee < 2 || fromPayee < 2 {
		return nil
	}
	related := act.PayeeID
	return &Finding{
		Type: models.SuspicionPairCycling,
		Description: fmt.Sprintf("%d payments cycled between users %d and %d in 24h",
			toPayee+fromPayee, act.UserID, act.PayeeID),
		Score:       25,
		RelatedUser: &related,
	}
}

// triangulation requires at least MinPoints distinct search points, all
// pairwise at least MinDistanceKm apart, inside the window. history
// already includes the search being evaluated.
func (d *Detector) triangulation(act SearchActivity, history []models.SearchEvent) *Finding {
	pts := distinctPoints(history)
	if len(pts) < d.policy.Triangulation.MinPoints {
		return nil
	}

	spread := furthestSpreadPoints(pts, d.policy.Triangulation.MinDistanceKm)
	if len(spread) < d.policy.Triangulation.MinPoints {
		return nil
	}

	related := act.TargetUserID
	return &Finding{
		Type: models.SuspicionTriangulation,
		Description: fmt.Sprintf("%d searches against user %d from points >= %.1f km apart within %s",
			len(spread), act.TargetUserID, d.policy.Triangulation.MinDistanceKm, d.policy.Triangulation.Window),
		Score:       40,
		RelatedUser: &related,
	}
}

type point struct{ lat, lng float64 }

func distinctPoints(events []models.SearchEvent) []point {
	seen := make(map[point]bool)
	var pts []point
	for _, e := range events {
		p := point{e.Latitude, e.Longitude}
		if !seen[p] {
			seen[p] = true
			pts = append(pts, p)
		}
	}
	return pts
}

// furthestSpreadPoints greedily collects points that are pairwise at
// least minKm apart. Greedy is fine here: search histories inside one
// window are tiny.
func furthestSpreadPoints(pts []point, minKm float64) []point {
	var spread []point
	for _, p := range pts {
		ok := true
		for _, q := range spread {
			if HaversineKm(p.lat, p.lng, q.lat, q.lng) < minKm {
				ok = false
				break
			}
		}
		if ok {
			spread = append(spread, p)
		}
	}
	return spread
}

func isRound(amount float64) bool {
	if amount <= 0 {
		return false
	}
	return math.Mod(amount, 100) == 0
}
