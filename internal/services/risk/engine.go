// Package risk implements the scoring engine for monitored actions.
//
// The engine is a pure function: the same feature vector always yields
// the same score and rule set. Historical context (averages, device
// novelty, last location) is gathered by the caller and passed in, so
// scoring itself does no I/O and reads no clock.
//
// Each rule contributes a non-negative delta; deltas are additive and
// the total is clamped to [0, 100]. Triggered rules are recorded by name
// for auditability and manual review.
package risk

import (
	"rigshare/internal/config"
	"rigshare/internal/models"
)

// Features is the input vector for one scored action.
type Features struct {
	Amount float64
	// AvgAmount30d is the user's average payment over the last 30 days;
	// zero means no history.
	AvgAmount30d float64
	// HourOfDay is the local hour the action happened, 0-23.
	HourOfDay int
	// DistanceFromLastKm is the haversine distance from the user's last
	// known location; negative means unknown.
	DistanceFromLastKm float64
	// DeviceSeen is whether this device fingerprint has appeared for
	// this user before.
	DeviceSeen bool
	HasDevice  bool
	AccountAge AccountAge
	PriorFlags int
}

// AccountAge buckets the account's age at evaluation time.
type AccountAge int

const (
	AgeUnderDay AccountAge = iota
	AgeUnderWeek
	AgeUnderMonth
	AgeEstablished
)

type rule struct {
	name  string
	delta func(Features) int
}

// Engine scores feature vectors against a fixed rule table.
type Engine struct {
	bands config.RiskBands
	rules []rule
}

// NewEngine builds the engine with the given band policy.
func NewEngine(bands config.RiskBands) *Engine {
	return &Engine{
		bands: bands,
		rules: []rule{
			{"amount_anomaly", ruleAmountAnomaly},
			{"large_amount", ruleLargeAmount},
			{"off_hours", ruleOffHours},
			{"location_jump", ruleLocationJump},
			{"new_device", ruleNewDevice},
			{"new_account", ruleNewAccount},
			{"prior_flags", rulePriorFlags},
		},
	}
}

// Score returns the clamped risk score and the names of the rules that
// contributed to it.
func (e *Engine) Score(f Features) (int, []string) {
	total := 0
	var triggered []string
	for _, r := range e.rules {
		if d := r.delta(f); d > 0 {
			total += d
			triggered = append(triggered, r.name)
		}
	}
	if total > 100 {
		total = 100
	}
	if total < 0 {
		total = 0
	}
	return total, triggered
}

// LevelFor maps a score onto the policy bands.
func (e *Engine) LevelFor(score int) models.FraudRiskLevel {
	switch {
	case score >= e.bands.Critical:
		return models.RiskLevelCritical
	case score >= e.bands.High:
		return models.RiskLevelHigh
	case score >= e.bands.Medium:
		return models.RiskLevelMedium
	}
	return models.RiskLevelLow
}

// An amount far above the user's own baseline is the strongest single
// signal we have for account takeover.
func ruleAmountAnomaly(f Features) int {
	if f.AvgAmount30d <= 0 {
		return 0
	}
	ratio := f.Amount / f.AvgAmount30d
	switch {
	case ratio >= 10:
		return 30
	case ratio >= 5:
		return 20
	case ratio >= 3:
		return 10
	}
	return 0
}

func ruleLargeAmount(f Features) int {
	switch {
	case f.Amount >= 5000:
		return 20
	case f.Amount >= 1000:
		return 10
	}
	return 0
}

// Fraud automation clusters in the dead hours.
func ruleOffHours(f Features) int {
	if f.HourOfDay >= 2 && f.HourOfDay < 6 {
		return 10
	}
	return 0
}

func ruleLocationJump(f Features) int {
	switch {
	case f.DistanceFromLastKm >= 1000:
		return 20
	case f.DistanceFromLastKm >= 200:
		return 10
	}
	return 0
}

func ruleNewDevice(f Features) int {
	if f.HasDevice && !f.DeviceSeen {
		return 15
	}
	return 0
}

func ruleNewAccount(f Features) int {
	switch f.AccountAge {
	case AgeUnderDay:
		return 25
	case AgeUnderWeek:
		return 15
	case AgeUnderMonth:
		return 5
	}
	return 0
}

func rulePriorFlags(f Features) int {
	switch {
	case f.PriorFlags >= 3:
		return 25
	case f.PriorFlags >= 1:
		return 10
	}
	return 0
}
