package config

import "time"

// RiskBands holds the score thresholds that map a risk score onto a risk
// level. Scores below Medium are low risk; scores at or above Critical
// trigger admin notification.
type RiskBands struct {
	Medium   int
	High     int
	Critical int
}

// VelocityCeiling is the configured ceiling for one limit window.
type VelocityCeiling struct {
	MaxAmount float64
	MaxCount  int
}

// TriangulationPolicy controls the location-probing detector.
type TriangulationPolicy struct {
	MinPoints     int
	MinDistanceKm float64
	Window        time.Duration
}

// RapidPaymentPolicy controls the rapid-transaction detector.
type RapidPaymentPolicy struct {
	MinCount int
	Window   time.Duration
}

// Policy bundles every tunable used by the trust and risk engine.
// Values come from the environment; nothing here is fixed law.
type Policy struct {
	RiskBands RiskBands

	// Velocity ceilings keyed by limit type name (hourly, daily, ...).
	VelocityCeilings map[string]VelocityCeiling

	ClosureExpiry    time.Duration
	DedupeWindow     time.Duration
	ProcessorTimeout time.Duration

	Triangulation TriangulationPolicy
	RapidPayments RapidPaymentPolicy

	// RoundAmountRun is how many consecutive round payments trip the
	// round-amount detector.
	RoundAmountRun int
}

// LoadPolicy builds the engine policy from the environment.
func LoadPolicy() Policy {
	return Policy{
		RiskBands: RiskBands{
			Medium:   GetIntEnv("RISK_BAND_MEDIUM", 30),
			High:     GetIntEnv("RISK_BAND_HIGH", 60),
			Critical: GetIntEnv("RISK_BAND_CRITICAL", 85),
		},
		VelocityCeilings: map[string]VelocityCeiling{
			"hourly": {
				MaxAmount: GetFloatEnv("VELOCITY_HOURLY_MAX_AMOUNT", 1000),
				MaxCount:  GetIntEnv("VELOCITY_HOURLY_MAX_COUNT", 10),
			},
			"daily": {
				MaxAmount: GetFloatEnv("VELOCITY_DAILY_MAX_AMOUNT", 5000),
				MaxCount:  GetIntEnv("VELOCITY_DAILY_MAX_COUNT", 50),
			},
			"weekly": {
				MaxAmount: GetFloatEnv("VELOCITY_WEEKLY_MAX_AMOUNT", 20000),
				MaxCount:  GetIntEnv("VELOCITY_WEEKLY_MAX_COUNT", 200),
			},
			"monthly": {
				MaxAmount: GetFloatEnv("VELOCITY_MONTHLY_MAX_AMOUNT", 50000),
				MaxCount:  GetIntEnv("VELOCITY_MONTHLY_MAX_COUNT", 500),
			},
		},
		ClosureExpiry:    GetDurationEnv("MUTUAL_CLOSURE_EXPIRY", 72*time.Hour),
		DedupeWindow:     GetDurationEnv("SUSPICION_DEDUPE_WINDOW", 30*24*time.Hour),
		ProcessorTimeout: GetDurationEnv("PROCESSOR_TIMEOUT", 15*time.Second),
		Triangulation: TriangulationPolicy{
			MinPoints:     GetIntEnv("TRIANGULATION_MIN_POINTS", 3),
			MinDistanceKm: GetFloatEnv("TRIANGULATION_MIN_DISTANCE_KM", 1.0),
			Window:        GetDurationEnv("TRIANGULATION_WINDOW", 24*time.Hour),
		},
		RapidPayments: RapidPaymentPolicy{
			MinCount: GetIntEnv("RAPID_PAYMENTS_MIN_COUNT", 5),
			Window:   GetDurationEnv("RAPID_PAYMENTS_WINDOW", 10*time.Minute),
		},
		RoundAmountRun: GetIntEnv("ROUND_AMOUNT_RUN", 4),
	}
}
