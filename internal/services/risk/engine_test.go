package risk

import (
	"testing"

	"rigshare/internal/config"
	"rigshare/internal/models"

	"github.com/stretchr/testify/assert"
)

func testBands() config.RiskBands {
	return config.RiskBands{Medium: 30, High: 60, Critical: 85}
}

func TestEngine_Score_Rules(t *testing.T) {
	engine := NewEngine(testBands())

	tests := []struct {
		name      string
		features  Features
		wantScore int
		wantRules []string
	}{
		{
			name:      "clean action scores zero",
			features:  Features{Amount: 50, AvgAmount30d: 45, HourOfDay: 14, DistanceFromLastKm: -1, AccountAge: AgeEstablished},
			wantScore: 0,
			wantRules: nil,
		},
		{
			name:      "amount triple the baseline",
			features:  Features{Amount: 150, AvgAmount30d: 50, HourOfDay: 14, DistanceFromLastKm: -1, AccountAge: AgeEstablished},
			wantScore: 10,
			wantRules: []string{"amount_anomaly"},
		},
		{
			name:      "amount ten times the baseline",
			features:  Features{Amount: 500, AvgAmount30d: 50, HourOfDay: 14, DistanceFromLastKm: -1, AccountAge: AgeEstablished},
			wantScore: 30,
			wantRules: []string{"amount_anomaly"},
		},
		{
			name:      "no history means no anomaly signal",
			features:  Features{Amount: 900, AvgAmount30d: 0, HourOfDay: 14, DistanceFromLastKm: -1, AccountAge: AgeEstablished},
			wantScore: 0,
			wantRules: nil,
		},
		{
			name:      "large amount tiers",
			features:  Features{Amount: 5000, HourOfDay: 14, DistanceFromLastKm: -1, AccountAge: AgeEstablished},
			wantScore: 20,
			wantRules: []string{"large_amount"},
		},
		{
			name:      "off hours",
			features:  Features{Amount: 50, HourOfDay: 3, DistanceFromLastKm: -1, AccountAge: AgeEstablished},
			wantScore: 10,
			wantRules: []string{"off_hours"},
		},
		{
			name:      "six in the morning is not off hours",
			features:  Features{Amount: 50, HourOfDay: 6, DistanceFromLastKm: -1, AccountAge: AgeEstablished},
			wantScore: 0,
			wantRules: nil,
		},
		{
			name:      "long location jump",
			features:  Features{Amount: 50, HourOfDay: 14, DistanceFromLastKm: 1200, AccountAge: AgeEstablished},
			wantScore: 20,
			wantRules: []string{"location_jump"},
		},
		{
			name:      "new device",
			features:  Features{Amount: 50, HourOfDay: 14, DistanceFromLastKm: -1, HasDevice: true, DeviceSeen: false, AccountAge: AgeEstablished},
			wantScore: 15,
			wantRules: []string{"new_device"},
		},
		{
			name:      "known device is silent",
			features:  Features{Amount: 50, HourOfDay: 14, DistanceFromLastKm: -1, HasDevice: true, DeviceSeen: true, AccountAge: AgeEstablished},
			wantScore: 0,
			wantRules: nil,
		},
		{
			name:      "day-old account",
			features:  Features{Amount: 50, HourOfDay: 14, DistanceFromLastKm: -1, AccountAge: AgeUnderDay},
			wantScore: 25,
			wantRules: []string{"new_account"},
		},
		{
			name:      "repeat offender",
			features:  Features{Amount: 50, HourOfDay: 14, DistanceFromLastKm: -1, AccountAge: AgeEstablished, PriorFlags: 3},
			wantScore: 25,
			wantRules: []string{"prior_flags"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, rules := engine.Score(tt.features)
			assert.Equal(t, tt.wantScore, score)
			assert.Equal(t, tt.wantRules, rules)
		})
	}
}

func TestEngine_Score_Deterministic(t *testing.T) {
	engine := NewEngine(testBands())
	f := Features{
		Amount:             6000,
		AvgAmount30d:       100,
		HourOfDay:          3,
		DistanceFromLastKm: 1500,
		HasDevice:          true,
		AccountAge:         AgeUnderDay,
		PriorFlags:         5,
	}

	firstScore, firstRules := engine.Score(f)
	for i := 0; i < 10; i++ {
		score, rules := engine.Score(f)
		assert.Equal(t, firstScore, score)
		assert.Equal(t, firstRules, rules)
	}
}

func TestEngine_Score_ClampedAt100(t *testing.T) {
	engine := NewEngine(testBands())

	// Every rule firing at its maximum: 30+20+10+20+15+25+25 = 145.
	score, rules := engine.Score(Features{
		Amount:             6000,
		AvgAmount30d:       100,
		HourOfDay:          3,
		DistanceFromLastKm: 1500,
		HasDevice:          true,
		DeviceSeen:         false,
		AccountAge:         AgeUnderDay,
		PriorFlags:         5,
	})
	assert.Equal(t, 100, score)
	assert.Len(t, rules, 7)
}

func TestEngine_LevelFor(t *testing.T) {
	engine := NewEngine(testBands())

	tests := []struct {
		score int
		want  models.FraudRiskLevel
	}{
		{0, models.RiskLevelLow},
		{29, models.RiskLevelLow},
		{30, models.RiskLevelMedium},
		{59, models.RiskLevelMedium},
		{60, models.RiskLevelHigh},
		{84, models.RiskLevelHigh},
		{85, models.RiskLevelCritical},
		{100, models.RiskLevelCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, engine.LevelFor(tt.score), "score %d", tt.score)
	}
}
