package suspicion

import (
	"context"
	"testing"
	"time"

	"rigshare/internal/config"
	"rigshare/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memPayments struct {
	payments []models.Payment
}

func (r *memPayments) Create(p *models.Payment) error {
	r.payments = append(r.payments, *p)
	return nil
}
func (r *memPayments) FindByID(id uint) (*models.Payment, error) {
	for i := range r.payments {
		if r.payments[i].ID == id {
			return &r.payments[i], nil
		}
	}
	return nil, nil
}
func (r *memPayments) Update(*models.Payment) error { return nil }
func (r *memPayments) RecentByUser(userID uint, since time.Time) ([]models.Payment, error) {
	var out []models.Payment
	for _, p := range r.payments {
		if p.PayerID == userID && !p.CreatedAt.Before(since) {
			out = append(out, p)
		}
	}
	return out, nil
}
func (r *memPayments) RecentBetween(userA, userB uint, since time.Time) ([]models.Payment, error) {
	var out []models.Payment
	for _, p := range r.payments {
		both := (p.PayerID == userA && p.PayeeID == userB) || (p.PayerID == userB && p.PayeeID == userA)
		if both && !p.CreatedAt.Before(since) {
			out = append(out, p)
		}
	}
	return out, nil
}
func (r *memPayments) AverageAmount(userID uint, since time.Time) (float64, error) {
	var sum float64
	var n int
	for _, p := range r.payments {
		if p.PayerID == userID && !p.CreatedAt.Before(since) {
			sum += p.Amount
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return sum / float64(n), nil
}

type memSearches struct {
	events []models.SearchEvent
}

func (r *memSearches) Create(e *models.SearchEvent) error {
	r.events = append(r.events, *e)
	return nil
}
func (r *memSearches) RecentByPair(searcherID, targetID uint, since time.Time) ([]models.SearchEvent, error) {
	var out []models.SearchEvent
	for _, e := range r.events {
		if e.SearcherID == searcherID && e.TargetUserID == targetID && !e.SearchedAt.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

type memActivities struct {
	nextID  uint
	records []models.SuspiciousActivity
}

func (r *memActivities) Create(a *models.SuspiciousActivity) error {
	r.nextID++
	a.ID = r.nextID
	r.records = append(r.records, *a)
	return nil
}
func (r *memActivities) FindByID(id uint) (*models.SuspiciousActivity, error) {
	for i := range r.records {
		if r.records[i].ID == id {
			return &r.records[i], nil
		}
	}
	return nil, nil
}
func (r *memActivities) FindOpenByUserAndType(userID uint, t models.SuspiciousActivityType, since time.Time) (*models.SuspiciousActivity, error) {
	for i := range r.records {
		rec := &r.records[i]
		if rec.UserID == userID && rec.Type == t && rec.Status == models.SuspicionActive && !rec.LastDetectedAt.Before(since) {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, nil
}
func (r *memActivities) Update(a *models.SuspiciousActivity) error {
	for i := range r.records {
		if r.records[i].ID == a.ID {
			r.records[i] = *a
			return nil
		}
	}
	return nil
}
func (r *memActivities) ListByUser(userID uint, limit, offset int) ([]models.SuspiciousActivity, error) {
	var out []models.SuspiciousActivity
	for _, rec := range r.records {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}
func (r *memActivities) ListActive(limit, offset int) ([]models.SuspiciousActivity, error) {
	var out []models.SuspiciousActivity
	for _, rec := range r.records {
		if rec.Status == models.SuspicionActive {
			out = append(out, rec)
		}
	}
	return out, nil
}

func detectorPolicy() config.Policy {
	return config.Policy{
		DedupeWindow: 30 * 24 * time.Hour,
		Triangulation: config.TriangulationPolicy{
			MinPoints:     3,
			MinDistanceKm: 1.0,
			Window:        24 * time.Hour,
		},
		RapidPayments: config.RapidPaymentPolicy{
			MinCount: 5,
			Window:   10 * time.Minute,
		},
		RoundAmountRun: 4,
	}
}

func paymentAt(payer, payee uint, amount float64, at time.Time) models.Payment {
	p := models.Payment{PayerID: payer, PayeeID: payee, Amount: amount}
	p.CreatedAt = at
	return p
}

func TestDetector_RapidPayments(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

	t.Run("five payments in ten minutes trip the rule", func(t *testing.T) {
		payments := &memPayments{}
		for i := 0; i < 4; i++ {
			payments.payments = append(payments.payments,
				paymentAt(1, 2, 35, now.Add(-time.Duration(i+1)*time.Minute)))
		}
		d := NewDetector(payments, &memSearches{}, &memActivities{}, detectorPolicy())

		findings, err := d.InspectPayment(ctx, PaymentActivity{UserID: 1, PayeeID: 2, Amount: 35, At: now})
		require.NoError(t, err)
		require.Len(t, findings, 1)
		assert.Equal(t, models.SuspicionRapidPayments, findings[0].Type)
		assert.Equal(t, 20, findings[0].Score)
	})

	t.Run("four payments stay quiet", func(t *testing.T) {
		payments := &memPayments{}
		for i := 0; i < 3; i++ {
			payments.payments = append(payments.payments,
				paymentAt(1, 2, 35, now.Add(-time.Duration(i+1)*time.Minute)))
		}
		d := NewDetector(payments, &memSearches{}, &memActivities{}, detectorPolicy())

		findings, err := d.InspectPayment(ctx, PaymentActivity{UserID: 1, PayeeID: 2, Amount: 35, At: now})
		require.NoError(t, err)
		assert.Empty(t, findings)
	})
}

func TestDetector_RoundAmounts(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

	payments := &memPayments{}
	for i := 0; i < 3; i++ {
		payments.payments = append(payments.payments,
			paymentAt(1, 2, 200, now.Add(-time.Duration(i+1)*time.Minute)))
	}
	d := NewDetector(payments, &memSearches{}, &memActivities{}, detectorPolicy())

	// Fourth consecutive round amount.
	findings, err := d.InspectPayment(ctx, PaymentActivity{UserID: 1, PayeeID: 2, Amount: 300, At: now})
	require.NoError(t, err)

	var types []models.SuspiciousActivityType
	for _, f := range findings {
		types = append(types, f.Type)
	}
	assert.Contains(t, types, models.SuspicionRoundAmounts)

	// A non-round amount never matches, whatever the history.
	findings, err = d.InspectPayment(ctx, PaymentActivity{UserID: 1, PayeeID: 2, Amount: 305.50, At: now})
	require.NoError(t, err)
	for _, f := range findings {
		assert.NotEqual(t, models.SuspicionRoundAmounts, f.Type)
	}
}

func TestDetector_PairCycling(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

	payments := &memPayments{}
	// Two in each direction inside 24 hours.
	payments.payments = append(payments.payments,
		paymentAt(1, 2, 40, now.Add(-10*time.Hour)),
		paymentAt(2, 1, 40, now.Add(-8*time.Hour)),
		paymentAt(1, 2, 40, now.Add(-6*time.Hour)),
		paymentAt(2, 1, 40, now.Add(-4*time.Hour)),
	)
	d := NewDetector(payments, &memSearches{}, &memActivities{}, detectorPolicy())

	findings, err := d.InspectPayment(ctx, PaymentActivity{UserID: 1, PayeeID: 2, Amount: 40, At: now})
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, models.SuspicionPairCycling, findings[0].Type)
	require.NotNil(t, findings[0].RelatedUser)
	assert.Equal(t, uint(2), *findings[0].RelatedUser)
}

func TestDetector_Triangulation(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	activities := &memActivities{}
	d := NewDetector(&memPayments{}, &memSearches{}, activities, detectorPolicy())

	// Three searches against the same user from points kilometres
	// apart. One degree of latitude is about 111 km.
	search := func(lat, lng float64, at time.Time) ([]Finding, error) {
		return d.InspectSearch(ctx, SearchActivity{
			SearcherID: 1, TargetUserID: 9, Latitude: lat, Longitude: lng, At: at,
		})
	}

	findings, err := search(48.85, 2.35, now.Add(-2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, findings)

	findings, err = search(48.95, 2.35, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, findings)

	findings, err = search(49.05, 2.35, now)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, models.SuspicionTriangulation, findings[0].Type)
	assert.Equal(t, 40, findings[0].Score)

	// One persisted record so far.
	active, err := activities.ListActive(10, 0)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, 1, active[0].Frequency)

	// A fourth probing search merges into the existing record instead
	// of opening a second one.
	findings, err = search(49.15, 2.35, now.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, findings, 1)

	active, err = activities.ListActive(10, 0)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, 2, active[0].Frequency)
}

func TestDetector_TriangulationNeedsSpread(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	d := NewDetector(&memPayments{}, &memSearches{}, &memActivities{}, detectorPolicy())

	// Three searches from almost the same point: distinct, but not a
	// kilometre apart.
	for i := 0; i < 3; i++ {
		findings, err := d.InspectSearch(ctx, SearchActivity{
			SearcherID:   1,
			TargetUserID: 9,
			Latitude:     48.8500 + float64(i)*0.0001,
			Longitude:    2.35,
			At:           now.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
		assert.Empty(t, findings)
	}
}

func TestHaversineKm(t *testing.T) {
	// Paris to London is roughly 344 km.
	dist := HaversineKm(48.8566, 2.3522, 51.5074, -0.1278)
	assert.InDelta(t, 344, dist, 10)

	assert.InDelta(t, 0, HaversineKm(48.85, 2.35, 48.85, 2.35), 0.001)
}
