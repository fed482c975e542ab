package dispute

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rigshare/internal/config"
	domainerr "rigshare/internal/errors"
	"rigshare/internal/models"
	"rigshare/internal/services/evidence"
	"rigshare/internal/services/processor"

	"github.com/google/uuid"
)

// memDisputeRepo is an in-memory DisputeRepository with real
// compare-and-swap semantics on UpdateCAS.
type memDisputeRepo struct {
	mu       sync.Mutex
	nextID   uint
	disputes map[uint]*models.Dispute
	messages []models.DisputeMessage
	evidence []models.DisputeEvidence
}

func newMemDisputeRepo() *memDisputeRepo {
	return &memDisputeRepo{disputes: make(map[uint]*models.Dispute)}
}

func (r *memDisputeRepo) Create(d *models.Dispute) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	d.ID = r.nextID
	d.CreatedAt = time.Now()
	cp := *d
	r.disputes[d.ID] = &cp
	return nil
}

func (r *memDisputeRepo) FindByID(id uint) (*models.Dispute, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.disputes[id]
	if !ok {
		return nil, domainerr.ErrDisputeNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *memDisputeRepo) FindByReference(ref string) (*models.Dispute, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.disputes {
		if d.Reference == ref {
			cp := *d
			return &cp, nil
		}
	}
	return nil, domainerr.ErrDisputeNotFound
}

func (r *memDisputeRepo) FindByExternalID(externalID string) (*models.Dispute, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.disputes {
		if d.ExternalDisputeID != nil && *d.ExternalDisputeID == externalID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, domainerr.ErrDisputeNotFound
}

func (r *memDisputeRepo) OpenExistsByRental(rentalID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.disputes {
		if d.RentalID == rentalID && !d.Status.Terminal() {
			return true, nil
		}
	}
	return false, nil
}

func (r *memDisputeRepo) UpdateCAS(d *models.Dispute) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.disputes[d.ID]
	if !ok {
		return domainerr.ErrDisputeNotFound
	}
	if stored.Version != d.Version {
		return domainerr.ErrConflict
	}
	d.Version++
	cp := *d
	r.disputes[d.ID] = &cp
	return nil
}

func (r *memDisputeRepo) ListByUser(userID uint, limit, offset int) ([]models.Dispute, error) {
	return nil, nil
}

func (r *memDisputeRepo) ListByStatus(status models.DisputeStatus, limit, offset int) ([]models.Dispute, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Dispute
	for _, d := range r.disputes {
		if d.Status == status {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (r *memDisputeRepo) AddMessage(m *models.DisputeMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.ID = uint(len(r.messages) + 1)
	r.messages = append(r.messages, *m)
	return nil
}

func (r *memDisputeRepo) MessagesByDispute(disputeID uint) ([]models.DisputeMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.DisputeMessage
	for _, m := range r.messages {
		if m.DisputeID == disputeID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memDisputeRepo) AddEvidence(ev *models.DisputeEvidence) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev.ID = uint(len(r.evidence) + 1)
	r.evidence = append(r.evidence, *ev)
	return nil
}

func (r *memDisputeRepo) EvidenceByDispute(disputeID uint) ([]models.DisputeEvidence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.DisputeEvidence
	for _, ev := range r.evidence {
		if ev.DisputeID == disputeID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (r *memDisputeRepo) UpdateEvidence(ev *models.DisputeEvidence) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.evidence {
		if r.evidence[i].ID == ev.ID {
			r.evidence[i] = *ev
			return nil
		}
	}
	return domainerr.ErrNotFound
}

func (r *memDisputeRepo) FindEvidenceByRef(storageRef string) (*models.DisputeEvidence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.evidence {
		if r.evidence[i].StorageRef == storageRef {
			cp := r.evidence[i]
			return &cp, nil
		}
	}
	return nil, domainerr.ErrNotFound
}

// memClosureRepo enforces the single-active-proposal invariant under a
// mutex the way the real repository does under the row lock.
type memClosureRepo struct {
	mu       sync.Mutex
	nextID   uint
	closures map[uint]*models.MutualDisputeClosure
	audit    []models.MutualClosureAuditLog
}

func newMemClosureRepo() *memClosureRepo {
	return &memClosureRepo{closures: make(map[uint]*models.MutualDisputeClosure)}
}

func (r *memClosureRepo) CreateActive(c *models.MutualDisputeClosure) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.closures {
		if existing.DisputeID == c.DisputeID && existing.Status == models.MutualClosureProposed {
			return domainerr.ErrClosureAlreadyActive
		}
	}
	r.nextID++
	c.ID = r.nextID
	c.CreatedAt = time.Now()
	cp := *c
	r.closures[c.ID] = &cp
	return nil
}

func (r *memClosureRepo) FindByID(id uint) (*models.MutualDisputeClosure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.closures[id]
	if !ok {
		return nil, domainerr.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memClosureRepo) ActiveByDispute(disputeID uint) (*models.MutualDisputeClosure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.closures {
		if c.DisputeID == disputeID && c.Status == models.MutualClosureProposed {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memClosureRepo) Update(c *models.MutualDisputeClosure) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.closures[c.ID]; !ok {
		return domainerr.ErrNotFound
	}
	cp := *c
	r.closures[c.ID] = &cp
	return nil
}

func (r *memClosureRepo) AppendAudit(entry *models.MutualClosureAuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.ID = uint(len(r.audit) + 1)
	r.audit = append(r.audit, *entry)
	return nil
}

func (r *memClosureRepo) AuditByClosure(closureID uint) ([]models.MutualClosureAuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.MutualClosureAuditLog
	for _, e := range r.audit {
		if e.ClosureID == closureID {
			out = append(out, e)
		}
	}
	return out, nil
}

type memRentals struct {
	rentals map[uint]*models.Rental
}

func (r *memRentals) Create(rental *models.Rental) error {
	r.rentals[rental.ID] = rental
	return nil
}

func (r *memRentals) FindByID(id uint) (*models.Rental, error) {
	rental, ok := r.rentals[id]
	if !ok {
		return nil, domainerr.ErrNotFound
	}
	cp := *rental
	return &cp, nil
}

type memPayments struct {
	mu       sync.Mutex
	payments map[uint]*models.Payment
}

func (r *memPayments) Create(p *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payments[p.ID] = p
	return nil
}

func (r *memPayments) FindByID(id uint) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return nil, domainerr.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memPayments) Update(p *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.payments[p.ID] = &cp
	return nil
}

func (r *memPayments) RecentByUser(uint, time.Time) ([]models.Payment, error)        { return nil, nil }
func (r *memPayments) RecentBetween(uint, uint, time.Time) ([]models.Payment, error) { return nil, nil }
func (r *memPayments) AverageAmount(uint, time.Time) (float64, error)                { return 0, nil }

type memWebhookEvents struct {
	mu     sync.Mutex
	events map[string]*models.WebhookEvent
}

func (r *memWebhookEvents) FirstSeen(e *models.WebhookEvent) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[e.EventID]; ok {
		return false, nil
	}
	cp := *e
	r.events[e.EventID] = &cp
	return true, nil
}

func (r *memWebhookEvents) FindByEventID(eventID string) (*models.WebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[eventID]
	if !ok {
		return nil, domainerr.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *memWebhookEvents) MarkProcessed(eventID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[eventID]
	if !ok {
		return domainerr.ErrNotFound
	}
	e.Processed = true
	e.ProcessedAt = &at
	return nil
}

func (r *memWebhookEvents) ListByExternalDispute(externalDisputeID string) ([]models.WebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.WebhookEvent
	for _, e := range r.events {
		if e.ExternalDisputeID == externalDisputeID {
			out = append(out, *e)
		}
	}
	return out, nil
}

// fakeProcessor records calls and returns scripted results.
type fakeProcessor struct {
	mu          sync.Mutex
	refunds     []fakeRefund
	escalations int
	refundErr   error
	escalateErr error
	disputes    map[string]*processor.ExternalDispute
}

type fakeRefund struct {
	PaymentRef string
	Amount     float64
	Reason     string
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{disputes: make(map[string]*processor.ExternalDispute)}
}

func (p *fakeProcessor) Refund(ctx context.Context, paymentRef string, amount float64, reason string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.refundErr != nil {
		return "", p.refundErr
	}
	p.refunds = append(p.refunds, fakeRefund{paymentRef, amount, reason})
	return fmt.Sprintf("txn-%d", len(p.refunds)), nil
}

func (p *fakeProcessor) EscalateDispute(ctx context.Context, disputeRef string, summary processor.DisputeSummary) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.escalateErr != nil {
		return "", p.escalateErr
	}
	p.escalations++
	externalID := fmt.Sprintf("PP-D-%d", p.escalations)
	p.disputes[externalID] = &processor.ExternalDispute{
		ExternalID: externalID,
		Status:     "WAITING_FOR_SELLER_RESPONSE",
		Amount:     summary.ClaimedAmount,
		Currency:   summary.Currency,
	}
	return externalID, nil
}

func (p *fakeProcessor) GetDispute(ctx context.Context, externalID string) (*processor.ExternalDispute, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ext, ok := p.disputes[externalID]
	if !ok {
		return nil, fmt.Errorf("no such dispute %s", externalID)
	}
	cp := *ext
	return &cp, nil
}

func (p *fakeProcessor) refundCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.refunds)
}

type stubStorage struct{}

func (s stubStorage) Store(ctx context.Context, fileName, contentType string, data []byte) (*evidence.StoredFile, error) {
	return &evidence.StoredFile{Reference: uuid.NewString(), URL: "/evidence/" + fileName}, nil
}

type noopNotifier struct{}

func (noopNotifier) NotifyAdmin(context.Context, string, string) error     { return nil }
func (noopNotifier) NotifyUserFlagged(context.Context, uint, string) error { return nil }
func (noopNotifier) NotifyDisputeUpdate(context.Context, uint, uint, string) error {
	return nil
}

func testPolicy() config.Policy {
	return config.Policy{
		ClosureExpiry:    72 * time.Hour,
		ProcessorTimeout: 5 * time.Second,
	}
}

// fixture bundles a wired service around in-memory repositories.
type fixture struct {
	disputes *memDisputeRepo
	closures *memClosureRepo
	rentals  *memRentals
	payments *memPayments
	webhooks *memWebhookEvents
	proc     *fakeProcessor
	service  *Service
}

const (
	ownerID  uint = 10
	renterID uint = 20
	adminID  uint = 99
	otherID  uint = 55
)

func newFixture() *fixture {
	f := &fixture{
		disputes: newMemDisputeRepo(),
		closures: newMemClosureRepo(),
		rentals:  &memRentals{rentals: make(map[uint]*models.Rental)},
		payments: &memPayments{payments: make(map[uint]*models.Payment)},
		webhooks: &memWebhookEvents{events: make(map[string]*models.WebhookEvent)},
		proc:     newFakeProcessor(),
	}

	rental := &models.Rental{OwnerID: ownerID, RenterID: renterID, TotalAmount: 120, Status: models.RentalStatusActive}
	rental.ID = 1
	f.rentals.rentals[1] = rental

	payment := &models.Payment{RentalID: 1, PayerID: renterID, PayeeID: ownerID, Amount: 120, Currency: "USD", Status: models.PaymentStatusCompleted, Reference: "pay-ref-1"}
	payment.ID = 1
	f.payments.payments[1] = payment

	f.service = NewService(
		f.disputes, f.closures, f.rentals, f.payments, f.webhooks,
		f.proc, stubStorage{}, noopNotifier{}, nil, testPolicy(),
	)
	return f
}

// openDispute creates a dispute over the fixture rental, optionally
// attached to the payment.
func (f *fixture) openDispute(t interface{ Fatalf(string, ...interface{}) }, withPayment bool) *models.Dispute {
	req := CreateDisputeRequest{
		RentalID:      1,
		InitiatorID:   renterID,
		Type:          models.DisputeTypeDamage,
		Category:      models.DisputeCategoryQuality,
		Title:         "Drill returned broken",
		Description:   "Chuck no longer closes",
		ClaimedAmount: 40,
	}
	if withPayment {
		pid := uint(1)
		req.PaymentID = &pid
	}
	d, err := f.service.CreateDispute(context.Background(), req)
	if err != nil {
		t.Fatalf("openDispute: %v", err)
	}
	return d
}

// underReview opens a dispute and assigns the admin.
func (f *fixture) underReview(t interface{ Fatalf(string, ...interface{}) }, withPayment bool) *models.Dispute {
	d := f.openDispute(t, withPayment)
	d, err := f.service.AssignAdmin(context.Background(), d.ID, adminID)
	if err != nil {
		t.Fatalf("underReview: %v", err)
	}
	return d
}
