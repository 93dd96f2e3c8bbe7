package db

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"tripplanner/internal/apperr"
	"tripplanner/internal/models"
)

// MemoryDB keeps everything in process. It mirrors PostgresDB's semantics,
// including the conditional payment updates, and backs local runs and tests.
type MemoryDB struct {
	mu sync.Mutex

	nextID      int64
	users       map[int64]*models.User
	emails      map[string]int64
	itineraries []*models.Itinerary
	usage       []*models.UsageRecord
	payments    map[string]*models.Payment

	// FailWrites makes every mutating call fail with a persistence error.
	FailWrites bool
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		users:    make(map[int64]*models.User),
		emails:   make(map[string]int64),
		payments: make(map[string]*models.Payment),
	}
}

var errWriteFailed = apperr.Persistence(errMemoryWrite{})

type errMemoryWrite struct{}

func (errMemoryWrite) Error() string { return "memory store: write failed" }

func (m *MemoryDB) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *MemoryDB) Ping(ctx context.Context) error { return ctx.Err() }

func (m *MemoryDB) Close() {}

func (m *MemoryDB) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return errWriteFailed
	}
	key := strings.ToLower(u.Email)
	if _, ok := m.emails[key]; ok {
		return apperr.ErrDuplicateEmail
	}
	u.ID = m.id()
	cp := *u
	m.users[u.ID] = &cp
	m.emails[key] = u.ID
	return nil
}

func (m *MemoryDB) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MemoryDB) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.emails[strings.ToLower(email)]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *m.users[id]
	return &cp, nil
}

func (m *MemoryDB) TouchLastLogin(_ context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return apperr.ErrNotFound
	}
	at = at.UTC()
	u.LastLoginAt = &at
	return nil
}

func (m *MemoryDB) SetUserPlan(_ context.Context, id int64, plan models.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return errWriteFailed
	}
	u, ok := m.users[id]
	if !ok {
		return apperr.ErrNotFound
	}
	u.Plan = plan
	return nil
}

func (m *MemoryDB) HasCompletedPayment(_ context.Context, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.UserID == userID && p.Status == models.PaymentCompleted {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryDB) CountUsageSince(_ context.Context, userID int64, plan models.Plan, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countUsage(userID, plan, since), nil
}

func (m *MemoryDB) countUsage(userID int64, plan models.Plan, since time.Time) int {
	n := 0
	for _, r := range m.usage {
		if r.UserID == userID && r.Plan == plan && !r.CreatedAt.Before(since) {
			n++
		}
	}
	return n
}

func (m *MemoryDB) CreateItinerary(_ context.Context, it *models.Itinerary, usage *models.UsageRecord, window *models.UsageWindow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if usage != nil && window != nil && m.countUsage(usage.UserID, usage.Plan, window.Since) >= window.Limit {
		return apperr.ErrQuotaExceeded
	}
	if m.FailWrites {
		return errWriteFailed
	}
	it.ID = m.id()
	cp := *it
	m.itineraries = append(m.itineraries, &cp)
	if usage != nil {
		usage.ID = m.id()
		ucp := *usage
		m.usage = append(m.usage, &ucp)
	}
	return nil
}

func (m *MemoryDB) ListItineraries(_ context.Context, userID int64, limit int) ([]*models.Itinerary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Itinerary
	for i := len(m.itineraries) - 1; i >= 0 && len(out) < limit; i-- {
		if it := m.itineraries[i]; it.UserID == userID {
			cp := *it
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryDB) GetItinerary(_ context.Context, userID, id int64) (*models.Itinerary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.itineraries {
		if it.ID == id && it.UserID == userID {
			cp := *it
			return &cp, nil
		}
	}
	return nil, apperr.ErrNotFound
}

// ItineraryCount and UsageCount expose row counts for assertions.
func (m *MemoryDB) ItineraryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.itineraries)
}

func (m *MemoryDB) UsageCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.usage)
}

func (m *MemoryDB) CreatePayment(_ context.Context, p *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return errWriteFailed
	}
	if _, ok := m.payments[p.PaymentID]; ok {
		return apperr.Persistence(errMemoryWrite{})
	}
	p.ID = m.id()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	m.payments[p.PaymentID] = &cp
	return nil
}

func (m *MemoryDB) GetPayment(_ context.Context, paymentID string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[paymentID]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryDB) GetPaymentByStripeSession(_ context.Context, sessionID string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if sessionID != "" && p.StripeSessionID == sessionID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (m *MemoryDB) AttachStripeSession(_ context.Context, paymentID, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[paymentID]
	if !ok {
		return apperr.ErrNotFound
	}
	p.StripeSessionID = sessionID
	return nil
}

func (m *MemoryDB) ListPayments(_ context.Context, status models.PaymentStatus) ([]*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Payment
	for _, p := range m.payments {
		if status == "" || p.Status == status {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryDB) UpdatePaymentStatus(_ context.Context, upd models.PaymentUpdate) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return nil, errWriteFailed
	}
	p, err := m.applyPaymentUpdate(upd)
	if err != nil {
		return nil, err
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryDB) CompletePayment(_ context.Context, upd models.PaymentUpdate) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return nil, errWriteFailed
	}
	upd.To = models.PaymentCompleted

	p, ok := m.payments[upd.PaymentID]
	if ok {
		if _, userOK := m.users[p.UserID]; !userOK {
			return nil, apperr.Persistence(errMemoryWrite{})
		}
	}
	p, err := m.applyPaymentUpdate(upd)
	if err != nil {
		return nil, err
	}
	m.users[p.UserID].Plan = models.PlanPro
	cp := *p
	return &cp, nil
}

func (m *MemoryDB) applyPaymentUpdate(upd models.PaymentUpdate) (*models.Payment, error) {
	p, ok := m.payments[upd.PaymentID]
	if !ok || (upd.UserID != 0 && p.UserID != upd.UserID) {
		return nil, apperr.ErrNotFound
	}
	if !upd.Allows(p.Status) {
		return nil, apperr.ErrInvalidTransition
	}
	p.Status = upd.To
	if upd.TransactionID != "" {
		p.TransactionID = upd.TransactionID
	}
	if upd.UPIReference != "" {
		p.UPIReference = upd.UPIReference
	}
	if upd.RejectionReason != "" {
		p.RejectionReason = upd.RejectionReason
	}
	p.UpdatedAt = upd.At
	if upd.To == models.PaymentCompleted {
		at := upd.At
		p.CompletedAt = &at
	}
	return p, nil
}
