package handler

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mirante-studio/studio-api/internal/domain/coupon"
	"github.com/mirante-studio/studio-api/internal/domain/order"
	"github.com/mirante-studio/studio-api/internal/domain/payment"
)

// --- Mock implementations ---

type mockCouponRepo struct {
	coupons []coupon.Coupon
	listErr error
	created []*coupon.Coupon
	usage   map[string]int
}

func (m *mockCouponRepo) List(context.Context) ([]coupon.Coupon, error) {
	return m.coupons, m.listErr
}

func (m *mockCouponRepo) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	for i := range m.coupons {
		if strings.EqualFold(m.coupons[i].Code, code) {
			return &m.coupons[i], nil
		}
	}
	return nil, coupon.ErrNotFound
}

func (m *mockCouponRepo) Create(_ context.Context, c *coupon.Coupon) error {
	for i := range m.coupons {
		if strings.EqualFold(m.coupons[i].Code, c.Code) {
			return coupon.ErrCodeTaken
		}
	}
	m.created = append(m.created, c)
	m.coupons = append(m.coupons, *c)
	return nil
}

func (m *mockCouponRepo) IncrementUsage(_ context.Context, id string) error {
	if m.usage == nil {
		m.usage = make(map[string]int)
	}
	m.usage[id]++
	return nil
}

type mockOrderRepo struct {
	byID map[string]*order.Order
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{byID: make(map[string]*order.Order)}
}

func (m *mockOrderRepo) Create(_ context.Context, o *order.Order) error {
	m.byID[o.ID] = o
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id string) (*order.Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o, nil
}

// mockPaymentRepo serializes Reconcile with a mutex the way the real
// implementation serializes with a row lock.
type mockPaymentRepo struct {
	mu      sync.Mutex
	records map[string]*payment.Record
}

func newMockPaymentRepo() *mockPaymentRepo {
	return &mockPaymentRepo{records: make(map[string]*payment.Record)}
}

type mockPaymentTx struct{ r *mockPaymentRepo }

func (t mockPaymentTx) SavePayment(_ context.Context, rec *payment.Record) error {
	cp := *rec
	t.r.records[rec.ID] = &cp
	return nil
}

func (t mockPaymentTx) TouchLastSeen(_ context.Context, id string, at time.Time) error {
	if rec, ok := t.r.records[id]; ok {
		rec.LastSeenAt = &at
	}
	return nil
}

func (t mockPaymentTx) LinkOrder(context.Context, string, string, string) error {
	return nil
}

func (m *mockPaymentRepo) Reconcile(
	ctx context.Context,
	paymentID string,
	fn func(ctx context.Context, tx payment.Tx, current *payment.Record) error,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, mockPaymentTx{r: m}, m.records[paymentID])
}

func (m *mockPaymentRepo) RecordFetchFailure(
	_ context.Context, paymentID string, at time.Time, httpStatus int, reason string,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[paymentID]
	if !ok {
		rec = &payment.Record{ID: paymentID}
		m.records[paymentID] = rec
	}
	rec.LastErrorAt = &at
	rec.LastError = reason
	rec.HTTPStatus = httpStatus
	return nil
}

type mockAuditLog struct {
	entries []payment.AuditEntry
	err     error
}

func (m *mockAuditLog) Append(_ context.Context, e payment.AuditEntry) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, e)
	return nil
}

type mockGateway struct {
	payment *payment.Payment
	err     error
}

func (m *mockGateway) GetPayment(context.Context, string) (*payment.Payment, error) {
	return m.payment, m.err
}

// --- Helpers ---

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}
