package payment

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock implementations ---

type mockGateway struct {
	payment *Payment
	err     error
	calls   int
}

func (m *mockGateway) GetPayment(_ context.Context, _ string) (*Payment, error) {
	m.calls++
	return m.payment, m.err
}

type statusCodeError struct {
	code int
	msg  string
}

func (e *statusCodeError) Error() string   { return e.msg }
func (e *statusCodeError) StatusCode() int { return e.code }

// memRepo is an in-memory Repository whose Reconcile runs the closure
// under a mutex, mimicking the serialized transaction.
type memRepo struct {
	mu      sync.Mutex
	records map[string]*Record
	orders  map[string]orderLink // keyed by external reference
	links   int                  // order-link mutations performed
}

type orderLink struct {
	paymentStatus string
	mpPaymentID   string
}

func newMemRepo() *memRepo {
	return &memRepo{
		records: make(map[string]*Record),
		orders:  make(map[string]orderLink),
	}
}

type memTx struct{ r *memRepo }

func (t memTx) SavePayment(_ context.Context, rec *Record) error {
	cp := *rec
	t.r.records[rec.ID] = &cp
	return nil
}

func (t memTx) TouchLastSeen(_ context.Context, id string, at time.Time) error {
	if rec, ok := t.r.records[id]; ok {
		rec.LastSeenAt = &at
	}
	return nil
}

func (t memTx) LinkOrder(_ context.Context, ref, paymentID, status string) error {
	t.r.orders[ref] = orderLink{paymentStatus: status, mpPaymentID: paymentID}
	t.r.links++
	return nil
}

func (r *memRepo) Reconcile(ctx context.Context, id string, fn func(context.Context, Tx, *Record) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var current *Record
	if rec, ok := r.records[id]; ok {
		cp := *rec
		current = &cp
	}
	return fn(ctx, memTx{r: r}, current)
}

func (r *memRepo) RecordFetchFailure(_ context.Context, id string, at time.Time, httpStatus int, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		rec = &Record{ID: id}
		r.records[id] = rec
	}
	rec.LastErrorAt = &at
	rec.LastError = reason
	rec.HTTPStatus = httpStatus
	return nil
}

type memAudit struct {
	mu      sync.Mutex
	entries []AuditEntry
	err     error
}

func (a *memAudit) Append(_ context.Context, e AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.entries = append(a.entries, e)
	return nil
}

// --- Helpers ---

func paymentNotification(id string) Notification {
	body := map[string]any{
		"type": "payment",
		"data": map[string]any{"id": id},
	}
	raw, _ := json.Marshal(body)
	return Notification{Body: body, RawBody: raw}
}

func newTestReconciler(gw Gateway, repo Repository, audit AuditLog) *Reconciler {
	r := NewReconciler(gw, repo, audit)
	fixed := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }
	return r
}

// --- Tests ---

func TestProcessFirstNotification(t *testing.T) {
	repo := newMemRepo()
	audit := &memAudit{}
	gw := &mockGateway{payment: &Payment{
		ID:                "111",
		Status:            "approved",
		ExternalReference: "order-1",
		Raw:               json.RawMessage(`{"id":111,"status":"approved"}`),
	}}

	r := newTestReconciler(gw, repo, audit)
	out, err := r.Process(context.Background(), paymentNotification("111"))

	require.NoError(t, err)
	assert.True(t, out.Received)
	assert.True(t, out.Fetched)
	assert.Equal(t, "111", out.PaymentID)

	rec := repo.records["111"]
	require.NotNil(t, rec)
	assert.Equal(t, "approved", rec.Status)
	assert.True(t, rec.Processed)
	require.NotNil(t, rec.ProcessedAt)

	assert.Equal(t, orderLink{paymentStatus: "approved", mpPaymentID: "111"}, repo.orders["order-1"])
	assert.Len(t, audit.entries, 1)
}

func TestProcessRedeliveryIsIdempotent(t *testing.T) {
	repo := newMemRepo()
	audit := &memAudit{}
	gw := &mockGateway{payment: &Payment{
		ID:                "111",
		Status:            "approved",
		ExternalReference: "order-1",
		Raw:               json.RawMessage(`{"status":"approved"}`),
	}}

	r := newTestReconciler(gw, repo, audit)

	const deliveries = 5
	for range deliveries {
		out, err := r.Process(context.Background(), paymentNotification("111"))
		require.NoError(t, err)
		assert.True(t, out.Fetched)
	}

	// Exactly one order-link mutation, one audit entry per delivery.
	assert.Equal(t, 1, repo.links)
	assert.Len(t, audit.entries, deliveries)
	assert.Equal(t, "approved", repo.records["111"].Status)
}

func TestProcessStatusChangeConverges(t *testing.T) {
	repo := newMemRepo()
	audit := &memAudit{}
	gw := &mockGateway{payment: &Payment{
		ID:                "222",
		Status:            "pending",
		ExternalReference: "order-2",
	}}

	r := newTestReconciler(gw, repo, audit)

	_, err := r.Process(context.Background(), paymentNotification("222"))
	require.NoError(t, err)
	assert.Equal(t, "pending", repo.records["222"].Status)

	gw.payment = &Payment{ID: "222", Status: "approved", ExternalReference: "order-2"}
	_, err = r.Process(context.Background(), paymentNotification("222"))
	require.NoError(t, err)

	assert.Equal(t, "approved", repo.records["222"].Status)
	assert.Equal(t, "approved", repo.orders["order-2"].paymentStatus)
	assert.Equal(t, 2, repo.links)
}

func TestProcessSkipsForeignTopic(t *testing.T) {
	repo := newMemRepo()
	audit := &memAudit{}
	gw := &mockGateway{}

	r := newTestReconciler(gw, repo, audit)
	out, err := r.Process(context.Background(), Notification{
		Body: map[string]any{"topic": "merchant_order", "id": "5"},
	})

	require.NoError(t, err)
	assert.True(t, out.Received)
	assert.Contains(t, out.Skipped, "merchant_order")
	assert.Zero(t, gw.calls)
	// Audit still written.
	assert.Len(t, audit.entries, 1)
}

func TestProcessSkipsMissingID(t *testing.T) {
	repo := newMemRepo()
	audit := &memAudit{}
	gw := &mockGateway{}

	r := newTestReconciler(gw, repo, audit)
	out, err := r.Process(context.Background(), Notification{
		Body: map[string]any{"type": "payment"},
	})

	require.NoError(t, err)
	assert.True(t, out.Received)
	assert.NotEmpty(t, out.Skipped)
	assert.Zero(t, gw.calls)
	assert.Len(t, audit.entries, 1)
}

func TestProcessNotConfigured(t *testing.T) {
	repo := newMemRepo()
	audit := &memAudit{}

	r := newTestReconciler(nil, repo, audit)
	_, err := r.Process(context.Background(), paymentNotification("111"))

	require.ErrorIs(t, err, ErrNotConfigured)
	// Audit precedes the configuration check.
	assert.Len(t, audit.entries, 1)
}

func TestProcessFetchFailure(t *testing.T) {
	repo := newMemRepo()
	audit := &memAudit{}
	gw := &mockGateway{err: &statusCodeError{code: 503, msg: "upstream unavailable"}}

	r := newTestReconciler(gw, repo, audit)
	out, err := r.Process(context.Background(), paymentNotification("333"))

	require.NoError(t, err)
	assert.True(t, out.Received)
	assert.True(t, out.FetchAttempted)
	assert.False(t, out.Fetched)
	assert.Equal(t, "333", out.PaymentID)

	rec := repo.records["333"]
	require.NotNil(t, rec)
	assert.Equal(t, 503, rec.HTTPStatus)
	assert.Equal(t, "upstream unavailable", rec.LastError)
	require.NotNil(t, rec.LastErrorAt)
	assert.False(t, rec.Processed)
}

func TestProcessFetchFailureKeepsPriorState(t *testing.T) {
	repo := newMemRepo()
	audit := &memAudit{}
	gw := &mockGateway{payment: &Payment{ID: "444", Status: "approved"}}

	r := newTestReconciler(gw, repo, audit)
	_, err := r.Process(context.Background(), paymentNotification("444"))
	require.NoError(t, err)

	gw.payment = nil
	gw.err = errors.New("connection reset")
	out, err := r.Process(context.Background(), paymentNotification("444"))
	require.NoError(t, err)
	assert.False(t, out.Fetched)

	rec := repo.records["444"]
	assert.Equal(t, "approved", rec.Status, "fetch failure must not clobber fetched state")
	assert.Equal(t, "connection reset", rec.LastError)
}

func TestProcessAuditFailureIsFatal(t *testing.T) {
	repo := newMemRepo()
	audit := &memAudit{err: errors.New("insert failed")}
	gw := &mockGateway{}

	r := newTestReconciler(gw, repo, audit)
	_, err := r.Process(context.Background(), paymentNotification("555"))

	require.Error(t, err)
	assert.Zero(t, gw.calls)
}

func TestProcessQueryOnlyNotification(t *testing.T) {
	// IPN-style delivery: everything in the query string, empty body.
	repo := newMemRepo()
	audit := &memAudit{}
	gw := &mockGateway{payment: &Payment{ID: "666", Status: "approved"}}

	r := newTestReconciler(gw, repo, audit)
	out, err := r.Process(context.Background(), Notification{
		Query: url.Values{"topic": {"payment"}, "id": {"666"}},
	})

	require.NoError(t, err)
	assert.True(t, out.Fetched)
	assert.Equal(t, "666", out.PaymentID)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, "666", audit.entries[0].Query["id"])
}
