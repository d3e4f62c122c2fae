// Package payment reconciles asynchronous payment-gateway notifications
// into persisted payment and order records.
//
// The gateway delivers webhooks at-least-once, possibly concurrently and
// out of order. The reconciler converges persisted state by fetching the
// authoritative payment object and merging it through a transactional
// read-modify-write keyed on the gateway payment id.
package payment

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotConfigured signals that no gateway credential is available. Unlike
// the benign skip outcomes this is an operator fault and surfaces as a
// server error at the HTTP boundary.
var ErrNotConfigured = errors.New("payment gateway not configured")

// Payment is the authoritative gateway view of one transaction, as
// returned by a lookup-by-id call.
type Payment struct {
	ID                string
	Status            string
	ExternalReference string
	// Raw is the full gateway payload, persisted verbatim for audit.
	Raw json.RawMessage
}

// Gateway fetches authoritative payment state from the payment provider.
type Gateway interface {
	GetPayment(ctx context.Context, id string) (*Payment, error)
}

// Record is the persisted, reconciled mirror of the gateway's view of one
// payment, keyed by the gateway payment id.
type Record struct {
	ID          string
	Status      string
	Payload     json.RawMessage
	Processed   bool
	FetchedAt   *time.Time
	ProcessedAt *time.Time
	LastSeenAt  *time.Time
	LastErrorAt *time.Time
	LastError   string
	HTTPStatus  int
}

// Tx is the set of writes available inside one reconciliation transaction.
// All of them, including the order link, commit or roll back together.
type Tx interface {
	// SavePayment overwrites the payment record (insert or full update).
	SavePayment(ctx context.Context, rec *Record) error
	// TouchLastSeen bumps only the last-seen timestamp of an existing record.
	TouchLastSeen(ctx context.Context, paymentID string, at time.Time) error
	// LinkOrder updates the order matched by the gateway's external
	// reference with the payment status and id. A missing order is not an
	// error: the link is best-effort.
	LinkOrder(ctx context.Context, externalRef, paymentID, status string) error
}

// Repository persists payment records.
type Repository interface {
	// Reconcile runs fn against the current record for paymentID (nil when
	// none exists yet) inside one atomic transaction. Conflicting
	// concurrent transactions are retried transparently.
	Reconcile(ctx context.Context, paymentID string, fn func(ctx context.Context, tx Tx, current *Record) error) error
	// RecordFetchFailure stores failure diagnostics on the payment record,
	// creating it if absent. It must not disturb previously fetched state.
	RecordFetchFailure(ctx context.Context, paymentID string, at time.Time, httpStatus int, reason string) error
}

// AuditEntry is the raw forensic trace of one inbound notification.
type AuditEntry struct {
	Topic      string
	Headers    map[string]string
	Query      map[string]string
	Body       []byte
	ReceivedAt time.Time
}

// AuditLog records every inbound notification before any processing.
// Appends are plain, non-transactional inserts: duplicates are harmless
// and must never be blocked by transactional contention.
type AuditLog interface {
	Append(ctx context.Context, e AuditEntry) error
}
