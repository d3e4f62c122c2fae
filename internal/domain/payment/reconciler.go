package payment

import (
	"context"
	"net/url"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Outcome describes how one notification was handled. Received is true for
// every notification that was captured, including the skip and
// fetch-failure paths.
type Outcome struct {
	Received bool
	// Skipped carries the reason when the notification needed no
	// reconciliation (foreign topic, no payment id).
	Skipped string
	// FetchAttempted is true once a gateway lookup was issued; Fetched
	// reports whether it succeeded.
	FetchAttempted bool
	Fetched        bool
	PaymentID      string
}

// Reconciler merges gateway notifications into persisted payment and
// order records. It is stateless and safe for concurrent use; consistency
// comes from the repository's transaction primitive, not from the
// reconciler itself.
type Reconciler struct {
	gateway  Gateway // nil when no credential is configured
	payments Repository
	audit    AuditLog
	now      func() time.Time
}

// NewReconciler creates a Reconciler. A nil gateway is allowed and makes
// Process return ErrNotConfigured for payment notifications.
func NewReconciler(gateway Gateway, payments Repository, audit AuditLog) *Reconciler {
	return &Reconciler{
		gateway:  gateway,
		payments: payments,
		audit:    audit,
		now:      time.Now,
	}
}

// Process handles one inbound notification.
//
// The raw audit record is written unconditionally before anything else so
// every inbound call is forensically recoverable. Foreign topics and
// notifications without a payment id are benign skips. A failed gateway
// fetch is recorded on the payment record and still counts as received:
// the notification itself was captured, and the gateway must not be made
// to retry indefinitely for a transient downstream condition.
func (r *Reconciler) Process(ctx context.Context, n Notification) (Outcome, error) {
	if err := r.audit.Append(ctx, AuditEntry{
		Topic:      n.Topic(),
		Headers:    n.Headers,
		Query:      flattenQuery(n.Query),
		Body:       n.RawBody,
		ReceivedAt: r.now(),
	}); err != nil {
		return Outcome{}, errors.Wrap(err, "append audit record")
	}

	if topic := n.Topic(); topic != TopicPayment {
		return Outcome{Received: true, Skipped: "topic " + topic + " not handled"}, nil
	}

	id := n.PaymentID()
	if id == "" {
		return Outcome{Received: true, Skipped: "no payment id in notification"}, nil
	}

	if r.gateway == nil {
		return Outcome{}, ErrNotConfigured
	}

	fetched, err := r.gateway.GetPayment(ctx, id)
	if err != nil {
		r.recordFetchFailure(ctx, id, err)
		return Outcome{Received: true, FetchAttempted: true, Fetched: false, PaymentID: id}, nil
	}

	if err := r.reconcile(ctx, id, fetched); err != nil {
		return Outcome{}, errors.Wrapf(err, "reconcile payment %s", id)
	}

	return Outcome{Received: true, FetchAttempted: true, Fetched: true, PaymentID: id}, nil
}

// reconcile applies the fetched gateway state inside one transaction. An
// unchanged status only bumps the last-seen timestamp; a new or changed
// status overwrites the record and links the order referenced by the
// payment's external reference.
func (r *Reconciler) reconcile(ctx context.Context, id string, p *Payment) error {
	return r.payments.Reconcile(ctx, id, func(ctx context.Context, tx Tx, current *Record) error {
		now := r.now()

		if current != nil && current.Processed && current.Status == p.Status {
			return tx.TouchLastSeen(ctx, id, now)
		}

		rec := &Record{
			ID:          id,
			Status:      p.Status,
			Payload:     p.Raw,
			Processed:   true,
			FetchedAt:   &now,
			ProcessedAt: &now,
			LastSeenAt:  &now,
		}
		if err := tx.SavePayment(ctx, rec); err != nil {
			return errors.Wrap(err, "save payment record")
		}

		if p.ExternalReference != "" {
			if err := tx.LinkOrder(ctx, p.ExternalReference, id, p.Status); err != nil {
				return errors.Wrap(err, "link order")
			}
		}
		return nil
	})
}

// recordFetchFailure is best effort: a second failure while persisting the
// diagnostic is logged, not propagated, so the caller can still answer the
// gateway with a received acknowledgement.
func (r *Reconciler) recordFetchFailure(ctx context.Context, id string, fetchErr error) {
	status := 0
	var sc interface{ StatusCode() int }
	if errors.As(fetchErr, &sc) {
		status = sc.StatusCode()
	}

	if err := r.payments.RecordFetchFailure(ctx, id, r.now(), status, fetchErr.Error()); err != nil {
		zctx.From(ctx).Error("record fetch failure",
			zap.String("payment_id", id),
			zap.Error(err),
		)
	}
}

func flattenQuery(q url.Values) map[string]string {
	if len(q) == 0 {
		return nil
	}
	out := make(map[string]string, len(q))
	for k := range q {
		out[k] = q.Get(k)
	}
	return out
}
