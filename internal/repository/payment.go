package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mirante-studio/studio-api/internal/domain/payment"
)

const (
	selectPaymentForUpdateSQL = `SELECT id, status, payload, processed, fetched_at, processed_at,
		last_seen_at, last_error_at, last_error, http_status
		FROM payments WHERE id = $1 FOR UPDATE`

	upsertPaymentSQL = `INSERT INTO payments
		(id, status, payload, processed, fetched_at, processed_at, last_seen_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			payload = EXCLUDED.payload,
			processed = EXCLUDED.processed,
			fetched_at = EXCLUDED.fetched_at,
			processed_at = EXCLUDED.processed_at,
			last_seen_at = EXCLUDED.last_seen_at`

	touchLastSeenSQL = `UPDATE payments SET last_seen_at = $2 WHERE id = $1`

	linkOrderSQL = `UPDATE orders SET payment_status = $2, mp_payment_id = $3 WHERE id = $1`

	recordFetchFailureSQL = `INSERT INTO payments (id, last_error_at, last_error, http_status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			last_error_at = EXCLUDED.last_error_at,
			last_error = EXCLUDED.last_error,
			http_status = EXCLUDED.http_status`
)

// reconcileRetries bounds transparent retries on serialization conflicts.
const reconcileRetries = 3

var _ payment.Repository = (*PaymentRepository)(nil)

// PaymentRepository implements payment.Repository backed by PostgreSQL.
//
// Reconcile locks the payment row (SELECT ... FOR UPDATE, which also
// serializes against the insert path via the primary key) so concurrent
// deliveries of the same notification execute their read-modify-write
// strictly one after the other.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository returns a PaymentRepository that uses the given pool.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// Reconcile runs fn against the current record for paymentID inside one
// transaction. Serialization conflicts are retried transparently.
func (r *PaymentRepository) Reconcile(
	ctx context.Context,
	paymentID string,
	fn func(ctx context.Context, tx payment.Tx, current *payment.Record) error,
) error {
	var lastErr error
	for attempt := 0; attempt < reconcileRetries; attempt++ {
		err := r.reconcileOnce(ctx, paymentID, fn)
		if err == nil {
			return nil
		}
		if !isSerializationFailure(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("reconciling payment %q: retries exhausted: %w", paymentID, lastErr)
}

func (r *PaymentRepository) reconcileOnce(
	ctx context.Context,
	paymentID string,
	fn func(ctx context.Context, tx payment.Tx, current *payment.Record) error,
) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := lockPayment(ctx, tx, paymentID)
	if err != nil {
		return err
	}

	if err := fn(ctx, paymentTx{tx: tx}, current); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing reconcile for %q: %w", paymentID, err)
	}
	return nil
}

// RecordFetchFailure stores failure diagnostics, creating the record when
// absent. Previously fetched state is left untouched.
func (r *PaymentRepository) RecordFetchFailure(
	ctx context.Context, paymentID string, at time.Time, httpStatus int, reason string,
) error {
	_, err := r.pool.Exec(ctx, recordFetchFailureSQL, paymentID, at, reason, httpStatus)
	if err != nil {
		return fmt.Errorf("recording fetch failure for %q: %w", paymentID, err)
	}
	return nil
}

// lockPayment reads and row-locks the payment record, returning nil when
// no record exists yet.
func lockPayment(ctx context.Context, tx pgx.Tx, paymentID string) (*payment.Record, error) {
	rows, err := tx.Query(ctx, selectPaymentForUpdateSQL, paymentID)
	if err != nil {
		return nil, fmt.Errorf("locking payment %q: %w", paymentID, err)
	}

	rec, err := pgx.CollectExactlyOneRow(rows, scanPayment)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("locking payment %q: %w", paymentID, err)
	}
	return &rec, nil
}

func scanPayment(row pgx.CollectableRow) (payment.Record, error) {
	var rec payment.Record
	err := row.Scan(
		&rec.ID, &rec.Status, &rec.Payload, &rec.Processed,
		&rec.FetchedAt, &rec.ProcessedAt, &rec.LastSeenAt,
		&rec.LastErrorAt, &rec.LastError, &rec.HTTPStatus,
	)
	return rec, err
}

// paymentTx adapts a pgx transaction to the domain's payment.Tx.
type paymentTx struct {
	tx pgx.Tx
}

var _ payment.Tx = paymentTx{}

func (t paymentTx) SavePayment(ctx context.Context, rec *payment.Record) error {
	_, err := t.tx.Exec(ctx, upsertPaymentSQL,
		rec.ID, rec.Status, rec.Payload, rec.Processed,
		rec.FetchedAt, rec.ProcessedAt, rec.LastSeenAt,
	)
	if err != nil {
		return fmt.Errorf("upserting payment %q: %w", rec.ID, err)
	}
	return nil
}

func (t paymentTx) TouchLastSeen(ctx context.Context, paymentID string, at time.Time) error {
	_, err := t.tx.Exec(ctx, touchLastSeenSQL, paymentID, at)
	if err != nil {
		return fmt.Errorf("touching payment %q: %w", paymentID, err)
	}
	return nil
}

// LinkOrder updates the order matched by external reference. A payment
// may arrive before the order exists, so zero updated rows is not an error.
func (t paymentTx) LinkOrder(ctx context.Context, externalRef, paymentID, status string) error {
	_, err := t.tx.Exec(ctx, linkOrderSQL, externalRef, status, paymentID)
	if err != nil {
		return fmt.Errorf("linking order %q: %w", externalRef, err)
	}
	return nil
}

// isSerializationFailure reports whether the error is a transaction
// conflict worth retrying (SQLSTATE 40001 or deadlock 40P01).
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}
