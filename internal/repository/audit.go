package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mirante-studio/studio-api/internal/domain/payment"
)

const appendWebhookEventSQL = `INSERT INTO webhook_events
	(id, topic, headers, query, body, received_at)
	VALUES ($1, $2, $3, $4, $5, $6)`

var _ payment.AuditLog = (*WebhookAuditRepository)(nil)

// WebhookAuditRepository persists every incoming webhook delivery verbatim.
type WebhookAuditRepository struct {
	pool *pgxpool.Pool
}

// NewWebhookAuditRepository returns a WebhookAuditRepository that uses the
// given pool.
func NewWebhookAuditRepository(pool *pgxpool.Pool) *WebhookAuditRepository {
	return &WebhookAuditRepository{pool: pool}
}

// Append stores one audit entry. The raw body is kept as text so malformed
// payloads are recorded exactly as received.
func (r *WebhookAuditRepository) Append(ctx context.Context, e payment.AuditEntry) error {
	headers, err := json.Marshal(e.Headers)
	if err != nil {
		return fmt.Errorf("marshaling webhook headers: %w", err)
	}
	query, err := json.Marshal(e.Query)
	if err != nil {
		return fmt.Errorf("marshaling webhook query: %w", err)
	}

	_, err = r.pool.Exec(ctx, appendWebhookEventSQL,
		uuid.NewString(), e.Topic, headers, query, string(e.Body), e.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("appending webhook event: %w", err)
	}
	return nil
}
