package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/ignite/sparkpost-monitor/internal/domain"
)

// WebhookRepo implements webhook.WebhookRepository against PostgreSQL.
type WebhookRepo struct{ db *sql.DB }

// NewWebhookRepo creates a Postgres-backed Webhook repository.
func NewWebhookRepo(db *sql.DB) *WebhookRepo { return &WebhookRepo{db: db} }

func (r *WebhookRepo) ActiveForTenant(ctx context.Context, tenantID string) ([]domain.Webhook, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, url, secret, events, batch_size, max_retries, backoff_seconds, active, created_at
		FROM core_webhooks WHERE tenant_id = $1 AND active = true
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list active webhooks: %w", err)
	}
	defer rows.Close()
	return scanWebhooks(rows)
}

func (r *WebhookRepo) Get(ctx context.Context, id string) (*domain.Webhook, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, url, secret, events, batch_size, max_retries, backoff_seconds, active, created_at
		FROM core_webhooks WHERE id = $1
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get webhook: %w", err)
	}
	defer rows.Close()

	hooks, err := scanWebhooks(rows)
	if err != nil {
		return nil, err
	}
	if len(hooks) == 0 {
		return nil, nil
	}
	return &hooks[0], nil
}

func scanWebhooks(rows *sql.Rows) ([]domain.Webhook, error) {
	var hooks []domain.Webhook
	for rows.Next() {
		var w domain.Webhook
		var backoff pq.Int64Array
		var eventsText pq.StringArray
		if err := rows.Scan(&w.ID, &w.TenantID, &w.URL, &w.Secret, &eventsText, &w.BatchSize, &w.MaxRetries, &backoff, &w.Active, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan webhook: %w", err)
		}
		w.Events = []string(eventsText)
		w.Backoff = make([]int, len(backoff))
		for i, b := range backoff {
			w.Backoff[i] = int(b)
		}
		hooks = append(hooks, w)
	}
	return hooks, nil
}

// WebhookDeliveryRepo implements webhook.DeliveryRepository against
// PostgreSQL.
type WebhookDeliveryRepo struct{ db *sql.DB }

// NewWebhookDeliveryRepo creates a Postgres-backed WebhookDelivery repository.
func NewWebhookDeliveryRepo(db *sql.DB) *WebhookDeliveryRepo { return &WebhookDeliveryRepo{db: db} }

func (r *WebhookDeliveryRepo) Create(ctx context.Context, d *domain.WebhookDelivery) error {
	payload, err := json.Marshal(d.Payload)
	if err != nil {
		return fmt.Errorf("marshal webhook delivery payload: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO core_webhook_deliveries
			(id, webhook_id, event_kind, event_id, attempt, status, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, d.ID, d.WebhookID, d.EventKind, nullString(d.EventID), d.Attempt, d.Status, payload, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("create webhook delivery: %w", err)
	}
	return nil
}

func (r *WebhookDeliveryRepo) UpdateResult(ctx context.Context, id string, status domain.WebhookDeliveryStatus, httpCode int, responseMS int64, nextRetryAt *time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE core_webhook_deliveries
		SET status = $2, http_code = $3, response_time_ms = $4, next_retry_at = $5
		WHERE id = $1
	`, id, status, httpCode, responseMS, nextRetryAt)
	if err != nil {
		return fmt.Errorf("update webhook delivery result: %w", err)
	}
	return nil
}
