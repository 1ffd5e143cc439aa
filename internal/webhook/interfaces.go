// Package webhook implements WebhookDispatcher (subscription fan-out) and its
// delivery worker: HMAC-signed HTTP POST with a per-webhook backoff schedule
// and a delivery ledger.
package webhook

import (
	"context"
	"time"

	"github.com/ignite/sparkpost-monitor/internal/domain"
)

// WebhookRepository loads a tenant's active webhooks.
type WebhookRepository interface {
	ActiveForTenant(ctx context.Context, tenantID string) ([]domain.Webhook, error)
	Get(ctx context.Context, id string) (*domain.Webhook, error)
}

// DeliveryRepository persists the WebhookDelivery ledger.
type DeliveryRepository interface {
	Create(ctx context.Context, d *domain.WebhookDelivery) error
	UpdateResult(ctx context.Context, id string, status domain.WebhookDeliveryStatus, httpCode int, responseMS int64, nextRetryAt *time.Time) error
}
