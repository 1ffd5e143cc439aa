// Package outbound implements message ingestion (validation, persistence,
// per-recipient stream fan-out) and the consumer-group worker that drains
// the mail stream and hands each job to a mailsender.Sender.
package outbound

import (
	"context"
	"time"

	"github.com/ignite/sparkpost-monitor/internal/domain"
	"github.com/ignite/sparkpost-monitor/internal/quota"
)

// MessageRepository persists Message rows and their lifecycle transitions.
type MessageRepository interface {
	Create(ctx context.Context, m *domain.Message) error
	Get(ctx context.Context, tenantID, id string) (*domain.Message, error)
	UpdateState(ctx context.Context, id string, state domain.MessageState, sentAt *time.Time) error
}

// RecipientRepository persists MessageRecipient rows.
type RecipientRepository interface {
	CreateBatch(ctx context.Context, recipients []domain.MessageRecipient) error
	UpdateStatus(ctx context.Context, id string, status domain.RecipientStatus, at time.Time) error
}

// EventRepository appends MessageEvent rows.
type EventRepository interface {
	Append(ctx context.Context, e *domain.MessageEvent) error
}

// TenantRepository resolves the tenant and plan QuotaEngine needs to
// compute effective limits.
type TenantRepository interface {
	GetTenant(ctx context.Context, id string) (*domain.Tenant, error)
	GetPlan(ctx context.Context, id string) (*domain.Plan, error)
}

// QuotaEnforcer is the subset of quota.Engine OutboundIngest depends on.
type QuotaEnforcer interface {
	Enforce(ctx context.Context, tenantID string, limits quota.Limits, r int, now time.Time) error
	RecordEnqueue(ctx context.Context, tenantID string, enqueued int, now time.Time) error
}

// SuppressionChecker reports whether an address currently carries an active
// suppression entry for a tenant. A true result skips the recipient during
// fan-out; the check is advisory and failures must never block sending, so
// implementations should resolve to false rather than erroring.
type SuppressionChecker interface {
	IsSuppressed(ctx context.Context, tenantID, address string) bool
}
