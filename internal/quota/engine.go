package quota

import (
	"context"
	"time"

	"github.com/ignite/sparkpost-monitor/internal/domain"
	"github.com/ignite/sparkpost-monitor/internal/pkg/logger"
)

// Engine resolves a tenant's effective limits and enforces them on ingest.
type Engine struct {
	usage      UsageRepository
	rateLimits RateLimitRepository
}

// NewEngine builds a QuotaEngine over the given repositories.
func NewEngine(usage UsageRepository, rateLimits RateLimitRepository) *Engine {
	return &Engine{usage: usage, rateLimits: rateLimits}
}

// Limits is the resolved (daily, monthly) pair for a tenant. Zero means no
// limit.
type Limits struct {
	Daily   int
	Monthly int
}

// Resolve computes a tenant's effective daily/monthly limits against its
// plan, applying tenant overrides first.
func Resolve(tenant *domain.Tenant, plan *domain.Plan) Limits {
	return Limits{
		Daily:   tenant.DailyLimit(plan),
		Monthly: tenant.MonthlyLimit(plan),
	}
}

// Enforce checks whether enqueuing r additional recipients would exceed
// either limit, given the tenant's current daily and monthly usage. Returns
// a domain.Error with KindQuotaExceeded when it would.
func (e *Engine) Enforce(ctx context.Context, tenantID string, limits Limits, r int, now time.Time) error {
	day := domain.DayAnchor(now)
	anchor := domain.MonthAnchor(now)
	key := domain.MonthlyKey(anchor)

	var daily, monthly int
	var err error
	if limits.Daily > 0 {
		daily, err = e.usage.SumSentToday(ctx, tenantID, day)
		if err != nil {
			return domain.NewError(domain.KindInternal, err)
		}
	}
	if limits.Monthly > 0 {
		monthly, err = e.rateLimits.Get(ctx, tenantID, key, anchor)
		if err != nil {
			return domain.NewError(domain.KindInternal, err)
		}
	}

	if limits.Daily > 0 && daily+r > limits.Daily {
		return domain.NewError(domain.KindQuotaExceeded, nil)
	}
	if limits.Monthly > 0 && monthly+r > limits.Monthly {
		return domain.NewError(domain.KindQuotaExceeded, nil)
	}
	return nil
}

// RecordEnqueue is called after a successful (possibly partial) enqueue with
// the number of recipients that were actually appended to the stream. It
// ensures the monthly row exists, increments it by enqueued, then adds
// enqueued to today's UsageAggregate.sent. A UsageAggregate failure is
// logged and swallowed; it must never fail the ingest.
func (e *Engine) RecordEnqueue(ctx context.Context, tenantID string, enqueued int, now time.Time) error {
	if enqueued <= 0 {
		return nil
	}
	anchor := domain.MonthAnchor(now)
	key := domain.MonthlyKey(anchor)

	if err := e.rateLimits.EnsureRow(ctx, tenantID, key, anchor); err != nil {
		return domain.NewError(domain.KindInternal, err)
	}
	if err := e.rateLimits.Increment(ctx, tenantID, key, anchor, enqueued); err != nil {
		return domain.NewError(domain.KindInternal, err)
	}

	day := domain.DayAnchor(now)
	if err := e.usage.IncrementSent(ctx, tenantID, day, enqueued); err != nil {
		logger.Warn("usage aggregate increment failed", "tenant_id", tenantID, "error", err.Error())
	}
	return nil
}
