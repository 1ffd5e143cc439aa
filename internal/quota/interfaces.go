// Package quota resolves per-tenant plan limits and enforces them before
// OutboundIngest enqueues a message, backed by a daily usage aggregate and a
// monthly rate-limit counter.
package quota

import (
	"context"
	"time"
)

// UsageRepository persists the daily UsageAggregate rollup.
type UsageRepository interface {
	// SumSentToday returns the tenant's sent count for the UTC day
	// containing now. Missing rows count as zero.
	SumSentToday(ctx context.Context, tenantID string, day time.Time) (int, error)

	// IncrementSent upserts today's row, adding sent to the existing count.
	IncrementSent(ctx context.Context, tenantID string, day time.Time, sent int) error
}

// RateLimitRepository persists the monthly RateLimitCounter.
type RateLimitRepository interface {
	// EnsureRow is an idempotent INSERT ... ON CONFLICT DO NOTHING for
	// (tenantID, key, windowStart).
	EnsureRow(ctx context.Context, tenantID, key string, windowStart time.Time) error

	// Increment atomically adds n (n >= 0) to the row's count.
	Increment(ctx context.Context, tenantID, key string, windowStart time.Time, n int) error

	// Get returns the current count, or zero if the row does not exist.
	Get(ctx context.Context, tenantID, key string, windowStart time.Time) (int, error)
}
