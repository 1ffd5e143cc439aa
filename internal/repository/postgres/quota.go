package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UsageRepo implements quota.UsageRepository against PostgreSQL.
type UsageRepo struct{ db *sql.DB }

// NewUsageRepo creates a Postgres-backed usage aggregate repository.
func NewUsageRepo(db *sql.DB) *UsageRepo { return &UsageRepo{db: db} }

func (r *UsageRepo) SumSentToday(ctx context.Context, tenantID string, day time.Time) (int, error) {
	var sent int
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(sent, 0) FROM core_usage_aggregates
		WHERE tenant_id = $1 AND day = $2
	`, tenantID, day).Scan(&sent)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("sum sent today: %w", err)
	}
	return sent, nil
}

func (r *UsageRepo) IncrementSent(ctx context.Context, tenantID string, day time.Time, sent int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO core_usage_aggregates (id, tenant_id, day, sent, delivered, bounced, complained, opens, clicks)
		VALUES ($1, $2, $3, $4, 0, 0, 0, 0, 0)
		ON CONFLICT (tenant_id, day) DO UPDATE SET
			sent = core_usage_aggregates.sent + EXCLUDED.sent
	`, uuid.New().String(), tenantID, day, sent)
	if err != nil {
		return fmt.Errorf("increment usage sent: %w", err)
	}
	return nil
}

// RateLimitRepo implements quota.RateLimitRepository against PostgreSQL.
type RateLimitRepo struct{ db *sql.DB }

// NewRateLimitRepo creates a Postgres-backed monthly counter repository.
func NewRateLimitRepo(db *sql.DB) *RateLimitRepo { return &RateLimitRepo{db: db} }

func (r *RateLimitRepo) EnsureRow(ctx context.Context, tenantID, key string, windowStart time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO core_rate_limit_counters (id, tenant_id, key, window_start, count)
		VALUES ($1, $2, $3, $4, 0)
		ON CONFLICT (tenant_id, key, window_start) DO NOTHING
	`, uuid.New().String(), tenantID, key, windowStart)
	if err != nil {
		return fmt.Errorf("ensure rate limit row: %w", err)
	}
	return nil
}

func (r *RateLimitRepo) Increment(ctx context.Context, tenantID, key string, windowStart time.Time, n int) error {
	if n < 0 {
		return fmt.Errorf("increment rate limit: negative n %d", n)
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE core_rate_limit_counters SET count = count + $4
		WHERE tenant_id = $1 AND key = $2 AND window_start = $3
	`, tenantID, key, windowStart, n)
	if err != nil {
		return fmt.Errorf("increment rate limit: %w", err)
	}
	return nil
}

func (r *RateLimitRepo) Get(ctx context.Context, tenantID, key string, windowStart time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT count FROM core_rate_limit_counters
		WHERE tenant_id = $1 AND key = $2 AND window_start = $3
	`, tenantID, key, windowStart).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get rate limit: %w", err)
	}
	return count, nil
}
