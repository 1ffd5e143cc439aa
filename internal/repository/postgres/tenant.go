package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/sparkpost-monitor/internal/domain"
)

// TenantRepo implements outbound.TenantRepository against PostgreSQL.
type TenantRepo struct{ db *sql.DB }

// NewTenantRepo creates a Postgres-backed Tenant/Plan repository.
func NewTenantRepo(db *sql.DB) *TenantRepo { return &TenantRepo{db: db} }

func (r *TenantRepo) GetTenant(ctx context.Context, id string) (*domain.Tenant, error) {
	t := &domain.Tenant{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, plan_id, daily_override, month_override, created_at
		FROM core_tenants WHERE id = $1
	`, id).Scan(&t.ID, &t.PlanID, &t.DailyOverride, &t.MonthOverride, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.NewError(domain.KindNotFound, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	return t, nil
}

func (r *TenantRepo) GetPlan(ctx context.Context, id string) (*domain.Plan, error) {
	p := &domain.Plan{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, monthly_price, included_messages, emails_per_day, emails_per_month
		FROM core_plans WHERE id = $1
	`, id).Scan(&p.ID, &p.MonthlyPrice, &p.IncludedMessages, &p.Quotas.EmailsPerDay, &p.Quotas.EmailsPerMonth)
	if err == sql.ErrNoRows {
		return nil, domain.NewError(domain.KindNotFound, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return p, nil
}
