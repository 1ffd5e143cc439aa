package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ignite/sparkpost-monitor/internal/domain"
	"github.com/ignite/sparkpost-monitor/internal/pkg/logger"
)

// ListFilter narrows a suppression listing by type and/or reason; zero
// values mean "any".
type ListFilter struct {
	Type    domain.SuppressionType
	Reason  domain.SuppressionReason
	Limit   int
	Offset  int
}

// SuppressionRepo is the Postgres-backed home of the Suppression entity.
type SuppressionRepo struct{ db *sql.DB }

// NewSuppressionRepo creates a Postgres-backed suppression repository.
func NewSuppressionRepo(db *sql.DB) *SuppressionRepo { return &SuppressionRepo{db: db} }

// IsSuppressed implements outbound.SuppressionChecker. The check is
// advisory: any lookup failure resolves to false rather than blocking send.
func (r *SuppressionRepo) IsSuppressed(ctx context.Context, tenantID, address string) bool {
	entries, err := r.Get(ctx, tenantID, address)
	if err != nil {
		logger.Warn("suppression lookup failed", "tenant_id", tenantID, "error", err.Error())
		return false
	}
	now := time.Now().UTC()
	for i := range entries {
		if entries[i].Active(now) {
			return true
		}
	}
	return false
}

func (r *SuppressionRepo) Get(ctx context.Context, tenantID, address string) ([]domain.Suppression, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, address, type, reason, created_at, expires_at
		FROM core_suppressions WHERE tenant_id = $1 AND address = $2
	`, tenantID, address)
	if err != nil {
		return nil, fmt.Errorf("get suppressions: %w", err)
	}
	defer rows.Close()
	return scanSuppressions(rows)
}

func (r *SuppressionRepo) Add(ctx context.Context, s *domain.Suppression) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO core_suppressions (id, tenant_id, address, type, reason, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id, address, type) DO UPDATE
		SET reason = $5, created_at = $6, expires_at = $7
	`, s.ID, s.TenantID, s.Address, s.Type, s.Reason, s.CreatedAt, s.ExpiresAt)
	if err != nil {
		return fmt.Errorf("add suppression: %w", err)
	}
	return nil
}

func (r *SuppressionRepo) Remove(ctx context.Context, tenantID, address string, typ domain.SuppressionType) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM core_suppressions WHERE tenant_id = $1 AND address = $2 AND type = $3
	`, tenantID, address, typ)
	if err != nil {
		return fmt.Errorf("remove suppression: %w", err)
	}
	return nil
}

func (r *SuppressionRepo) List(ctx context.Context, tenantID string, f ListFilter) ([]domain.Suppression, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, address, type, reason, created_at, expires_at
		FROM core_suppressions
		WHERE tenant_id = $1
			AND ($2 = '' OR type = $2)
			AND ($3 = '' OR reason = $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5
	`, tenantID, f.Type, f.Reason, limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("list suppressions: %w", err)
	}
	defer rows.Close()
	return scanSuppressions(rows)
}

func scanSuppressions(rows *sql.Rows) ([]domain.Suppression, error) {
	var out []domain.Suppression
	for rows.Next() {
		var s domain.Suppression
		if err := rows.Scan(&s.ID, &s.TenantID, &s.Address, &s.Type, &s.Reason, &s.CreatedAt, &s.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan suppression: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
