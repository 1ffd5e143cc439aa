package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ignite/sparkpost-monitor/internal/domain"
)

// DomainRepo implements persistence for domain.Domain against PostgreSQL.
type DomainRepo struct{ db *sql.DB }

// NewDomainRepo creates a Postgres-backed Domain repository.
func NewDomainRepo(db *sql.DB) *DomainRepo { return &DomainRepo{db: db} }

func (r *DomainRepo) Get(ctx context.Context, tenantID, id string) (*domain.Domain, error) {
	var d domain.Domain
	var expectations, flags []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, apex, expectations, flags, status, last_checked_at, verified_at, verification_report, created_at
		FROM core_domains WHERE id = $1 AND tenant_id = $2
	`, id, tenantID).Scan(&d.ID, &d.TenantID, &d.Apex, &expectations, &flags, &d.Status, &d.LastCheckedAt, &d.VerifiedAt, &d.VerificationReport, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get domain: %w", err)
	}
	if err := json.Unmarshal(expectations, &d.Expectations); err != nil {
		return nil, fmt.Errorf("unmarshal domain expectations: %w", err)
	}
	if err := json.Unmarshal(flags, &d.Flags); err != nil {
		return nil, fmt.Errorf("unmarshal domain flags: %w", err)
	}
	return &d, nil
}

// GetByID loads a Domain by id alone, with no tenant scoping. Used by
// operational tooling (e.g. cmd/dkimsync) that walks every active DKIM key
// across every tenant; tenant-scoped callers should use Get instead.
func (r *DomainRepo) GetByID(ctx context.Context, id string) (*domain.Domain, error) {
	var d domain.Domain
	var expectations, flags []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, apex, expectations, flags, status, last_checked_at, verified_at, verification_report, created_at
		FROM core_domains WHERE id = $1
	`, id).Scan(&d.ID, &d.TenantID, &d.Apex, &expectations, &flags, &d.Status, &d.LastCheckedAt, &d.VerifiedAt, &d.VerificationReport, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get domain by id: %w", err)
	}
	if err := json.Unmarshal(expectations, &d.Expectations); err != nil {
		return nil, fmt.Errorf("unmarshal domain expectations: %w", err)
	}
	if err := json.Unmarshal(flags, &d.Flags); err != nil {
		return nil, fmt.Errorf("unmarshal domain flags: %w", err)
	}
	return &d, nil
}

func (r *DomainRepo) ListDue(ctx context.Context, limit int) ([]domain.Domain, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, apex, expectations, flags, status, last_checked_at, verified_at, verification_report, created_at
		FROM core_domains
		WHERE status != 'active' OR last_checked_at IS NULL OR last_checked_at < now() - interval '1 hour'
		ORDER BY last_checked_at ASC NULLS FIRST
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list due domains: %w", err)
	}
	defer rows.Close()

	var out []domain.Domain
	for rows.Next() {
		var d domain.Domain
		var expectations, flags []byte
		if err := rows.Scan(&d.ID, &d.TenantID, &d.Apex, &expectations, &flags, &d.Status, &d.LastCheckedAt, &d.VerifiedAt, &d.VerificationReport, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan due domain: %w", err)
		}
		json.Unmarshal(expectations, &d.Expectations)
		json.Unmarshal(flags, &d.Flags)
		out = append(out, d)
	}
	return out, nil
}

// UpdateVerification records the outcome of a verification pass. verified_at
// is bumped to now() only on the row's first transition into active; a
// domain re-verified while already active keeps its original verified_at.
func (r *DomainRepo) UpdateVerification(ctx context.Context, id string, status domain.DomainStatus, report string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE core_domains
		SET status = $2, verification_report = $3, last_checked_at = now(),
			verified_at = CASE WHEN $2 = 'active' AND status != 'active' THEN now() ELSE verified_at END
		WHERE id = $1
	`, id, status, report)
	if err != nil {
		return fmt.Errorf("update domain verification: %w", err)
	}
	return nil
}

// DkimKeyRepo implements persistence for domain.DkimKey against PostgreSQL.
type DkimKeyRepo struct{ db *sql.DB }

// NewDkimKeyRepo creates a Postgres-backed DkimKey repository.
func NewDkimKeyRepo(db *sql.DB) *DkimKeyRepo { return &DkimKeyRepo{db: db} }

func (r *DkimKeyRepo) ActiveForDomain(ctx context.Context, domainID string) (*domain.DkimKey, error) {
	var k domain.DkimKey
	err := r.db.QueryRowContext(ctx, `
		SELECT id, domain_id, selector, public_pem, private_key_path, txt_value, active, created_at, rotated_at
		FROM core_dkim_keys WHERE domain_id = $1 AND active = true
	`, domainID).Scan(&k.ID, &k.DomainID, &k.Selector, &k.PublicPEM, &k.PrivateKeyPath, &k.TXTValue, &k.Active, &k.CreatedAt, &k.RotatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active dkim key: %w", err)
	}
	return &k, nil
}

func (r *DkimKeyRepo) ListAllActive(ctx context.Context) ([]domain.DkimKey, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT k.id, k.domain_id, k.selector, k.public_pem, k.private_key_path, k.txt_value, k.active, k.created_at, k.rotated_at
		FROM core_dkim_keys k WHERE k.active = true
	`)
	if err != nil {
		return nil, fmt.Errorf("list active dkim keys: %w", err)
	}
	defer rows.Close()

	var out []domain.DkimKey
	for rows.Next() {
		var k domain.DkimKey
		if err := rows.Scan(&k.ID, &k.DomainID, &k.Selector, &k.PublicPEM, &k.PrivateKeyPath, &k.TXTValue, &k.Active, &k.CreatedAt, &k.RotatedAt); err != nil {
			return nil, fmt.Errorf("scan active dkim key: %w", err)
		}
		out = append(out, k)
	}
	return out, nil
}

func (r *DkimKeyRepo) Create(ctx context.Context, k *domain.DkimKey) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO core_dkim_keys (id, domain_id, selector, public_pem, private_key_path, txt_value, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, k.ID, k.DomainID, k.Selector, k.PublicPEM, k.PrivateKeyPath, k.TXTValue, k.Active, k.CreatedAt)
	if err != nil {
		return fmt.Errorf("create dkim key: %w", err)
	}
	return nil
}
