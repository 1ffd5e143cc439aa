package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/sparkpost-monitor/internal/domain"
)

// SegmentRepo implements segment.SegmentRepository against PostgreSQL.
type SegmentRepo struct{ db *sql.DB }

// NewSegmentRepo creates a Postgres-backed Segment repository.
func NewSegmentRepo(db *sql.DB) *SegmentRepo { return &SegmentRepo{db: db} }

func (r *SegmentRepo) Get(ctx context.Context, tenantID, id string) (*domain.Segment, error) {
	s := &domain.Segment{}
	var definition []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, definition, materialized_count, last_built_at, created_at
		FROM core_segments WHERE id = $1 AND tenant_id = $2
	`, id, tenantID).Scan(&s.ID, &s.TenantID, &s.Name, &definition, &s.MaterializedCount, &s.LastBuiltAt, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get segment: %w", err)
	}
	return s, nil
}

func (r *SegmentRepo) UpdateCounters(ctx context.Context, segmentID string, materializedCount int, builtAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE core_segments SET materialized_count = $2, last_built_at = $3 WHERE id = $1
	`, segmentID, materializedCount, builtAt)
	if err != nil {
		return fmt.Errorf("update segment counters: %w", err)
	}
	return nil
}

// ContactMatchRepo implements segment.MatchRepository against PostgreSQL.
type ContactMatchRepo struct{ db *sql.DB }

// NewContactMatchRepo creates a Postgres-backed segment evaluator.
func NewContactMatchRepo(db *sql.DB) *ContactMatchRepo { return &ContactMatchRepo{db: db} }

// Evaluate builds a single query ANDing every optional predicate in def,
// always dropping contacts with an empty address and those bounced or
// unsubscribed.
func (r *ContactMatchRepo) Evaluate(ctx context.Context, tenantID string, def domain.SegmentDefinition) ([]string, error) {
	q := strings.Builder{}
	q.WriteString(`
		SELECT c.id FROM core_contacts c
		WHERE c.tenant_id = $1
		  AND c.email <> ''
		  AND c.status NOT IN ('bounced', 'unsubscribed')
	`)
	args := []interface{}{tenantID}
	idx := 2

	if def.Status != "" {
		q.WriteString(fmt.Sprintf(" AND c.status = $%d", idx))
		args = append(args, def.Status)
		idx++
	}
	if def.EmailContains != "" {
		q.WriteString(fmt.Sprintf(" AND c.email ILIKE $%d", idx))
		args = append(args, "%"+def.EmailContains+"%")
		idx++
	}
	if def.GDPRConsent != nil {
		if *def.GDPRConsent {
			q.WriteString(" AND c.gdpr_consent_at IS NOT NULL")
		} else {
			q.WriteString(" AND c.gdpr_consent_at IS NULL")
		}
	}
	if len(def.InListIDs) > 0 {
		q.WriteString(fmt.Sprintf(`
		  AND EXISTS (SELECT 1 FROM core_list_contacts lc
		              WHERE lc.contact_id = c.id AND lc.list_id = ANY($%d))`, idx))
		args = append(args, pq.Array(def.InListIDs))
		idx++
	}
	if len(def.NotInListIDs) > 0 {
		q.WriteString(fmt.Sprintf(`
		  AND NOT EXISTS (SELECT 1 FROM core_list_contacts lc
		                  WHERE lc.contact_id = c.id AND lc.list_id = ANY($%d))`, idx))
		args = append(args, pq.Array(def.NotInListIDs))
		idx++
	}

	rows, err := r.db.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("evaluate segment: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan contact id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// SegmentMemberRepo implements segment.MemberRepository against PostgreSQL.
type SegmentMemberRepo struct{ db *sql.DB }

// NewSegmentMemberRepo creates a Postgres-backed SegmentMember repository.
func NewSegmentMemberRepo(db *sql.DB) *SegmentMemberRepo { return &SegmentMemberRepo{db: db} }

func (r *SegmentMemberRepo) ExistingMembers(ctx context.Context, segmentID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT contact_id FROM core_segment_members WHERE segment_id = $1`, segmentID)
	if err != nil {
		return nil, fmt.Errorf("list segment members: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan member id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *SegmentMemberRepo) BulkAdd(ctx context.Context, segmentID string, contactIDs []string, at time.Time) error {
	if len(contactIDs) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin segment member add: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO core_segment_members (segment_id, contact_id, added_at)
		SELECT $1, unnest($2::text[]), $3
		ON CONFLICT (segment_id, contact_id) DO NOTHING
	`, segmentID, pq.Array(contactIDs), at)
	if err != nil {
		return fmt.Errorf("bulk add segment members: %w", err)
	}
	return tx.Commit()
}

func (r *SegmentMemberRepo) BulkRemove(ctx context.Context, segmentID string, contactIDs []string) error {
	if len(contactIDs) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin segment member remove: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		DELETE FROM core_segment_members WHERE segment_id = $1 AND contact_id = ANY($2)
	`, segmentID, pq.Array(contactIDs))
	if err != nil {
		return fmt.Errorf("bulk remove segment members: %w", err)
	}
	return tx.Commit()
}

// SegmentBuildRepo implements segment.BuildRepository against PostgreSQL.
type SegmentBuildRepo struct{ db *sql.DB }

// NewSegmentBuildRepo creates a Postgres-backed SegmentBuild repository.
func NewSegmentBuildRepo(db *sql.DB) *SegmentBuildRepo { return &SegmentBuildRepo{db: db} }

func (r *SegmentBuildRepo) Append(ctx context.Context, build *domain.SegmentBuild) error {
	if build.ID == "" {
		build.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO core_segment_builds (id, segment_id, matches, hash, built_at)
		VALUES ($1, $2, $3, $4, $5)
	`, build.ID, build.SegmentID, build.Matches, build.Hash, build.BuiltAt)
	if err != nil {
		return fmt.Errorf("append segment build: %w", err)
	}
	return nil
}
