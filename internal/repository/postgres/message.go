package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ignite/sparkpost-monitor/internal/domain"
)

// MessageRepo implements outbound.MessageRepository against PostgreSQL.
type MessageRepo struct{ db *sql.DB }

// NewMessageRepo creates a Postgres-backed Message repository.
func NewMessageRepo(db *sql.DB) *MessageRepo { return &MessageRepo{db: db} }

func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	headers, err := json.Marshal(m.Headers)
	if err != nil {
		return fmt.Errorf("marshal message headers: %w", err)
	}
	attachments, err := json.Marshal(m.Attachments)
	if err != nil {
		return fmt.Errorf("marshal message attachments: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO core_messages
			(id, external_id, tenant_id, domain_id, from_email, from_name, reply_to,
			 subject, html_content, text_content, headers, attachments,
			 track_opens, track_clicks, state, created_at, queued_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, m.ID, m.ExternalID, m.TenantID, nullString(m.DomainID), m.FromEmail, m.FromName, m.ReplyTo,
		m.Subject, m.HTMLContent, m.TextContent, headers, attachments,
		m.TrackOpens, m.TrackClicks, m.State, m.CreatedAt, m.QueuedAt)
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

func (r *MessageRepo) Get(ctx context.Context, tenantID, id string) (*domain.Message, error) {
	m := &domain.Message{}
	var domainID sql.NullString
	var headers, attachments []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, external_id, tenant_id, domain_id, from_email, from_name, reply_to,
		       subject, COALESCE(html_content, ''), COALESCE(text_content, ''),
		       headers, attachments, track_opens, track_clicks,
		       COALESCE(provider_message_id, ''), state, created_at, queued_at, sent_at
		FROM core_messages
		WHERE id = $1 AND tenant_id = $2
	`, id, tenantID).Scan(
		&m.ID, &m.ExternalID, &m.TenantID, &domainID, &m.FromEmail, &m.FromName, &m.ReplyTo,
		&m.Subject, &m.HTMLContent, &m.TextContent,
		&headers, &attachments, &m.TrackOpens, &m.TrackClicks,
		&m.ProviderMsgID, &m.State, &m.CreatedAt, &m.QueuedAt, &m.SentAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	m.DomainID = domainID.String
	if len(headers) > 0 {
		_ = json.Unmarshal(headers, &m.Headers)
	}
	if len(attachments) > 0 {
		_ = json.Unmarshal(attachments, &m.Attachments)
	}
	return m, nil
}

func (r *MessageRepo) UpdateState(ctx context.Context, id string, state domain.MessageState, sentAt *time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE core_messages SET state = $2, sent_at = COALESCE($3, sent_at)
		WHERE id = $1
	`, id, state, sentAt)
	if err != nil {
		return fmt.Errorf("update message state: %w", err)
	}
	return nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
