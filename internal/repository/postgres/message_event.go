package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ignite/sparkpost-monitor/internal/domain"
)

// MessageEventRepo implements outbound.EventRepository against PostgreSQL.
type MessageEventRepo struct{ db *sql.DB }

// NewMessageEventRepo creates a Postgres-backed MessageEvent repository.
func NewMessageEventRepo(db *sql.DB) *MessageEventRepo { return &MessageEventRepo{db: db} }

func (r *MessageEventRepo) Append(ctx context.Context, e *domain.MessageEvent) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO core_message_events
			(id, message_id, kind, recipient_address, provider_hint, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID, e.MessageID, e.Kind, e.RecipientAddr, e.ProviderHint, payload, e.OccurredAt)
	if err != nil {
		return fmt.Errorf("append message event: %w", err)
	}
	return nil
}
