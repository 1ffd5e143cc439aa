package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ignite/sparkpost-monitor/internal/domain"
)

// RecipientRepo implements outbound.RecipientRepository against PostgreSQL.
type RecipientRepo struct{ db *sql.DB }

// NewRecipientRepo creates a Postgres-backed MessageRecipient repository.
func NewRecipientRepo(db *sql.DB) *RecipientRepo { return &RecipientRepo{db: db} }

func (r *RecipientRepo) CreateBatch(ctx context.Context, recipients []domain.MessageRecipient) error {
	if len(recipients) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin recipient batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO core_message_recipients
			(id, message_id, recipient_type, address, name, status, tracking_token, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`)
	if err != nil {
		return fmt.Errorf("prepare recipient insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range recipients {
		if _, err := stmt.ExecContext(ctx, rec.ID, rec.MessageID, rec.Type, rec.Address, rec.Name,
			rec.Status, rec.TrackingToken, rec.CreatedAt); err != nil {
			return fmt.Errorf("insert recipient %s: %w", rec.Address, err)
		}
	}
	return tx.Commit()
}

func (r *RecipientRepo) UpdateStatus(ctx context.Context, id string, status domain.RecipientStatus, at time.Time) error {
	var column string
	switch status {
	case domain.RecipientSent:
		column = "sent_at"
	case domain.RecipientDelivered:
		column = "delivered_at"
	case domain.RecipientBounced:
		column = "bounced_at"
	default:
		column = ""
	}

	if column == "" {
		_, err := r.db.ExecContext(ctx, `UPDATE core_message_recipients SET status = $2 WHERE id = $1`, id, status)
		if err != nil {
			return fmt.Errorf("update recipient status: %w", err)
		}
		return nil
	}

	query := fmt.Sprintf(`UPDATE core_message_recipients SET status = $2, %s = $3 WHERE id = $1`, column)
	if _, err := r.db.ExecContext(ctx, query, id, status, at); err != nil {
		return fmt.Errorf("update recipient status: %w", err)
	}
	return nil
}
