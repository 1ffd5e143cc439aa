package domain

import "time"

// MessageEventKind enumerates the lifecycle and engagement events recorded
// against a Message.
type MessageEventKind string

const (
	EventPreview     MessageEventKind = "preview"
	EventQueued      MessageEventKind = "queued"
	EventQueueFailed MessageEventKind = "queue_failed"
	EventSent        MessageEventKind = "sent"
	EventFailed      MessageEventKind = "failed"
	EventDelivered   MessageEventKind = "delivered"
	EventBounced     MessageEventKind = "bounced"
	EventComplained  MessageEventKind = "complained"
	EventOpened      MessageEventKind = "opened"
	EventClicked     MessageEventKind = "clicked"
	EventSuppressed  MessageEventKind = "suppressed"
)

// MessageEvent is a single lifecycle or engagement event owned by a Message.
type MessageEvent struct {
	ID             string           `json:"id" db:"id"`
	MessageID      string           `json:"message_id" db:"message_id"`
	Kind           MessageEventKind `json:"kind" db:"kind"`
	RecipientAddr  string           `json:"recipient_address,omitempty" db:"recipient_address"`
	ProviderHint   string           `json:"provider_hint,omitempty" db:"provider_hint"`
	Payload        map[string]any   `json:"payload,omitempty" db:"payload"`
	OccurredAt     time.Time        `json:"occurred_at" db:"occurred_at"`
}
