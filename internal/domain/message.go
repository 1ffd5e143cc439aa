package domain

import "time"

// MessageState enumerates the lifecycle states of a Message.
type MessageState string

const (
	MessagePreview     MessageState = "preview"
	MessageQueued      MessageState = "queued"
	MessageQueueFailed MessageState = "queue_failed"
	MessageSent        MessageState = "sent"
	MessageFailed      MessageState = "failed"
)

// Message is a single outbound send request, spanning one or more
// recipients. Mirrors OutboundIngest's input envelope plus lifecycle state.
type Message struct {
	ID            string            `json:"id" db:"id"`
	ExternalID    string            `json:"external_id" db:"external_id"`
	TenantID      string            `json:"tenant_id" db:"tenant_id"`
	DomainID      string            `json:"domain_id,omitempty" db:"domain_id"`
	FromEmail     string            `json:"from_email" db:"from_email"`
	FromName      string            `json:"from_name,omitempty" db:"from_name"`
	ReplyTo       string            `json:"reply_to,omitempty" db:"reply_to"`
	Subject       string            `json:"subject" db:"subject"`
	HTMLContent   string            `json:"html,omitempty" db:"html_content"`
	TextContent   string            `json:"text,omitempty" db:"text_content"`
	Headers       map[string]string `json:"headers,omitempty" db:"headers"`
	Attachments   []Attachment      `json:"attachments,omitempty" db:"-"`
	TrackOpens    bool              `json:"track_opens" db:"track_opens"`
	TrackClicks   bool              `json:"track_clicks" db:"track_clicks"`
	ProviderMsgID string            `json:"provider_message_id,omitempty" db:"provider_message_id"`
	State         MessageState      `json:"state" db:"state"`
	CreatedAt     time.Time         `json:"created_at" db:"created_at"`
	QueuedAt      *time.Time        `json:"queued_at,omitempty" db:"queued_at"`
	SentAt        *time.Time        `json:"sent_at,omitempty" db:"sent_at"`
}

// IsTerminal reports whether the message is in a final lifecycle state.
func (m *Message) IsTerminal() bool {
	return m.State == MessageSent || m.State == MessageFailed || m.State == MessageQueueFailed
}

// Attachment is a single file attached to a Message.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
	Base64      string `json:"base64"`
}

// RecipientType identifies the envelope bucket a MessageRecipient belongs to.
type RecipientType string

const (
	RecipientTo  RecipientType = "to"
	RecipientCC  RecipientType = "cc"
	RecipientBCC RecipientType = "bcc"
)

// RecipientStatus enumerates the per-recipient delivery lifecycle.
type RecipientStatus string

const (
	RecipientQueued     RecipientStatus = "queued"
	RecipientSent       RecipientStatus = "sent"
	RecipientDelivered  RecipientStatus = "delivered"
	RecipientBounced    RecipientStatus = "bounced"
	RecipientComplained RecipientStatus = "complained"
	RecipientDeferred   RecipientStatus = "deferred"
	RecipientFailed     RecipientStatus = "failed"
	RecipientSuppressed RecipientStatus = "suppressed"
)

// MessageRecipient is one address a Message is addressed to, with its own
// delivery status and tracking token.
type MessageRecipient struct {
	ID            string          `json:"id" db:"id"`
	MessageID     string          `json:"message_id" db:"message_id"`
	Type          RecipientType   `json:"type" db:"recipient_type"`
	Address       string          `json:"address" db:"address"`
	Name          string          `json:"name,omitempty" db:"name"`
	Status        RecipientStatus `json:"status" db:"status"`
	SMTPCode      string          `json:"smtp_code,omitempty" db:"smtp_code"`
	SMTPText      string          `json:"smtp_text,omitempty" db:"smtp_text"`
	TrackingToken string          `json:"tracking_token" db:"tracking_token"`
	SentAt        *time.Time      `json:"sent_at,omitempty" db:"sent_at"`
	DeliveredAt   *time.Time      `json:"delivered_at,omitempty" db:"delivered_at"`
	BouncedAt     *time.Time      `json:"bounced_at,omitempty" db:"bounced_at"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}
