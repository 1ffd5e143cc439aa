package outbound

import "github.com/ignite/sparkpost-monitor/internal/domain"

// mailJob is the canonical JSON payload appended to the mail stream: one
// job per recipient, carrying the full sender/headers context so the
// worker builds the outgoing email from the job alone; it loads the
// Message only to confirm that it still exists.
type mailJob struct {
	MessageID     string            `json:"message_id"`
	TenantID      string            `json:"tenant_id"`
	FromEmail     string            `json:"from_email"`
	FromName      string            `json:"from_name,omitempty"`
	ReplyTo       string            `json:"reply_to,omitempty"`
	Subject       string            `json:"subject"`
	HTMLContent   string            `json:"html_content,omitempty"`
	TextContent   string            `json:"text_content,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
	Bucket        domain.RecipientType `json:"bucket"`
	RecipientID   string            `json:"recipient_id"`
	Address       string            `json:"address"`
	Name          string            `json:"name,omitempty"`
	TrackingToken string            `json:"tracking_token"`
	TrackOpens    bool              `json:"track_opens"`
	TrackClicks   bool              `json:"track_clicks"`
	Retries       int               `json:"retries"`
}
