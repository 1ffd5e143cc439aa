package domain

import "time"

// Webhook is a tenant's subscription to MessageEvent kinds, delivered over
// HMAC-signed HTTP POST.
type Webhook struct {
	ID         string    `json:"id" db:"id"`
	TenantID   string    `json:"tenant_id" db:"tenant_id"`
	URL        string    `json:"url" db:"url"`
	Secret     string    `json:"-" db:"secret"`
	Events     []string  `json:"events" db:"-"`
	BatchSize  int       `json:"batch_size" db:"batch_size"`
	MaxRetries int       `json:"max_retries" db:"max_retries"`
	Backoff    []int     `json:"backoff_seconds" db:"-"`
	Active     bool      `json:"active" db:"active"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Subscribes reports whether the webhook is subscribed to the given event
// kind.
func (w *Webhook) Subscribes(kind string) bool {
	for _, e := range w.Events {
		if e == kind {
			return true
		}
	}
	return false
}

// BackoffFor returns the delay before retry number attempt (1-indexed). Falls
// back to a doubling schedule anchored at 30s when the webhook carries no
// explicit schedule.
func (w *Webhook) BackoffFor(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if len(w.Backoff) > 0 {
		idx := attempt - 1
		if idx >= len(w.Backoff) {
			idx = len(w.Backoff) - 1
		}
		return time.Duration(w.Backoff[idx]) * time.Second
	}
	base := 30 * time.Second
	for i := 1; i < attempt; i++ {
		base *= 2
	}
	return base
}

// WebhookDeliveryStatus enumerates the lifecycle of one delivery attempt.
type WebhookDeliveryStatus string

const (
	DeliveryPending WebhookDeliveryStatus = "pending"
	DeliverySucceeded WebhookDeliveryStatus = "succeeded"
	DeliveryRetrying  WebhookDeliveryStatus = "retrying"
	DeliveryFailed    WebhookDeliveryStatus = "failed"
)

// WebhookDelivery is the ledger row for one attempt to deliver an event to
// a Webhook.
type WebhookDelivery struct {
	ID           string                `json:"id" db:"id"`
	WebhookID    string                `json:"webhook_id" db:"webhook_id"`
	EventKind    string                `json:"event_kind" db:"event_kind"`
	EventID      string                `json:"event_id,omitempty" db:"event_id"`
	Attempt      int                   `json:"attempt" db:"attempt"`
	Status       WebhookDeliveryStatus `json:"status" db:"status"`
	HTTPCode     int                   `json:"http_code,omitempty" db:"http_code"`
	ResponseMS   int64                 `json:"response_time_ms,omitempty" db:"response_time_ms"`
	Payload      map[string]any        `json:"payload" db:"payload"`
	NextRetryAt  *time.Time            `json:"next_retry_at,omitempty" db:"next_retry_at"`
	CreatedAt    time.Time             `json:"created_at" db:"created_at"`
}

// Terminal reports whether the delivery has exhausted its retry budget.
func (d *WebhookDelivery) Terminal(maxRetries int) bool {
	return d.Attempt > maxRetries
}
