package webhook

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/sparkpost-monitor/internal/domain"
	"github.com/ignite/sparkpost-monitor/internal/streambus"
)

// deliveryJob is the canonical payload appended to the webhook delivery
// stream.
type deliveryJob struct {
	DeliveryID string         `json:"delivery_id"`
	WebhookID  string         `json:"webhook_id"`
	EventKind  string         `json:"event_kind"`
	EventID    string         `json:"event_id,omitempty"`
	Payload    map[string]any `json:"payload"`
	Attempt    int            `json:"attempt"`
	EnqueuedAt time.Time      `json:"enqueued_at"`
}

// Dispatcher is WebhookDispatcher: on an outbound MessageEvent it loads the
// tenant's subscribed webhooks and enqueues one delivery job per match.
type Dispatcher struct {
	webhooks   WebhookRepository
	deliveries DeliveryRepository
	bus        streambus.Bus
	stream     string
}

// NewDispatcher wires a Dispatcher over its repositories and stream.
func NewDispatcher(webhooks WebhookRepository, deliveries DeliveryRepository, bus streambus.Bus, stream string) *Dispatcher {
	return &Dispatcher{webhooks: webhooks, deliveries: deliveries, bus: bus, stream: stream}
}

// Dispatch loads every active webhook for tenantID subscribed to kind,
// creates a pending WebhookDelivery row for each, and appends a delivery job
// to the stream. Failures to enqueue an individual webhook don't abort the
// others.
func (d *Dispatcher) Dispatch(ctx context.Context, tenantID, kind, eventID string, payload map[string]any) (int, error) {
	hooks, err := d.webhooks.ActiveForTenant(ctx, tenantID)
	if err != nil {
		return 0, domain.NewError(domain.KindInternal, err)
	}

	enqueued := 0
	for i := range hooks {
		hook := hooks[i]
		if !hook.Subscribes(kind) {
			continue
		}

		delivery := &domain.WebhookDelivery{
			ID:        uuid.New().String(),
			WebhookID: hook.ID,
			EventKind: kind,
			EventID:   eventID,
			Attempt:   1,
			Status:    domain.DeliveryPending,
			Payload:   payload,
			CreatedAt: time.Now(),
		}
		if err := d.deliveries.Create(ctx, delivery); err != nil {
			continue
		}

		fields, err := streambus.EncodeJSON(deliveryJob{
			DeliveryID: delivery.ID,
			WebhookID:  hook.ID,
			EventKind:  kind,
			EventID:    eventID,
			Payload:    payload,
			Attempt:    1,
			EnqueuedAt: time.Now(),
		})
		if err != nil {
			continue
		}
		if _, err := d.bus.Append(ctx, d.stream, fields); err != nil {
			continue
		}
		enqueued++
	}

	return enqueued, nil
}
