package webhook

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ignite/sparkpost-monitor/internal/domain"
	"github.com/ignite/sparkpost-monitor/internal/streambus"
)

type fakeWebhooks struct {
	hooks []domain.Webhook
	byID  map[string]*domain.Webhook
}

func (f *fakeWebhooks) ActiveForTenant(ctx context.Context, tenantID string) ([]domain.Webhook, error) {
	return f.hooks, nil
}

func (f *fakeWebhooks) Get(ctx context.Context, id string) (*domain.Webhook, error) {
	if f.byID == nil {
		return nil, nil
	}
	return f.byID[id], nil
}

type fakeDeliveries struct {
	created  []domain.WebhookDelivery
	statuses map[string]domain.WebhookDeliveryStatus
}

func newFakeDeliveries() *fakeDeliveries {
	return &fakeDeliveries{statuses: map[string]domain.WebhookDeliveryStatus{}}
}

func (f *fakeDeliveries) Create(ctx context.Context, d *domain.WebhookDelivery) error {
	f.created = append(f.created, *d)
	return nil
}

func (f *fakeDeliveries) UpdateResult(ctx context.Context, id string, status domain.WebhookDeliveryStatus, httpCode int, responseMS int64, nextRetryAt *time.Time) error {
	f.statuses[id] = status
	return nil
}

type fakeBus struct {
	appended []map[string]string
	acked    []string
}

func (b *fakeBus) Append(ctx context.Context, stream string, fields map[string]string) (string, error) {
	b.appended = append(b.appended, fields)
	return "1-0", nil
}
func (b *fakeBus) EnsureGroup(ctx context.Context, stream, group, startID string) error { return nil }
func (b *fakeBus) ReadGroup(ctx context.Context, stream, group, consumer, start string, count int64, block time.Duration) ([]streambus.Entry, error) {
	return nil, nil
}
func (b *fakeBus) Ack(ctx context.Context, stream, group, entryID string) error {
	b.acked = append(b.acked, entryID)
	return nil
}
func (b *fakeBus) Pending(ctx context.Context, stream, group string, limit int64) ([]streambus.PendingEntry, error) {
	return nil, nil
}
func (b *fakeBus) Claim(ctx context.Context, stream, group, consumer string, minIdle time.Duration, ids []string) ([]streambus.Entry, error) {
	return nil, nil
}
func (b *fakeBus) AutoClaim(ctx context.Context, stream, group, consumer string, minIdle time.Duration, start string, count int64) ([]streambus.Entry, string, error) {
	return nil, "0-0", nil
}

func TestDispatchSkipsUnsubscribedWebhooks(t *testing.T) {
	webhooks := &fakeWebhooks{hooks: []domain.Webhook{
		{ID: "w1", Events: []string{"sent"}, Active: true},
		{ID: "w2", Events: []string{"bounced"}, Active: true},
	}}
	deliveries := newFakeDeliveries()
	bus := &fakeBus{}
	d := NewDispatcher(webhooks, deliveries, bus, "webhooks:deliveries")

	n, err := d.Dispatch(context.Background(), "t1", "sent", "evt-1", map[string]any{"a": 1})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Len(t, deliveries.created, 1)
	require.Equal(t, "w1", deliveries.created[0].WebhookID)
	require.Len(t, bus.appended, 1)
}

func TestDispatchNoMatchesEnqueuesNothing(t *testing.T) {
	webhooks := &fakeWebhooks{hooks: []domain.Webhook{{ID: "w1", Events: []string{"bounced"}, Active: true}}}
	deliveries := newFakeDeliveries()
	bus := &fakeBus{}
	d := NewDispatcher(webhooks, deliveries, bus, "webhooks:deliveries")

	n, err := d.Dispatch(context.Background(), "t1", "sent", "evt-1", map[string]any{})
	require.NoError(t, err)
	require.Zero(t, n)
	require.Empty(t, bus.appended)
}
