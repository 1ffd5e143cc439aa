package webhook

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ignite/sparkpost-monitor/internal/domain"
	"github.com/ignite/sparkpost-monitor/internal/streambus"
)

type fakeDoer struct {
	statusCode int
	err        error
	requests   []*http.Request
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &http.Response{StatusCode: f.statusCode, Body: io.NopCloser(strings.NewReader(""))}, nil
}

func entryFor(t *testing.T, job deliveryJob) streambus.Entry {
	fields, err := streambus.EncodeJSON(job)
	require.NoError(t, err)
	return streambus.Entry{ID: "1-0", Fields: fields}
}

func newTestWorker(doer *fakeDoer, webhooks *fakeWebhooks, deliveries *fakeDeliveries, bus *fakeBus) *Worker {
	cfg := WorkerConfig{Stream: "webhooks:deliveries", Group: "webhook_workers", Consumer: "w1", DLQStream: "webhooks:dlq"}
	return NewWorker(bus, webhooks, deliveries, doer, cfg)
}

func TestProcessMalformedJobAcksAndDrops(t *testing.T) {
	bus := &fakeBus{}
	w := newTestWorker(&fakeDoer{}, &fakeWebhooks{}, newFakeDeliveries(), bus)

	w.process(context.Background(), streambus.Entry{ID: "1-0", Fields: map[string]string{"a": "1", "b": "2"}})
	require.Empty(t, bus.appended)
	require.Equal(t, []string{"1-0"}, bus.acked)
}

func TestProcessSuccessMarksDelivered(t *testing.T) {
	hook := &domain.Webhook{ID: "w1", URL: "https://tenant.example.com/hook", Secret: "shh", Active: true, MaxRetries: 3}
	webhooks := &fakeWebhooks{byID: map[string]*domain.Webhook{"w1": hook}}
	deliveries := newFakeDeliveries()
	doer := &fakeDoer{statusCode: 200}
	bus := &fakeBus{}
	w := newTestWorker(doer, webhooks, deliveries, bus)

	entry := entryFor(t, deliveryJob{DeliveryID: "d1", WebhookID: "w1", EventKind: "sent", Attempt: 1, Payload: map[string]any{}})
	w.process(context.Background(), entry)

	require.Equal(t, domain.DeliverySucceeded, deliveries.statuses["d1"])
	require.Len(t, doer.requests, 1)
	require.NotEmpty(t, doer.requests[0].Header.Get("X-Monkeys-Signature"))
	require.Empty(t, bus.appended, "success must not re-enqueue")
}

func TestProcessFailureBelowMaxRetriesReenqueues(t *testing.T) {
	hook := &domain.Webhook{ID: "w1", URL: "https://tenant.example.com/hook", Secret: "shh", Active: true, MaxRetries: 3, Backoff: []int{0, 0, 0}}
	webhooks := &fakeWebhooks{byID: map[string]*domain.Webhook{"w1": hook}}
	deliveries := newFakeDeliveries()
	doer := &fakeDoer{statusCode: 500}
	bus := &fakeBus{}
	w := newTestWorker(doer, webhooks, deliveries, bus)

	entry := entryFor(t, deliveryJob{DeliveryID: "d1", WebhookID: "w1", EventKind: "sent", Attempt: 1, Payload: map[string]any{}})
	w.process(context.Background(), entry)

	require.Equal(t, domain.DeliveryRetrying, deliveries.statuses["d1"])
	require.Len(t, bus.appended, 1)
}

func TestProcessFailureAtMaxRetriesDeadLetters(t *testing.T) {
	hook := &domain.Webhook{ID: "w1", URL: "https://tenant.example.com/hook", Secret: "shh", Active: true, MaxRetries: 2}
	webhooks := &fakeWebhooks{byID: map[string]*domain.Webhook{"w1": hook}}
	deliveries := newFakeDeliveries()
	doer := &fakeDoer{statusCode: 500}
	bus := &fakeBus{}
	w := newTestWorker(doer, webhooks, deliveries, bus)

	entry := entryFor(t, deliveryJob{DeliveryID: "d1", WebhookID: "w1", EventKind: "sent", Attempt: 2, Payload: map[string]any{}})
	w.process(context.Background(), entry)

	require.Equal(t, domain.DeliveryFailed, deliveries.statuses["d1"])
	require.Len(t, bus.appended, 1, "terminal failure must append to the DLQ stream")
}

func TestProcessMissingWebhookAcksAndDrops(t *testing.T) {
	webhooks := &fakeWebhooks{byID: map[string]*domain.Webhook{}}
	deliveries := newFakeDeliveries()
	bus := &fakeBus{}
	w := newTestWorker(&fakeDoer{}, webhooks, deliveries, bus)

	entry := entryFor(t, deliveryJob{DeliveryID: "d1", WebhookID: "missing", Attempt: 1})
	w.process(context.Background(), entry)

	require.Empty(t, deliveries.statuses)
	require.Empty(t, bus.appended)
	require.Equal(t, []string{"1-0"}, bus.acked)
}
