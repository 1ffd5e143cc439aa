package outbound

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ignite/sparkpost-monitor/internal/domain"
	"github.com/ignite/sparkpost-monitor/internal/streambus"
)

type fakeSender struct {
	result *domain.SendResult
	err    error
	calls  int
}

func (f *fakeSender) Send(ctx context.Context, msg *domain.EmailMessage) (*domain.SendResult, error) {
	f.calls++
	return f.result, f.err
}

type fakeKV struct {
	values map[string]any
}

func newFakeKV() *fakeKV { return &fakeKV{values: map[string]any{}} }

func (k *fakeKV) Set(ctx context.Context, key string, payload any, ttl time.Duration) error {
	k.values[key] = payload
	return nil
}

func (k *fakeKV) Get(ctx context.Context, key string, out any) (bool, error) {
	_, ok := k.values[key]
	return ok, nil
}

func newTestWorker(sender *fakeSender, messages *fakeMessages, recipients *fakeRecipients, bus *fakeBus) *Worker {
	kv := newFakeKV()
	cfg := WorkerConfig{Stream: "mail:outbound", Group: "workers", Consumer: "w1", DLQStream: "mail:outbound:dlq", MaxRetries: 2}
	return NewWorker(bus, kv, sender, messages, recipients, &fakeEvents{}, cfg)
}

func entryFor(t *testing.T, job mailJob) streambus.Entry {
	fields, err := streambus.EncodeJSON(job)
	require.NoError(t, err)
	return streambus.Entry{ID: "1-0", Fields: fields}
}

func TestProcessMalformedEntryAcksAndDrops(t *testing.T) {
	bus := &fakeBus{}
	w := newTestWorker(&fakeSender{}, newFakeMessages(), newFakeRecipients(), bus)

	w.process(context.Background(), streambus.Entry{ID: "1-0", Fields: map[string]string{"a": "1", "b": "2"}})
	require.Equal(t, 0, w.sender.(*fakeSender).calls)
	require.Equal(t, []string{"1-0"}, bus.acked)
}

func TestProcessMissingMessageAcksAndDrops(t *testing.T) {
	sender := &fakeSender{}
	bus := &fakeBus{}
	w := newTestWorker(sender, newFakeMessages(), newFakeRecipients(), bus)

	entry := entryFor(t, mailJob{MessageID: "missing", TenantID: "t1", Address: "a@example.com", RecipientID: "r1"})
	w.process(context.Background(), entry)
	require.Equal(t, 0, sender.calls)
	require.Equal(t, []string{"1-0"}, bus.acked)
}

func TestProcessSuccessUpdatesStateAndAcks(t *testing.T) {
	sender := &fakeSender{result: &domain.SendResult{Success: true, MessageID: "provider-1"}}
	messages := newFakeMessages()
	messages.byID["m1"] = &domain.Message{ID: "m1", TenantID: "t1"}
	recipients := newFakeRecipients()
	bus := &fakeBus{}
	w := newTestWorker(sender, messages, recipients, bus)

	entry := entryFor(t, mailJob{MessageID: "m1", TenantID: "t1", Address: "a@example.com", RecipientID: "r1", Bucket: domain.RecipientTo})
	w.process(context.Background(), entry)

	require.Equal(t, domain.MessageSent, messages.states["m1"])
	require.Equal(t, domain.RecipientSent, recipients.status["r1"])
	require.Equal(t, 1, sender.calls)
	require.Equal(t, []string{"1-0"}, bus.acked)
}

func TestProcessFailureRetriesUntilMaxThenDLQ(t *testing.T) {
	sender := &fakeSender{err: context.DeadlineExceeded}
	messages := newFakeMessages()
	messages.byID["m1"] = &domain.Message{ID: "m1", TenantID: "t1"}
	recipients := newFakeRecipients()
	bus := &fakeBus{}
	w := newTestWorker(sender, messages, recipients, bus)

	job := mailJob{MessageID: "m1", TenantID: "t1", Address: "a@example.com", RecipientID: "r1", Retries: 2}
	entry := entryFor(t, job)
	w.process(context.Background(), entry)

	require.Equal(t, domain.MessageFailed, messages.states["m1"])
	require.Equal(t, domain.RecipientFailed, recipients.status["r1"])
	require.Empty(t, bus.onStream("mail:outbound"), "max retries exceeded must not re-append to the main stream")
	require.Len(t, bus.onStream("mail:outbound:dlq"), 1)
}

func TestProcessFailureBelowMaxRetriesReappends(t *testing.T) {
	sender := &fakeSender{err: context.DeadlineExceeded}
	messages := newFakeMessages()
	messages.byID["m1"] = &domain.Message{ID: "m1", TenantID: "t1"}
	bus := &fakeBus{}
	w := newTestWorker(sender, messages, newFakeRecipients(), bus)

	job := mailJob{MessageID: "m1", TenantID: "t1", Address: "a@example.com", RecipientID: "r1", Retries: 0}
	entry := entryFor(t, job)
	w.process(context.Background(), entry)

	require.Len(t, bus.onStream("mail:outbound"), 1)
	require.NotContains(t, messages.states, "m1")
}

func TestRewriteClickLinksSkipsTrackingURLs(t *testing.T) {
	html := `<a href="https://example.com/a">x</a><a href="https://host/t/c/tok?u=abc">y</a>`
	out := rewriteClickLinks(html, "https://host", "tok")
	require.Contains(t, out, "/t/c/tok?u=")
	require.Contains(t, out, "/t/c/tok?u=abc", "already-rewritten link must be left alone")
}

func TestInjectOpenPixelBeforeBodyClose(t *testing.T) {
	html := "<html><body>hi</body></html>"
	out := injectOpenPixel(html, "https://host", "tok")
	require.True(t, len(out) > len(html))
	require.Contains(t, out, "/t/o/tok")
	require.Less(t, indexOf(out, "/t/o/tok"), indexOf(out, "</body>"))
}
