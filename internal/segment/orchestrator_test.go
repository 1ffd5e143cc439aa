package segment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ignite/sparkpost-monitor/internal/domain"
	"github.com/ignite/sparkpost-monitor/internal/streambus"
)

type fakeBus struct {
	acked    []string
	appended []map[string]string
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

func entryFor(t *testing.T, job buildJob) streambus.Entry {
	fields, err := streambus.EncodeJSON(job)
	require.NoError(t, err)
	return streambus.Entry{ID: "1-0", Fields: fields}
}

func newTestOrchestrator(builder *Builder) (*Orchestrator, *fakeBus, *fakeKV) {
	bus := &fakeBus{}
	kv := newFakeKV()
	cfg := OrchestratorConfig{Stream: "segment:build", Group: "workers", Consumer: "w1"}
	return NewOrchestrator(bus, kv, builder, cfg), bus, kv
}

func TestOrchestratorProcessMalformedJobAcksAndDrops(t *testing.T) {
	builder := NewBuilder(&fakeSegments{}, &fakeMatches{}, &fakeMembers{}, &fakeBuilds{})
	o, bus, kv := newTestOrchestrator(builder)

	o.process(context.Background(), streambus.Entry{ID: "1-0", Fields: map[string]string{"a": "1", "b": "2"}})
	require.Len(t, bus.acked, 1)
	require.Empty(t, kv.values)
}

func TestOrchestratorProcessSuccessWritesOkStatus(t *testing.T) {
	segments := &fakeSegments{segs: map[string]*domain.Segment{"s1": {ID: "s1", TenantID: "t1"}}}
	members := &fakeMembers{existing: []string{"c1"}}
	matches := &fakeMatches{ids: []string{"c1", "c2"}}
	builder := NewBuilder(segments, matches, members, &fakeBuilds{})
	o, bus, kv := newTestOrchestrator(builder)

	entry := entryFor(t, buildJob{TenantID: "t1", SegmentID: "s1", Materialize: true})
	o.process(context.Background(), entry)

	require.Len(t, bus.acked, 1)
	status := kv.values["seg:status:t1:s1"]
	require.NotNil(t, status)
	m := status.(map[string]any)
	require.Equal(t, "ok", m["status"])
	require.Equal(t, 2, m["matches"])
	require.Equal(t, 1, m["added"])
}

func TestOrchestratorProcessFailureWritesErrorStatus(t *testing.T) {
	segments := &fakeSegments{segs: map[string]*domain.Segment{}}
	builder := NewBuilder(segments, &fakeMatches{}, &fakeMembers{}, &fakeBuilds{})
	o, bus, kv := newTestOrchestrator(builder)

	entry := entryFor(t, buildJob{TenantID: "t1", SegmentID: "missing"})
	o.process(context.Background(), entry)

	require.Len(t, bus.acked, 1)
	status := kv.values["seg:status:t1:missing"]
	require.NotNil(t, status)
	m := status.(map[string]any)
	require.Equal(t, "error", m["status"])
	require.NotEmpty(t, m["message"])
}
