package streambus

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestBus(t *testing.T) (*RedisBus, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisBus(client), client
}

func TestAppendAndReadGroup(t *testing.T) {
	bus, _ := newTestBus(t)
	ctx := context.Background()

	require.NoError(t, bus.EnsureGroup(ctx, "mail:outbound", "senders", "0"))

	id, err := bus.Append(ctx, "mail:outbound", map[string]string{"json": `{"message_id":"m1"}`})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	entries, err := bus.ReadGroup(ctx, "mail:outbound", "senders", "c1", ">", 10, time.Second)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	var decoded struct {
		MessageID string `json:"message_id"`
	}
	require.NoError(t, DecodeJSON(entries[0].Fields, &decoded))
	require.Equal(t, "m1", decoded.MessageID)

	require.NoError(t, bus.Ack(ctx, "mail:outbound", "senders", entries[0].ID))
}

func TestEnsureGroupIdempotent(t *testing.T) {
	bus, _ := newTestBus(t)
	ctx := context.Background()

	require.NoError(t, bus.EnsureGroup(ctx, "seg:builds", "seg_builders", "0"))
	require.NoError(t, bus.EnsureGroup(ctx, "seg:builds", "seg_builders", "0"))
}

func TestPendingAndClaim(t *testing.T) {
	bus, _ := newTestBus(t)
	ctx := context.Background()

	require.NoError(t, bus.EnsureGroup(ctx, "mail:outbound", "senders", "0"))
	_, err := bus.Append(ctx, "mail:outbound", map[string]string{"json": `{"message_id":"m2"}`})
	require.NoError(t, err)

	entries, err := bus.ReadGroup(ctx, "mail:outbound", "senders", "owner-1", ">", 10, time.Second)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	pending, err := bus.Pending(ctx, "mail:outbound", "senders", 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "owner-1", pending[0].Consumer)

	claimed, err := bus.Claim(ctx, "mail:outbound", "senders", "owner-2", 0, []string{pending[0].ID})
	require.NoError(t, err)
	require.Len(t, claimed, 1)
}

func TestDecodeJSONLegacyFlatFallback(t *testing.T) {
	fields := map[string]string{"message_id": "m3", "company_id": "t1"}
	var out map[string]string
	require.NoError(t, DecodeJSON(fields, &out))
	require.Equal(t, "m3", out["message_id"])
	require.Equal(t, "t1", out["tenant_id"])
}

func TestDecodeJSONLegacyFlatWithEnvelope(t *testing.T) {
	fields := map[string]string{
		"message_id": "m4",
		"company_id": "t1",
		"domain_id":  "d1",
		"envelope":   `{"from_email":"a@b.com","address":"c@d.com"}`,
	}
	var out struct {
		MessageID string `json:"message_id"`
		TenantID  string `json:"tenant_id"`
		DomainID  string `json:"domain_id"`
		FromEmail string `json:"from_email"`
		Address   string `json:"address"`
	}
	require.NoError(t, DecodeJSON(fields, &out))
	require.Equal(t, "m4", out.MessageID)
	require.Equal(t, "t1", out.TenantID)
	require.Equal(t, "d1", out.DomainID)
	require.Equal(t, "a@b.com", out.FromEmail)
	require.Equal(t, "c@d.com", out.Address)
}

func TestDecodeJSONSingleFieldFallback(t *testing.T) {
	fields := map[string]string{"envelope": `{"to":"a@b.com"}`}
	var out struct {
		To string `json:"to"`
	}
	require.NoError(t, DecodeJSON(fields, &out))
	require.Equal(t, "a@b.com", out.To)
}
