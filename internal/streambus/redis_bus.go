package streambus

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/sparkpost-monitor/internal/pkg/logger"
)

// RedisBus implements Bus over github.com/redis/go-redis/v9 Streams.
type RedisBus struct {
	client *redis.Client
}

// NewRedisBus wraps an existing go-redis client.
func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client}
}

func (b *RedisBus) Append(ctx context.Context, stream string, fields map[string]string) (string, error) {
	values := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		values[k] = v
	}
	id, err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: values,
	}).Result()
	if err != nil {
		return "", err
	}
	return id, nil
}

// EnsureGroup creates the consumer group at startID, swallowing the
// BUSYGROUP error that go-redis surfaces when the group already exists.
func (b *RedisBus) EnsureGroup(ctx context.Context, stream, group, startID string) error {
	err := b.client.XGroupCreateMkStream(ctx, stream, group, startID).Err()
	if err == nil {
		return nil
	}
	if strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil
	}
	return err
}

func (b *RedisBus) ReadGroup(ctx context.Context, stream, group, consumer, start string, count int64, block time.Duration) ([]Entry, error) {
	res, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, start},
		Count:    count,
		Block:    block,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var entries []Entry
	for _, s := range res {
		for _, msg := range s.Messages {
			entries = append(entries, toEntry(msg))
		}
	}
	return entries, nil
}

func (b *RedisBus) Ack(ctx context.Context, stream, group, entryID string) error {
	return b.client.XAck(ctx, stream, group, entryID).Err()
}

func (b *RedisBus) Pending(ctx context.Context, stream, group string, limit int64) ([]PendingEntry, error) {
	res, err := b.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: stream,
		Group:  group,
		Start:  "-",
		End:    "+",
		Count:  limit,
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]PendingEntry, 0, len(res))
	for _, p := range res {
		out = append(out, PendingEntry{
			ID:         p.ID,
			Consumer:   p.Consumer,
			Idle:       p.Idle,
			RetryCount: p.RetryCount,
		})
	}
	return out, nil
}

func (b *RedisBus) Claim(ctx context.Context, stream, group, consumer string, minIdle time.Duration, ids []string) ([]Entry, error) {
	msgs, err := b.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   stream,
		Group:    group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Messages: ids,
	}).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(msgs))
	for _, m := range msgs {
		entries = append(entries, toEntry(m))
	}
	return entries, nil
}

func (b *RedisBus) AutoClaim(ctx context.Context, stream, group, consumer string, minIdle time.Duration, start string, count int64) ([]Entry, string, error) {
	msgs, cursor, err := b.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   stream,
		Group:    group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Start:    start,
		Count:    count,
	}).Result()
	if err != nil {
		return nil, "", err
	}
	entries := make([]Entry, 0, len(msgs))
	for _, m := range msgs {
		entries = append(entries, toEntry(m))
	}
	return entries, cursor, nil
}

func toEntry(msg redis.XMessage) Entry {
	fields := make(map[string]string, len(msg.Values))
	for k, v := range msg.Values {
		switch t := v.(type) {
		case string:
			fields[k] = t
		case int64:
			fields[k] = strconv.FormatInt(t, 10)
		case float64:
			fields[k] = strconv.FormatFloat(t, 'f', -1, 64)
		default:
			logger.Warn("streambus field not a string", "entry", msg.ID, "field", k)
		}
	}
	return Entry{ID: msg.ID, Fields: fields}
}
