// Package kvstatus exposes short-TTL job status records keyed by
// (kind:tenant:entity), backed by the same Redis instance as streambus.
package kvstatus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is the TTL every status payload is written with.
const DefaultTTL = time.Hour

// Store is the KV port OutboundWorker and SegmentOrchestrator write their
// heartbeat status through.
type Store interface {
	Set(ctx context.Context, key string, payload any, ttl time.Duration) error
	Get(ctx context.Context, key string, out any) (bool, error)
}

// RedisStore implements Store using SETEX/GET.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing go-redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Set serializes payload as JSON and writes it with the given TTL.
func (s *RedisStore) Set(ctx context.Context, key string, payload any, ttl time.Duration) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

// Get reads key and unmarshals it into out. Returns (false, nil) when the
// key is absent or expired.
func (s *RedisStore) Get(ctx context.Context, key string, out any) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// MailStatusKey builds the `mail:status:{tenant}:{message}` key.
func MailStatusKey(tenant, message string) string {
	return "mail:status:" + tenant + ":" + message
}

// SegmentStatusKey builds the `seg:status:{tenant}:{segment}` key.
func SegmentStatusKey(tenant, segment string) string {
	return "seg:status:" + tenant + ":" + segment
}

// Payload is the common shape every status record carries.
type Payload struct {
	Status    string    `json:"status"`
	Progress  int       `json:"progress,omitempty"`
	Message   string    `json:"message,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
	SentAt    *time.Time `json:"sentAt,omitempty"`
	FailedAt  *time.Time `json:"failedAt,omitempty"`
}
