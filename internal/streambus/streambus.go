// Package streambus provides a thin append-only log abstraction with
// consumer groups over Redis Streams, matching the generic stream port the
// OutboundWorker, SegmentOrchestrator and WebhookDispatcher all consume.
package streambus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Entry is one record read off a stream: a server-assigned monotonic ID plus
// its field map.
type Entry struct {
	ID     string
	Fields map[string]string
}

// PendingEntry describes one row from the group's pending-entries list.
type PendingEntry struct {
	ID         string
	Consumer   string
	Idle       time.Duration
	RetryCount int64
}

// Bus is the stream port every consumer-group-driven component talks to.
type Bus interface {
	// Append writes a single entry to stream and returns its server-assigned
	// id.
	Append(ctx context.Context, stream string, fields map[string]string) (string, error)

	// EnsureGroup creates the consumer group at startID if it does not
	// already exist. Idempotent.
	EnsureGroup(ctx context.Context, stream, group, startID string) error

	// ReadGroup reads up to count new ( ">" ) or pending ("0") entries for
	// consumer, blocking up to block when reading new entries and none are
	// immediately available.
	ReadGroup(ctx context.Context, stream, group, consumer, start string, count int64, block time.Duration) ([]Entry, error)

	// Ack acknowledges entryID, removing it from the group's pending list.
	Ack(ctx context.Context, stream, group, entryID string) error

	// Pending lists up to limit entries currently in the group's PEL.
	Pending(ctx context.Context, stream, group string, limit int64) ([]PendingEntry, error)

	// Claim transfers ownership of the given entry ids to consumer,
	// provided they have been idle at least minIdle. Returns the claimed
	// entries.
	Claim(ctx context.Context, stream, group, consumer string, minIdle time.Duration, ids []string) ([]Entry, error)

	// AutoClaim scans the PEL starting at start for entries idle at least
	// minIdle and transfers up to count of them to consumer. Returns the
	// claimed entries and the cursor to continue scanning from.
	AutoClaim(ctx context.Context, stream, group, consumer string, minIdle time.Duration, start string, count int64) ([]Entry, string, error)
}

// ErrNoEntries names the empty-read condition. RedisBus never returns it:
// its ReadGroup reports a read timeout as a nil, nil return.
var ErrNoEntries = errors.New("streambus: no entries available")

// EncodeJSON wraps v into the single-field `json` encoding convention every
// job on every stream in this system uses.
func EncodeJSON(v any) (map[string]string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return map[string]string{"json": string(b)}, nil
}

// DecodeJSON decodes an entry's fields into v, accepting three encodings:
//  1. the canonical single `json` field,
//  2. the legacy flat encoding: top-level `message_id`, `company_id`,
//     `domain_id` fields plus an `envelope` field holding the remaining job
//     document as a JSON string. `company_id` is remapped to `tenant_id` to
//     match the canonical document's field name; everything else is merged
//     in as-is.
//  3. a single-field fallback: exactly one field whose value parses as JSON.
func DecodeJSON(fields map[string]string, v any) error {
	if raw, ok := fields["json"]; ok {
		return json.Unmarshal([]byte(raw), v)
	}
	if _, ok := fields["message_id"]; ok {
		return decodeLegacyFlat(fields, v)
	}
	if len(fields) == 1 {
		for _, raw := range fields {
			if err := json.Unmarshal([]byte(raw), v); err == nil {
				return nil
			}
		}
	}
	return errors.New("streambus: entry has no decodable json field")
}

// decodeLegacyFlat reconstructs a canonical job document from the legacy
// flat field encoding and decodes it into v. See DecodeJSON for the shape.
func decodeLegacyFlat(fields map[string]string, v any) error {
	merged := map[string]json.RawMessage{}
	if envelope, ok := fields["envelope"]; ok {
		if err := json.Unmarshal([]byte(envelope), &merged); err != nil {
			return fmt.Errorf("streambus: decode legacy envelope: %w", err)
		}
	}
	for _, key := range []string{"message_id", "domain_id"} {
		if raw, ok := fields[key]; ok {
			merged[key] = quoteJSONString(raw)
		}
	}
	if companyID, ok := fields["company_id"]; ok {
		merged["tenant_id"] = quoteJSONString(companyID)
	}

	b, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("streambus: remarshal legacy fields: %w", err)
	}
	return json.Unmarshal(b, v)
}

func quoteJSONString(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}
