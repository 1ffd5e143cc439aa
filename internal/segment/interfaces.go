// Package segment implements SegmentBuildService (definition evaluation and
// membership diff materialization) and SegmentOrchestrator, the
// consumer-group worker that drives builds off the segment stream.
package segment

import (
	"context"
	"time"

	"github.com/ignite/sparkpost-monitor/internal/domain"
)

// SegmentRepository loads a Segment and persists its rollup counters.
type SegmentRepository interface {
	Get(ctx context.Context, tenantID, id string) (*domain.Segment, error)
	UpdateCounters(ctx context.Context, segmentID string, materializedCount int, builtAt time.Time) error
}

// MatchRepository evaluates a SegmentDefinition against the contact
// catalog, returning the matching set of contact IDs.
type MatchRepository interface {
	Evaluate(ctx context.Context, tenantID string, def domain.SegmentDefinition) ([]string, error)
}

// MemberRepository persists materialized SegmentMember rows.
type MemberRepository interface {
	ExistingMembers(ctx context.Context, segmentID string) ([]string, error)
	BulkAdd(ctx context.Context, segmentID string, contactIDs []string, at time.Time) error
	BulkRemove(ctx context.Context, segmentID string, contactIDs []string) error
}

// BuildRepository appends SegmentBuild audit rows.
type BuildRepository interface {
	Append(ctx context.Context, build *domain.SegmentBuild) error
}
