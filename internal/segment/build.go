package segment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/sparkpost-monitor/internal/domain"
)

// Result is the outcome of a Build call.
type Result struct {
	Matches int
	Added   int
	Removed int
	Kept    int
	BuiltAt time.Time
	Hash    string
}

// Builder is SegmentBuildService: evaluates a Segment's definition and,
// when materializing, diffs the result against the current SegmentMember
// set.
type Builder struct {
	segments SegmentRepository
	matches  MatchRepository
	members  MemberRepository
	builds   BuildRepository
}

// NewBuilder wires a Builder over its repositories.
func NewBuilder(segments SegmentRepository, matches MatchRepository, members MemberRepository, builds BuildRepository) *Builder {
	return &Builder{segments: segments, matches: matches, members: members, builds: builds}
}

// Build evaluates segmentID's definition for tenantID. It always appends a
// SegmentBuild audit row; when materialize is true it also diffs and
// persists SegmentMember rows and updates the Segment's rollup counters.
func (b *Builder) Build(ctx context.Context, tenantID, segmentID string, materialize bool) (*Result, error) {
	seg, err := b.segments.Get(ctx, tenantID, segmentID)
	if err != nil {
		return nil, domain.NewError(domain.KindInternal, err)
	}
	if seg == nil {
		return nil, domain.NewError(domain.KindNotFound, nil)
	}
	if seg.TenantID != tenantID {
		return nil, domain.NewError(domain.KindCrossTenant, nil)
	}

	matched, err := b.matches.Evaluate(ctx, tenantID, seg.Definition)
	if err != nil {
		return nil, domain.NewError(domain.KindInternal, err)
	}

	now := time.Now()
	res := &Result{Matches: len(matched), BuiltAt: now, Hash: uuid.New().String()}

	if err := b.builds.Append(ctx, &domain.SegmentBuild{
		ID:        uuid.New().String(),
		SegmentID: segmentID,
		Matches:   res.Matches,
		Hash:      res.Hash,
		BuiltAt:   now,
	}); err != nil {
		return nil, domain.NewError(domain.KindInternal, err)
	}

	if !materialize {
		return res, nil
	}

	existing, err := b.members.ExistingMembers(ctx, segmentID)
	if err != nil {
		return nil, domain.NewError(domain.KindInternal, err)
	}

	toAdd, toRemove, kept := diff(matched, existing)
	res.Added = len(toAdd)
	res.Removed = len(toRemove)
	res.Kept = kept

	if len(toAdd) > 0 {
		if err := b.members.BulkAdd(ctx, segmentID, toAdd, now); err != nil {
			return nil, domain.NewError(domain.KindInternal, err)
		}
	}
	if len(toRemove) > 0 {
		if err := b.members.BulkRemove(ctx, segmentID, toRemove); err != nil {
			return nil, domain.NewError(domain.KindInternal, err)
		}
	}

	if err := b.segments.UpdateCounters(ctx, segmentID, res.Matches, now); err != nil {
		return nil, domain.NewError(domain.KindInternal, err)
	}

	return res, nil
}

// diff computes toAdd = new \ existing, toRemove = existing \ new, and the
// count of new ∩ existing.
func diff(matched, existing []string) (toAdd, toRemove []string, kept int) {
	matchedSet := make(map[string]bool, len(matched))
	for _, id := range matched {
		matchedSet[id] = true
	}
	existingSet := make(map[string]bool, len(existing))
	for _, id := range existing {
		existingSet[id] = true
	}

	for id := range matchedSet {
		if existingSet[id] {
			kept++
		} else {
			toAdd = append(toAdd, id)
		}
	}
	for id := range existingSet {
		if !matchedSet[id] {
			toRemove = append(toRemove, id)
		}
	}
	return toAdd, toRemove, kept
}
