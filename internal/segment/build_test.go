package segment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ignite/sparkpost-monitor/internal/domain"
)

type fakeSegments struct {
	segs     map[string]*domain.Segment
	counters map[string]int
}

func (f *fakeSegments) Get(ctx context.Context, tenantID, id string) (*domain.Segment, error) {
	return f.segs[id], nil
}

func (f *fakeSegments) UpdateCounters(ctx context.Context, segmentID string, materializedCount int, builtAt time.Time) error {
	if f.counters == nil {
		f.counters = map[string]int{}
	}
	f.counters[segmentID] = materializedCount
	return nil
}

type fakeMatches struct {
	ids []string
}

func (f *fakeMatches) Evaluate(ctx context.Context, tenantID string, def domain.SegmentDefinition) ([]string, error) {
	return f.ids, nil
}

type fakeMembers struct {
	existing []string
	added    []string
	removed  []string
}

func (f *fakeMembers) ExistingMembers(ctx context.Context, segmentID string) ([]string, error) {
	return f.existing, nil
}

func (f *fakeMembers) BulkAdd(ctx context.Context, segmentID string, contactIDs []string, at time.Time) error {
	f.added = append(f.added, contactIDs...)
	return nil
}

func (f *fakeMembers) BulkRemove(ctx context.Context, segmentID string, contactIDs []string) error {
	f.removed = append(f.removed, contactIDs...)
	return nil
}

type fakeBuilds struct {
	appended []domain.SegmentBuild
}

func (f *fakeBuilds) Append(ctx context.Context, build *domain.SegmentBuild) error {
	f.appended = append(f.appended, *build)
	return nil
}

func TestBuildCrossTenantFails(t *testing.T) {
	segments := &fakeSegments{segs: map[string]*domain.Segment{"s1": {ID: "s1", TenantID: "other"}}}
	b := NewBuilder(segments, &fakeMatches{}, &fakeMembers{}, &fakeBuilds{})

	_, err := b.Build(context.Background(), "t1", "s1", true)
	require.Error(t, err)
	require.Equal(t, domain.KindCrossTenant, domain.KindOf(err))
}

func TestBuildNotFoundFails(t *testing.T) {
	segments := &fakeSegments{segs: map[string]*domain.Segment{}}
	b := NewBuilder(segments, &fakeMatches{}, &fakeMembers{}, &fakeBuilds{})

	_, err := b.Build(context.Background(), "t1", "missing", true)
	require.Error(t, err)
	require.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestBuildWithoutMaterializeSkipsDiff(t *testing.T) {
	segments := &fakeSegments{segs: map[string]*domain.Segment{"s1": {ID: "s1", TenantID: "t1"}}}
	members := &fakeMembers{existing: []string{"c1"}}
	matches := &fakeMatches{ids: []string{"c1", "c2"}}
	builds := &fakeBuilds{}
	b := NewBuilder(segments, matches, members, builds)

	res, err := b.Build(context.Background(), "t1", "s1", false)
	require.NoError(t, err)
	require.Equal(t, 2, res.Matches)
	require.Zero(t, res.Added)
	require.Empty(t, members.added)
	require.Len(t, builds.appended, 1)
}

func TestBuildMaterializeComputesDiff(t *testing.T) {
	segments := &fakeSegments{segs: map[string]*domain.Segment{"s1": {ID: "s1", TenantID: "t1"}}}
	members := &fakeMembers{existing: []string{"c1", "c2"}}
	matches := &fakeMatches{ids: []string{"c2", "c3"}}
	builds := &fakeBuilds{}
	b := NewBuilder(segments, matches, members, builds)

	res, err := b.Build(context.Background(), "t1", "s1", true)
	require.NoError(t, err)
	require.Equal(t, 2, res.Matches)
	require.Equal(t, 1, res.Added)
	require.Equal(t, 1, res.Removed)
	require.Equal(t, 1, res.Kept)
	require.ElementsMatch(t, []string{"c3"}, members.added)
	require.ElementsMatch(t, []string{"c1"}, members.removed)
	require.Equal(t, 2, segments.counters["s1"])
}
