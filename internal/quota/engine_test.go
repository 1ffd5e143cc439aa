package quota

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ignite/sparkpost-monitor/internal/domain"
)

type fakeUsage struct {
	sent map[string]int
}

func (f *fakeUsage) SumSentToday(ctx context.Context, tenantID string, day time.Time) (int, error) {
	return f.sent[tenantID], nil
}

func (f *fakeUsage) IncrementSent(ctx context.Context, tenantID string, day time.Time, sent int) error {
	if f.sent == nil {
		f.sent = map[string]int{}
	}
	f.sent[tenantID] += sent
	return nil
}

type fakeRateLimits struct {
	ensured bool
	count   int
}

func (f *fakeRateLimits) EnsureRow(ctx context.Context, tenantID, key string, windowStart time.Time) error {
	f.ensured = true
	return nil
}

func (f *fakeRateLimits) Increment(ctx context.Context, tenantID, key string, windowStart time.Time, n int) error {
	f.count += n
	return nil
}

func (f *fakeRateLimits) Get(ctx context.Context, tenantID, key string, windowStart time.Time) (int, error) {
	return f.count, nil
}

func TestEnforceExactlyAtLimitPasses(t *testing.T) {
	usage := &fakeUsage{sent: map[string]int{"t1": 8}}
	rl := &fakeRateLimits{count: 48}
	e := NewEngine(usage, rl)

	err := e.Enforce(context.Background(), "t1", Limits{Daily: 10, Monthly: 100}, 2, time.Now())
	require.NoError(t, err)
}

func TestEnforceStrictlyOverLimitFails(t *testing.T) {
	usage := &fakeUsage{sent: map[string]int{"t1": 9}}
	rl := &fakeRateLimits{count: 50}
	e := NewEngine(usage, rl)

	err := e.Enforce(context.Background(), "t1", Limits{Daily: 10, Monthly: 100}, 2, time.Now())
	require.Error(t, err)
	require.Equal(t, domain.KindQuotaExceeded, domain.KindOf(err))
}

func TestEnforceZeroLimitMeansUnlimited(t *testing.T) {
	usage := &fakeUsage{sent: map[string]int{"t1": 10000}}
	rl := &fakeRateLimits{count: 10000}
	e := NewEngine(usage, rl)

	err := e.Enforce(context.Background(), "t1", Limits{Daily: 0, Monthly: 0}, 50, time.Now())
	require.NoError(t, err)
}

func TestRecordEnqueueIncrementsByEnqueuedNotRequested(t *testing.T) {
	usage := &fakeUsage{}
	rl := &fakeRateLimits{}
	e := NewEngine(usage, rl)

	require.NoError(t, e.RecordEnqueue(context.Background(), "t1", 2, time.Now()))
	require.True(t, rl.ensured)
	require.Equal(t, 2, rl.count)
	require.Equal(t, 2, usage.sent["t1"])
}

func TestRecordEnqueueNoopOnZero(t *testing.T) {
	usage := &fakeUsage{}
	rl := &fakeRateLimits{}
	e := NewEngine(usage, rl)

	require.NoError(t, e.RecordEnqueue(context.Background(), "t1", 0, time.Now()))
	require.False(t, rl.ensured)
}

func TestResolveTenantOverrideWins(t *testing.T) {
	tenant := &domain.Tenant{DailyOverride: 5, MonthOverride: 50}
	plan := &domain.Plan{Quotas: domain.PlanQuotas{EmailsPerDay: 100, EmailsPerMonth: 1000}}

	limits := Resolve(tenant, plan)
	require.Equal(t, 5, limits.Daily)
	require.Equal(t, 50, limits.Monthly)
}

func TestResolveFallsBackToIncludedMessages(t *testing.T) {
	tenant := &domain.Tenant{}
	plan := &domain.Plan{IncludedMessages: 200}

	limits := Resolve(tenant, plan)
	require.Equal(t, 0, limits.Daily)
	require.Equal(t, 200, limits.Monthly)
}
