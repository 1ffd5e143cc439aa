package dkimregistrar

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ignite/sparkpost-monitor/internal/pkg/distlock"
)

type fakeLock struct {
	acquireResult bool
	acquireErr    error
	released      bool
}

func (l *fakeLock) Acquire(ctx context.Context) (bool, error) { return l.acquireResult, l.acquireErr }
func (l *fakeLock) Release(ctx context.Context) error {
	l.released = true
	return nil
}

func TestTableSyncWritesDedupedSortedLines(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "example.com.key")
	require.NoError(t, os.WriteFile(keyPath, []byte("dummy"), 0600))

	lock := &fakeLock{acquireResult: true}
	sync := NewTableSync(
		filepath.Join(dir, "keytable"),
		filepath.Join(dir, "signingtable"),
		filepath.Join(dir, "opendkim.pid"),
		func(key string) distlock.DistLock { return lock },
	)

	report, err := sync.Run(context.Background(), []SyncEntry{
		{Apex: "Example.com", Selector: "S1", PrivateKeyPath: keyPath},
		{Apex: "example.com", Selector: "s1", PrivateKeyPath: keyPath},
	})
	require.NoError(t, err)
	require.Equal(t, 1, report.KeyLines)
	require.Equal(t, 2, report.SigningLines)
	require.Empty(t, report.Skipped)
	require.True(t, lock.released, "lock must be released before returning")

	keyTable, err := os.ReadFile(filepath.Join(dir, "keytable"))
	require.NoError(t, err)
	require.Contains(t, string(keyTable), "example.com.s1 example.com:s1:"+keyPath)

	signingTable, err := os.ReadFile(filepath.Join(dir, "signingtable"))
	require.NoError(t, err)
	require.Contains(t, string(signingTable), "*@example.com example.com.s1")
	require.Contains(t, string(signingTable), "*@*.example.com example.com.s1")
}

func TestTableSyncSkipsMissingKeyFile(t *testing.T) {
	dir := t.TempDir()
	lock := &fakeLock{acquireResult: true}
	sync := NewTableSync(
		filepath.Join(dir, "keytable"),
		filepath.Join(dir, "signingtable"),
		filepath.Join(dir, "opendkim.pid"),
		func(key string) distlock.DistLock { return lock },
	)

	report, err := sync.Run(context.Background(), []SyncEntry{
		{Apex: "missing.com", Selector: "s1", PrivateKeyPath: filepath.Join(dir, "nope")},
	})
	require.NoError(t, err)
	require.Zero(t, report.KeyLines)
	require.Len(t, report.Skipped, 1)
}

func TestTableSyncFailsWhenLockNotAcquired(t *testing.T) {
	dir := t.TempDir()
	lock := &fakeLock{acquireResult: false}
	sync := NewTableSync(
		filepath.Join(dir, "keytable"),
		filepath.Join(dir, "signingtable"),
		filepath.Join(dir, "opendkim.pid"),
		func(key string) distlock.DistLock { return lock },
	)

	_, err := sync.Run(context.Background(), nil)
	require.Error(t, err)
}
