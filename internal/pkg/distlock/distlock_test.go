package distlock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestNewLockPrefersRedisAndNamespacesKeys(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	lock := NewLock(client, nil, "dkim:table-sync", time.Second)
	acquired, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, acquired)
	require.True(t, mr.Exists("monkeysmail:lock:dkim:table-sync"))

	require.NoError(t, lock.Release(context.Background()))
	require.False(t, mr.Exists("monkeysmail:lock:dkim:table-sync"))
}

func TestRedisLockRejectsSecondAcquireWhileHeld(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	first := NewRedisLock(client, "monkeysmail:lock:x", time.Minute)
	acquired, err := first.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, acquired)

	second := NewRedisLock(client, "monkeysmail:lock:x", time.Minute)
	acquired, err = second.Acquire(context.Background())
	require.NoError(t, err)
	require.False(t, acquired)
}
