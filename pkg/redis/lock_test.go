package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockAcquireRelease(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)

	first, err := NewLock(client, "cf:lock:test", time.Minute)
	require.NoError(t, err)
	second, err := NewLock(client, "cf:lock:test", time.Minute)
	require.NoError(t, err)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, second.Release(ctx))
	assert.True(t, mr.Exists("cf:lock:test"), "non-owner release must keep the key")

	require.NoError(t, first.Release(ctx))
	assert.False(t, mr.Exists("cf:lock:test"))
}

func TestLockReleaseAfterExpiryKeepsNewOwner(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)

	stale, err := NewLock(client, "cf:lock:exp", time.Second)
	require.NoError(t, err)
	ok, err := stale.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	fresh, err := NewLock(client, "cf:lock:exp", time.Minute)
	require.NoError(t, err)
	ok, err = fresh.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, stale.Release(ctx))
	assert.True(t, mr.Exists("cf:lock:exp"))
}

func TestNewLockValidation(t *testing.T) {
	_, err := NewLock(nil, "k", time.Second)
	require.Error(t, err)

	client, _ := newTestClient(t)
	_, err = NewLock(client, "", time.Second)
	require.Error(t, err)

	lock, err := NewLock(client, "k", 0)
	require.NoError(t, err)
	assert.Equal(t, defaultLockTTL, lock.ttl)
}

func TestLockerScopesKeys(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)

	locker, err := NewLocker(client, "payout", time.Minute)
	require.NoError(t, err)

	release, err := locker.Lock(ctx, "aff-1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("cf:lock:payout:aff-1"))

	_, err = locker.Lock(ctx, "aff-1")
	assert.ErrorIs(t, err, ErrLockHeld)
	assert.Contains(t, err.Error(), "cf:lock:payout:aff-1")

	other, err := locker.Lock(ctx, "aff-2")
	require.NoError(t, err)
	require.NoError(t, other(ctx))

	require.NoError(t, release(ctx))
	assert.False(t, mr.Exists("cf:lock:payout:aff-1"))
}
