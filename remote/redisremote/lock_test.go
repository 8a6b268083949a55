package redisremote

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockAcquireReleaseRoundTrips(t *testing.T) {
	client := testClient(t)
	defer client.Close()
	ctx := context.Background()

	lock := NewLock(client, "test-lock", 5*time.Second)
	ok, err := lock.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, lock.Release(ctx))
}

func TestLockSecondAcquireFailsWhileHeld(t *testing.T) {
	client := testClient(t)
	defer client.Close()
	ctx := context.Background()

	a := NewLock(client, "test-lock-contended", 5*time.Second)
	b := NewLock(client, "test-lock-contended", 5*time.Second)

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	defer a.Release(ctx)

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLockReleaseByNonOwnerFails(t *testing.T) {
	client := testClient(t)
	defer client.Close()
	ctx := context.Background()

	a := NewLock(client, "test-lock-ownership", 5*time.Second)
	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	b := NewLock(client, "test-lock-ownership", 5*time.Second)
	assert.Error(t, b.Release(ctx))

	require.NoError(t, a.Release(ctx))
}
