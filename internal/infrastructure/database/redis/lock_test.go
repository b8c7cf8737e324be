package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/MOFRAC-Engine/internal/infrastructure/monitoring/logging"
)

func TestMutex_LockUnlock(t *testing.T) {
	client, _ := newTestClient(t)
	factory := NewLockFactory(client, logging.NewNopLogger())
	ctx := context.Background()

	lock := factory.NewMutex("featurize", WithLockTTL(time.Second))
	require.NoError(t, lock.Lock(ctx))

	exists, err := client.Exists(ctx, "mofrac:lock:featurize").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)

	require.NoError(t, lock.Unlock(ctx))

	exists, err = client.Exists(ctx, "mofrac:lock:featurize").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), exists)
}

func TestMutex_Contention(t *testing.T) {
	client, _ := newTestClient(t)
	factory := NewLockFactory(client, logging.NewNopLogger())
	ctx := context.Background()

	lock1 := factory.NewMutex("corpus", WithRetryCount(2), WithRetryDelay(5*time.Millisecond))
	lock2 := factory.NewMutex("corpus", WithRetryCount(2), WithRetryDelay(5*time.Millisecond))

	require.NoError(t, lock1.Lock(ctx))
	assert.Equal(t, ErrLockNotAcquired, lock2.Lock(ctx))

	require.NoError(t, lock1.Unlock(ctx))
	assert.NoError(t, lock2.Lock(ctx))
	require.NoError(t, lock2.Unlock(ctx))
}

func TestMutex_TryLock(t *testing.T) {
	client, _ := newTestClient(t)
	factory := NewLockFactory(client, logging.NewNopLogger())
	ctx := context.Background()

	lock1 := factory.NewMutex("try")
	lock2 := factory.NewMutex("try")

	ok, err := lock1.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = lock2.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMutex_UnlockNotHeld(t *testing.T) {
	client, _ := newTestClient(t)
	factory := NewLockFactory(client, logging.NewNopLogger())
	ctx := context.Background()

	// Never locked.
	lock := factory.NewMutex("ghost")
	assert.Equal(t, ErrLockNotHeld, lock.Unlock(ctx))

	// Held by someone else: unlocking must not release their lock.
	owner := factory.NewMutex("shared")
	other := factory.NewMutex("shared")
	require.NoError(t, owner.Lock(ctx))
	assert.Equal(t, ErrLockNotHeld, other.Unlock(ctx))

	exists, err := client.Exists(ctx, "mofrac:lock:shared").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)
}

func TestMutex_ExpiresAfterTTL(t *testing.T) {
	client, mr := newTestClient(t)
	factory := NewLockFactory(client, logging.NewNopLogger())
	ctx := context.Background()

	lock1 := factory.NewMutex("ttl", WithLockTTL(time.Second), WithRetryCount(1))
	lock2 := factory.NewMutex("ttl", WithLockTTL(time.Second), WithRetryCount(1))

	require.NoError(t, lock1.Lock(ctx))
	assert.Equal(t, ErrLockNotAcquired, lock2.Lock(ctx))

	mr.FastForward(2 * time.Second)
	assert.NoError(t, lock2.Lock(ctx))
}

func TestMutex_Extend(t *testing.T) {
	client, _ := newTestClient(t)
	factory := NewLockFactory(client, logging.NewNopLogger())
	ctx := context.Background()

	lock := factory.NewMutex("extend", WithLockTTL(time.Second))
	require.NoError(t, lock.Lock(ctx))

	ok, err := lock.Extend(ctx, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ttl, err := lock.TTL(ctx)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, ttl)

	// Extending a lock we no longer hold fails.
	require.NoError(t, lock.Unlock(ctx))
	ok, err = lock.Extend(ctx, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCorpusLock_KeyNaming(t *testing.T) {
	client, _ := newTestClient(t)
	factory := NewLockFactory(client, logging.NewNopLogger())
	ctx := context.Background()

	lock := CorpusLock(factory, "sbu_descriptors")
	require.NoError(t, lock.Lock(ctx))

	exists, err := client.Exists(ctx, "mofrac:lock:corpus:sbu_descriptors").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)
	require.NoError(t, lock.Unlock(ctx))
}
