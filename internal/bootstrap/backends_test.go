package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/MOFRAC-Engine/internal/config"
	"github.com/turtacn/MOFRAC-Engine/internal/domain/descriptors"
	"github.com/turtacn/MOFRAC-Engine/internal/infrastructure/database/redis"
	"github.com/turtacn/MOFRAC-Engine/internal/infrastructure/monitoring/logging"
)

func TestBuild_AllDisabled(t *testing.T) {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)

	b, err := Build(cfg, logging.NewNopLogger(), nil)
	require.NoError(t, err)

	assert.Nil(t, b.Deps.SBUCorpus)
	assert.Nil(t, b.Deps.LinkerCorpus)
	assert.Nil(t, b.Deps.LCCorpus)
	assert.Nil(t, b.Deps.Cache)
	assert.Nil(t, b.Deps.Publisher)
	assert.Nil(t, b.Deps.Index)
	assert.Nil(t, b.Deps.Artifacts)
	assert.Nil(t, b.Producer)
	assert.Nil(t, b.Searcher)
	assert.Nil(t, b.DB)

	b.Close()
	b.Close() // second close is a no-op
}

type fakeLock struct {
	held    bool
	lockErr error
}

func (l *fakeLock) Lock(ctx context.Context) error {
	if l.lockErr != nil {
		return l.lockErr
	}
	l.held = true
	return nil
}

func (l *fakeLock) TryLock(ctx context.Context) (bool, error) {
	if l.lockErr != nil {
		return false, l.lockErr
	}
	l.held = true
	return true, nil
}

func (l *fakeLock) Unlock(ctx context.Context) error {
	l.held = false
	return nil
}

func (l *fakeLock) Extend(ctx context.Context, ttl time.Duration) (bool, error) { return true, nil }

func (l *fakeLock) TTL(ctx context.Context) (time.Duration, error) { return time.Minute, nil }

type fakeLockFactory struct {
	lock *fakeLock
	name string
}

func (f *fakeLockFactory) NewMutex(name string, opts ...redis.LockOption) redis.DistributedLock {
	f.name = name
	return f.lock
}

type recordingCorpus struct {
	lock       *fakeLock
	appends    []descriptors.Row
	heldOnAdd  []bool
	loads      int
	heldOnLoad bool
}

func (c *recordingCorpus) Load(ctx context.Context) ([]descriptors.Row, error) {
	c.loads++
	c.heldOnLoad = c.lock.held
	return nil, nil
}

func (c *recordingCorpus) Append(ctx context.Context, row descriptors.Row) error {
	c.appends = append(c.appends, row)
	c.heldOnAdd = append(c.heldOnAdd, c.lock.held)
	return nil
}

func TestLockedCorpus_AppendHoldsLock(t *testing.T) {
	lock := &fakeLock{}
	factory := &fakeLockFactory{lock: lock}
	inner := &recordingCorpus{lock: lock}

	corpus := lockedCorpus(factory, CorpusSBU, inner)
	assert.Equal(t, "corpus:"+CorpusSBU, factory.name)

	err := corpus.Append(context.Background(), descriptors.Row{Name: "HKUST-1"})
	require.NoError(t, err)
	require.Len(t, inner.appends, 1)
	assert.Equal(t, "HKUST-1", inner.appends[0].Name)
	assert.True(t, inner.heldOnAdd[0], "append must run while the lock is held")
	assert.False(t, lock.held, "lock must be released after the append")
}

func TestLockedCorpus_LockErrorSkipsAppend(t *testing.T) {
	lock := &fakeLock{lockErr: assert.AnError}
	inner := &recordingCorpus{lock: lock}

	corpus := lockedCorpus(&fakeLockFactory{lock: lock}, CorpusLinker, inner)

	err := corpus.Append(context.Background(), descriptors.Row{Name: "UiO-66"})
	require.Error(t, err)
	assert.Empty(t, inner.appends)
}

func TestLockedCorpus_LoadIsUnguarded(t *testing.T) {
	lock := &fakeLock{lockErr: assert.AnError}
	inner := &recordingCorpus{lock: lock}

	corpus := lockedCorpus(&fakeLockFactory{lock: lock}, CorpusLC, inner)

	_, err := corpus.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, inner.loads)
	assert.False(t, inner.heldOnLoad)
}
