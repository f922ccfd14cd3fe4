package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tilver/backend/internal/domain/shared"
	"github.com/tilver/backend/internal/infrastructure/config"
)

func TestInMemoryLocker(t *testing.T) {
	locker := NewInMemoryLocker()
	ctx := context.Background()

	lock, err := locker.Obtain(ctx, "recurring:tpl-1", time.Minute)
	require.NoError(t, err)

	_, err = locker.Obtain(ctx, "recurring:tpl-1", time.Minute)
	assert.ErrorIs(t, err, shared.ErrLockNotObtained)

	other, err := locker.Obtain(ctx, "recurring:tpl-2", time.Minute)
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, lock.Release(ctx))
	again, err := locker.Obtain(ctx, "recurring:tpl-1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestInMemoryLocker_ExpiredHolderCannotReleaseNewHolder(t *testing.T) {
	locker := NewInMemoryLocker()
	ctx := context.Background()

	stale, err := locker.Obtain(ctx, "k", 10*time.Millisecond)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	current, err := locker.Obtain(ctx, "k", time.Minute)
	require.NoError(t, err)

	require.NoError(t, stale.Release(ctx))
	_, err = locker.Obtain(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, shared.ErrLockNotObtained, "the stale release must not free the current holder")

	require.NoError(t, current.Release(ctx))
}

func TestCoordinationFactory_Fallback(t *testing.T) {
	unreachable := func(context.Context, config.RedisConfig) (*redis.Client, error) {
		return nil, errors.New("connection refused")
	}

	t.Run("falls back to memory", func(t *testing.T) {
		f := NewCoordinationFactory(config.RedisConfig{Host: "localhost", Port: 6379})
		f.dial = unreachable
		c, err := f.Create(context.Background())
		require.NoError(t, err)
		defer c.Close()
		assert.False(t, c.Distributed)
		assert.IsType(t, &InMemoryIdempotencyStore{}, c.Idempotency)
		assert.IsType(t, &InMemoryLocker{}, c.Locker)
	})

	t.Run("fails when fallback is disabled", func(t *testing.T) {
		f := NewCoordinationFactory(config.RedisConfig{Host: "localhost", Port: 6379}, WithInMemoryFallback(false))
		f.dial = unreachable
		_, err := f.Create(context.Background())
		assert.Error(t, err)
	})
}
