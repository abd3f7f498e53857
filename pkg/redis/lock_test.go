package redis_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyodell/bjj-tournament-tracker-sub000/internal/testenv"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/redis"
)

func TestLocker(t *testing.T) {
	client := testenv.Redis(t)
	locker := redis.NewLocker(client, "")
	ctx := context.Background()

	t.Run("second acquire fails until release", func(t *testing.T) {
		lock, err := locker.Acquire(ctx, "sync:jjwl", time.Minute)
		require.NoError(t, err)

		_, err = locker.Acquire(ctx, "sync:jjwl", time.Minute)
		assert.ErrorIs(t, err, redis.ErrLockNotAcquired)

		require.NoError(t, lock.Release(ctx))
		assert.ErrorIs(t, lock.Release(ctx), redis.ErrLockNotHeld)

		again, err := locker.Acquire(ctx, "sync:jjwl", time.Minute)
		require.NoError(t, err)
		require.NoError(t, again.Release(ctx))
	})

	t.Run("with lock releases after fn", func(t *testing.T) {
		ran := false
		err := locker.WithLock(ctx, "roster:wishlist", time.Minute, func(ctx context.Context) error {
			ran = true
			_, err := locker.Acquire(ctx, "roster:wishlist", time.Minute)
			assert.ErrorIs(t, err, redis.ErrLockNotAcquired)
			return nil
		})
		require.NoError(t, err)
		assert.True(t, ran)

		lock, err := locker.Acquire(ctx, "roster:wishlist", time.Minute)
		require.NoError(t, err)
		require.NoError(t, lock.Release(ctx))
	})

	t.Run("with lock returns fn error and still releases", func(t *testing.T) {
		boom := errors.New("boom")
		err := locker.WithLock(ctx, "sync:ibjjf", time.Minute, func(context.Context) error { return boom })
		assert.ErrorIs(t, err, boom)

		lock, err := locker.Acquire(ctx, "sync:ibjjf", time.Minute)
		require.NoError(t, err)
		require.NoError(t, lock.Release(ctx))
	})

	t.Run("long run keeps its lease past ttl", func(t *testing.T) {
		err := locker.WithLock(ctx, "sync:jjwl:long", 300*time.Millisecond, func(ctx context.Context) error {
			time.Sleep(800 * time.Millisecond)
			_, err := locker.Acquire(ctx, "sync:jjwl:long", time.Minute)
			assert.ErrorIs(t, err, redis.ErrLockNotAcquired)
			return nil
		})
		require.NoError(t, err)

		lock, err := locker.Acquire(ctx, "sync:jjwl:long", time.Minute)
		require.NoError(t, err)
		require.NoError(t, lock.Release(ctx))
	})

	t.Run("renew fails once released", func(t *testing.T) {
		lock, err := locker.Acquire(ctx, "roster:profile", time.Minute)
		require.NoError(t, err)
		require.NoError(t, lock.Renew(ctx))
		require.NoError(t, lock.Release(ctx))
		assert.ErrorIs(t, lock.Renew(ctx), redis.ErrLockNotHeld)
	})
}

func TestClient_JSON(t *testing.T) {
	client := testenv.Redis(t)
	ctx := context.Background()

	type lastRun struct {
		Job    string `json:"job"`
		Status string `json:"status"`
	}

	var got lastRun
	assert.ErrorIs(t, client.GetJSON(ctx, "gymsync:job:missing", &got), redis.ErrNotFound)

	require.NoError(t, client.SetJSON(ctx, "gymsync:job:sync_jjwl", lastRun{Job: "sync_jjwl", Status: "success"}, time.Minute))
	require.NoError(t, client.GetJSON(ctx, "gymsync:job:sync_jjwl", &got))
	assert.Equal(t, "success", got.Status)
	require.NoError(t, client.Ping(ctx))
}
