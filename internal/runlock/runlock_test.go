package runlock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yangwenmai/letterpress/internal/model"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisLocker_ExclusiveUntilReleased(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()
	l := NewRedis(client, time.Minute)

	unlock, err := l.Lock(ctx, "/srv/output")
	require.NoError(t, err)
	assert.True(t, mr.Exists(keyPrefix+"/srv/output"))

	_, err = l.Lock(ctx, "/srv/output")
	assert.True(t, model.IsKind(err, model.KindConflict))

	// A different root is independent.
	other, err := l.Lock(ctx, "/srv/output/runs/abc")
	require.NoError(t, err)
	require.NoError(t, other(ctx))

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists(keyPrefix+"/srv/output"))

	again, err := l.Lock(ctx, "/srv/output")
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func TestRedisLocker_ReleaseKeepsForeignLock(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()
	l := NewRedis(client, time.Minute)

	unlock, err := l.Lock(ctx, "root")
	require.NoError(t, err)

	// Simulate expiry followed by another holder.
	mr.FastForward(2 * time.Minute)
	require.NoError(t, mr.Set(keyPrefix+"root", "someone-else"))

	require.NoError(t, unlock(ctx))
	got, err := mr.Get(keyPrefix + "root")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRedisLocker_TTLExpires(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()
	l := NewRedis(client, 0)

	_, err := l.Lock(ctx, "root")
	require.NoError(t, err)
	assert.Equal(t, DefaultTTL, mr.TTL(keyPrefix+"root"))

	mr.FastForward(DefaultTTL + time.Second)
	_, err = l.Lock(ctx, "root")
	assert.NoError(t, err)
}

func TestNewRedisFromURL(t *testing.T) {
	mr, _ := newRedis(t)

	l, err := NewRedisFromURL(context.Background(), "redis://"+mr.Addr()+"/0", time.Minute)
	require.NoError(t, err)
	defer l.Close()

	_, err = NewRedisFromURL(context.Background(), "not a url", time.Minute)
	assert.True(t, model.IsKind(err, model.KindInvalidConfig))
}

func TestLocalLocker(t *testing.T) {
	ctx := context.Background()
	l := NewLocal()

	unlock, err := l.Lock(ctx, "root")
	require.NoError(t, err)

	_, err = l.Lock(ctx, "root")
	assert.True(t, model.IsKind(err, model.KindConflict))

	require.NoError(t, unlock(ctx))
	require.NoError(t, unlock(ctx))

	unlock, err = l.Lock(ctx, "root")
	require.NoError(t, err)
	require.NoError(t, unlock(ctx))
}
