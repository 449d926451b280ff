package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryExpiresByTTL(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Hour)

	m.Set(ctx, "a", []byte("one"), 0)
	m.Set(ctx, "b", []byte("two"), 20*time.Millisecond)

	got, ok := m.Get(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, []byte("one"), got)

	assert.Eventually(t, func() bool {
		_, ok := m.Get(ctx, "b")
		return !ok
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, m.Len(), "expired entries stay until read or flushed")

	m.Flush()
	_, ok = m.Get(ctx, "a")
	assert.False(t, ok)
}

func newRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	srv, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	r, err := NewRedis(context.Background(), srv.Addr(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r, srv
}

func TestRedisRoundTripAndTTL(t *testing.T) {
	ctx := context.Background()
	r, srv := newRedis(t)

	r.Set(ctx, "/Volumes/a.jpg", []byte{0xff, 0xd8}, time.Hour)
	got, ok := r.Get(ctx, "/Volumes/a.jpg")
	require.True(t, ok)
	assert.Equal(t, []byte{0xff, 0xd8}, got)
	assert.True(t, srv.Exists(redisKeyPrefix+"/Volumes/a.jpg"))

	srv.FastForward(time.Hour + time.Second)
	_, ok = r.Get(ctx, "/Volumes/a.jpg")
	assert.False(t, ok)
}

func TestRedisErrorsAreMisses(t *testing.T) {
	ctx := context.Background()
	srv, err := miniredis.Run()
	require.NoError(t, err)
	r, err := NewRedis(ctx, srv.Addr(), nil)
	require.NoError(t, err)
	defer r.Close()
	srv.Close()

	r.Set(ctx, "k", []byte("v"), time.Minute)
	_, ok := r.Get(ctx, "k")
	assert.False(t, ok)
}

func TestNewRedisFailsWhenDown(t *testing.T) {
	_, err := NewRedis(context.Background(), "127.0.0.1:1", nil)
	assert.Error(t, err)
}

func TestTieredBackfills(t *testing.T) {
	ctx := context.Background()
	fast, slow := NewMemory(time.Hour), NewMemory(time.Hour)
	tiered := NewTiered(time.Hour, fast, slow)

	slow.Set(ctx, "k", []byte("v"), 0)
	got, ok := tiered.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	got, ok = fast.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	tiered.Set(ctx, "n", []byte("x"), time.Minute)
	_, ok = slow.Get(ctx, "n")
	assert.True(t, ok)
}
