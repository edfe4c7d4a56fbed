package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nid-27/regnex/internal/config"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	return mr, redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}

func TestKeyNormalizesQuery(t *testing.T) {
	a := Key("What is the  ACME outlook?")
	b := Key("  what is the acme\toutlook? ")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, Key("What is the ACME forecast?"))
	assert.Len(t, a, len(keyPrefix)+64)
}

func TestGetSet(t *testing.T) {
	mr, client := setupRedis(t)
	c := NewWithClient(client, time.Minute)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "question")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "question", "answer"))
	got, ok, err := c.Get(ctx, "QUESTION")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "answer", got)

	assert.Equal(t, time.Minute, mr.TTL(Key("question")))

	mr.FastForward(2 * time.Minute)
	_, ok, err = c.Get(ctx, "question")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFlush(t *testing.T) {
	mr, client := setupRedis(t)
	c := NewWithClient(client, 0)
	ctx := context.Background()
	assert.Equal(t, time.Hour, c.TTL())

	require.NoError(t, c.Set(ctx, "one", "1"))
	require.NoError(t, c.Set(ctx, "two", "2"))
	require.NoError(t, mr.Set("unrelated", "keep"))

	n, err := c.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, mr.Exists("unrelated"))

	n, err = c.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestUnavailableRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	c := New(config.CacheConfig{Enabled: true, Addr: addr, TTLSeconds: 60})
	defer c.Close()
	ctx := context.Background()

	assert.Error(t, c.Ping(ctx))
	_, ok, err := c.Get(ctx, "question")
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Error(t, c.Set(ctx, "question", "answer"))
}
