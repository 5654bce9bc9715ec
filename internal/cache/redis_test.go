package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisBackend(t *testing.T) (*RedisBackend, *miniredis.Miniredis) {
	t.Helper()

	srv, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	return NewRedisBackendFromClient(client), srv
}

func TestRedisBackendRoundTrip(t *testing.T) {
	backend, _ := newTestRedisBackend(t)
	ctx := context.Background()

	require.NoError(t, backend.Set(ctx, "k", []byte(`{"v":1}`), time.Hour))

	got, err := backend.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"v":1}`), got)

	require.NoError(t, backend.Delete(ctx, "k"))
	got, err = backend.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisBackendMissingKey(t *testing.T) {
	backend, _ := newTestRedisBackend(t)

	got, err := backend.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisBackendServerSideTTL(t *testing.T) {
	backend, srv := newTestRedisBackend(t)
	ctx := context.Background()

	require.NoError(t, backend.Set(ctx, "k", []byte("v"), time.Minute))

	srv.FastForward(2 * time.Minute)

	got, err := backend.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestResponseCacheWithRedisBackend(t *testing.T) {
	backend, _ := newTestRedisBackend(t)

	c, err := NewResponseCache(ResponseCacheOptions{Backend: backend})
	require.NoError(t, err)

	key := Key("search", "41.88", "-87.63", "20", "0.25")
	c.PutJSON(context.Background(), key, []string{"GHCND:US1ILCK0014"})

	// Fresh cache instance: the value must survive the LRU purge.
	c2, err := NewResponseCache(ResponseCacheOptions{Backend: backend})
	require.NoError(t, err)

	var out []string
	require.True(t, c2.GetJSON(context.Background(), key, &out))
	assert.Equal(t, []string{"GHCND:US1ILCK0014"}, out)
}
