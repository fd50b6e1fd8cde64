package catalog

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCache(t *testing.T) {
	redisAddr := os.Getenv("WASTEBANK_REDIS_ADDR")
	if redisAddr == "" {
		t.Skip("WASTEBANK_REDIS_ADDR not set; skipping integration test")
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer rdb.Close()

	ctx := context.Background()
	cache := NewRedisCache(rdb)
	key := fmt.Sprintf("catalog:test:%d", time.Now().UnixNano())

	_, ok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, key, []byte(`[1,2]`), time.Minute))
	val, ok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[1,2]`, string(val))

	require.NoError(t, cache.Del(ctx, key))
	_, ok, err = cache.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}
