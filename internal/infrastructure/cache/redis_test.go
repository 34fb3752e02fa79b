package cache

import (
	"context"
	"strconv"
	"testing"

	"paycore/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitRedisReturnsOwnClient(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	cfg := &config.RedisConfig{Host: mr.Host(), Port: port}

	a := InitRedis(cfg)
	defer a.Close()
	b := InitRedis(cfg)
	defer b.Close()
	assert.NotSame(t, a, b)

	ctx := context.Background()
	require.NoError(t, a.Set(ctx, "k", "v", 0).Err())
	v, err := b.Get(ctx, "k").Result()
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}
