package cache

import (
	"context"
	"testing"
	"time"

	"paycore/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisAccountCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	c := NewRedisAccountCache(client, time.Minute)
	ctx := context.Background()

	_, ok := c.Get(ctx, "acc-1")
	assert.False(t, ok)

	c.Set(ctx, &model.Account{
		ID:       "acc-1",
		UserID:   "u1",
		Currency: model.CurrencyEUR,
		Balance:  decimal.RequireFromString("12.34"),
	})

	got, ok := c.Get(ctx, "acc-1")
	require.True(t, ok)
	assert.Equal(t, "u1", got.UserID)
	assert.True(t, decimal.RequireFromString("12.34").Equal(got.Balance))
	assert.Equal(t, time.Minute, mr.TTL("paycore:account:acc-1"))

	mr.FastForward(2 * time.Minute)
	_, ok = c.Get(ctx, "acc-1")
	assert.False(t, ok, "expired snapshot is a miss")

	c.Set(ctx, &model.Account{ID: "acc-1"})
	c.Set(ctx, &model.Account{ID: "acc-2"})
	c.Invalidate(ctx, "acc-1", "acc-2")
	assert.False(t, mr.Exists("paycore:account:acc-1"))
	assert.False(t, mr.Exists("paycore:account:acc-2"))
}

func TestRedisAccountCacheCorruptEntryIsMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	require.NoError(t, mr.Set("paycore:account:acc-1", "not json"))
	_, ok := NewRedisAccountCache(client, time.Minute).Get(context.Background(), "acc-1")
	assert.False(t, ok)
}
