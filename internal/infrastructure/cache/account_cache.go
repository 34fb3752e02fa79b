package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"paycore/internal/model"

	"github.com/go-redis/redis/v8"
)

// AccountCache is a read-through cache of account snapshots. Writers
// invalidate while still holding the account lock.
type AccountCache interface {
	Get(ctx context.Context, accountID string) (*model.Account, bool)
	Set(ctx context.Context, account *model.Account)
	Invalidate(ctx context.Context, accountIDs ...string)
}

type RedisAccountCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisAccountCache caches account snapshots as JSON for ttl.
func NewRedisAccountCache(client *redis.Client, ttl time.Duration) *RedisAccountCache {
	return &RedisAccountCache{client: client, ttl: ttl}
}

func accountCacheKey(accountID string) string {
	return "paycore:account:" + accountID
}

// Get treats every redis failure as a miss.
func (c *RedisAccountCache) Get(ctx context.Context, accountID string) (*model.Account, bool) {
	data, err := c.client.Get(ctx, accountCacheKey(accountID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("[AccountCache] get %s failed: %v", accountID, err)
		}
		return nil, false
	}

	var account model.Account
	if err := json.Unmarshal(data, &account); err != nil {
		log.Printf("[AccountCache] decode %s failed: %v", accountID, err)
		return nil, false
	}
	return &account, true
}

// Set stores a snapshot. Failures are logged and otherwise ignored.
func (c *RedisAccountCache) Set(ctx context.Context, account *model.Account) {
	data, err := json.Marshal(account)
	if err != nil {
		log.Printf("[AccountCache] encode %s failed: %v", account.ID, err)
		return
	}
	if err := c.client.Set(ctx, accountCacheKey(account.ID), data, c.ttl).Err(); err != nil {
		log.Printf("[AccountCache] set %s failed: %v", account.ID, err)
	}
}

// Invalidate drops the snapshots of accountIDs in one DEL.
func (c *RedisAccountCache) Invalidate(ctx context.Context, accountIDs ...string) {
	if len(accountIDs) == 0 {
		return
	}
	keys := make([]string, len(accountIDs))
	for i, id := range accountIDs {
		keys[i] = accountCacheKey(id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		log.Printf("[AccountCache] invalidate %v failed: %v", accountIDs, err)
	}
}
