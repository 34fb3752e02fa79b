package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"paycore/internal/config"

	"github.com/go-redis/redis/v8"
)

// InitRedis connects to Redis and exits the process when the ping fails.
func InitRedis(cfg *config.RedisConfig) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatalf("connect redis failed: %v", err)
	}

	log.Println("redis connected")
	return client
}
