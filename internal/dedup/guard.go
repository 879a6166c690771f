package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Guard answers "has this key been handled before" for notifications that
// have no natural dedup barrier (motivational sends on replayed events).
// First caller per key wins; replays observe seen=true.
type Guard interface {
	Seen(ctx context.Context, key string) (bool, error)
}

const keyTTL = 24 * time.Hour

// RedisGuard marks keys with SETNX so at-least-once event replays cannot
// duplicate one-shot notifications.
type RedisGuard struct {
	Client *redis.Client
}

func NewRedisClient(addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

func (g *RedisGuard) Seen(ctx context.Context, key string) (bool, error) {
	set, err := g.Client.SetNX(ctx, "dedup:"+key, 1, keyTTL).Result()
	if err != nil {
		return false, err
	}
	return !set, nil
}

// NopGuard preserves the original behavior when Redis is not configured:
// duplicates on replay are an accepted risk.
type NopGuard struct{}

func (NopGuard) Seen(context.Context, string) (bool, error) { return false, nil }
