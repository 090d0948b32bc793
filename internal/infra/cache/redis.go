package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTickGuard реализует domain.TickGuard через SETNX.
// Лизинг на ключ тика не даёт двум репликам пройтись по одному due-набору.
type RedisTickGuard struct {
	client *redis.Client
}

// NewRedisTickGuard создаёт guard.
func NewRedisTickGuard(client *redis.Client) *RedisTickGuard {
	return &RedisTickGuard{client: client}
}

// Acquire возвращает true, если лизинг получен этой репликой.
func (g *RedisTickGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return g.client.SetNX(ctx, key, "1", ttl).Result()
}
