package auth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultResetCooldown is the minimum gap between two reset codes for one email.
const DefaultResetCooldown = time.Minute

// RedisThrottle allows one reset request per key per cooldown window.
type RedisThrottle struct {
	client   redis.Cmdable
	prefix   string
	cooldown time.Duration
}

// NewRedisThrottle constructs a throttle backed by client.
func NewRedisThrottle(client redis.Cmdable, cooldown time.Duration) *RedisThrottle {
	if cooldown <= 0 {
		cooldown = DefaultResetCooldown
	}
	return &RedisThrottle{client: client, prefix: "storefront:reset:", cooldown: cooldown}
}

// Allow claims the window for key. It returns false while a previous claim is live.
func (t *RedisThrottle) Allow(ctx context.Context, key string) (bool, error) {
	return t.client.SetNX(ctx, t.prefix+key, time.Now().UTC().Unix(), t.cooldown).Result()
}

// Release drops the window for key so the next Allow succeeds.
func (t *RedisThrottle) Release(ctx context.Context, key string) error {
	return t.client.Del(ctx, t.prefix+key).Err()
}
