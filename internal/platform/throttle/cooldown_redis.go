// Package throttle holds short-lived cooldown windows in Redis.
package throttle

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CooldownRedis starts a fixed window per key with SET NX EX. While the key
// lives, further Acquire calls are refused.
type CooldownRedis struct {
	client *redis.Client
	prefix string
	window time.Duration
}

// NewCooldownRedis creates a CooldownRedis. A nil client or a non-positive
// window yields a cooldown that always allows.
func NewCooldownRedis(client *redis.Client, prefix string, window time.Duration) *CooldownRedis {
	if prefix == "" {
		prefix = "cooldown"
	}
	return &CooldownRedis{client: client, prefix: prefix, window: window}
}

func (c *CooldownRedis) key(k string) string {
	return fmt.Sprintf("%s:%s", c.prefix, k)
}

func (c *CooldownRedis) disabled() bool {
	return c == nil || c.client == nil || c.window <= 0
}

// Acquire starts the window for k. When a window is already running it
// returns false and the time left.
func (c *CooldownRedis) Acquire(ctx context.Context, k string) (bool, time.Duration, error) {
	if c.disabled() {
		return true, 0, nil
	}
	key := c.key(k)
	ok, err := c.client.SetNX(ctx, key, time.Now().Unix(), c.window).Result()
	if err != nil {
		return false, 0, fmt.Errorf("cooldown acquire %s: %w", key, err)
	}
	if ok {
		return true, 0, nil
	}

	left, err := c.client.PTTL(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("cooldown ttl %s: %w", key, err)
	}
	// -1 (no expiry) or -2 (gone in between) both mean the full window is unknown.
	if left < 0 {
		left = c.window
	}
	return false, left, nil
}

// Release ends the window for k early.
func (c *CooldownRedis) Release(ctx context.Context, k string) error {
	if c.disabled() {
		return nil
	}
	return c.client.Del(ctx, c.key(k)).Err()
}

// Remaining reports how long the window for k still runs; zero when none.
func (c *CooldownRedis) Remaining(ctx context.Context, k string) (time.Duration, error) {
	if c.disabled() {
		return 0, nil
	}
	left, err := c.client.PTTL(ctx, c.key(k)).Result()
	if err != nil {
		return 0, err
	}
	if left < 0 {
		return 0, nil
	}
	return left, nil
}
