package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-pos/internal/logger"
)

const (
	tablePrefix = "table_lock:"
	orderPrefix = "order_lock:"
)

func TableKey(tableID string) string { return tablePrefix + tableID }

func OrderKey(orderID string) string { return orderPrefix + orderID }

// unlockScript deletes the key only while it still holds the caller's token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis holds short-lived in-flight locks on tables and orders so that two
// coordinator calls on the same entity do not interleave.
type Redis struct {
	Client *redis.Client
	TTL    time.Duration
	Logger *logger.Logger
}

func NewRedis(client *redis.Client, ttl time.Duration, log *logger.Logger) *Redis {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Redis{Client: client, TTL: ttl, Logger: log}
}

// Connect pings addr and returns a client ready for locking.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection error: %w", err)
	}
	return client, nil
}

// Lock takes key for owner. It reports false when someone else holds it.
func (r *Redis) Lock(ctx context.Context, key, owner string) (bool, error) {
	ok, err := r.Client.SetNX(ctx, key, owner, r.TTL).Result()
	if err != nil {
		r.Logger.Error("REDIS", fmt.Sprintf("Failed to lock %s: %v", key, err))
		return false, err
	}
	if !ok {
		r.Logger.Debug("REDIS", fmt.Sprintf("%s is held by another call", key))
	}
	return ok, nil
}

// Unlock releases key if owner still holds it; an expired or foreign lock is left alone.
func (r *Redis) Unlock(ctx context.Context, key, owner string) error {
	if err := unlockScript.Run(ctx, r.Client, []string{key}, owner).Err(); err != nil && err != redis.Nil {
		r.Logger.Error("REDIS", fmt.Sprintf("Failed to unlock %s: %v", key, err))
		return err
	}
	return nil
}

func (r *Redis) IsLocked(ctx context.Context, key string) (bool, error) {
	n, err := r.Client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// LockAll takes every key or none of them.
func (r *Redis) LockAll(ctx context.Context, keys []string, owner string) (bool, error) {
	locked := make([]string, 0, len(keys))
	for _, key := range keys {
		ok, err := r.Lock(ctx, key, owner)
		if err != nil || !ok {
			for _, l := range locked {
				_ = r.Unlock(context.WithoutCancel(ctx), l, owner)
			}
			return false, err
		}
		locked = append(locked, key)
	}
	return true, nil
}

func (r *Redis) UnlockAll(ctx context.Context, keys []string, owner string) error {
	var firstErr error
	for _, key := range keys {
		if err := r.Unlock(ctx, key, owner); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
