package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// incrScript increments a counter and stamps the window TTL only when this
// call created it, so the deadline fixed at the first event never slides.
var incrScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return count
`)

// RedisOptions configures the Redis-backed Store.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Logger   *zap.Logger
}

// Redis is a Store backed by a Redis server. SETNX and the INCR script give
// the same per-key atomicity the in-memory backend gets from its mutex.
type Redis struct {
	client *redis.Client
	logger *zap.Logger
}

var _ Store = (*Redis)(nil)

// NewRedis creates a Redis-backed Store. Callers should Ping before
// serving traffic.
func NewRedis(opts RedisOptions) *Redis {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return &Redis{
		client: client,
		logger: opts.Logger.Named("kvstore"),
	}
}

// Ping verifies connectivity to the backing server.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("pinging redis: %w", err)
	}
	return nil
}

// SetNX implements Store.
func (r *Redis) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", key, err)
	}
	return ok, nil
}

// Get implements Store.
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return val, true, nil
}

// Incr implements Store.
func (r *Redis) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := incrScript.Run(ctx, r.client, []string{key}, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	return count, nil
}

// GetCount implements Store.
func (r *Redis) GetCount(ctx context.Context, key string) (int64, error) {
	count, err := r.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get count %s: %w", key, err)
	}
	return count, nil
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}
