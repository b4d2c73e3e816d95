package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/layer-3/gatekeeper/core"
	"github.com/layer-3/gatekeeper/ports"
	"github.com/redis/go-redis/v9"
)

// incrScript starts the expiry with the first increment only
var incrScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// RedisStore is a Redis implementation of the Store interface.
// Keys are stored as given; callers own the namespacing.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore creates a new Redis store
func NewRedisStore(client redis.UniversalClient) ports.Store {
	return &RedisStore{client: client}
}

// Set stores the value with expiration
func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w: %v", key, core.ErrStoreOperationFailed, err)
	}
	return nil
}

// Get retrieves a value by key
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", core.ErrNotFound
		}
		return "", fmt.Errorf("get %s: %w: %v", key, core.ErrStoreOperationFailed, err)
	}
	return value, nil
}

// Delete removes a key
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("delete %s: %w: %v", key, core.ErrStoreOperationFailed, err)
	}
	return nil
}

// Take retrieves and removes a key with GETDEL
func (s *RedisStore) Take(ctx context.Context, key string) (string, error) {
	value, err := s.client.GetDel(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", core.ErrNotFound
		}
		return "", fmt.Errorf("take %s: %w: %v", key, core.ErrStoreOperationFailed, err)
	}
	return value, nil
}

// Incr increments a counter with INCR, setting the expiry in the same script
func (s *RedisStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if ttl <= 0 {
		return 0, fmt.Errorf("incr %s: ttl must be positive: %w", key, core.ErrStoreOperationFailed)
	}
	n, err := incrScript.Run(ctx, s.client, []string{key}, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w: %v", key, core.ErrStoreOperationFailed, err)
	}
	return n, nil
}
