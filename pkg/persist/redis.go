package persist

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Redis-backed persistence store, suitable when several
// gateway instances must share restored session state.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	closed bool
}

// RedisStoreOption configures RedisStore behavior.
type RedisStoreOption func(*redisStoreConfig)

type redisStoreConfig struct {
	prefix string
	ttl    time.Duration
}

// WithRedisPrefix sets the key prefix. Default: "narvik:session:".
func WithRedisPrefix(prefix string) RedisStoreOption {
	return func(c *redisStoreConfig) {
		c.prefix = prefix
	}
}

// WithRedisTTL sets how long persisted state is retained. The refresh token
// bounds the useful lifetime anyway; the TTL only keeps dead keys from
// accumulating. Default: 30 days.
func WithRedisTTL(ttl time.Duration) RedisStoreOption {
	return func(c *redisStoreConfig) {
		c.ttl = ttl
	}
}

// NewRedisStore creates a Redis-backed store around an existing client.
func NewRedisStore(client *redis.Client, opts ...RedisStoreOption) *RedisStore {
	cfg := &redisStoreConfig{
		prefix: "narvik:session:",
		ttl:    30 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &RedisStore{
		client: client,
		prefix: cfg.prefix,
		ttl:    cfg.ttl,
	}
}

func (r *RedisStore) key(k string) string {
	return r.prefix + k
}

// Save stores the blob with the configured TTL.
func (r *RedisStore) Save(ctx context.Context, key string, data []byte) error {
	if r.closed {
		return ErrStoreClosed{}
	}
	return r.client.Set(ctx, r.key(key), data, r.ttl).Err()
}

// Load retrieves the blob, or (nil, nil) when the key does not exist.
func (r *RedisStore) Load(ctx context.Context, key string) ([]byte, error) {
	if r.closed {
		return nil, ErrStoreClosed{}
	}
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// Delete removes the key.
func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if r.closed {
		return ErrStoreClosed{}
	}
	return r.client.Del(ctx, r.key(key)).Err()
}

// Close marks the store as closed. The underlying client is left open, as it
// may be shared with other components.
func (r *RedisStore) Close() error {
	r.closed = true
	return nil
}

// Prefix returns the configured key prefix. For tests.
func (r *RedisStore) Prefix() string {
	return r.prefix
}
