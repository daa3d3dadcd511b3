package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of go-redis client methods used by RedisStore.
// Keeping it as an interface enables mocking in tests.
type RedisClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// RedisConfig holds connection settings for RedisStore.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // prepended to every key, e.g. "gridpanel:session:"
	TTL      time.Duration // sliding expiry; zero keeps values forever
}

// RedisStore keeps session values in Redis so that several server replicas
// share them.
type RedisStore struct {
	cfg    RedisConfig
	client RedisClient
}

// Compile-time check that RedisStore implements Store.
var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to Redis and verifies the connection with PING.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	opts := &redis.Options{
		Addr: cfg.Addr,
		DB:   cfg.DB,
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis session store %s: ping failed: %w", cfg.Addr, err)
	}
	return &RedisStore{cfg: cfg, client: client}, nil
}

// NewRedisStoreWithClient creates a RedisStore backed by a pre-built client.
func NewRedisStoreWithClient(cfg RedisConfig, client RedisClient) *RedisStore {
	return &RedisStore{cfg: cfg, client: client}
}

func (r *RedisStore) key(component, session, key string) string {
	return r.cfg.Prefix + Key(component, session, key)
}

func (r *RedisStore) Get(ctx context.Context, component, session, key string) ([]byte, error) {
	k := r.key(component, session, key)
	val, err := r.client.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", k, err)
	}
	if r.cfg.TTL > 0 {
		if err := r.client.Expire(ctx, k, r.cfg.TTL).Err(); err != nil {
			return nil, fmt.Errorf("redis expire %s: %w", k, err)
		}
	}
	return val, nil
}

func (r *RedisStore) Set(ctx context.Context, component, session, key string, value []byte) error {
	k := r.key(component, session, key)
	if err := r.client.Set(ctx, k, value, r.cfg.TTL).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", k, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, component, session, key string) error {
	k := r.key(component, session, key)
	if err := r.client.Del(ctx, k).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", k, err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
