package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const keyNamespace = "sbd"

type cmdable interface {
	redis.Scripter
	Ping(ctx context.Context) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// compareAndDelete removes KEYS[1] only while it still holds ARGV[1].
var compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis wraps the go-redis client with the small surface the worker lock and
// the idempotency manager need.
type Redis struct {
	cmd cmdable
	raw *redis.Client
}

// ErrRedisNil is returned by Get for missing keys.
var ErrRedisNil = redis.Nil

// NewRedis creates a new Redis client.
// Returns nil if redisURL is empty (Redis is optional for development).
func NewRedis(redisURL string) (*Redis, error) {
	if redisURL == "" {
		log.Warn().Msg("Redis URL not configured, running without Redis")
		return nil, nil
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	opt.PoolSize = 20
	opt.MinIdleConns = 2
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	log.Info().Msg("Connected to Redis")
	return &Redis{cmd: client, raw: client}, nil
}

// Key builds a namespaced key, e.g. Key("lock", "worker") -> "sbd:lock:worker".
func (r *Redis) Key(parts ...string) string {
	return keyNamespace + ":" + strings.Join(parts, ":")
}

func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.cmd == nil {
		return errors.New("redis client not initialized")
	}
	return r.cmd.Ping(ctx).Err()
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	if r == nil || r.cmd == nil {
		return "", errors.New("redis client not initialized")
	}
	return r.cmd.Get(ctx, key).Result()
}

func (r *Redis) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if r == nil || r.cmd == nil {
		return errors.New("redis client not initialized")
	}
	return r.cmd.Set(ctx, key, value, ttl).Err()
}

func (r *Redis) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if r == nil || r.cmd == nil {
		return false, errors.New("redis client not initialized")
	}
	return r.cmd.SetNX(ctx, key, value, ttl).Result()
}

func (r *Redis) Del(ctx context.Context, keys ...string) error {
	if r == nil || r.cmd == nil {
		return errors.New("redis client not initialized")
	}
	return r.cmd.Del(ctx, keys...).Err()
}

// CompareAndDelete deletes key if its value equals value. It reports whether
// the key was removed.
func (r *Redis) CompareAndDelete(ctx context.Context, key, value string) (bool, error) {
	if r == nil || r.cmd == nil {
		return false, errors.New("redis client not initialized")
	}
	n, err := compareAndDelete.Run(ctx, r.cmd, []string{key}, value).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CloseRedis closes the Redis connection
func CloseRedis(client *Redis) {
	if client == nil || client.raw == nil {
		return
	}
	if err := client.raw.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing Redis connection")
	} else {
		log.Info().Msg("Redis connection closed")
	}
}
