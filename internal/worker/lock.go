package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const defaultLockTTL = 5 * time.Minute

// Lock keeps ticks from overlapping across processes.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// lockClient is the subset of database.Redis the lock uses.
type lockClient interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	CompareAndDelete(ctx context.Context, key, value string) (bool, error)
}

// RedisLock is a TTL lease on a single key. The value names the holding
// process so a stuck lease can be traced to a host from redis-cli.
type RedisLock struct {
	client lockClient
	key    string
	ttl    time.Duration
	holder string

	token    string
	acquired time.Time
}

func NewRedisLock(client lockClient, key string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return &RedisLock{
		client: client,
		key:    key,
		ttl:    ttl,
		holder: fmt.Sprintf("%s/%d", host, os.Getpid()),
	}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	token := l.holder + "/" + uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if !ok {
		return false, nil
	}
	l.token = token
	l.acquired = time.Now()
	return true, nil
}

// Release drops the lease if this lock still holds it. A lease that outlived
// its TTL and was taken by another worker is left in place.
func (l *RedisLock) Release(ctx context.Context) error {
	if l.token == "" {
		return nil
	}
	token, held := l.token, time.Since(l.acquired)
	l.token = ""

	deleted, err := l.client.CompareAndDelete(ctx, l.key, token)
	if err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	if !deleted {
		log.Warn().
			Str("key", l.key).
			Dur("held", held).
			Dur("ttl", l.ttl).
			Msg("Worker lock expired before release, tick outran its lease")
	}
	return nil
}

// LocalLock is used when Redis is not configured. It only guards the
// current process.
type LocalLock struct {
	held chan struct{}
}

func NewLocalLock() *LocalLock {
	return &LocalLock{held: make(chan struct{}, 1)}
}

func (l *LocalLock) Acquire(context.Context) (bool, error) {
	select {
	case l.held <- struct{}{}:
		return true, nil
	default:
		return false, nil
	}
}

func (l *LocalLock) Release(context.Context) error {
	select {
	case <-l.held:
	default:
	}
	return nil
}
