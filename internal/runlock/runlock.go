// Package runlock keeps two runs from writing into the same artifact root.
// Redis is used when configured so the lock spans processes and hosts;
// otherwise an in-process lock guards a single server.
package runlock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yangwenmai/letterpress/internal/model"
)

// DefaultTTL bounds how long a crashed holder can block others.
const DefaultTTL = time.Hour

const keyPrefix = "letterpress:run:"

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// RedisLocker takes SET NX locks with a random ownership token.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis creates a locker over client. A non-positive ttl uses DefaultTTL.
func NewRedis(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisLocker{client: client, ttl: ttl}
}

// NewRedisFromURL parses a redis:// URL and verifies the server answers.
func NewRedisFromURL(ctx context.Context, url string, ttl time.Duration) (*RedisLocker, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, model.Wrap(model.KindInvalidConfig, "runlock", fmt.Errorf("parse REDIS_URL: %w", err))
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedis(client, ttl), nil
}

// Lock acquires key or fails with a CONFLICT error when another holder has it.
// The returned func releases the lock only if this caller still owns it.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(context.Context) error, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("lock token: %w", err)
	}
	token := hex.EncodeToString(b)
	k := keyPrefix + key

	ok, err := l.client.SetNX(ctx, k, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", k, err)
	}
	if !ok {
		return nil, model.E(model.KindConflict, "runlock", "another run is writing to %s", key)
	}
	return func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.client, []string{k}, token).Err()
	}, nil
}

// Close closes the Redis client.
func (l *RedisLocker) Close() error {
	return l.client.Close()
}

// LocalLocker is an in-process lock set.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocal creates an empty LocalLocker.
func NewLocal() *LocalLocker {
	return &LocalLocker{held: map[string]struct{}{}}
}

// Lock acquires key or fails with a CONFLICT error.
func (l *LocalLocker) Lock(_ context.Context, key string) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[key]; busy {
		return nil, model.E(model.KindConflict, "runlock", "another run is writing to %s", key)
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
		return nil
	}, nil
}
