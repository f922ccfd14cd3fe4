package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/tilver/backend/internal/domain/shared"
)

const defaultLockPrefix = "ledger:lock:"

// RedisLocker hands out redis locks through bsm/redislock
type RedisLocker struct {
	client    *redislock.Client
	keyPrefix string
}

// NewRedisLocker creates a locker on client
func NewRedisLocker(client *redis.Client, keyPrefix string) *RedisLocker {
	if keyPrefix == "" {
		keyPrefix = defaultLockPrefix
	}
	return &RedisLocker{client: redislock.New(client), keyPrefix: keyPrefix}
}

// Obtain tries once to take key. It returns shared.ErrLockNotObtained when
// another holder owns it.
func (l *RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (shared.Lock, error) {
	lock, err := l.client.Obtain(ctx, l.keyPrefix+key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, shared.ErrLockNotObtained
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}
	return redisLock{lock}, nil
}

type redisLock struct {
	lock *redislock.Lock
}

func (l redisLock) Release(ctx context.Context) error {
	err := l.lock.Release(ctx)
	if errors.Is(err, redislock.ErrLockNotHeld) {
		// expired before release; nothing left to free
		return nil
	}
	return err
}

// InMemoryLocker is a process local Locker
type InMemoryLocker struct {
	held *expiringSet
}

// NewInMemoryLocker creates a process local locker
func NewInMemoryLocker() *InMemoryLocker {
	return &InMemoryLocker{held: newExpiringSet()}
}

// Obtain takes key unless a live holder exists
func (l *InMemoryLocker) Obtain(_ context.Context, key string, ttl time.Duration) (shared.Lock, error) {
	expiresAt, ok := l.held.add(key, ttl)
	if !ok {
		return nil, shared.ErrLockNotObtained
	}
	return memoryLock{set: l.held, key: key, expiresAt: expiresAt}, nil
}

type memoryLock struct {
	set       *expiringSet
	key       string
	expiresAt time.Time
}

func (l memoryLock) Release(context.Context) error {
	l.set.removeIf(l.key, l.expiresAt)
	return nil
}

var (
	_ shared.Locker = (*RedisLocker)(nil)
	_ shared.Locker = (*InMemoryLocker)(nil)
)
