package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/tilver/backend/internal/domain/shared"
	"github.com/tilver/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Coordination bundles the stores instances use to avoid doing the same work twice
type Coordination struct {
	Idempotency shared.IdempotencyStore
	Locker      shared.Locker
	// Distributed is false when the in-memory fallback is in use
	Distributed bool
}

// Close releases the underlying connections
func (c *Coordination) Close() error {
	return c.Idempotency.Close()
}

// CoordinationFactory builds Coordination from configuration
type CoordinationFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
	dial                  func(context.Context, config.RedisConfig) (*redis.Client, error)
}

// CoordinationFactoryOption configures the factory
type CoordinationFactoryOption func(*CoordinationFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) CoordinationFactoryOption {
	return func(f *CoordinationFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis falls back to
// process local stores. Default is true.
func WithInMemoryFallback(allow bool) CoordinationFactoryOption {
	return func(f *CoordinationFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewCoordinationFactory creates a factory
func NewCoordinationFactory(cfg config.RedisConfig, opts ...CoordinationFactoryOption) *CoordinationFactory {
	f := &CoordinationFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
		dial:                  NewRedisClient,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// InMemory returns process local stores
func (f *CoordinationFactory) InMemory() *Coordination {
	return &Coordination{
		Idempotency: NewInMemoryIdempotencyStore(),
		Locker:      NewInMemoryLocker(),
	}
}

// Create connects to Redis and falls back to in-memory stores when allowed
func (f *CoordinationFactory) Create(ctx context.Context) (*Coordination, error) {
	client, err := f.dial(ctx, f.redisConfig)
	if err == nil {
		f.logger.Info("using Redis for idempotency and locking", zap.String("addr", f.redisConfig.Addr()))
		return &Coordination{
			Idempotency: NewRedisIdempotencyStore(client, ""),
			Locker:      NewRedisLocker(client, ""),
			Distributed: true,
		}, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for coordination but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory idempotency and locks; "+
		"recurring runs are then only guarded by the database",
		zap.Error(err),
	)
	return f.InMemory(), nil
}
