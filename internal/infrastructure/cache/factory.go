package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/Gstxxx/picpay-simplificado/internal/infrastructure/config"
	"github.com/Gstxxx/picpay-simplificado/internal/infrastructure/resilience"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// BreakerStore is a resilience.BreakerStore that owns resources to release on shutdown
type BreakerStore interface {
	resilience.BreakerStore
	Close() error
}

// BreakerStoreFactory creates breaker stores based on configuration
type BreakerStoreFactory struct {
	breakerConfig         config.BreakerConfig
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
	pingTimeout           time.Duration
}

// BreakerStoreFactoryOption is a functional option for configuring the factory
type BreakerStoreFactoryOption func(*BreakerStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) BreakerStoreFactoryOption {
	return func(f *BreakerStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to the in-memory store when Redis is unavailable.
// Default is true.
func WithInMemoryFallback(allow bool) BreakerStoreFactoryOption {
	return func(f *BreakerStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewBreakerStoreFactory creates a new factory
func NewBreakerStoreFactory(breakerCfg config.BreakerConfig, redisCfg config.RedisConfig, opts ...BreakerStoreFactoryOption) *BreakerStoreFactory {
	f := &BreakerStoreFactory{
		breakerConfig:         breakerCfg,
		redisConfig:           redisCfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
		pingTimeout:           5 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateRedisStore connects to Redis and returns a shared breaker store
func (f *BreakerStoreFactory) CreateRedisStore(ctx context.Context) (*RedisBreakerStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     f.redisConfig.Addr(),
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, f.pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisBreakerStore(client, f.breakerConfig.KeyPrefix, 10*f.breakerConfig.Cooldown), nil
}

// CreateStore returns the configured store. With the redis backend it falls
// back to memory when Redis is unreachable, unless fallback is disabled.
func (f *BreakerStoreFactory) CreateStore(ctx context.Context) (BreakerStore, error) {
	if f.breakerConfig.Backend != "redis" {
		f.logger.Info("Using in-memory circuit breaker store")
		return NewInMemoryBreakerStore(), nil
	}

	store, err := f.CreateRedisStore(ctx)
	if err == nil {
		f.logger.Info("Using Redis circuit breaker store", zap.String("addr", f.redisConfig.Addr()))
		return store, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for circuit breaker state but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory circuit breaker store. "+
		"Breaker state will not be shared between instances.",
		zap.Error(err),
	)
	return NewInMemoryBreakerStore(), nil
}
