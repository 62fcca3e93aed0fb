package cache

import (
	"fmt"

	"github.com/freshtable/billing/internal/domain/shared"
	"github.com/freshtable/billing/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Idempotency store backends accepted in idempotency.backend
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// IdempotencyStoreFactory builds the Idempotency-Key store named by config
type IdempotencyStoreFactory struct {
	redis    config.RedisConfig
	idem     config.IdempotencyConfig
	logger   *zap.Logger
	fallback bool
	dial     func(RedisConfig) (shared.IdempotencyStore, error)
}

// IdempotencyStoreFactoryOption is a functional option for configuring the factory
type IdempotencyStoreFactoryOption func(*IdempotencyStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis degrades to a
// per-process store. Production turns this off.
func WithInMemoryFallback(allow bool) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.fallback = allow
	}
}

func withRedisConnector(dial func(RedisConfig) (shared.IdempotencyStore, error)) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.dial = dial
	}
}

// NewIdempotencyStoreFactory creates a new factory
func NewIdempotencyStoreFactory(redisCfg config.RedisConfig, idemCfg config.IdempotencyConfig, opts ...IdempotencyStoreFactoryOption) *IdempotencyStoreFactory {
	f := &IdempotencyStoreFactory{
		redis:    redisCfg,
		idem:     idemCfg,
		logger:   zap.NewNop(),
		fallback: true,
		dial: func(cfg RedisConfig) (shared.IdempotencyStore, error) {
			return NewRedisIdempotencyStore(cfg)
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.Named("cache.idempotency")
	return f
}

// CreateStore returns the configured store, or nil when Idempotency-Key
// handling is switched off. Redis is never dialled in that case.
func (f *IdempotencyStoreFactory) CreateStore() (shared.IdempotencyStore, error) {
	if !f.idem.Enabled {
		f.logger.Info("Idempotency-Key handling disabled")
		return nil, nil
	}

	if f.idem.Backend == BackendMemory {
		f.ready(BackendMemory)
		return NewInMemoryIdempotencyStore(), nil
	}

	store, err := f.dial(RedisConfig{
		Host:     f.redis.Host,
		Port:     f.redis.Port,
		Password: f.redis.Password,
		DB:       f.redis.DB,
	})
	if err == nil {
		f.ready(BackendRedis)
		return store, nil
	}
	if !f.fallback {
		return nil, fmt.Errorf("redis idempotency store unavailable: %w", err)
	}

	// Retries that land on another instance are not deduplicated
	f.logger.Warn("Redis unavailable, using in-memory idempotency store", zap.Error(err))
	f.ready(BackendMemory)
	return NewInMemoryIdempotencyStore(), nil
}

func (f *IdempotencyStoreFactory) ready(backend string) {
	f.logger.Info("Idempotency store ready",
		zap.String("backend", backend),
		zap.Duration("ttl", f.idem.TTL),
	)
}
