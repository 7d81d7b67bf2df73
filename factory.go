package newscache

import (
	"context"
	"errors"
	"fmt"
)

// NewStore returns a concrete store for the requested driver.
// Caller is responsible for providing any driver-specific dependencies.
// A store that cannot be built is returned as one that fails every call.
// @group Constructors
//
// Example: select driver explicitly
//
//	ctx := context.Background()
//	store := newscache.NewStore(ctx, newscache.StoreConfig{
//		Driver: newscache.DriverMemory,
//	})
//	fmt.Println(store.Driver()) // memory
func NewStore(_ context.Context, cfg StoreConfig) Store {
	cfg = cfg.withDefaults()
	var store Store
	switch cfg.Driver {
	case DriverRedis:
		if cfg.RedisClient == nil {
			return &errorStore{driver: DriverRedis, err: errors.New("redis cache client unavailable")}
		}
		store = newRedisStore(cfg.RedisClient, cfg.DefaultTTL, cfg.Prefix)
	case DriverNull:
		return newNullStore()
	case DriverMemory:
		store = newMemoryStore(cfg.DefaultTTL, cfg.MemoryCleanupInterval)
	default:
		return &errorStore{driver: cfg.Driver, err: fmt.Errorf("unsupported cache driver %q", cfg.Driver)}
	}
	if cfg.Compression != CompressionNone && cfg.Compression != CompressionGzip {
		return &errorStore{driver: cfg.Driver, err: fmt.Errorf("%w: %s", ErrUnsupportedCodec, cfg.Compression)}
	}
	return newShapingStore(store, cfg.Compression, cfg.MaxValueBytes)
}

// NewStoreWith builds a store using a driver and a set of functional options.
// Required data (e.g., Redis client) must be provided via options when needed.
// @group Constructors
//
// Example: redis store (options)
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
//	store := newscache.NewStoreWith(ctx, newscache.DriverRedis,
//		newscache.WithRedisClient(redisClient),
//		newscache.WithCompression(newscache.CompressionGzip),
//	)
//	fmt.Println(store.Driver()) // redis
func NewStoreWith(ctx context.Context, driver Driver, opts ...StoreOption) Store {
	return NewStore(ctx, buildConfig(driver, opts...))
}

// NewMemoryStore is a convenience for an in-process store with optional overrides.
// @group Constructors
func NewMemoryStore(ctx context.Context, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverMemory, opts...)
}

// NewRedisStore is a convenience for a redis-backed store. Redis client is required.
// @group Constructors
//
// Example: redis helper
//
//	ctx := context.Background()
//	redisClient := redis.NewClusterClient(&redis.ClusterOptions{Addrs: []string{":6380", ":6381", ":6382"}})
//	store := newscache.NewRedisStore(ctx, redisClient)
//	fmt.Println(store.Driver()) // redis
func NewRedisStore(ctx context.Context, client RedisClient, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverRedis, append([]StoreOption{WithRedisClient(client)}, opts...)...)
}

// NewRanking returns the hot-key ranking for the configured driver. Redis
// keeps the sorted set shared across processes; every other driver counts
// in process.
// @group Constructors
func NewRanking(cfg StoreConfig) Ranking {
	cfg = cfg.withDefaults()
	if cfg.Driver == DriverRedis && cfg.RedisClient != nil {
		return newRedisRanking(cfg.RedisClient, cfg.RankingKey)
	}
	return newMemoryRanking()
}

func buildConfig(driver Driver, opts ...StoreOption) StoreConfig {
	cfg := StoreConfig{Driver: driver}
	for _, opt := range opts {
		cfg = opt(cfg)
	}
	return cfg
}
