package newscache

import (
	"context"
	"time"
)

// CoreAPI exposes basic cache metadata.
type CoreAPI interface {
	Driver() Driver
}

// ReadAPI exposes read-oriented cache operations.
type ReadAPI interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	TTL(ctx context.Context, key string) (time.Duration, bool, error)
}

// WriteAPI exposes write and expiry operations.
type WriteAPI interface {
	SetWithTTL(ctx context.Context, key string, value []byte, baseTTL time.Duration) error
	SetExact(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	ExtendTTL(ctx context.Context, key string, baseTTL time.Duration) (bool, error)
}

// InvalidateAPI exposes key removal.
type InvalidateAPI interface {
	Delete(ctx context.Context, key string) (bool, error)
	DeleteMany(ctx context.Context, keys ...string) (int64, error)
	DeleteIfEquals(ctx context.Context, key string, expected []byte) (bool, error)
	Flush(ctx context.Context) error
}

// API is the full cache surface implemented by Cache.
type API interface {
	CoreAPI
	ReadAPI
	WriteAPI
	InvalidateAPI
}

var _ API = (*Cache)(nil)
