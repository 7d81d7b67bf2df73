package cachecore

import (
	"context"
	"errors"
	"time"
)

// ErrCacheUnavailable wraps every transport level cache failure.
var ErrCacheUnavailable = errors.New("cache unavailable")

// Store is the shared cache contract.
//
// Get reports a miss as ok=false with a nil error. TTL reports exists=false
// for a missing key and a negative remaining duration for a key without
// expiry.
type Store interface {
	Driver() Driver
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) (bool, error)
	DeleteMany(ctx context.Context, keys ...string) (int64, error)
	DeleteIfEquals(ctx context.Context, key string, expected []byte) (bool, error)
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	TTL(ctx context.Context, key string) (time.Duration, bool, error)
	Flush(ctx context.Context) error
}
