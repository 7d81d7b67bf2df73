package newscache

import (
	"context"
	"time"

	"github.com/goforj/newscache/cachecore"
)

// shapingStore enforces data shaping concerns (compression, size limits)
// transparently on top of any concrete Store implementation.
type shapingStore struct {
	inner cachecore.Store
	codec CompressionCodec
	max   int
}

func newShapingStore(inner cachecore.Store, codec CompressionCodec, max int) cachecore.Store {
	if (codec == CompressionNone || codec == "") && max <= 0 {
		return inner
	}
	if codec == "" {
		codec = CompressionNone
	}
	return &shapingStore{inner: inner, codec: codec, max: max}
}

func (s *shapingStore) Driver() cachecore.Driver { return s.inner.Driver() }

func (s *shapingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	body, ok, err := s.inner.Get(ctx, key)
	if err != nil || !ok {
		return body, ok, err
	}
	decoded, err := decodeValue(body)
	if err != nil {
		return nil, false, err
	}
	return decoded, true, nil
}

func (s *shapingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	encoded, err := encodeValue(s.codec, s.max, value)
	if err != nil {
		return err
	}
	return s.inner.Set(ctx, key, encoded, ttl)
}

func (s *shapingStore) Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	encoded, err := encodeValue(s.codec, s.max, value)
	if err != nil {
		return false, err
	}
	return s.inner.Add(ctx, key, encoded, ttl)
}

func (s *shapingStore) Delete(ctx context.Context, key string) (bool, error) {
	return s.inner.Delete(ctx, key)
}

func (s *shapingStore) DeleteMany(ctx context.Context, keys ...string) (int64, error) {
	return s.inner.DeleteMany(ctx, keys...)
}

// DeleteIfEquals compares against the shaped form; encoding is deterministic.
func (s *shapingStore) DeleteIfEquals(ctx context.Context, key string, expected []byte) (bool, error) {
	encoded, err := encodeValue(s.codec, 0, expected)
	if err != nil {
		return false, err
	}
	return s.inner.DeleteIfEquals(ctx, key, encoded)
}

func (s *shapingStore) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.inner.Expire(ctx, key, ttl)
}

func (s *shapingStore) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	return s.inner.TTL(ctx, key)
}

func (s *shapingStore) Flush(ctx context.Context) error {
	return s.inner.Flush(ctx)
}
