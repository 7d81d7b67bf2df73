package newscache

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

type memoryStore struct {
	cache      *gocache.Cache
	defaultTTL time.Duration
	// mu serializes compound read-modify-write operations.
	mu sync.Mutex
}

func newMemoryStore(defaultTTL, cleanupInterval time.Duration) Store {
	if defaultTTL <= 0 {
		defaultTTL = defaultCacheTTL
	}
	if cleanupInterval <= 0 {
		cleanupInterval = defaultMemoryCleanupInterval
	}
	return &memoryStore{
		cache:      gocache.New(defaultTTL, cleanupInterval),
		defaultTTL: defaultTTL,
	}
}

func (s *memoryStore) Driver() Driver {
	return DriverMemory
}

func (s *memoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	item, ok := s.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	body, ok := item.([]byte)
	if !ok {
		return nil, false, nil
	}
	return clone(body), true, nil
}

func (s *memoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Set(key, clone(value), ttl)
	return nil
}

func (s *memoryStore) Add(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.cache.Add(key, clone(value), ttl); err != nil {
		if strings.Contains(err.Error(), "already exists") {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *memoryStore) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.cache.Get(key)
	s.cache.Delete(key)
	return ok, nil
}

func (s *memoryStore) DeleteMany(ctx context.Context, keys ...string) (int64, error) {
	var n int64
	for _, key := range keys {
		if ok, _ := s.Delete(ctx, key); ok {
			n++
		}
	}
	return n, nil
}

func (s *memoryStore) DeleteIfEquals(_ context.Context, key string, expected []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.cache.Get(key)
	if !ok {
		return false, nil
	}
	body, ok := item.([]byte)
	if !ok || !bytes.Equal(body, expected) {
		return false, nil
	}
	s.cache.Delete(key)
	return true, nil
}

func (s *memoryStore) Expire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.cache.Get(key)
	if !ok {
		return false, nil
	}
	s.cache.Set(key, item, ttl)
	return true, nil
}

func (s *memoryStore) TTL(_ context.Context, key string) (time.Duration, bool, error) {
	_, expires, ok := s.cache.GetWithExpiration(key)
	if !ok {
		return 0, false, nil
	}
	if expires.IsZero() {
		return -1, true, nil
	}
	return time.Until(expires), true, nil
}

func (s *memoryStore) Flush(_ context.Context) error {
	s.cache.Flush()
	return nil
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
