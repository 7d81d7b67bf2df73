package cachefake

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goforj/newscache"
)

// Op identifies a cache operation for assertions.
type Op string

const (
	OpGet            Op = "get"
	OpSet            Op = "set"
	OpAdd            Op = "add"
	OpDelete         Op = "delete"
	OpDeleteMany     Op = "delete_many"
	OpDeleteIfEquals Op = "delete_if_equals"
	OpExpire         Op = "expire"
	OpTTL            Op = "ttl"
	OpFlush          Op = "flush"
)

// Fake exposes a deterministic in-memory store plus assertion helpers for tests.
// It wraps the memory store so no external services are needed.
type Fake struct {
	cache  *newscache.Cache
	store  *countingStore
	counts map[Op]map[string]int
	mu     sync.Mutex
}

// New creates a Fake using an in-memory store.
func New() *Fake {
	store := &countingStore{inner: newscache.NewMemoryStore(context.Background())}
	f := &Fake{
		cache:  newscache.NewCache(store),
		store:  store,
		counts: make(map[Op]map[string]int),
	}
	store.onCount = f.record
	return f
}

// Cache returns the cache facade to inject into code under test.
func (f *Fake) Cache() *newscache.Cache { return f.cache }

// Store returns the counting store behind Cache.
func (f *Fake) Store() newscache.Store { return f.store }

// Fail makes every later call of op return err. A nil err clears it.
// Failed calls are still counted.
func (f *Fake) Fail(op Op, err error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	if f.store.failures == nil {
		f.store.failures = make(map[Op]error)
	}
	if err == nil {
		delete(f.store.failures, op)
		return
	}
	f.store.failures[op] = err
}

// Reset clears recorded counts.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts = make(map[Op]map[string]int)
}

// AssertCalled verifies key was touched by op the expected number of times.
func (f *Fake) AssertCalled(t *testing.T, op Op, key string, times int) {
	t.Helper()
	if got := f.Count(op, key); got != times {
		t.Fatalf("expected %s %q called %d times, got %d", op, key, times, got)
	}
}

// AssertNotCalled ensures key was never touched by op.
func (f *Fake) AssertNotCalled(t *testing.T, op Op, key string) {
	t.Helper()
	if got := f.Count(op, key); got != 0 {
		t.Fatalf("expected %s %q not called, got %d", op, key, got)
	}
}

// AssertTotal ensures the total call count for an op matches times.
func (f *Fake) AssertTotal(t *testing.T, op Op, times int) {
	t.Helper()
	if got := f.Total(op); got != times {
		t.Fatalf("expected %s total=%d, got %d", op, times, got)
	}
}

// Count returns calls for op+key.
func (f *Fake) Count(op Op, key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.counts[op] == nil {
		return 0
	}
	return f.counts[op][key]
}

// Total returns total calls for an op across keys.
func (f *Fake) Total(op Op) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sum int
	for _, v := range f.counts[op] {
		sum += v
	}
	return sum
}

func (f *Fake) record(op Op, key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.counts[op] == nil {
		f.counts[op] = make(map[string]int)
	}
	f.counts[op][key]++
}

// countingStore wraps a Store to record calls.
type countingStore struct {
	inner   newscache.Store
	onCount func(Op, string)

	mu       sync.Mutex
	failures map[Op]error
}

func (s *countingStore) Driver() newscache.Driver { return s.inner.Driver() }

func (s *countingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := s.bump(OpGet, key); err != nil {
		return nil, false, err
	}
	return s.inner.Get(ctx, key)
}

func (s *countingStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if err := s.bump(OpSet, key); err != nil {
		return err
	}
	return s.inner.Set(ctx, key, val, ttl)
}

func (s *countingStore) Add(ctx context.Context, key string, val []byte, ttl time.Duration) (bool, error) {
	if err := s.bump(OpAdd, key); err != nil {
		return false, err
	}
	return s.inner.Add(ctx, key, val, ttl)
}

func (s *countingStore) Delete(ctx context.Context, key string) (bool, error) {
	if err := s.bump(OpDelete, key); err != nil {
		return false, err
	}
	return s.inner.Delete(ctx, key)
}

func (s *countingStore) DeleteMany(ctx context.Context, keys ...string) (int64, error) {
	var err error
	for _, k := range keys {
		if e := s.bump(OpDeleteMany, k); e != nil {
			err = e
		}
	}
	if err != nil {
		return 0, err
	}
	return s.inner.DeleteMany(ctx, keys...)
}

func (s *countingStore) DeleteIfEquals(ctx context.Context, key string, expected []byte) (bool, error) {
	if err := s.bump(OpDeleteIfEquals, key); err != nil {
		return false, err
	}
	return s.inner.DeleteIfEquals(ctx, key, expected)
}

func (s *countingStore) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if err := s.bump(OpExpire, key); err != nil {
		return false, err
	}
	return s.inner.Expire(ctx, key, ttl)
}

func (s *countingStore) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	if err := s.bump(OpTTL, key); err != nil {
		return 0, false, err
	}
	return s.inner.TTL(ctx, key)
}

func (s *countingStore) Flush(ctx context.Context) error {
	if err := s.bump(OpFlush, ""); err != nil {
		return err
	}
	return s.inner.Flush(ctx)
}

func (s *countingStore) bump(op Op, key string) error {
	if s.onCount != nil {
		s.onCount(op, key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures[op]
}
