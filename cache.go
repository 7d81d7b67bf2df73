package newscache

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// Cache adapts a Store to the archive's expiry policy: positive entries get
// a base TTL plus uniform jitter, negative entries and leases get an exact
// TTL. Every store failure is returned wrapped in ErrCacheUnavailable.
type Cache struct {
	store     Store
	jitterMax time.Duration
	observer  Observer
	// randN returns a uniform value in [0, n).
	randN func(n int64) int64
}

// NewCache creates a cache facade bound to a concrete store.
// @group Cache
//
// Example: cache from store
//
//	ctx := context.Background()
//	c := newscache.NewCache(newscache.NewMemoryStore(ctx))
//	fmt.Println(c.Driver()) // memory
func NewCache(store Store) *Cache {
	if store == nil {
		store = newNullStore()
	}
	return &Cache{
		store:     store,
		jitterMax: DefaultJitter,
		randN:     rand.Int64N,
	}
}

// WithObserver attaches an observer to receive operation events.
func (c *Cache) WithObserver(o Observer) *Cache {
	c.observer = o
	return c
}

// WithJitter sets the upper bound of the random TTL extension. Zero
// disables jitter.
func (c *Cache) WithJitter(max time.Duration) *Cache {
	if max < 0 {
		max = 0
	}
	c.jitterMax = max
	return c
}

// Store returns the underlying store implementation.
// @group Cache
func (c *Cache) Store() Store {
	return c.store
}

// Driver reports the underlying store driver.
// @group Cache
func (c *Cache) Driver() Driver {
	return c.store.Driver()
}

// Get returns raw bytes for key when present.
// @group Cache
//
// Example: get bytes
//
//	ctx := context.Background()
//	c := newscache.NewCache(newscache.NewMemoryStore(ctx))
//	_ = c.SetWithTTL(ctx, "news:2024:10", []byte("[]"), newscache.NewsTTL)
//	value, ok, _ := c.Get(ctx, "news:2024:10")
//	fmt.Println(ok, string(value)) // true []
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	body, ok, err := c.store.Get(ctx, key)
	err = unavailable("get", key, err)
	c.observe(ctx, "get", key, ok, err, start)
	return body, ok, err
}

// SetWithTTL writes value with expiry baseTTL plus a uniform jitter in
// [0, jitterMax], so entries written together do not expire together.
// @group Cache
func (c *Cache) SetWithTTL(ctx context.Context, key string, value []byte, baseTTL time.Duration) error {
	start := time.Now()
	err := unavailable("set", key, c.store.Set(ctx, key, value, c.Jitter(baseTTL)))
	c.observe(ctx, "set", key, false, err, start)
	return err
}

// SetExact writes value with exactly ttl and no jitter.
// @group Cache
func (c *Cache) SetExact(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := unavailable("set_exact", key, c.store.Set(ctx, key, value, ttl))
	c.observe(ctx, "set_exact", key, false, err, start)
	return err
}

// Add writes value only when key is not already present.
// @group Cache
//
// Example: add once
//
//	ctx := context.Background()
//	c := newscache.NewCache(newscache.NewMemoryStore(ctx))
//	created, _ := c.Add(ctx, "lock:news:2024:10", []byte("token"), newscache.LeaseTTL)
//	fmt.Println(created) // true
func (c *Cache) Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	start := time.Now()
	created, err := c.store.Add(ctx, key, value, ttl)
	err = unavailable("add", key, err)
	c.observe(ctx, "add", key, created, err, start)
	return created, err
}

// Delete removes a single key and reports whether it was present.
// @group Cache
func (c *Cache) Delete(ctx context.Context, key string) (bool, error) {
	start := time.Now()
	existed, err := c.store.Delete(ctx, key)
	err = unavailable("delete", key, err)
	c.observe(ctx, "delete", key, existed, err, start)
	return existed, err
}

// DeleteMany removes multiple keys and returns how many were present.
// @group Cache
func (c *Cache) DeleteMany(ctx context.Context, keys ...string) (int64, error) {
	start := time.Now()
	n, err := c.store.DeleteMany(ctx, keys...)
	err = unavailable("delete_many", "", err)
	for _, key := range keys {
		c.observe(ctx, "delete_many", key, err == nil, err, start)
	}
	return n, err
}

// DeleteIfEquals removes key only while it still holds expected.
// @group Cache
func (c *Cache) DeleteIfEquals(ctx context.Context, key string, expected []byte) (bool, error) {
	start := time.Now()
	deleted, err := c.store.DeleteIfEquals(ctx, key, expected)
	err = unavailable("delete_if_equals", key, err)
	c.observe(ctx, "delete_if_equals", key, deleted, err, start)
	return deleted, err
}

// ExtendTTL resets the expiry of an existing key to baseTTL plus jitter.
// It reports false when the key is absent.
// @group Cache
func (c *Cache) ExtendTTL(ctx context.Context, key string, baseTTL time.Duration) (bool, error) {
	start := time.Now()
	ok, err := c.store.Expire(ctx, key, c.Jitter(baseTTL))
	err = unavailable("expire", key, err)
	c.observe(ctx, "expire", key, ok, err, start)
	return ok, err
}

// TTL reports the remaining lifetime of key. A negative duration means the
// key never expires.
// @group Cache
func (c *Cache) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	start := time.Now()
	d, ok, err := c.store.TTL(ctx, key)
	err = unavailable("ttl", key, err)
	c.observe(ctx, "ttl", key, ok, err, start)
	return d, ok, err
}

// Flush clears all keys for this store scope.
// @group Cache
func (c *Cache) Flush(ctx context.Context) error {
	start := time.Now()
	err := unavailable("flush", "", c.store.Flush(ctx))
	c.observe(ctx, "flush", "", err == nil, err, start)
	return err
}

// Jitter returns base extended by a uniform whole number of seconds in
// [0, jitterMax].
func (c *Cache) Jitter(base time.Duration) time.Duration {
	span := int64(c.jitterMax / time.Second)
	if span <= 0 || c.randN == nil {
		return base
	}
	return base + time.Duration(c.randN(span+1))*time.Second
}

func (c *Cache) observe(ctx context.Context, op, key string, hit bool, err error, start time.Time) {
	if c.observer == nil {
		return
	}
	c.observer.OnCacheOp(ctx, op, key, hit, err, time.Since(start), c.Driver())
}

func unavailable(op, key string, err error) error {
	if err == nil || errors.Is(err, ErrCacheUnavailable) {
		return err
	}
	if key == "" {
		return fmt.Errorf("%w: %s: %w", ErrCacheUnavailable, op, err)
	}
	return fmt.Errorf("%w: %s %q: %w", ErrCacheUnavailable, op, key, err)
}
