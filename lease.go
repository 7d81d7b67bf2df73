package newscache

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Lease is an expiring, token-checked exclusive claim on a cache key.
//
// Acquire is SET NX with the lease TTL. Release deletes the key only while it
// still holds this lease's token, so a holder whose lease expired cannot
// remove a successor's claim.
// @group Locking
type Lease struct {
	cache *Cache
	key   string
	ttl   time.Duration
	token []byte
	held  atomic.Bool
}

// NewLease creates a lease handle for key with a fresh holder token.
// @group Locking
//
// Example: lease acquire/release
//
//	ctx := context.Background()
//	c := newscache.NewCache(newscache.NewMemoryStore(ctx))
//	lease := c.NewLease("lock:news:2024:10", newscache.LeaseTTL)
//	acquired, err := lease.Acquire(ctx)
//	fmt.Println(err == nil, acquired) // true true
//	if acquired {
//		_ = lease.Release(ctx)
//	}
func (c *Cache) NewLease(key string, ttl time.Duration) *Lease {
	if ttl <= 0 {
		ttl = LeaseTTL
	}
	return &Lease{
		cache: c,
		key:   key,
		ttl:   ttl,
		token: []byte(uuid.NewString()),
	}
}

// Key returns the lease key.
func (l *Lease) Key() string { return l.key }

// Token returns the holder token written on acquisition.
func (l *Lease) Token() string { return string(l.token) }

// Held reports whether this handle believes it holds the lease.
func (l *Lease) Held() bool { return l.held.Load() }

// Acquire attempts to take the lease once (non-blocking).
// @group Locking
func (l *Lease) Acquire(ctx context.Context) (bool, error) {
	acquired, err := l.cache.Add(ctx, l.key, l.token, l.ttl)
	if acquired && err == nil {
		l.held.Store(true)
	}
	return acquired, err
}

// Release gives the lease up if this handle acquired it. It is safe to call
// multiple times.
// @group Locking
func (l *Lease) Release(ctx context.Context) error {
	if !l.held.Load() {
		return nil
	}
	if _, err := l.cache.DeleteIfEquals(ctx, l.key, l.token); err != nil {
		return err
	}
	l.held.Store(false)
	return nil
}

// Do acquires the lease once, runs fn if acquired, then releases.
// @group Locking
func (l *Lease) Do(ctx context.Context, fn func(context.Context) error) (bool, error) {
	acquired, err := l.Acquire(ctx)
	if err != nil || !acquired {
		return acquired, err
	}
	defer func() { _ = l.Release(context.WithoutCancel(ctx)) }()
	if fn == nil {
		return true, errors.New("lease requires a callback")
	}
	return true, fn(ctx)
}
