package newscache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLeaseAcquireRelease(t *testing.T) {
	ctx := context.Background()
	c := NewCache(NewMemoryStore(ctx))
	lease := c.NewLease("lock:news:2024:10", time.Second)
	acquired, err := lease.Acquire(ctx)
	if err != nil || !acquired {
		t.Fatalf("expected acquire: acquired=%v err=%v", acquired, err)
	}
	if !lease.Held() {
		t.Fatalf("expected held after acquire")
	}
	other := c.NewLease("lock:news:2024:10", time.Second)
	if acquired, _ := other.Acquire(ctx); acquired {
		t.Fatalf("expected second lease to be refused while held")
	}
	if err := lease.Release(ctx); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if err := lease.Release(ctx); err != nil {
		t.Fatalf("repeated release should be no-op: %v", err)
	}
	if acquired, _ := other.Acquire(ctx); !acquired {
		t.Fatalf("expected lease to be free after release")
	}
}

func TestLeaseConcurrentAcquireHasOneWinner(t *testing.T) {
	ctx := context.Background()
	stores := map[string]Store{
		"memory": NewMemoryStore(ctx),
		"redis":  newRedisStore(newStubRedisClient(), 0, ""),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			c := NewCache(store)
			const contenders = 64
			var (
				wg      sync.WaitGroup
				start   = make(chan struct{})
				winners atomic.Int32
				errs    = make(chan error, contenders)
			)
			for i := 0; i < contenders; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					lease := c.NewLease("lock:news:2024:10:发展", time.Minute)
					<-start
					acquired, err := lease.Acquire(ctx)
					if err != nil {
						errs <- err
						return
					}
					if acquired {
						winners.Add(1)
					}
				}()
			}
			close(start)
			wg.Wait()
			close(errs)
			for err := range errs {
				t.Fatalf("acquire failed: %v", err)
			}
			if n := winners.Load(); n != 1 {
				t.Fatalf("expected exactly one holder, got %d", n)
			}
		})
	}
}

func TestLeaseReleaseRespectsSuccessor(t *testing.T) {
	ctx := context.Background()
	client := newStubRedisClient()
	c := NewCache(newRedisStore(client, 0, ""))

	first := c.NewLease("lock:k", time.Second)
	if ok, _ := first.Acquire(ctx); !ok {
		t.Fatalf("expected first acquire")
	}
	// Simulate expiry of the first holder's lease.
	_, _ = client.Del(ctx, "lock:k").Result()

	second := c.NewLease("lock:k", time.Second)
	if ok, _ := second.Acquire(ctx); !ok {
		t.Fatalf("expected successor acquire")
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("stale release failed: %v", err)
	}
	if got := string(client.data["lock:k"]); got != second.Token() {
		t.Fatalf("expected successor token to survive stale release, got %q", got)
	}
}

func TestLeaseTokensAreUnique(t *testing.T) {
	c := NewCache(NewMemoryStore(context.Background()))
	a := c.NewLease("lock:a", 0)
	b := c.NewLease("lock:a", 0)
	if a.Token() == "" || a.Token() == b.Token() {
		t.Fatalf("expected distinct non-empty tokens: %q %q", a.Token(), b.Token())
	}
	if a.ttl != LeaseTTL {
		t.Fatalf("expected default lease ttl, got %v", a.ttl)
	}
}

func TestLeaseDo(t *testing.T) {
	ctx := context.Background()
	c := NewCache(NewMemoryStore(ctx))
	lease := c.NewLease("lock:job", time.Second)
	ran := false
	acquired, err := lease.Do(ctx, func(context.Context) error {
		ran = true
		return nil
	})
	if err != nil || !acquired || !ran {
		t.Fatalf("expected callback to run: acquired=%v ran=%v err=%v", acquired, ran, err)
	}
	if lease.Held() {
		t.Fatalf("expected release after Do")
	}
	if _, err := lease.Do(ctx, nil); err == nil {
		t.Fatalf("expected nil callback error")
	}
}

func TestLeaseAcquireError(t *testing.T) {
	boom := errors.New("down")
	c := NewCache(&errorStore{driver: DriverRedis, err: boom})
	lease := c.NewLease("lock:k", time.Second)
	if _, err := lease.Acquire(context.Background()); !errors.Is(err, ErrCacheUnavailable) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
	if lease.Held() {
		t.Fatalf("failed acquire must not mark lease held")
	}
}
