// Package cachetest provides reusable store contract tests for cachecore.Store implementations.
//
// Example pattern:
//
//	func TestRedisStoreContract(t *testing.T) {
//		client := redis.NewClient(&redis.Options{Addr: addr})
//		store := newscache.NewRedisStore(ctx, client, newscache.WithPrefix("contract"))
//
//		// Namespace keys per test and tune TTL waits for backend semantics as needed.
//		cachetest.RunStoreContract(t, store, cachetest.Options{
//			CaseName: t.Name(),
//			TTL:      time.Second,
//			TTLWait:  1500 * time.Millisecond,
//		})
//	}
package cachetest
