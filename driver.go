package newscache

import "github.com/goforj/newscache/cachecore"

// Driver identifies cache backend.
type Driver = cachecore.Driver

// Store is the cache contract implemented by every backend.
type Store = cachecore.Store

const (
	DriverNull   = cachecore.DriverNull
	DriverMemory = cachecore.DriverMemory
	DriverRedis  = cachecore.DriverRedis
)

// ErrCacheUnavailable wraps every transport level cache failure.
var ErrCacheUnavailable = cachecore.ErrCacheUnavailable
