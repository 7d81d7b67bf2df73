package newscache

import (
	"time"

	"github.com/goforj/newscache/cachecore"
)

const (
	// NewsTTL is the base lifetime of article listing entries.
	NewsTTL = 30 * 24 * time.Hour
	// KeywordsTTL is the base lifetime of keyword set entries.
	KeywordsTTL = 24 * time.Hour
	// AssetTTL is the base lifetime of word cloud and summary entries.
	AssetTTL = 24 * time.Hour
	// NegativeTTL is the exact lifetime of a "definitely absent" entry.
	NegativeTTL = 60 * time.Second
	// LeaseTTL bounds how long a recompute lease is held.
	LeaseTTL = 10 * time.Second
	// DefaultJitter is the upper bound of the random TTL extension.
	DefaultJitter = time.Hour

	// RankingKey is the sorted set counting keyword lookups.
	RankingKey = "keyword_click_rank"

	defaultCacheTTL              = NewsTTL
	defaultMemoryCleanupInterval = 10 * time.Minute
)

// StoreConfig controls how a Store is constructed.
type StoreConfig struct {
	cachecore.BaseConfig

	Driver Driver

	// MemoryCleanupInterval controls in-process cache eviction.
	MemoryCleanupInterval time.Duration

	// RedisClient is required when DriverRedis is used.
	RedisClient RedisClient

	// RankingKey names the hot-key sorted set. Defaults to RankingKey.
	RankingKey string
}

func (c StoreConfig) withDefaults() StoreConfig {
	if c.Driver == "" {
		c.Driver = DriverMemory
	}
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = defaultCacheTTL
	}
	if c.MemoryCleanupInterval <= 0 {
		c.MemoryCleanupInterval = defaultMemoryCleanupInterval
	}
	if c.Compression == "" {
		c.Compression = CompressionNone
	}
	if c.RankingKey == "" {
		c.RankingKey = RankingKey
	}
	return c
}
