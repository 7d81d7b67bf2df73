package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the process configuration. Every field can be set in the yaml
// file, or through NEWSCACHE_<SECTION>_<FIELD> environment variables.
type Config struct {
	LogLevel string        `mapstructure:"log_level"`
	Cache    CacheConfig   `mapstructure:"cache"`
	Archive  ArchiveConfig `mapstructure:"archive"`
	Bloom    BloomConfig   `mapstructure:"bloom"`
	Guard    GuardConfig   `mapstructure:"guard"`
	Preheat  PreheatConfig `mapstructure:"preheat"`
	Metrics  MetricsConfig `mapstructure:"metrics"`

	Broadcast BroadcastConfig `mapstructure:"broadcast"`
}

type CacheConfig struct {
	// Driver is memory, redis or null.
	Driver        string        `mapstructure:"driver"`
	RedisAddrs    []string      `mapstructure:"redis_addrs"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	Prefix        string        `mapstructure:"prefix"`
	Codec         string        `mapstructure:"codec"`
	Compression   string        `mapstructure:"compression"`
	MaxValueBytes int           `mapstructure:"max_value_bytes"`
	Jitter        time.Duration `mapstructure:"jitter"`
	RankingKey    string        `mapstructure:"ranking_key"`
}

type ArchiveConfig struct {
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	Migrate      bool   `mapstructure:"migrate"`
}

type BloomConfig struct {
	// ExpectedKeys and FalsePositive size the filter when both are set;
	// otherwise Size and HashCount are used as given.
	ExpectedKeys  uint64  `mapstructure:"expected_keys"`
	FalsePositive float64 `mapstructure:"false_positive"`
	Size          uint64  `mapstructure:"size"`
	HashCount     uint    `mapstructure:"hash_count"`
	Disabled      bool    `mapstructure:"disabled"`
}

type GuardConfig struct {
	LeaseTTL    time.Duration `mapstructure:"lease_ttl"`
	PollInitial time.Duration `mapstructure:"poll_initial"`
	PollMax     time.Duration `mapstructure:"poll_max"`
	PollGrace   time.Duration `mapstructure:"poll_grace"`
}

type PreheatConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	TopN     int           `mapstructure:"top_n"`
	Interval time.Duration `mapstructure:"interval"`
	Workers  int           `mapstructure:"workers"`
	Months   int           `mapstructure:"months"`
}

type MetricsConfig struct {
	// Addr is the listen address of /metrics. Empty disables the endpoint.
	Addr string `mapstructure:"addr"`
}

type BroadcastConfig struct {
	// NATSURL enables invalidation fan-out to peer processes. Empty disables it.
	NATSURL string `mapstructure:"nats_url"`
	Subject string `mapstructure:"subject"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.redis_addrs", []string{"127.0.0.1:6379"})
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.prefix", "")
	v.SetDefault("cache.codec", "json")
	v.SetDefault("cache.compression", "none")
	v.SetDefault("cache.max_value_bytes", 0)
	v.SetDefault("cache.jitter", time.Hour)
	v.SetDefault("cache.ranking_key", "keyword_click_rank")

	v.SetDefault("archive.driver", "sqlite")
	v.SetDefault("archive.dsn", "./news.db")
	v.SetDefault("archive.max_open_conns", 25)
	v.SetDefault("archive.migrate", true)

	v.SetDefault("bloom.expected_keys", 0)
	v.SetDefault("bloom.false_positive", 0.01)
	v.SetDefault("bloom.size", 1_000_000)
	v.SetDefault("bloom.hash_count", 5)
	v.SetDefault("bloom.disabled", false)

	v.SetDefault("guard.lease_ttl", 10*time.Second)
	v.SetDefault("guard.poll_initial", 20*time.Millisecond)
	v.SetDefault("guard.poll_max", 500*time.Millisecond)
	v.SetDefault("guard.poll_grace", time.Second)

	v.SetDefault("preheat.enabled", true)
	v.SetDefault("preheat.top_n", 10)
	v.SetDefault("preheat.interval", time.Hour)
	v.SetDefault("preheat.workers", 4)
	v.SetDefault("preheat.months", 1)

	v.SetDefault("metrics.addr", ":9090")

	v.SetDefault("broadcast.nats_url", "")
	v.SetDefault("broadcast.subject", "newscache.invalidate")
}

// loadConfig reads path (or newscache.yaml from the usual locations when
// path is empty), environment variables and defaults, in that precedence
// from lowest to highest: defaults, file, environment.
func loadConfig(v *viper.Viper, path string) (Config, error) {
	setDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("newscache")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/newscache/")
		v.AddConfigPath("$HOME/.newscache")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("NEWSCACHE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}
