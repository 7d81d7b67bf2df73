package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/goforj/newscache"
	"github.com/goforj/newscache/archive"
	"github.com/goforj/newscache/bloom"
	"github.com/goforj/newscache/broadcast"
	"github.com/goforj/newscache/coordinator"
	"github.com/goforj/newscache/metrics"
)

// app holds the wired components for one process.
type app struct {
	cfg      Config
	logger   *zap.Logger
	registry *prometheus.Registry

	db          *archive.DB
	redis       redis.UniversalClient
	nats        *nats.Conn
	bus         *broadcast.Bus
	cache       *newscache.Cache
	ranking     newscache.Ranking
	filter      *bloom.Filter
	guard       *newscache.Guard
	reader      *coordinator.Reader
	invalidator *coordinator.Invalidator
	preheater   *coordinator.Preheater
	ingester    *coordinator.Ingester
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zcfg := zap.NewProductionConfig()
	if lvl == zapcore.DebugLevel {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

// newApp opens the archive and the cache and wires the coordinator.
// withFilter controls whether the membership filter is loaded from the
// archive, which scans every live keyword set.
func newApp(ctx context.Context, cfg Config, logger *zap.Logger, withFilter bool) (*app, error) {
	a := &app{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}

	db, err := archive.Open(ctx, archive.Config{
		Driver:       cfg.Archive.Driver,
		DSN:          cfg.Archive.DSN,
		MaxOpenConns: cfg.Archive.MaxOpenConns,
	}, logger.Named("archive"))
	if err != nil {
		return nil, err
	}
	a.db = db
	if cfg.Archive.Migrate {
		if err := db.Migrate(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	storeCfg, err := a.storeConfig()
	if err != nil {
		a.Close()
		return nil, err
	}
	codec, err := newscache.CodecByName(cfg.Cache.Codec)
	if err != nil {
		a.Close()
		return nil, err
	}

	collector := metrics.New(a.registry)
	a.cache = newscache.NewCache(newscache.NewStore(ctx, storeCfg)).
		WithJitter(cfg.Cache.Jitter).
		WithObserver(collector)
	a.ranking = newscache.NewRanking(storeCfg)

	var filter coordinator.Filter
	if withFilter && !cfg.Bloom.Disabled {
		a.filter = bloom.Build(ctx, a.bloomConfig(), db, logger.Named("bloom"))
		filter = a.filter
	}

	guardCfg := newscache.GuardConfig{
		Codec:       codec,
		LeaseTTL:    cfg.Guard.LeaseTTL,
		PollInitial: cfg.Guard.PollInitial,
		PollMax:     cfg.Guard.PollMax,
		PollGrace:   cfg.Guard.PollGrace,
		Events:      collector,
		Logger:      logger.Named("guard"),
	}
	if a.filter != nil {
		guardCfg.Membership = a.filter
	}
	a.guard = newscache.NewGuard(a.cache, guardCfg)

	a.reader = coordinator.NewReader(a.guard, db, coordinator.ReaderConfig{
		Filter:  filter,
		Ranking: a.ranking,
		Events:  collector,
		Logger:  logger.Named("reader"),
	})
	a.invalidator = coordinator.NewInvalidator(db, a.cache, logger.Named("invalidator"))
	a.preheater = coordinator.NewPreheater(a.reader, a.cache, a.ranking, coordinator.PreheatConfig{
		TopN:     cfg.Preheat.TopN,
		Interval: cfg.Preheat.Interval,
		Workers:  cfg.Preheat.Workers,
		Months:   cfg.Preheat.Months,
		Logger:   logger.Named("preheater"),
	})
	var members newscache.Membership
	if a.filter != nil {
		members = a.filter
	}
	a.ingester = coordinator.NewIngester(db, members, a.cache, logger.Named("ingester"))

	if err := a.connectBroadcast(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// connectBroadcast joins the invalidation subject when broadcast.nats_url
// is set.
func (a *app) connectBroadcast() error {
	b := a.cfg.Broadcast
	if b.NATSURL == "" {
		return nil
	}
	nc, err := nats.Connect(b.NATSURL, nats.Name("newscache"))
	if err != nil {
		return fmt.Errorf("connect nats: %w", err)
	}
	a.nats = nc
	a.bus = broadcast.New(nc, b.Subject, a.logger.Named("broadcast"))
	if err := a.bus.Listen(a.cache); err != nil {
		return err
	}
	a.invalidator.WithPublisher(a.bus)
	a.ingester.WithPublisher(a.bus)
	return nil
}

func (a *app) storeConfig() (newscache.StoreConfig, error) {
	c := a.cfg.Cache
	cfg := newscache.StoreConfig{
		Driver:     newscache.Driver(c.Driver),
		RankingKey: c.RankingKey,
	}
	cfg.Prefix = c.Prefix
	cfg.Compression = newscache.CompressionCodec(c.Compression)
	cfg.MaxValueBytes = c.MaxValueBytes

	if cfg.Driver == newscache.DriverRedis {
		if len(c.RedisAddrs) == 0 {
			return newscache.StoreConfig{}, errors.New("cache.redis_addrs is required for the redis driver")
		}
		a.redis = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    c.RedisAddrs,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
		})
		cfg.RedisClient = a.redis
	}
	return cfg, nil
}

func (a *app) bloomConfig() bloom.Config {
	b := a.cfg.Bloom
	if b.ExpectedKeys > 0 && b.FalsePositive > 0 && b.FalsePositive < 1 {
		size, hashes := bloom.OptimalParams(b.ExpectedKeys, b.FalsePositive)
		return bloom.Config{Size: size, HashCount: hashes}
	}
	return bloom.Config{Size: b.Size, HashCount: b.HashCount}
}

// Close stops the preheater and releases every connection.
func (a *app) Close() {
	if a.preheater != nil {
		a.preheater.Stop()
	}
	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			a.logger.Warn("broadcast close failed", zap.Error(err))
		}
	}
	if a.nats != nil {
		a.nats.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("redis close failed", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("archive close failed", zap.Error(err))
		}
	}
}
