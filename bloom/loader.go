package bloom

import (
	"context"

	"go.uber.org/zap"
)

// KeySource streams every key the filter should contain.
type KeySource interface {
	EachFilterKey(ctx context.Context, fn func(key string) error) error
}

// Config sizes a filter built at startup.
type Config struct {
	Size      uint64
	HashCount uint
}

func (c Config) withDefaults() Config {
	if c.Size == 0 {
		c.Size = DefaultSize
	}
	if c.HashCount == 0 {
		c.HashCount = DefaultHashCount
	}
	return c
}

// Load adds every key from src to f and returns the number of keys added.
func Load(ctx context.Context, src KeySource, f *Filter) (int, error) {
	var n int
	err := src.EachFilterKey(ctx, func(key string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		f.Add(key)
		n++
		return nil
	})
	return n, err
}

// Build creates a filter and populates it from src. It never fails: load
// errors are logged and the partially populated filter is returned, which
// only makes the filter more conservative.
func Build(ctx context.Context, cfg Config, src KeySource, logger *zap.Logger) *Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	f := New(cfg.Size, cfg.HashCount)
	if src == nil {
		logger.Warn("membership filter built without a key source")
		return f
	}
	n, err := Load(ctx, src, f)
	if err != nil {
		logger.Error("membership filter load incomplete", zap.Int("keys", n), zap.Error(err))
		return f
	}
	logger.Info("membership filter loaded",
		zap.Int("keys", n),
		zap.Uint64("bits", cfg.Size),
		zap.Uint("hashes", cfg.HashCount),
		zap.Float64("est_false_positive", f.EstimatedFalsePositive(uint64(n))),
	)
	return f
}
