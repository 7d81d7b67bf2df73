package coordinator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/goforj/newscache"
	"github.com/goforj/newscache/archive"
	"github.com/goforj/newscache/keyschema"
)

// Deleter is the write side of the archive.
type Deleter interface {
	SoftDelete(ctx context.Context, scopes ...archive.Scope) (archive.Affected, error)
}

// KeyOutcome is the invalidation result for one cache key.
type KeyOutcome struct {
	Key     string `json:"key"`
	Existed bool   `json:"existed"`
	Error   string `json:"error,omitempty"`
}

// Report describes a completed invalidation.
type Report struct {
	Affected archive.Affected `json:"affected"`
	Keys     []KeyOutcome     `json:"keys"`
	// Failed counts cache deletes that errored. They are logged, never
	// returned; TTL expiry bounds the staleness.
	Failed int `json:"failed"`
}

// KeyPublisher announces deleted keys to peer processes.
type KeyPublisher interface {
	PublishKeys(ctx context.Context, keys []string) error
}

// Invalidator pairs archive soft deletes with cache invalidation.
type Invalidator struct {
	deleter   Deleter
	cache     *newscache.Cache
	publisher KeyPublisher
	logger    *zap.Logger
}

// NewInvalidator builds an invalidator.
func NewInvalidator(deleter Deleter, cache *newscache.Cache, logger *zap.Logger) *Invalidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Invalidator{deleter: deleter, cache: cache, logger: logger}
}

// WithPublisher announces every invalidated key set through p after the
// local cache deletes.
func (v *Invalidator) WithPublisher(p KeyPublisher) *Invalidator {
	v.publisher = p
	return v
}

// Invalidate soft-deletes every scope in one transaction and then deletes
// the cache key of each scope together with every listing that showed an
// affected article. The store is always mutated first. A store
// failure returns before any cache mutation; cache failures are reported
// in the Report only. The membership filter is left untouched.
func (v *Invalidator) Invalidate(ctx context.Context, scopes ...archive.Scope) (Report, error) {
	keys, err := scopeKeys(scopes)
	if err != nil {
		return Report{}, err
	}
	affected, err := v.deleter.SoftDelete(ctx, scopes...)
	if err != nil {
		return Report{}, fmt.Errorf("invalidate: %w", err)
	}
	report := v.deleteKeys(ctx, dedupe(append(keys, affectedKeys(affected.Articles)...)))
	report.Affected = affected
	return report, nil
}

// InvalidateKeys deletes already derived cache keys without touching the
// archive. Every key must decode; lease keys are accepted as-is.
func (v *Invalidator) InvalidateKeys(ctx context.Context, keys ...string) (Report, error) {
	for _, key := range keys {
		target := key
		if inner, ok := keyschema.FromLockKey(key); ok {
			target = inner
		}
		if _, err := keyschema.Decode(target); err != nil {
			return Report{}, err
		}
	}
	return v.deleteKeys(ctx, dedupe(keys)), nil
}

func (v *Invalidator) deleteKeys(ctx context.Context, keys []string) Report {
	report := Report{Keys: make([]KeyOutcome, 0, len(keys))}
	for _, key := range keys {
		existed, err := v.cache.Delete(ctx, key)
		outcome := KeyOutcome{Key: key, Existed: existed}
		if err != nil {
			outcome.Error = err.Error()
			report.Failed++
			v.logger.Warn("cache invalidation failed", zap.String("key", key), zap.Error(err))
		} else {
			v.logger.Debug("cache key invalidated", zap.String("key", key), zap.Bool("existed", existed))
		}
		report.Keys = append(report.Keys, outcome)
	}
	publish(ctx, v.publisher, keys, v.logger)
	return report
}

func publish(ctx context.Context, p KeyPublisher, keys []string, logger *zap.Logger) {
	if p == nil || len(keys) == 0 {
		return
	}
	if err := p.PublishKeys(ctx, keys); err != nil {
		logger.Warn("invalidation broadcast failed", zap.Int("keys", len(keys)), zap.Error(err))
	}
}

func scopeKeys(scopes []archive.Scope) ([]string, error) {
	keys := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		if scope == nil {
			return nil, fmt.Errorf("%w: nil scope", keyschema.ErrMalformedKey)
		}
		key, err := keyschema.Encode(scope.Key())
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return dedupe(keys), nil
}

func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
