package newscache

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/goforj/newscache/keyschema"
)

// ErrLeaseTimeout reports that the lease holder neither produced a value nor
// released the lease within the lease TTL. Callers may retry.
var ErrLeaseTimeout = errors.New("lease wait timed out")

var (
	errLeaseHeld     = errors.New("lease still held")
	errLeaseVanished = errors.New("lease released without a value")
)

// Guard events reported to GuardEvents.
const (
	EventHit          = "hit"
	EventComputed     = "computed"
	EventWaited       = "waited"
	EventLeaseRetry   = "lease_retry"
	EventLeaseTimeout = "lease_timeout"
	EventFailOpen     = "fail_open"
)

// Source says where a lookup result came from.
type Source uint8

const (
	SourceCache Source = iota + 1
	SourceStore
	SourceFilter
)

func (s Source) String() string {
	switch s {
	case SourceCache:
		return "cache"
	case SourceStore:
		return "store"
	case SourceFilter:
		return "filter"
	default:
		return "unknown"
	}
}

// Membership receives keys that are now known to exist.
type Membership interface {
	Add(key string)
}

// GuardEvents observes guard outcomes.
type GuardEvents interface {
	OnGuardEvent(ctx context.Context, event string, key string)
}

// LoadFunc computes the value for a missed key. found=false records a
// negative entry.
type LoadFunc func(ctx context.Context) (value any, found bool, err error)

// Policy is the expiry applied to a recomputed entry.
type Policy struct {
	TTL         time.Duration
	NegativeTTL time.Duration
}

// PolicyFor returns the expiry policy for a key kind.
func PolicyFor(kind keyschema.Kind) Policy {
	p := Policy{TTL: NewsTTL, NegativeTTL: NegativeTTL}
	switch kind {
	case keyschema.KindKeywords:
		p.TTL = KeywordsTTL
	case keyschema.KindWordCloud, keyschema.KindSummary:
		p.TTL = AssetTTL
	}
	return p
}

// Outcome is the result of a guarded lookup.
type Outcome struct {
	Entry  Entry
	Source Source
	// Degraded is set when the cache was unreachable and the store was read
	// directly.
	Degraded bool
}

// Found reports whether the outcome carries a value.
func (o Outcome) Found() bool { return o.Source != 0 && o.Entry.Found() }

// GuardConfig tunes lease and polling behaviour.
type GuardConfig struct {
	Codec       Codec
	LeaseTTL    time.Duration
	PollInitial time.Duration
	PollMax     time.Duration
	// PollGrace extends the wait beyond the lease TTL.
	PollGrace  time.Duration
	Membership Membership
	Events     GuardEvents
	Logger     *zap.Logger
	Now        func() time.Time
}

func (c GuardConfig) withDefaults() GuardConfig {
	if c.Codec == nil {
		c.Codec = JSONCodec{}
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = LeaseTTL
	}
	if c.PollInitial <= 0 {
		c.PollInitial = 20 * time.Millisecond
	}
	if c.PollMax <= 0 {
		c.PollMax = 500 * time.Millisecond
	}
	if c.PollGrace <= 0 {
		c.PollGrace = time.Second
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Guard collapses concurrent misses on one key into a single recomputation
// using a distributed lease. No in-process lock is held across network
// calls.
type Guard struct {
	cache *Cache
	cfg   GuardConfig
}

// NewGuard builds a guard over cache.
func NewGuard(cache *Cache, cfg GuardConfig) *Guard {
	return &Guard{cache: cache, cfg: cfg.withDefaults()}
}

// Cache returns the guarded cache.
func (g *Guard) Cache() *Cache { return g.cache }

// Codec returns the payload codec.
func (g *Guard) Codec() Codec { return g.cfg.Codec }

// Do returns the cached entry for key, or computes it with load while
// holding the key's lease. Waiters poll with exponential backoff until the
// value appears, the lease disappears (one acquisition retry), or the lease
// TTL bound passes (ErrLeaseTimeout). When the cache is unreachable load is
// called directly and nothing is written.
func (g *Guard) Do(ctx context.Context, key string, policy Policy, load LoadFunc) (Outcome, error) {
	if load == nil {
		return Outcome{}, errors.New("guard requires a load callback")
	}
	out, hit, err := g.lookup(ctx, key)
	if err != nil {
		return g.failOpen(ctx, key, load, err)
	}
	if hit {
		g.event(ctx, EventHit, key)
		return out, nil
	}
	return g.fill(ctx, key, policy, load, true)
}

// Decode unmarshals the payload of a found outcome into v.
func (g *Guard) Decode(out Outcome, v any) error {
	if !out.Found() {
		return nil
	}
	return g.cfg.Codec.Unmarshal(out.Entry.Value, v)
}

func (g *Guard) fill(ctx context.Context, key string, policy Policy, load LoadFunc, retry bool) (Outcome, error) {
	lease := g.cache.NewLease(keyschema.LockKey(key), g.cfg.LeaseTTL)
	acquired, err := lease.Acquire(ctx)
	if err != nil {
		return g.failOpen(ctx, key, load, err)
	}
	if !acquired {
		out, err := g.wait(ctx, key, lease.Key())
		switch {
		case err == nil:
			g.event(ctx, EventWaited, key)
			return out, nil
		case errors.Is(err, errLeaseVanished) && retry:
			g.event(ctx, EventLeaseRetry, key)
			return g.fill(ctx, key, policy, load, false)
		case errors.Is(err, errLeaseVanished), errors.Is(err, ErrLeaseTimeout):
			g.event(ctx, EventLeaseTimeout, key)
			return Outcome{}, ErrLeaseTimeout
		case errors.Is(err, ErrCacheUnavailable):
			return g.failOpen(ctx, key, load, err)
		default:
			return Outcome{}, err
		}
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			g.cfg.Logger.Warn("lease release failed", zap.String("key", lease.Key()), zap.Error(err))
		}
	}()

	// A previous holder may have written the value between the miss and
	// the acquisition.
	if out, hit, err := g.lookup(ctx, key); err == nil && hit {
		g.event(ctx, EventHit, key)
		return out, nil
	}
	return g.compute(ctx, key, policy, load)
}

func (g *Guard) compute(ctx context.Context, key string, policy Policy, load LoadFunc) (Outcome, error) {
	value, found, err := load(ctx)
	if err != nil {
		return Outcome{}, err
	}
	entry, err := g.entry(value, found)
	if err != nil {
		return Outcome{}, err
	}
	body, err := EncodeEntry(g.cfg.Codec, entry)
	if err != nil {
		return Outcome{}, err
	}
	if found {
		err = g.cache.SetWithTTL(ctx, key, body, policy.ttl())
	} else {
		err = g.cache.SetExact(ctx, key, body, policy.negativeTTL())
	}
	if err != nil {
		g.cfg.Logger.Warn("cache write failed", zap.String("key", key), zap.Bool("found", found), zap.Error(err))
	}
	if found && g.cfg.Membership != nil {
		g.cfg.Membership.Add(key)
	}
	g.event(ctx, EventComputed, key)
	return Outcome{Entry: entry, Source: SourceStore}, nil
}

func (g *Guard) wait(ctx context.Context, key, lockKey string) (Outcome, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.cfg.PollInitial
	b.MaxInterval = g.cfg.PollMax
	b.Multiplier = 2
	b.RandomizationFactor = 0.2
	b.MaxElapsedTime = g.cfg.LeaseTTL + g.cfg.PollGrace
	b.Reset()

	out, err := backoff.RetryWithData(func() (Outcome, error) {
		out, hit, err := g.lookup(ctx, key)
		if err != nil {
			return Outcome{}, backoff.Permanent(err)
		}
		if hit {
			return out, nil
		}
		_, held, err := g.cache.Get(ctx, lockKey)
		if err != nil {
			return Outcome{}, backoff.Permanent(err)
		}
		if !held {
			return Outcome{}, backoff.Permanent(errLeaseVanished)
		}
		return Outcome{}, errLeaseHeld
	}, backoff.WithContext(b, ctx))
	if errors.Is(err, errLeaseHeld) {
		return Outcome{}, ErrLeaseTimeout
	}
	return out, err
}

// lookup reads and decodes key. An undecodable entry counts as a miss.
func (g *Guard) lookup(ctx context.Context, key string) (Outcome, bool, error) {
	body, ok, err := g.cache.Get(ctx, key)
	if err != nil || !ok {
		return Outcome{}, false, err
	}
	entry, err := DecodeEntry(g.cfg.Codec, body)
	if err != nil {
		g.cfg.Logger.Warn("discarding undecodable cache entry", zap.String("key", key), zap.Error(err))
		return Outcome{}, false, nil
	}
	if entry.Retired() {
		g.cfg.Logger.Debug("discarding retired cache entry", zap.String("key", key))
		return Outcome{}, false, nil
	}
	return Outcome{Entry: entry, Source: SourceCache}, true, nil
}

func (g *Guard) failOpen(ctx context.Context, key string, load LoadFunc, cause error) (Outcome, error) {
	g.cfg.Logger.Warn("cache unavailable, reading through to store", zap.String("key", key), zap.Error(cause))
	g.event(ctx, EventFailOpen, key)
	value, found, err := load(ctx)
	if err != nil {
		return Outcome{}, err
	}
	entry, err := g.entry(value, found)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Entry: entry, Source: SourceStore, Degraded: true}, nil
}

func (g *Guard) entry(value any, found bool) (Entry, error) {
	e := Entry{CreatedAt: g.cfg.Now().UTC()}
	if !found {
		e.Absent = true
		e.Error = NotFoundMessage
		return e, nil
	}
	payload, err := g.cfg.Codec.Marshal(value)
	if err != nil {
		return Entry{}, err
	}
	e.Value = payload
	return e, nil
}

func (g *Guard) event(ctx context.Context, event, key string) {
	if g.cfg.Events != nil {
		g.cfg.Events.OnGuardEvent(ctx, event, key)
	}
}

func (p Policy) ttl() time.Duration {
	if p.TTL <= 0 {
		return NewsTTL
	}
	return p.TTL
}

func (p Policy) negativeTTL() time.Duration {
	if p.NegativeTTL <= 0 {
		return NegativeTTL
	}
	return p.NegativeTTL
}
