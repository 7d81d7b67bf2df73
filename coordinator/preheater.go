package coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/goforj/newscache"
	"github.com/goforj/newscache/keyschema"
)

var (
	// ErrPreheaterRunning is returned by Start when the loop is already running.
	ErrPreheaterRunning = errors.New("preheater already running")
	// ErrPreheaterUnconfigured is returned by Preheat when the reader, the
	// cache or the ranking is missing.
	ErrPreheaterUnconfigured = errors.New("preheater: missing reader, cache or ranking")
)

// PreheatConfig tunes the preheater.
type PreheatConfig struct {
	// TopN is the number of ranked keywords refreshed per run by Start.
	TopN int
	// Interval between runs started by Start.
	Interval time.Duration
	// Workers bounds concurrent refreshes.
	Workers int
	// Months is the number of calendar months, ending with the current one,
	// refreshed for every keyword.
	Months int
	Now    func() time.Time
	Logger *zap.Logger
}

func (c PreheatConfig) withDefaults() PreheatConfig {
	if c.TopN <= 0 {
		c.TopN = 10
	}
	if c.Interval <= 0 {
		c.Interval = time.Hour
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.Months <= 0 {
		c.Months = 1
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// PreheatReport summarizes one run.
type PreheatReport struct {
	Keys       int `json:"keys"`
	Extended   int `json:"extended"`
	Recomputed int `json:"recomputed"`
	Absent     int `json:"absent"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// Preheater keeps the cache entries of hot keywords alive.
type Preheater struct {
	reader  *Reader
	cache   *newscache.Cache
	ranking newscache.Ranking
	cfg     PreheatConfig

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPreheater builds a preheater. Recomputation goes through reader so the
// stampede guard applies.
func NewPreheater(reader *Reader, cache *newscache.Cache, ranking newscache.Ranking, cfg PreheatConfig) *Preheater {
	return &Preheater{reader: reader, cache: cache, ranking: ranking, cfg: cfg.withDefaults()}
}

// Preheat refreshes the news:<year>:<month>:<keyword> entries of the topN
// ranked keywords. Present entries get a fresh jittered TTL; missing or
// undecodable or retired ones are recomputed. Per-key failures are counted, not
// returned.
func (p *Preheater) Preheat(ctx context.Context, topN int) (PreheatReport, error) {
	if p.ranking == nil || p.reader == nil || p.cache == nil {
		return PreheatReport{}, ErrPreheaterUnconfigured
	}
	top, err := p.ranking.Top(ctx, topN)
	if err != nil {
		return PreheatReport{}, err
	}
	var report PreheatReport
	keys := make([]keyschema.News, 0, len(top)*p.cfg.Months)
	for _, entry := range top {
		for _, ym := range p.months() {
			k := keyschema.News{Year: ym.Year(), Month: int(ym.Month()), Keyword: entry.Member}
			if _, err := k.Encode(); err != nil {
				report.Skipped++
				continue
			}
			keys = append(keys, k)
		}
	}
	report.Keys = len(keys)

	var extended, recomputed, absent, failed atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for _, k := range keys {
		g.Go(func() error {
			switch state, err := p.refresh(gctx, k); {
			case err != nil:
				failed.Add(1)
				p.cfg.Logger.Warn("preheat failed", zap.String("key", k.String()), zap.Error(err))
			case state == refreshExtended:
				extended.Add(1)
			case state == refreshRecomputed:
				recomputed.Add(1)
			default:
				absent.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	report.Extended = int(extended.Load())
	report.Recomputed = int(recomputed.Load())
	report.Absent = int(absent.Load())
	report.Failed = int(failed.Load())
	if err := ctx.Err(); err != nil {
		return report, err
	}
	p.cfg.Logger.Info("preheat finished",
		zap.Int("keys", report.Keys),
		zap.Int("extended", report.Extended),
		zap.Int("recomputed", report.Recomputed),
		zap.Int("absent", report.Absent),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

type refreshState int

const (
	refreshExtended refreshState = iota + 1
	refreshRecomputed
	refreshAbsent
)

// refresh extends a live positive entry, recomputes a missing, undecodable
// or retired one and leaves negative entries to expire on their own
// schedule.
func (p *Preheater) refresh(ctx context.Context, k keyschema.News) (refreshState, error) {
	key := k.String()
	body, ok, err := p.cache.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if ok {
		entry, err := newscache.DecodeEntry(p.reader.guard.Codec(), body)
		switch {
		case err != nil || entry.Retired():
			// recomputed below
		case !entry.Found():
			return refreshAbsent, nil
		default:
			extended, err := p.cache.ExtendTTL(ctx, key, newscache.PolicyFor(keyschema.KindNews).TTL)
			if err != nil {
				return 0, err
			}
			if extended {
				return refreshExtended, nil
			}
		}
	}
	res, err := p.reader.lookup(ctx, k, false)
	if err != nil {
		return 0, err
	}
	if !res.Found {
		return refreshAbsent, nil
	}
	return refreshRecomputed, nil
}

// months returns the first day of each month in the window, newest first.
func (p *Preheater) months() []time.Time {
	now := p.cfg.Now().UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	out := make([]time.Time, p.cfg.Months)
	for i := range out {
		out[i] = first.AddDate(0, -i, 0)
	}
	return out
}

// Start runs Preheat immediately and then every Interval until ctx is done
// or Stop is called.
func (p *Preheater) Start(ctx context.Context) error {
	if p.ranking == nil || p.reader == nil || p.cache == nil {
		return ErrPreheaterUnconfigured
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != nil {
		return ErrPreheaterRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(ctx, p.done)
	return nil
}

func (p *Preheater) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	for {
		if _, err := p.Preheat(ctx, p.cfg.TopN); err != nil && ctx.Err() == nil {
			p.cfg.Logger.Warn("preheat run failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Stop cancels the loop and waits for it to exit. It is a no-op when the
// loop is not running.
func (p *Preheater) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
