// Package coordinator ties the archive, the cache and the membership filter
// together: guarded cache-aside reads, soft deletes paired with cache
// invalidation, hot-key preheating and ingestion.
package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/goforj/newscache"
	"github.com/goforj/newscache/archive"
	"github.com/goforj/newscache/keyschema"
)

// EventFilterReject is reported to GuardEvents when the membership filter
// answers a lookup.
const EventFilterReject = "filter_reject"

// Store is the read side of the archive.
type Store interface {
	Articles(ctx context.Context, s archive.NewsScope) ([]archive.ArticleHit, error)
	KeywordSets(ctx context.Context, s archive.KeywordScope) (archive.KeywordReport, bool, error)
	WordCloud(ctx context.Context, s archive.WordCloudScope) (archive.WordCloud, bool, error)
	Summary(ctx context.Context, s archive.SummaryScope) (archive.Summary, bool, error)
}

// Filter answers whether a key may exist.
type Filter interface {
	Check(key string) bool
}

// Result is the outcome of a lookup. Value is the payload encoded with the
// guard's codec and is empty when Found is false.
type Result struct {
	Key       string
	Value     json.RawMessage
	Found     bool
	Source    newscache.Source
	Degraded  bool
	CreatedAt time.Time
}

// ReaderConfig wires optional collaborators.
type ReaderConfig struct {
	// Filter gates news:<year>:<month>:<keyword> lookups. Nil disables
	// gating; an empty filter rejects every gated key.
	Filter Filter
	// Ranking counts keyword lookups. Nil disables counting.
	Ranking newscache.Ranking
	Events  newscache.GuardEvents
	Logger  *zap.Logger
}

// Reader serves guarded cache-aside reads.
type Reader struct {
	guard   *newscache.Guard
	store   Store
	filter  Filter
	ranking newscache.Ranking
	events  newscache.GuardEvents
	logger  *zap.Logger
}

// NewReader builds a reader over guard and store.
func NewReader(guard *newscache.Guard, store Store, cfg ReaderConfig) *Reader {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Reader{
		guard:   guard,
		store:   store,
		filter:  cfg.Filter,
		ranking: cfg.Ranking,
		events:  cfg.Events,
		logger:  cfg.Logger,
	}
}

// Lookup returns the entity set addressed by key. A negative filter answer
// returns Found=false with Source filter and touches neither the cache nor
// the store. Keyword lookups are counted in the hot-key ranking.
func (r *Reader) Lookup(ctx context.Context, key keyschema.Key) (Result, error) {
	return r.lookup(ctx, key, true)
}

func (r *Reader) lookup(ctx context.Context, key keyschema.Key, rank bool) (Result, error) {
	s, err := keyschema.Encode(key)
	if err != nil {
		return Result{}, err
	}
	if r.filter != nil && keyschema.IsKeywordMonth(key) && !r.filter.Check(s) {
		if r.events != nil {
			r.events.OnGuardEvent(ctx, EventFilterReject, s)
		}
		return Result{Key: s, Source: newscache.SourceFilter}, nil
	}
	if rank {
		r.rank(ctx, key)
	}
	out, err := r.guard.Do(ctx, s, newscache.PolicyFor(key.Kind()), r.loader(key))
	if err != nil {
		return Result{Key: s}, err
	}
	return Result{
		Key:       s,
		Value:     out.Entry.Value,
		Found:     out.Found(),
		Source:    out.Source,
		Degraded:  out.Degraded,
		CreatedAt: out.Entry.CreatedAt,
	}, nil
}

func (r *Reader) rank(ctx context.Context, key keyschema.Key) {
	n, ok := key.(keyschema.News)
	if !ok || n.Keyword == "" || r.ranking == nil {
		return
	}
	if _, err := r.ranking.Increment(ctx, n.Keyword, 1); err != nil {
		r.logger.Warn("hot-key ranking increment failed", zap.String("keyword", n.Keyword), zap.Error(err))
	}
}

func (r *Reader) loader(key keyschema.Key) newscache.LoadFunc {
	return func(ctx context.Context) (any, bool, error) {
		switch k := key.(type) {
		case keyschema.News:
			hits, err := r.store.Articles(ctx, archive.NewsScope(k))
			return hits, len(hits) > 0, err
		case keyschema.Keywords:
			return r.store.KeywordSets(ctx, archive.KeywordScope(k))
		case keyschema.WordCloud:
			return r.store.WordCloud(ctx, archive.WordCloudScope(k))
		case keyschema.Summary:
			return r.store.Summary(ctx, archive.SummaryScope(k))
		default:
			return nil, false, fmt.Errorf("%w: unsupported key %T", keyschema.ErrMalformedKey, key)
		}
	}
}

// Decode unmarshals a found result's payload into v.
func (r *Reader) Decode(res Result, v any) error {
	if !res.Found {
		return nil
	}
	return r.guard.Codec().Unmarshal(res.Value, v)
}

// Articles looks up the articles selected by s.
func (r *Reader) Articles(ctx context.Context, s archive.NewsScope) ([]archive.ArticleHit, Result, error) {
	var hits []archive.ArticleHit
	res, err := r.typed(ctx, s.Key(), &hits)
	return hits, res, err
}

// KeywordSets looks up the keyword report for s.
func (r *Reader) KeywordSets(ctx context.Context, s archive.KeywordScope) (archive.KeywordReport, Result, error) {
	var report archive.KeywordReport
	res, err := r.typed(ctx, s.Key(), &report)
	return report, res, err
}

// WordCloud looks up the word cloud for s.
func (r *Reader) WordCloud(ctx context.Context, s archive.WordCloudScope) (archive.WordCloud, Result, error) {
	var cloud archive.WordCloud
	res, err := r.typed(ctx, s.Key(), &cloud)
	return cloud, res, err
}

// Summary looks up the summary for s.
func (r *Reader) Summary(ctx context.Context, s archive.SummaryScope) (archive.Summary, Result, error) {
	var summary archive.Summary
	res, err := r.typed(ctx, s.Key(), &summary)
	return summary, res, err
}

func (r *Reader) typed(ctx context.Context, key keyschema.Key, v any) (Result, error) {
	res, err := r.Lookup(ctx, key)
	if err != nil {
		return res, err
	}
	if err := r.Decode(res, v); err != nil {
		return res, fmt.Errorf("decode %s: %w", res.Key, err)
	}
	return res, nil
}
