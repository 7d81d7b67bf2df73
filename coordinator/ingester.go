package coordinator

import (
	"context"

	"go.uber.org/zap"

	"github.com/goforj/newscache"
	"github.com/goforj/newscache/archive"
	"github.com/goforj/newscache/keyschema"
)

// Inserter is the ingestion side of the archive.
type Inserter interface {
	InsertArticle(ctx context.Context, a archive.Article, sets ...archive.KeywordSet) (archive.Article, []archive.KeywordSet, error)
}

// Ingester stores crawled articles and makes them visible to readers.
type Ingester struct {
	store     Inserter
	members   newscache.Membership
	cache     *newscache.Cache
	publisher KeyPublisher
	logger    *zap.Logger
}

// NewIngester builds an ingester. members and cache may be nil.
func NewIngester(store Inserter, members newscache.Membership, cache *newscache.Cache, logger *zap.Logger) *Ingester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingester{store: store, members: members, cache: cache, logger: logger}
}

// WithPublisher announces the invalidated listing keys through p.
func (i *Ingester) WithPublisher(p KeyPublisher) *Ingester {
	i.publisher = p
	return i
}

// IngestArticle inserts the article and its keyword sets, adds every
// news:<year>:<month>:<keyword> key to the membership filter and deletes the
// month's listings and keyword-set reports that the new article would
// change, including negative entries.
func (i *Ingester) IngestArticle(ctx context.Context, a archive.Article, sets ...archive.KeywordSet) (archive.Article, error) {
	stored, storedSets, err := i.store.InsertArticle(ctx, a, sets...)
	if err != nil {
		return archive.Article{}, err
	}
	pub := stored.PubTime.UTC()
	keys := listingKeys(archive.ArticleRef{
		ID:       stored.ID,
		Year:     pub.Year(),
		Month:    int(pub.Month()),
		Category: stored.Category,
		Sets:     storedSets,
	})
	if i.members != nil {
		for _, set := range storedSets {
			for _, kw := range archive.ParseKeywords(set.Keywords) {
				i.members.Add(keyschema.KeywordMonth(pub.Year(), int(pub.Month()), kw.Keyword))
			}
		}
	}
	if i.cache == nil {
		return stored, nil
	}
	keys = dedupe(keys)
	if _, err := i.cache.DeleteMany(ctx, keys...); err != nil {
		i.logger.Warn("stale listing invalidation failed", zap.Int64("news_id", stored.ID), zap.Int("keys", len(keys)), zap.Error(err))
	}
	publish(ctx, i.publisher, keys, i.logger)
	return stored, nil
}
