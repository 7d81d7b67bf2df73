package coordinator

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/goforj/newscache"
	"github.com/goforj/newscache/archive"
	"github.com/goforj/newscache/bloom"
	"github.com/goforj/newscache/cachefake"
)

const tfidf = "jieba提供的TF-IDF"

// countingStore is an archive Store serving canned results.
type countingStore struct {
	mu       sync.Mutex
	articles map[archive.NewsScope][]archive.ArticleHit
	clouds   map[archive.WordCloudScope]archive.WordCloud
	delay    time.Duration
	err      error

	calls atomic.Int32
}

func newCountingStore() *countingStore {
	return &countingStore{
		articles: make(map[archive.NewsScope][]archive.ArticleHit),
		clouds:   make(map[archive.WordCloudScope]archive.WordCloud),
	}
}

func (s *countingStore) Articles(_ context.Context, scope archive.NewsScope) ([]archive.ArticleHit, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.articles[scope], s.err
}

func (s *countingStore) KeywordSets(context.Context, archive.KeywordScope) (archive.KeywordReport, bool, error) {
	s.calls.Add(1)
	return archive.KeywordReport{}, false, s.err
}

func (s *countingStore) WordCloud(_ context.Context, scope archive.WordCloudScope) (archive.WordCloud, bool, error) {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clouds[scope]
	return c, ok, s.err
}

func (s *countingStore) Summary(context.Context, archive.SummaryScope) (archive.Summary, bool, error) {
	s.calls.Add(1)
	return archive.Summary{}, false, s.err
}

type harness struct {
	fake   *cachefake.Fake
	guard  *newscache.Guard
	filter *bloom.Filter
}

func newHarness(t *testing.T) harness {
	t.Helper()
	fake := cachefake.New()
	filter := bloom.New(1<<16, 5)
	guard := newscache.NewGuard(fake.Cache(), newscache.GuardConfig{
		Membership:  filter,
		Logger:      zaptest.NewLogger(t),
		PollInitial: 5 * time.Millisecond,
		PollMax:     20 * time.Millisecond,
	})
	return harness{fake: fake, guard: guard, filter: filter}
}

func openArchive(t *testing.T) *archive.DB {
	t.Helper()
	ctx := context.Background()
	db, err := archive.Open(ctx, archive.Config{DSN: filepath.Join(t.TempDir(), "news.db")}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(ctx))
	return db
}

func seed(t *testing.T, db *archive.DB, category, title string, day int, keywords string) archive.Article {
	t.Helper()
	a, _, err := db.InsertArticle(context.Background(), archive.Article{
		Category: category,
		Title:    title,
		URL:      "https://news.example/" + title,
		PubTime:  archive.At(time.Date(2024, 10, day, 8, 0, 0, 0, time.UTC)),
		Body:     title,
	}, archive.KeywordSet{Algorithm: tfidf, Keywords: keywords, KeywordsNum: 50})
	require.NoError(t, err)
	return a
}
