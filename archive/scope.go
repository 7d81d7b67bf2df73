package archive

import (
	"fmt"
	"time"

	"github.com/goforj/newscache/keyschema"
)

// Scope selects rows of one entity kind. Key is the cache key exposing the
// scope's rows.
type Scope interface {
	Kind() keyschema.Kind
	Key() keyschema.Key
}

// NewsScope selects articles published in a month, optionally narrowed by
// category and by keyword.
type NewsScope struct {
	Year     int
	Month    int
	Category string
	Keyword  string
}

// KeywordScope selects keyword sets of a month's articles.
type KeywordScope struct {
	Year        int
	Month       int
	Algorithm   string
	KeywordsNum int
}

// WordCloudScope selects one word cloud asset.
type WordCloudScope struct {
	Year        int
	Month       int
	Category    string
	KeywordsNum int
	Algorithm   string
}

// SummaryScope selects one summary asset.
type SummaryScope struct {
	Year        int
	Month       int
	Category    string
	KeywordsNum int
	Keyword     string
	Algorithm   string
}

func (NewsScope) Kind() keyschema.Kind      { return keyschema.KindNews }
func (KeywordScope) Kind() keyschema.Kind   { return keyschema.KindKeywords }
func (WordCloudScope) Kind() keyschema.Kind { return keyschema.KindWordCloud }
func (SummaryScope) Kind() keyschema.Kind   { return keyschema.KindSummary }

func (s NewsScope) Key() keyschema.Key {
	return keyschema.News{Year: s.Year, Month: s.Month, Category: s.Category, Keyword: s.Keyword}
}

func (s KeywordScope) Key() keyschema.Key {
	return keyschema.Keywords{Year: s.Year, Month: s.Month, Algorithm: s.Algorithm, KeywordsNum: s.KeywordsNum}
}

func (s WordCloudScope) Key() keyschema.Key {
	return keyschema.WordCloud{Year: s.Year, Month: s.Month, Category: s.Category, KeywordsNum: s.KeywordsNum, Algorithm: s.Algorithm}
}

func (s SummaryScope) Key() keyschema.Key {
	return keyschema.Summary{Year: s.Year, Month: s.Month, Category: s.Category, KeywordsNum: s.KeywordsNum, Keyword: s.Keyword, Algorithm: s.Algorithm}
}

// ScopeFor converts a decoded cache key back to the scope it exposes.
func ScopeFor(k keyschema.Key) (Scope, error) {
	switch v := k.(type) {
	case keyschema.News:
		return NewsScope(v), nil
	case keyschema.Keywords:
		return KeywordScope(v), nil
	case keyschema.WordCloud:
		return WordCloudScope{Year: v.Year, Month: v.Month, Category: v.Category, KeywordsNum: v.KeywordsNum, Algorithm: v.Algorithm}, nil
	case keyschema.Summary:
		return SummaryScope{Year: v.Year, Month: v.Month, Category: v.Category, KeywordsNum: v.KeywordsNum, Keyword: v.Keyword, Algorithm: v.Algorithm}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported key %T", keyschema.ErrMalformedKey, k)
	}
}

// MonthRange returns [first instant of the month, first instant of the next
// month) in UTC.
func MonthRange(year, month int) (time.Time, time.Time) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

func byCategory(category string) bool {
	return category != "" && category != AllCategories
}
