package archive

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Timestamp is a UTC instant stored as unix seconds.
type Timestamp struct {
	time.Time
}

// At returns t truncated to whole seconds in UTC.
func At(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC().Truncate(time.Second)}
}

// Scan implements sql.Scanner.
func (t *Timestamp) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
	case int64:
		t.Time = time.Unix(v, 0).UTC()
	case int32:
		t.Time = time.Unix(int64(v), 0).UTC()
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	default:
		return fmt.Errorf("archive: cannot scan %T into Timestamp", src)
	}
	return nil
}

func (t *Timestamp) parse(s string) error {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("archive: timestamp %q: %w", s, err)
	}
	t.Time = time.Unix(n, 0).UTC()
	return nil
}

// Value implements driver.Valuer.
func (t Timestamp) Value() (driver.Value, error) {
	return t.Unix(), nil
}

// Article is a row of the news table.
type Article struct {
	ID        int64     `db:"id"`
	URL       string    `db:"url"`
	Category  string    `db:"category"`
	Title     string    `db:"title"`
	PubTime   Timestamp `db:"pub_time"`
	Body      string    `db:"body"`
	CreatedAt Timestamp `db:"created_at"`
	IsDelete  int       `db:"is_delete"`
}

// KeywordSet is a row of the keywords table. Keywords holds the serialized
// "keyword:weight" list.
type KeywordSet struct {
	ID          int64     `db:"id"`
	NewsID      int64     `db:"news_id"`
	Algorithm   string    `db:"algorithm"`
	Keywords    string    `db:"keywords"`
	KeywordsNum int       `db:"keywords_num"`
	CreatedAt   Timestamp `db:"created_at"`
	IsDelete    int       `db:"is_delete"`
}

// WordCloud is a row of the cloud table.
type WordCloud struct {
	ID          int64     `db:"id" json:"id"`
	Year        int       `db:"year" json:"year"`
	Month       int       `db:"month" json:"month"`
	Category    string    `db:"category" json:"category"`
	KeywordsNum int       `db:"keywords_num" json:"keywords_num"`
	Algorithm   string    `db:"algorithm" json:"algorithm"`
	CloudURL    string    `db:"cloud_url" json:"cloud_url"`
	CreatedAt   Timestamp `db:"created_at" json:"created_at"`
	IsDelete    int       `db:"is_delete" json:"is_delete"`
}

// Summary is a row of the summary table.
type Summary struct {
	ID          int64     `db:"id" json:"id"`
	Year        int       `db:"year" json:"year"`
	Month       int       `db:"month" json:"month"`
	Category    string    `db:"category" json:"category"`
	KeywordsNum int       `db:"keywords_num" json:"keywords_num"`
	Keyword     string    `db:"keyword" json:"keyword"`
	Algorithm   string    `db:"algorithm" json:"algorithm"`
	Summary     string    `db:"summary" json:"summary"`
	CreatedAt   Timestamp `db:"created_at" json:"created_at"`
	IsDelete    int       `db:"is_delete" json:"is_delete"`
}

// KeywordWeight is one parsed keyword entry.
type KeywordWeight struct {
	Keyword string  `json:"keyword"`
	Weight  float64 `json:"weight"`
}

// ParseKeywords splits a serialized keyword list. Entries are separated by
// "," with optional surrounding space; a missing or unparsable weight reads
// as zero. Empty keywords are dropped.
func ParseKeywords(s string) []KeywordWeight {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]KeywordWeight, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		kw, weight, _ := strings.Cut(part, ":")
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		w, err := strconv.ParseFloat(strings.TrimSpace(weight), 64)
		if err != nil {
			w = 0
		}
		out = append(out, KeywordWeight{Keyword: kw, Weight: w})
	}
	return out
}

// FormatKeywords is the inverse of ParseKeywords.
func FormatKeywords(kws []KeywordWeight) string {
	parts := make([]string, len(kws))
	for i, kw := range kws {
		parts[i] = kw.Keyword + ":" + strconv.FormatFloat(kw.Weight, 'f', -1, 64)
	}
	return strings.Join(parts, ", ")
}

// ArticleHit is an article as presented by a news lookup.
type ArticleHit struct {
	ID       int64           `json:"id"`
	Title    string          `json:"title"`
	Summary  string          `json:"summary"`
	URL      string          `json:"url"`
	PubTime  time.Time       `json:"pub_time"`
	Category string          `json:"category"`
	Keywords []KeywordWeight `json:"keywords,omitempty"`
	// Relevance is the searched keyword's weight normalized to [0, 1) across
	// the result set. Zero when no keyword was searched.
	Relevance float64 `json:"relevance"`
}

// KeywordCount is a keyword and the number of articles in which it appears.
type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

// KeywordReport is the payload of a keyword set lookup.
type KeywordReport struct {
	Weighted []KeywordWeight `json:"keywords_with_weight"`
	Counts   []KeywordCount  `json:"keywords_with_count"`
}

const snippetRunes = 150

func snippet(body string) string {
	r := []rune(body)
	if len(r) <= snippetRunes {
		return body
	}
	return string(r[:snippetRunes]) + "..."
}
