package archive

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/goforj/newscache/keyschema"
)

// likeEscape is the ESCAPE character used for substring matches.
const likeEscape = "!"

func containsPattern(s string) string {
	r := strings.NewReplacer(likeEscape, likeEscape+likeEscape, "%", likeEscape+"%", "_", likeEscape+"_")
	return "%" + r.Replace(s) + "%"
}

// Articles returns the live articles selected by s, newest first. When a
// keyword is given only articles whose live keyword sets contain exactly that
// keyword are returned, with Relevance normalized across the result.
func (d *DB) Articles(ctx context.Context, s NewsScope) ([]ArticleHit, error) {
	articles, err := d.articleRows(ctx, d.db, s, false)
	if err != nil {
		return nil, unavailable("select news", err)
	}
	if len(articles) == 0 {
		return nil, nil
	}
	sets, err := d.keywordSetsFor(ctx, articleIDs(articles))
	if err != nil {
		return nil, unavailable("select keywords", err)
	}

	hits := make([]ArticleHit, 0, len(articles))
	weights := make([]float64, 0, len(articles))
	for _, a := range articles {
		var kws []KeywordWeight
		weight, matched := 0.0, false
		for i, set := range sets[a.ID] {
			parsed := ParseKeywords(set.Keywords)
			if i == 0 {
				kws = parsed
			}
			for _, kw := range parsed {
				if s.Keyword != "" && kw.Keyword == s.Keyword && (!matched || kw.Weight > weight) {
					weight, matched = kw.Weight, true
				}
			}
		}
		if s.Keyword != "" && !matched {
			continue
		}
		hits = append(hits, ArticleHit{
			ID:       a.ID,
			Title:    a.Title,
			Summary:  snippet(a.Body),
			URL:      a.URL,
			PubTime:  a.PubTime.Time,
			Category: a.Category,
			Keywords: kws,
		})
		weights = append(weights, weight)
	}
	if s.Keyword != "" {
		normalize(hits, weights)
	}
	return hits, nil
}

// normalize maps weights onto [0, 1) using the result set's min and max.
func normalize(hits []ArticleHit, weights []float64) {
	if len(weights) == 0 {
		return
	}
	lo, hi := weights[0], weights[0]
	for _, w := range weights {
		lo = min(lo, w)
		hi = max(hi, w)
	}
	for i := range hits {
		hits[i].Relevance = (weights[i] - lo) / (hi - lo + 0.00001)
	}
}

// articleRows selects live news rows for s. The keyword filter here is a
// substring prefilter; callers needing exact matches check parsed keywords.
func (d *DB) articleRows(ctx context.Context, q sqlx.QueryerContext, s NewsScope, brief bool) ([]Article, error) {
	start, end := MonthRange(s.Year, s.Month)
	var (
		b    strings.Builder
		args = []any{start.Unix(), end.Unix()}
	)
	if brief {
		b.WriteString(`SELECT n.id, n.category, n.pub_time FROM news n`)
	} else {
		b.WriteString(`SELECT n.id, n.url, n.category, n.title, n.pub_time, n.body, n.created_at, n.is_delete FROM news n`)
	}
	b.WriteString(` WHERE n.is_delete = 0 AND n.pub_time >= ? AND n.pub_time < ?`)
	if byCategory(s.Category) {
		b.WriteString(` AND n.category = ?`)
		args = append(args, s.Category)
	}
	if s.Keyword != "" {
		b.WriteString(` AND EXISTS (SELECT 1 FROM keywords k WHERE k.news_id = n.id AND k.is_delete = 0 AND k.keywords LIKE ? ESCAPE '` + likeEscape + `')`)
		args = append(args, containsPattern(s.Keyword))
	}
	b.WriteString(` ORDER BY n.pub_time DESC, n.id DESC`)

	var rows []Article
	if err := sqlx.SelectContext(ctx, q, &rows, d.db.Rebind(b.String()), args...); err != nil {
		return nil, err
	}
	return rows, nil
}

// keywordSetsFor returns live keyword sets grouped by news id, oldest first.
func (d *DB) keywordSetsFor(ctx context.Context, newsIDs []int64) (map[int64][]KeywordSet, error) {
	out := make(map[int64][]KeywordSet, len(newsIDs))
	if len(newsIDs) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`SELECT id, news_id, algorithm, keywords, keywords_num, created_at, is_delete
		FROM keywords WHERE is_delete = 0 AND news_id IN (?) ORDER BY id`, newsIDs)
	if err != nil {
		return nil, err
	}
	var sets []KeywordSet
	if err := d.db.SelectContext(ctx, &sets, d.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, set := range sets {
		out[set.NewsID] = append(out[set.NewsID], set)
	}
	return out, nil
}

// KeywordSets aggregates the live keyword sets of a month's live articles
// extracted with the scope's algorithm and size. Counts holds at most
// KeywordsNum keywords ordered by the number of sets containing them.
func (d *DB) KeywordSets(ctx context.Context, s KeywordScope) (KeywordReport, bool, error) {
	start, end := MonthRange(s.Year, s.Month)
	var sets []string
	err := d.db.SelectContext(ctx, &sets, d.db.Rebind(`SELECT k.keywords FROM keywords k
		JOIN news n ON n.id = k.news_id
		WHERE k.is_delete = 0 AND n.is_delete = 0
		AND n.pub_time >= ? AND n.pub_time < ?
		AND k.algorithm = ? AND k.keywords_num = ?
		ORDER BY k.id`), start.Unix(), end.Unix(), s.Algorithm, s.KeywordsNum)
	if err != nil {
		return KeywordReport{}, false, unavailable("select keyword sets", err)
	}
	if len(sets) == 0 {
		return KeywordReport{}, false, nil
	}
	var report KeywordReport
	for _, set := range sets {
		report.Weighted = append(report.Weighted, ParseKeywords(set)...)
	}
	report.Counts = CountKeywords(report.Weighted, s.KeywordsNum)
	return report, true, nil
}

// CountKeywords counts occurrences and returns the top n, ties in first-seen
// order.
func CountKeywords(kws []KeywordWeight, n int) []KeywordCount {
	index := make(map[string]int)
	var counts []KeywordCount
	for _, kw := range kws {
		i, ok := index[kw.Keyword]
		if !ok {
			i = len(counts)
			index[kw.Keyword] = i
			counts = append(counts, KeywordCount{Keyword: kw.Keyword})
		}
		counts[i].Count++
	}
	sort.SliceStable(counts, func(i, j int) bool { return counts[i].Count > counts[j].Count })
	if n > 0 && len(counts) > n {
		counts = counts[:n]
	}
	return counts
}

// WordCloud returns the newest live word cloud for s.
func (d *DB) WordCloud(ctx context.Context, s WordCloudScope) (WordCloud, bool, error) {
	var row WordCloud
	err := d.db.GetContext(ctx, &row, d.db.Rebind(`SELECT id, year, month, category, keywords_num, algorithm, cloud_url, created_at, is_delete
		FROM cloud WHERE is_delete = 0 AND year = ? AND month = ? AND category = ? AND keywords_num = ? AND algorithm = ?
		ORDER BY id DESC LIMIT 1`), s.Year, s.Month, s.Category, s.KeywordsNum, s.Algorithm)
	if errors.Is(err, sql.ErrNoRows) {
		return WordCloud{}, false, nil
	}
	if err != nil {
		return WordCloud{}, false, unavailable("select cloud", err)
	}
	return row, true, nil
}

// Summary returns the newest live summary for s.
func (d *DB) Summary(ctx context.Context, s SummaryScope) (Summary, bool, error) {
	var row Summary
	err := d.db.GetContext(ctx, &row, d.db.Rebind(`SELECT id, year, month, category, keywords_num, keyword, algorithm, summary, created_at, is_delete
		FROM summary WHERE is_delete = 0 AND year = ? AND month = ? AND category = ? AND keywords_num = ? AND keyword = ? AND algorithm = ?
		ORDER BY id DESC LIMIT 1`), s.Year, s.Month, s.Category, s.KeywordsNum, s.Keyword, s.Algorithm)
	if errors.Is(err, sql.ErrNoRows) {
		return Summary{}, false, nil
	}
	if err != nil {
		return Summary{}, false, unavailable("select summary", err)
	}
	return row, true, nil
}

// EachFilterKey streams news:<year>:<month>:<keyword> for every keyword of
// every live keyword set of a live article. Keys repeat when a keyword
// appears in several articles.
func (d *DB) EachFilterKey(ctx context.Context, fn func(key string) error) error {
	rows, err := d.db.QueryxContext(ctx, `SELECT n.pub_time, k.keywords FROM news n
		JOIN keywords k ON k.news_id = n.id
		WHERE n.is_delete = 0 AND k.is_delete = 0`)
	if err != nil {
		return unavailable("scan filter keys", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			pub      Timestamp
			keywords string
		)
		if err := rows.Scan(&pub, &keywords); err != nil {
			return unavailable("scan filter keys", err)
		}
		for _, kw := range ParseKeywords(keywords) {
			if err := fn(keyschema.KeywordMonth(pub.Year(), int(pub.Month()), kw.Keyword)); err != nil {
				return err
			}
		}
	}
	if err := rows.Err(); err != nil {
		return unavailable("scan filter keys", err)
	}
	return nil
}

func articleIDs(articles []Article) []int64 {
	ids := make([]int64, len(articles))
	for i, a := range articles {
		ids[i] = a.ID
	}
	return ids
}
