package archive

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Affected counts rows marked deleted per kind.
type Affected struct {
	News       int64 `json:"news"`
	Keywords   int64 `json:"keywords"`
	WordClouds int64 `json:"wordclouds"`
	Summaries  int64 `json:"summaries"`
	// Articles lists the live articles whose listings changed, with the
	// keyword sets they carried before the delete.
	Articles []ArticleRef `json:"-"`
}

// ArticleRef identifies where an article appears in news listings.
type ArticleRef struct {
	ID       int64
	Year     int
	Month    int
	Category string
	Sets     []KeywordSet
}

// Total is the sum over kinds.
func (a Affected) Total() int64 {
	return a.News + a.Keywords + a.WordClouds + a.Summaries
}

// SoftDelete marks every live row selected by scopes as deleted in a single
// transaction. Any failure rolls the whole batch back and returns an error
// wrapping ErrStoreUnavailable. Scopes matching nothing are not an error.
func (d *DB) SoftDelete(ctx context.Context, scopes ...Scope) (Affected, error) {
	var affected Affected
	if len(scopes) == 0 {
		return affected, nil
	}
	for _, scope := range scopes {
		switch scope.(type) {
		case NewsScope, KeywordScope, WordCloudScope, SummaryScope:
		default:
			return Affected{}, fmt.Errorf("archive: unsupported scope %T", scope)
		}
	}
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return Affected{}, unavailable("begin soft delete", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, scope := range scopes {
		var (
			n    int64
			refs []ArticleRef
		)
		switch s := scope.(type) {
		case NewsScope:
			n, refs, err = d.deleteNews(ctx, tx, s)
			affected.News += n
		case KeywordScope:
			n, refs, err = d.deleteKeywords(ctx, tx, s)
			affected.Keywords += n
		case WordCloudScope:
			n, err = exec(ctx, tx, `UPDATE cloud SET is_delete = 1
				WHERE is_delete = 0 AND year = ? AND month = ? AND category = ? AND keywords_num = ? AND algorithm = ?`,
				s.Year, s.Month, s.Category, s.KeywordsNum, s.Algorithm)
			affected.WordClouds += n
		case SummaryScope:
			n, err = exec(ctx, tx, `UPDATE summary SET is_delete = 1
				WHERE is_delete = 0 AND year = ? AND month = ? AND category = ? AND keywords_num = ? AND keyword = ? AND algorithm = ?`,
				s.Year, s.Month, s.Category, s.KeywordsNum, s.Keyword, s.Algorithm)
			affected.Summaries += n
		}
		if err != nil {
			return Affected{}, unavailable(fmt.Sprintf("soft delete %s", scope.Kind()), err)
		}
		affected.Articles = append(affected.Articles, refs...)
	}
	if err := tx.Commit(); err != nil {
		return Affected{}, unavailable("commit soft delete", err)
	}
	d.logger.Info("soft delete committed",
		zap.Int("scopes", len(scopes)),
		zap.Int64("news", affected.News),
		zap.Int64("keywords", affected.Keywords),
		zap.Int64("wordclouds", affected.WordClouds),
		zap.Int64("summaries", affected.Summaries),
	)
	return affected, nil
}

func (d *DB) deleteNews(ctx context.Context, tx *sqlx.Tx, s NewsScope) (int64, []ArticleRef, error) {
	candidates, err := d.articleRows(ctx, tx, s, true)
	if err != nil || len(candidates) == 0 {
		return 0, nil, err
	}
	sets, err := keywordSetsTx(ctx, tx, articleIDs(candidates))
	if err != nil {
		return 0, nil, err
	}
	var hit []Article
	for _, a := range candidates {
		if s.Keyword == "" || hasKeyword(sets[a.ID], s.Keyword) {
			hit = append(hit, a)
		}
	}
	n, err := markDeleted(ctx, tx, "news", articleIDs(hit))
	if err != nil {
		return 0, nil, err
	}
	return n, articleRefs(hit, sets), nil
}

// deleteKeywords marks the scope's keyword sets of every article published
// in the month, whether or not the article itself is still live. Only live
// articles are reported since deleted ones appear in no listing.
func (d *DB) deleteKeywords(ctx context.Context, tx *sqlx.Tx, s KeywordScope) (int64, []ArticleRef, error) {
	start, end := MonthRange(s.Year, s.Month)
	var rows []struct {
		ID     int64 `db:"id"`
		NewsID int64 `db:"news_id"`
	}
	if err := tx.SelectContext(ctx, &rows, tx.Rebind(`SELECT k.id, k.news_id FROM keywords k
		JOIN news n ON n.id = k.news_id
		WHERE k.is_delete = 0 AND k.algorithm = ? AND k.keywords_num = ?
		AND n.pub_time >= ? AND n.pub_time < ?`),
		s.Algorithm, s.KeywordsNum, start.Unix(), end.Unix()); err != nil {
		return 0, nil, err
	}
	if len(rows) == 0 {
		return 0, nil, nil
	}
	setIDs := make([]int64, 0, len(rows))
	newsIDs := make([]int64, 0, len(rows))
	for _, r := range rows {
		setIDs = append(setIDs, r.ID)
		newsIDs = append(newsIDs, r.NewsID)
	}
	live, err := liveArticlesTx(ctx, tx, newsIDs)
	if err != nil {
		return 0, nil, err
	}
	var sets map[int64][]KeywordSet
	if len(live) > 0 {
		if sets, err = keywordSetsTx(ctx, tx, articleIDs(live)); err != nil {
			return 0, nil, err
		}
	}
	n, err := markDeleted(ctx, tx, "keywords", setIDs)
	if err != nil {
		return 0, nil, err
	}
	return n, articleRefs(live, sets), nil
}

func liveArticlesTx(ctx context.Context, tx *sqlx.Tx, ids []int64) ([]Article, error) {
	var out []Article
	for _, chunk := range chunks(ids) {
		query, args, err := sqlx.In(`SELECT id, category, pub_time FROM news WHERE is_delete = 0 AND id IN (?) ORDER BY id`, chunk)
		if err != nil {
			return nil, err
		}
		var part []Article
		if err := tx.SelectContext(ctx, &part, tx.Rebind(query), args...); err != nil {
			return nil, err
		}
		out = append(out, part...)
	}
	return out, nil
}

// keywordSetsTx returns the live keyword sets of newsIDs grouped by news id.
func keywordSetsTx(ctx context.Context, tx *sqlx.Tx, newsIDs []int64) (map[int64][]KeywordSet, error) {
	out := make(map[int64][]KeywordSet, len(newsIDs))
	for _, chunk := range chunks(newsIDs) {
		query, args, err := sqlx.In(`SELECT id, news_id, algorithm, keywords, keywords_num
			FROM keywords WHERE is_delete = 0 AND news_id IN (?) ORDER BY id`, chunk)
		if err != nil {
			return nil, err
		}
		var rows []KeywordSet
		if err := tx.SelectContext(ctx, &rows, tx.Rebind(query), args...); err != nil {
			return nil, err
		}
		for _, r := range rows {
			out[r.NewsID] = append(out[r.NewsID], r)
		}
	}
	return out, nil
}

func markDeleted(ctx context.Context, tx *sqlx.Tx, table string, ids []int64) (int64, error) {
	var total int64
	for _, chunk := range chunks(ids) {
		query, args, err := sqlx.In(`UPDATE `+table+` SET is_delete = 1 WHERE is_delete = 0 AND id IN (?)`, chunk)
		if err != nil {
			return 0, err
		}
		n, err := exec(ctx, tx, query, args...)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

const inChunk = 500

// chunks splits ids so IN lists stay under every dialect's bind limit.
func chunks(ids []int64) [][]int64 {
	var out [][]int64
	for len(ids) > inChunk {
		out = append(out, ids[:inChunk])
		ids = ids[inChunk:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}

func articleRefs(articles []Article, sets map[int64][]KeywordSet) []ArticleRef {
	refs := make([]ArticleRef, 0, len(articles))
	for _, a := range articles {
		pub := a.PubTime.UTC()
		refs = append(refs, ArticleRef{
			ID:       a.ID,
			Year:     pub.Year(),
			Month:    int(pub.Month()),
			Category: a.Category,
			Sets:     sets[a.ID],
		})
	}
	return refs
}

func hasKeyword(sets []KeywordSet, keyword string) bool {
	for _, set := range sets {
		for _, kw := range ParseKeywords(set.Keywords) {
			if kw.Keyword == keyword {
				return true
			}
		}
	}
	return false
}

func exec(ctx context.Context, tx *sqlx.Tx, query string, args ...any) (int64, error) {
	res, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
