package archive

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// InsertArticle stores an article and its keyword sets in one transaction
// and returns them with ids assigned. Zero timestamps default to now.
func (d *DB) InsertArticle(ctx context.Context, a Article, sets ...KeywordSet) (Article, []KeywordSet, error) {
	if a.PubTime.IsZero() {
		return Article{}, nil, errors.New("archive: article pub_time required")
	}
	now := At(time.Now())
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return Article{}, nil, unavailable("begin insert", err)
	}
	defer func() { _ = tx.Rollback() }()

	a.ID, err = d.insert(ctx, tx, `INSERT INTO news (url, category, title, pub_time, body, created_at, is_delete)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, a.URL, a.Category, a.Title, a.PubTime, a.Body, a.CreatedAt, a.IsDelete)
	if err != nil {
		return Article{}, nil, unavailable("insert news", err)
	}
	out := make([]KeywordSet, 0, len(sets))
	for _, set := range sets {
		set.NewsID = a.ID
		if set.CreatedAt.IsZero() {
			set.CreatedAt = now
		}
		if set.KeywordsNum == 0 {
			set.KeywordsNum = len(ParseKeywords(set.Keywords))
		}
		set.ID, err = d.insert(ctx, tx, `INSERT INTO keywords (news_id, algorithm, keywords, keywords_num, created_at, is_delete)
			VALUES (?, ?, ?, ?, ?, ?)`, set.NewsID, set.Algorithm, set.Keywords, set.KeywordsNum, set.CreatedAt, set.IsDelete)
		if err != nil {
			return Article{}, nil, unavailable("insert keywords", err)
		}
		out = append(out, set)
	}
	if err := tx.Commit(); err != nil {
		return Article{}, nil, unavailable("commit insert", err)
	}
	return a, out, nil
}

// InsertWordCloud stores a word cloud asset.
func (d *DB) InsertWordCloud(ctx context.Context, w WordCloud) (WordCloud, error) {
	if w.CreatedAt.IsZero() {
		w.CreatedAt = At(time.Now())
	}
	id, err := d.insert(ctx, d.db, `INSERT INTO cloud (year, month, category, keywords_num, algorithm, cloud_url, created_at, is_delete)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, w.Year, w.Month, w.Category, w.KeywordsNum, w.Algorithm, w.CloudURL, w.CreatedAt, w.IsDelete)
	if err != nil {
		return WordCloud{}, unavailable("insert cloud", err)
	}
	w.ID = id
	return w, nil
}

// InsertSummary stores a summary asset.
func (d *DB) InsertSummary(ctx context.Context, s Summary) (Summary, error) {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = At(time.Now())
	}
	id, err := d.insert(ctx, d.db, `INSERT INTO summary (year, month, category, keywords_num, keyword, algorithm, summary, created_at, is_delete)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.Year, s.Month, s.Category, s.KeywordsNum, s.Keyword, s.Algorithm, s.Summary, s.CreatedAt, s.IsDelete)
	if err != nil {
		return Summary{}, unavailable("insert summary", err)
	}
	s.ID = id
	return s, nil
}

type execQueryer interface {
	sqlx.ExecerContext
	sqlx.QueryerContext
}

// insert runs an INSERT and returns the new id. Postgres has no
// LastInsertId, so the statement gains a RETURNING clause there.
func (d *DB) insert(ctx context.Context, q execQueryer, query string, args ...any) (int64, error) {
	query = d.db.Rebind(query)
	if d.driver == DriverPostgres || d.driver == "postgres" {
		var id int64
		err := q.QueryRowxContext(ctx, query+" RETURNING id", args...).Scan(&id)
		return id, err
	}
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
