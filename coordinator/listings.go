package coordinator

import (
	"github.com/goforj/newscache/archive"
	"github.com/goforj/newscache/keyschema"
)

// listingKeys returns every cache key whose payload can include the
// article: the month listing, its category listings, the keyword listings
// of each keyword the article carries and the month's keyword-set reports.
func listingKeys(ref archive.ArticleRef) []string {
	y, m := ref.Year, ref.Month
	categories := []string{archive.AllCategories}
	if ref.Category != "" && ref.Category != archive.AllCategories {
		categories = append(categories, ref.Category)
	}

	keys := []string{keyschema.News{Year: y, Month: m}.String()}
	for _, c := range categories {
		keys = append(keys, keyschema.News{Year: y, Month: m, Category: c}.String())
	}
	for _, set := range ref.Sets {
		keys = append(keys, keyschema.Keywords{Year: y, Month: m, Algorithm: set.Algorithm, KeywordsNum: set.KeywordsNum}.String())
		for _, kw := range archive.ParseKeywords(set.Keywords) {
			keys = append(keys, keyschema.KeywordMonth(y, m, kw.Keyword))
			for _, c := range categories {
				keys = append(keys, keyschema.News{Year: y, Month: m, Category: c, Keyword: kw.Keyword}.String())
			}
		}
	}
	return keys
}

func affectedKeys(refs []archive.ArticleRef) []string {
	var keys []string
	for _, ref := range refs {
		keys = append(keys, listingKeys(ref)...)
	}
	return keys
}
