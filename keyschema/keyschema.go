// Package keyschema maps archive query scopes to cache keys and back.
//
// Keys are colon separated and case-sensitive:
//
//	news:<year>:<month>
//	news:<year>:<month>:<category>
//	news:<year>:<month>:<keyword>
//	news:<year>:<month>:<keyword>:<category>
//	keywords:<year>:<month>:<algorithm>:<keywords_num>
//	wordcloud:<year>:<month>:<category>:<keywords_num>:<algorithm>
//	summary:<year>:<month>:<category>:<keywords_num>:<keyword>:<algorithm>
//
// Year is always four digits and month always two. Any other segment is an
// opaque UTF-8 value that must be non-empty and must not contain a colon.
package keyschema

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedKey reports a key that does not match any known shape.
var ErrMalformedKey = errors.New("keyschema: malformed key")

const (
	sep        = ":"
	lockPrefix = "lock:"
)

// Kind identifies the cached entity family.
type Kind uint8

const (
	KindNews Kind = iota + 1
	KindKeywords
	KindWordCloud
	KindSummary
)

// String returns the key prefix used for the kind.
func (k Kind) String() string {
	switch k {
	case KindNews:
		return "news"
	case KindKeywords:
		return "keywords"
	case KindWordCloud:
		return "wordcloud"
	case KindSummary:
		return "summary"
	default:
		return "unknown"
	}
}

// ValidSegments lists the segment counts (prefix included) accepted for the kind.
func (k Kind) ValidSegments() []int {
	switch k {
	case KindNews:
		return []int{3, 4, 5}
	case KindKeywords:
		return []int{5}
	case KindWordCloud:
		return []int{6}
	case KindSummary:
		return []int{7}
	default:
		return nil
	}
}

// ParseKind resolves a key prefix to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "news":
		return KindNews, true
	case "keywords":
		return KindKeywords, true
	case "wordcloud":
		return KindWordCloud, true
	case "summary":
		return KindSummary, true
	default:
		return 0, false
	}
}

// Key is a typed cache key.
type Key interface {
	Kind() Kind
	// Encode validates the dimensions and renders the canonical string.
	Encode() (string, error)
	// String renders the key without validation.
	String() string
}

// News addresses article listings for a month, optionally narrowed by
// category, keyword, or both.
type News struct {
	Year     int
	Month    int
	Category string
	Keyword  string
}

// Keywords addresses the extracted keyword sets for a month.
type Keywords struct {
	Year        int
	Month       int
	Algorithm   string
	KeywordsNum int
}

// WordCloud addresses a rendered word cloud asset.
type WordCloud struct {
	Year        int
	Month       int
	Category    string
	KeywordsNum int
	Algorithm   string
}

// Summary addresses a generated keyword summary.
type Summary struct {
	Year        int
	Month       int
	Category    string
	KeywordsNum int
	Keyword     string
	Algorithm   string
}

func (News) Kind() Kind      { return KindNews }
func (Keywords) Kind() Kind  { return KindKeywords }
func (WordCloud) Kind() Kind { return KindWordCloud }
func (Summary) Kind() Kind   { return KindSummary }

func (k News) String() string {
	parts := []string{KindNews.String(), year(k.Year), month(k.Month)}
	switch {
	case k.Keyword != "" && k.Category != "":
		parts = append(parts, k.Keyword, k.Category)
	case k.Keyword != "":
		parts = append(parts, k.Keyword)
	case k.Category != "":
		parts = append(parts, k.Category)
	}
	return strings.Join(parts, sep)
}

func (k Keywords) String() string {
	return strings.Join([]string{KindKeywords.String(), year(k.Year), month(k.Month), k.Algorithm, strconv.Itoa(k.KeywordsNum)}, sep)
}

func (k WordCloud) String() string {
	return strings.Join([]string{KindWordCloud.String(), year(k.Year), month(k.Month), k.Category, strconv.Itoa(k.KeywordsNum), k.Algorithm}, sep)
}

func (k Summary) String() string {
	return strings.Join([]string{KindSummary.String(), year(k.Year), month(k.Month), k.Category, strconv.Itoa(k.KeywordsNum), k.Keyword, k.Algorithm}, sep)
}

func (k News) Encode() (string, error) {
	if err := checkPeriod(k.Year, k.Month); err != nil {
		return "", err
	}
	for _, v := range []string{k.Category, k.Keyword} {
		if strings.Contains(v, sep) {
			return "", fmt.Errorf("%w: segment %q contains %q", ErrMalformedKey, v, sep)
		}
	}
	return k.String(), nil
}

func (k Keywords) Encode() (string, error) {
	if err := checkPeriod(k.Year, k.Month); err != nil {
		return "", err
	}
	if err := checkValues(k.Algorithm); err != nil {
		return "", err
	}
	if err := checkCount(k.KeywordsNum); err != nil {
		return "", err
	}
	return k.String(), nil
}

func (k WordCloud) Encode() (string, error) {
	if err := checkPeriod(k.Year, k.Month); err != nil {
		return "", err
	}
	if err := checkValues(k.Category, k.Algorithm); err != nil {
		return "", err
	}
	if err := checkCount(k.KeywordsNum); err != nil {
		return "", err
	}
	return k.String(), nil
}

func (k Summary) Encode() (string, error) {
	if err := checkPeriod(k.Year, k.Month); err != nil {
		return "", err
	}
	if err := checkValues(k.Category, k.Keyword, k.Algorithm); err != nil {
		return "", err
	}
	if err := checkCount(k.KeywordsNum); err != nil {
		return "", err
	}
	return k.String(), nil
}

// Encode renders k after validating its dimensions.
func Encode(k Key) (string, error) {
	if k == nil {
		return "", fmt.Errorf("%w: nil key", ErrMalformedKey)
	}
	return k.Encode()
}

// Decode parses a cache key string.
//
// A four segment news key is positional and always decodes as the category
// form. A keyword-only News therefore encodes to a string that decodes back
// with the value in Category.
func Decode(s string) (Key, error) {
	parts := strings.Split(s, sep)
	kind, ok := ParseKind(parts[0])
	if !ok {
		return nil, malformed(s, "unknown prefix")
	}
	if !validCount(kind, len(parts)) {
		return nil, malformed(s, fmt.Sprintf("%d segments for %s", len(parts), kind))
	}
	for _, p := range parts[1:] {
		if p == "" {
			return nil, malformed(s, "empty segment")
		}
	}
	y, m, err := parsePeriod(parts[1], parts[2])
	if err != nil {
		return nil, malformed(s, err.Error())
	}

	switch kind {
	case KindNews:
		k := News{Year: y, Month: m}
		switch len(parts) {
		case 4:
			k.Category = parts[3]
		case 5:
			k.Keyword = parts[3]
			k.Category = parts[4]
		}
		return k, nil
	case KindKeywords:
		n, err := parseCount(parts[4])
		if err != nil {
			return nil, malformed(s, err.Error())
		}
		return Keywords{Year: y, Month: m, Algorithm: parts[3], KeywordsNum: n}, nil
	case KindWordCloud:
		n, err := parseCount(parts[4])
		if err != nil {
			return nil, malformed(s, err.Error())
		}
		return WordCloud{Year: y, Month: m, Category: parts[3], KeywordsNum: n, Algorithm: parts[5]}, nil
	default:
		n, err := parseCount(parts[4])
		if err != nil {
			return nil, malformed(s, err.Error())
		}
		return Summary{Year: y, Month: m, Category: parts[3], KeywordsNum: n, Keyword: parts[5], Algorithm: parts[6]}, nil
	}
}

// LockKey returns the lease key guarding recomputation of cacheKey.
func LockKey(cacheKey string) string {
	return lockPrefix + cacheKey
}

// FromLockKey strips the lease prefix. ok is false when s is not a lease key.
func FromLockKey(s string) (string, bool) {
	if !strings.HasPrefix(s, lockPrefix) {
		return "", false
	}
	return strings.TrimPrefix(s, lockPrefix), true
}

// KeywordMonth is the news key shape gated by the membership filter.
func KeywordMonth(y, m int, keyword string) string {
	return News{Year: y, Month: m, Keyword: keyword}.String()
}

// IsKeywordMonth reports whether k is the news:<year>:<month>:<keyword> shape.
func IsKeywordMonth(k Key) bool {
	n, ok := k.(News)
	return ok && n.Keyword != "" && n.Category == ""
}

func year(y int) string  { return fmt.Sprintf("%04d", y) }
func month(m int) string { return fmt.Sprintf("%02d", m) }

func checkPeriod(y, m int) error {
	if y < 0 || y > 9999 {
		return fmt.Errorf("%w: year %d out of range", ErrMalformedKey, y)
	}
	if m < 1 || m > 12 {
		return fmt.Errorf("%w: month %d out of range", ErrMalformedKey, m)
	}
	return nil
}

func checkValues(values ...string) error {
	for _, v := range values {
		if v == "" {
			return fmt.Errorf("%w: empty segment", ErrMalformedKey)
		}
		if strings.Contains(v, sep) {
			return fmt.Errorf("%w: segment %q contains %q", ErrMalformedKey, v, sep)
		}
	}
	return nil
}

func checkCount(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: keywords_num %d is negative", ErrMalformedKey, n)
	}
	return nil
}

func parsePeriod(ys, ms string) (int, int, error) {
	if len(ys) != 4 || !digits(ys) {
		return 0, 0, fmt.Errorf("year %q is not four digits", ys)
	}
	if len(ms) != 2 || !digits(ms) {
		return 0, 0, fmt.Errorf("month %q is not two digits", ms)
	}
	y, _ := strconv.Atoi(ys)
	m, _ := strconv.Atoi(ms)
	if m < 1 || m > 12 {
		return 0, 0, fmt.Errorf("month %q out of range", ms)
	}
	return y, m, nil
}

func parseCount(s string) (int, error) {
	if !digits(s) {
		return 0, fmt.Errorf("keywords_num %q is not numeric", s)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("keywords_num %q: %w", s, err)
	}
	return n, nil
}

func digits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func validCount(k Kind, n int) bool {
	for _, v := range k.ValidSegments() {
		if v == n {
			return true
		}
	}
	return false
}

func malformed(s, reason string) error {
	return fmt.Errorf("%w: %q: %s", ErrMalformedKey, s, reason)
}
