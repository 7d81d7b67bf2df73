package keyschema

import (
	"errors"
	"testing"
)

func TestEncodeShapes(t *testing.T) {
	cases := []struct {
		name string
		key  Key
		want string
	}{
		{"news month", News{Year: 2024, Month: 10}, "news:2024:10"},
		{"news category", News{Year: 2024, Month: 10, Category: "时政"}, "news:2024:10:时政"},
		{"news keyword", News{Year: 2024, Month: 10, Keyword: "发展"}, "news:2024:10:发展"},
		{"news keyword category", News{Year: 2024, Month: 10, Keyword: "发展", Category: "时政"}, "news:2024:10:发展:时政"},
		{"padded month", News{Year: 2024, Month: 3}, "news:2024:03"},
		{"keywords", Keywords{Year: 2024, Month: 10, Algorithm: "PageRank", KeywordsNum: 50}, "keywords:2024:10:PageRank:50"},
		{"wordcloud", WordCloud{Year: 2024, Month: 10, Category: "时政", KeywordsNum: 50, Algorithm: "LDA"}, "wordcloud:2024:10:时政:50:LDA"},
		{"summary", Summary{Year: 2024, Month: 10, Category: "时政", KeywordsNum: 50, Keyword: "北京", Algorithm: "LDA"}, "summary:2024:10:时政:50:北京:LDA"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Encode(tc.key)
			if err != nil {
				t.Fatalf("encode failed: %v", err)
			}
			if got != tc.want {
				t.Fatalf("encode = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestEncodeRejectsInvalidDimensions(t *testing.T) {
	cases := map[string]Key{
		"month zero":       News{Year: 2024},
		"month 13":         News{Year: 2024, Month: 13},
		"year too long":    News{Year: 10000, Month: 1},
		"colon in keyword": News{Year: 2024, Month: 1, Keyword: "a:b"},
		"empty algorithm":  Keywords{Year: 2024, Month: 1, KeywordsNum: 5},
		"negative count":   Keywords{Year: 2024, Month: 1, Algorithm: "LDA", KeywordsNum: -1},
		"empty category":   WordCloud{Year: 2024, Month: 1, KeywordsNum: 5, Algorithm: "LDA"},
		"empty keyword":    Summary{Year: 2024, Month: 1, Category: "c", KeywordsNum: 5, Algorithm: "LDA"},
		"nil":              nil,
	}
	for name, key := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Encode(key); !errors.Is(err, ErrMalformedKey) {
				t.Fatalf("expected ErrMalformedKey, got %v", err)
			}
		})
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	keys := []string{
		"news:2024:10",
		"news:2024:10:时政",
		"news:2024:10:发展:时政",
		"keywords:2024:10:jieba提供的TF-IDF:50",
		"wordcloud:2024:01:科技:20:PageRank",
		"summary:1999:12:国际:10:合作:LDA",
	}
	for _, s := range keys {
		k, err := Decode(s)
		if err != nil {
			t.Fatalf("decode %q failed: %v", s, err)
		}
		got, err := Encode(k)
		if err != nil {
			t.Fatalf("re-encode %q failed: %v", s, err)
		}
		if got != s {
			t.Fatalf("round trip %q -> %q", s, got)
		}
	}
}

func TestDecodeDimensions(t *testing.T) {
	k, err := Decode("summary:2024:10:时政:50:北京:LDA")
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	sum, ok := k.(Summary)
	if !ok {
		t.Fatalf("expected Summary, got %T", k)
	}
	want := Summary{Year: 2024, Month: 10, Category: "时政", KeywordsNum: 50, Keyword: "北京", Algorithm: "LDA"}
	if sum != want {
		t.Fatalf("decoded %+v, want %+v", sum, want)
	}

	k, err = Decode("news:2024:10:发展:时政")
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if n := k.(News); n.Keyword != "发展" || n.Category != "时政" {
		t.Fatalf("unexpected news dims: %+v", n)
	}
}

func TestDecodeFourSegmentNewsIsCategory(t *testing.T) {
	s, err := Encode(News{Year: 2024, Month: 10, Keyword: "发展"})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	k, err := Decode(s)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	n := k.(News)
	if n.Category != "发展" || n.Keyword != "" {
		t.Fatalf("expected positional category decode, got %+v", n)
	}
	if IsKeywordMonth(n) {
		t.Fatalf("decoded category form must not be treated as keyword shape")
	}
}

func TestDecodeMalformed(t *testing.T) {
	cases := []string{
		"",
		"foo:2024:10",
		"news:2024",
		"news:2024:10:a:b:c",
		"news:24:10",
		"news:2024:1",
		"news:2024:13",
		"news:2024:00",
		"news:abcd:10",
		"news:2024:10:",
		"keywords:2024:10:LDA",
		"keywords:2024:10:LDA:many",
		"keywords:2024:10:LDA:-5",
		"wordcloud:2024:10:c:5",
		"summary:2024:10:c:5:k",
		"lock:news:2024:10",
	}
	for _, s := range cases {
		if _, err := Decode(s); !errors.Is(err, ErrMalformedKey) {
			t.Fatalf("decode %q: expected ErrMalformedKey, got %v", s, err)
		}
	}
}

func TestLockKey(t *testing.T) {
	lk := LockKey("news:2024:10:发展")
	if lk != "lock:news:2024:10:发展" {
		t.Fatalf("unexpected lock key %q", lk)
	}
	inner, ok := FromLockKey(lk)
	if !ok || inner != "news:2024:10:发展" {
		t.Fatalf("unexpected unwrap: %q ok=%v", inner, ok)
	}
	if _, ok := FromLockKey("news:2024:10"); ok {
		t.Fatalf("expected non-lock key to be rejected")
	}
}

func TestKindSegments(t *testing.T) {
	if got := KindNews.ValidSegments(); len(got) != 3 {
		t.Fatalf("expected 3 news shapes, got %v", got)
	}
	if Kind(0).String() != "unknown" || Kind(0).ValidSegments() != nil {
		t.Fatalf("expected zero kind to be unknown")
	}
	if k, ok := ParseKind("wordcloud"); !ok || k != KindWordCloud {
		t.Fatalf("unexpected parse kind: %v %v", k, ok)
	}
}
