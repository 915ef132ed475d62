package internaldocs

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticFetcher struct {
	name string
	docs []Document
	err  error

	calls int
}

func (f *staticFetcher) Name() string { return f.name }

func (f *staticFetcher) FetchAll(ctx context.Context) ([]Document, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.docs, nil
}

func newTestSearcher(docs ...Document) *Searcher {
	store := NewStore([]Fetcher{&staticFetcher{name: "static", docs: docs}}, 0)
	return NewSearcher(store, 0)
}

func TestScoreDocument(t *testing.T) {
	tests := []struct {
		name  string
		doc   Document
		query string
		want  int
	}{
		{
			name:  "title only",
			doc:   Document{Title: "Intro to Loops", Content: "iteration basics"},
			query: "loops",
			want:  3,
		},
		{
			name:  "body only",
			doc:   Document{Title: "Control flow", Content: "covers loops and branches"},
			query: "loops",
			want:  1,
		},
		{
			name:  "tag only",
			doc:   Document{Title: "Control flow", Content: "branches", Tags: []string{"loops"}},
			query: "loops",
			want:  2,
		},
		{
			name:  "title and tag",
			doc:   Document{Title: "Loops explained", Content: "branches", Tags: []string{"loops"}},
			query: "loops",
			want:  5,
		},
		{
			name:  "multiple matching tags count once",
			doc:   Document{Title: "x", Content: "y", Tags: []string{"loops", "loops-advanced"}},
			query: "loops",
			want:  2,
		},
		{
			name:  "case insensitive",
			doc:   Document{Title: "LOOPS", Content: "About Loops"},
			query: "loops",
			want:  4,
		},
		{
			name:  "no match",
			doc:   Document{Title: "Recursion", Content: "self reference"},
			query: "loops",
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scoreDocument(tt.doc, tt.query))
		})
	}
}

func TestSearchExcludesZeroScores(t *testing.T) {
	s := newTestSearcher(
		Document{Title: "Loops", Content: "about loops", URL: "u1"},
		Document{Title: "Recursion", Content: "self reference", URL: "u2"},
	)

	results := s.Search(context.Background(), "loops", false)

	require.Len(t, results, 1)
	assert.Equal(t, "Loops", results[0].Title)
}

func TestSearchOrdersByScoreDescending(t *testing.T) {
	s := newTestSearcher(
		Document{Title: "mentions loops in body", Content: "loops here", URL: "u1"},
		Document{Title: "Loops", Content: "loops here too", Tags: []string{"loops"}, URL: "u2"},
	)

	results := s.Search(context.Background(), "loops", false)

	require.Len(t, results, 2)
	assert.Equal(t, "u2", results[0].URL)
	assert.Equal(t, 6, results[0].Score)
	assert.Equal(t, "u1", results[1].URL)
}

func TestSearchCapsResults(t *testing.T) {
	docs := make([]Document, 15)
	for i := range docs {
		docs[i] = Document{
			Title:   fmt.Sprintf("loops %d", i),
			Content: "body",
			URL:     fmt.Sprintf("u%d", i),
		}
	}

	s := newTestSearcher(docs...)
	results := s.Search(context.Background(), "loops", false)

	assert.Len(t, results, defaultMaxResults)
}

func TestMakeExcerpt(t *testing.T) {
	longPrefix := strings.Repeat("a", 100)
	longSuffix := strings.Repeat("b", 100)

	tests := []struct {
		name    string
		content string
		query   string
		want    string
	}{
		{
			name:    "short body returned whole",
			content: "The quick brown fox jumps",
			query:   "fox",
			want:    "The quick brown fox jumps",
		},
		{
			name:    "clipped both ends",
			content: longPrefix + "fox" + longSuffix,
			query:   "fox",
			want:    "..." + strings.Repeat("a", 50) + "fox" + strings.Repeat("b", 50) + "...",
		},
		{
			name:    "match at start clips only the tail",
			content: "fox" + longSuffix,
			query:   "fox",
			want:    "fox" + strings.Repeat("b", 50) + "...",
		},
		{
			name:    "no body match windows from the start",
			content: longPrefix + longSuffix,
			query:   "fox",
			want:    strings.Repeat("a", 53) + "...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, makeExcerpt(tt.content, tt.query))
		})
	}
}

func TestAdapterMapsResults(t *testing.T) {
	s := newTestSearcher(Document{
		Title:   "Loops",
		Content: "about loops",
		Source:  "wiki_export",
		URL:     "https://wiki.example.com/loops",
		Tags:    []string{"basics"},
	})

	a := NewAdapter(s)
	require.Equal(t, "internal_docs", a.Name())

	items, err := a.Fetch(context.Background(), "loops")
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.Equal(t, "Loops", items[0].Title)
	assert.Equal(t, "wiki_export", items[0].Source)
	assert.Equal(t, 1, items[0].Complexity, "unset complexity defaults to beginner")
	assert.NotEmpty(t, items[0].Excerpt)
}
