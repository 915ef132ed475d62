package internaldocs

import (
	"context"
	"sort"
	"strings"

	"github.com/voicetutor/backend/internal/knowledge"
)

const defaultMaxResults = 10

// Search scoring weights: a query hit in the title outweighs one in a
// tag, which outweighs one in the body. Weights are additive across
// fields.
const (
	titleWeight = 3
	tagWeight   = 2
	bodyWeight  = 1
)

// SearchResult is one scored document match.
type SearchResult struct {
	Title       string  `json:"title"`
	Excerpt     string  `json:"excerpt"`
	Score       int     `json:"score"`
	Source      string  `json:"source"`
	URL         string  `json:"url"`
	Tags        []string `json:"tags,omitempty"`
	Complexity  int     `json:"complexity"`
	LastUpdated string  `json:"last_updated"`
}

// Searcher runs substring search over the cached document set.
type Searcher struct {
	store      *Store
	maxResults int
}

func NewSearcher(store *Store, maxResults int) *Searcher {
	if maxResults == 0 {
		maxResults = defaultMaxResults
	}
	return &Searcher{
		store:      store,
		maxResults: maxResults,
	}
}

// Search scores every cached document against the query, drops
// zero-score documents, and returns the top matches by score
// descending. Pass refresh to force a document-set reload first.
func (s *Searcher) Search(ctx context.Context, query string, refresh bool) []SearchResult {
	docs := s.store.Documents(ctx, refresh)
	queryLower := strings.ToLower(query)

	results := make([]SearchResult, 0)
	for _, doc := range docs {
		score := scoreDocument(doc, queryLower)
		if score == 0 {
			continue
		}

		results = append(results, SearchResult{
			Title:       doc.Title,
			Excerpt:     makeExcerpt(doc.Content, query),
			Score:       score,
			Source:      doc.Source,
			URL:         doc.URL,
			Tags:        doc.Tags,
			Complexity:  doc.Complexity,
			LastUpdated: doc.UpdatedAt,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > s.maxResults {
		results = results[:s.maxResults]
	}

	return results
}

func scoreDocument(doc Document, queryLower string) int {
	score := 0
	if strings.Contains(strings.ToLower(doc.Title), queryLower) {
		score += titleWeight
	}
	if strings.Contains(strings.ToLower(doc.Content), queryLower) {
		score += bodyWeight
	}
	for _, tag := range doc.Tags {
		if strings.Contains(strings.ToLower(tag), queryLower) {
			score += tagWeight
			break
		}
	}
	return score
}

// makeExcerpt windows the body around the first case-insensitive match:
// 50 characters of context before the match start and len(query)+50
// after, clipped to the body, with an ellipsis on each clipped end.
// When the query only matched the title or a tag the window starts at
// the beginning of the body.
func makeExcerpt(content, query string) string {
	pos := strings.Index(strings.ToLower(content), strings.ToLower(query))
	if pos < 0 {
		pos = 0
	}

	start := pos - 50
	if start < 0 {
		start = 0
	}
	end := pos + len(query) + 50
	if end > len(content) {
		end = len(content)
	}

	excerpt := content[start:end]
	if start > 0 {
		excerpt = "..." + excerpt
	}
	if end < len(content) {
		excerpt = excerpt + "..."
	}
	return excerpt
}

// Adapter exposes the searcher as a knowledge source.
type Adapter struct {
	searcher *Searcher
}

func NewAdapter(searcher *Searcher) *Adapter {
	return &Adapter{searcher: searcher}
}

func (a *Adapter) Name() string {
	return "internal_docs"
}

func (a *Adapter) Fetch(ctx context.Context, query string) ([]knowledge.KnowledgeItem, error) {
	results := a.searcher.Search(ctx, query, false)

	items := make([]knowledge.KnowledgeItem, 0, len(results))
	for _, r := range results {
		complexity := r.Complexity
		if complexity == 0 {
			complexity = knowledge.LevelBeginner
		}
		items = append(items, knowledge.KnowledgeItem{
			Title:      r.Title,
			Excerpt:    r.Excerpt,
			Source:     r.Source,
			URL:        r.URL,
			Tags:       r.Tags,
			Complexity: complexity,
		})
	}

	return items, nil
}
