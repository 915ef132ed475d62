package knowledge

import "context"

// Complexity levels for knowledge items and user knowledge levels.
const (
	LevelBeginner     = 1
	LevelIntermediate = 2
	LevelAdvanced     = 3
)

// ParseLevel maps a knowledge-level name to its ordinal. Unknown names
// fall back to beginner, matching how unrecognized profiles are treated.
func ParseLevel(name string) int {
	switch name {
	case "intermediate":
		return LevelIntermediate
	case "advanced":
		return LevelAdvanced
	default:
		return LevelBeginner
	}
}

// KnowledgeItem is one retrievable unit of information produced by a
// source adapter. URL is the identity key for deduplication. All fields
// except RelevanceScore are immutable once produced; the ranker adjusts
// RelevanceScore in place.
type KnowledgeItem struct {
	Title          string   `json:"title"`
	Content        string   `json:"content,omitempty"`
	Excerpt        string   `json:"excerpt,omitempty"`
	Source         string   `json:"source"`
	URL            string   `json:"url"`
	Tags           []string `json:"tags,omitempty"`
	Complexity     int      `json:"complexity"`
	RelevanceScore float64  `json:"relevance_score"`
}

// UserProfile is the read-only personalization input. An empty
// PreferredSources slice means no source filtering.
type UserProfile struct {
	Username         string   `json:"username"`
	PreferredSources []string `json:"preferred_sources,omitempty"`
	KnowledgeLevel   string   `json:"knowledge_level"`
	Interests        []string `json:"interests,omitempty"`
}

// AggregatedResult is the per-request output of source fan-out. Err is
// non-empty only when every adapter failed; callers treat that as an
// empty result, not a request failure.
type AggregatedResult struct {
	Query          string          `json:"query"`
	Items          []KnowledgeItem `json:"results"`
	SourcesQueried []string        `json:"sources_queried"`
	Err            string          `json:"error,omitempty"`
}

// SourceAdapter is one integration that can produce knowledge items for
// a query. Implementations are independently fallible: a failed Fetch
// returns an error and contributes zero items, and must never panic
// past its boundary.
type SourceAdapter interface {
	Name() string
	Fetch(ctx context.Context, query string) ([]KnowledgeItem, error)
}
