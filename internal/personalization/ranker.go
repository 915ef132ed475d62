// Package personalization adjusts knowledge-item relevance against a
// user profile: source preference filtering, complexity downranking and
// interest boosting, then a stable re-sort by score.
package personalization

import (
	"sort"

	"go.uber.org/zap"

	"github.com/voicetutor/backend/internal/knowledge"
	"github.com/voicetutor/backend/pkg/logger"
)

// Scoring deltas. The deltas are added to whatever relevance score an
// item already carries, so the filter must run exactly once per
// request: a second application doubles the adjustment.
const (
	complexityPenalty = -2.0
	interestBoost     = 1.0
)

type Ranker struct{}

func NewRanker() *Ranker {
	return &Ranker{}
}

// Personalize filters and reorders a copy of the aggregated result for
// the given profile. The input slice is not shared with the returned
// result, so a caller keeping the raw aggregation sees no mutation.
//
// Ranking is best-effort by contract: it can drop every item (all
// sources excluded by preference) but can never fail the request.
func (r *Ranker) Personalize(result knowledge.AggregatedResult, profile knowledge.UserProfile) knowledge.AggregatedResult {
	items := make([]knowledge.KnowledgeItem, 0, len(result.Items))

	preferred := make(map[string]bool, len(profile.PreferredSources))
	for _, source := range profile.PreferredSources {
		preferred[source] = true
	}

	for _, item := range result.Items {
		if len(preferred) > 0 && !preferred[item.Source] {
			continue
		}
		items = append(items, item)
	}

	targetLevel := knowledge.ParseLevel(profile.KnowledgeLevel)

	interests := make(map[string]bool, len(profile.Interests))
	for _, interest := range profile.Interests {
		interests[interest] = true
	}

	for i := range items {
		delta := 0.0
		if items[i].Complexity > targetLevel {
			delta += complexityPenalty
		}
		if hasAnyTag(items[i].Tags, interests) {
			delta += interestBoost
		}
		items[i].RelevanceScore += delta
	}

	// Stable: ties keep the aggregation (source fan-out) order.
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].RelevanceScore > items[j].RelevanceScore
	})

	logger.Debug("Result personalized",
		zap.String("username", profile.Username),
		zap.Int("items_in", len(result.Items)),
		zap.Int("items_out", len(items)),
	)

	out := result
	out.Items = items
	return out
}

func hasAnyTag(tags []string, interests map[string]bool) bool {
	for _, tag := range tags {
		if interests[tag] {
			return true
		}
	}
	return false
}
