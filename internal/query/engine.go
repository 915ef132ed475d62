package query

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voicetutor/backend/internal/cache"
	"github.com/voicetutor/backend/internal/knowledge"
	"github.com/voicetutor/backend/internal/knowledge/sources/internaldocs"
	"github.com/voicetutor/backend/internal/metrics"
	"github.com/voicetutor/backend/internal/personalization"
	"github.com/voicetutor/backend/internal/storage/models"
	"github.com/voicetutor/backend/pkg/logger"
	"github.com/voicetutor/backend/pkg/utils"
)

const (
	defaultCacheTTL      = time.Hour
	defaultKeyQueryLimit = 100

	summaryMaxLen       = 500
	responseLogMaxLen   = 200
	fallbackDocResults  = 3
	personaRecentWindow = 5
)

// EncyclopedicSource provides the lead summary for a term; it fails
// soft, returning an empty extract when nothing matches.
type EncyclopedicSource interface {
	Summarize(ctx context.Context, term string) (extract, pageURL string, err error)
}

// DocSearcher is the internal-docs fallback for summary composition.
type DocSearcher interface {
	Search(ctx context.Context, query string, refresh bool) []internaldocs.SearchResult
}

// UserStore is the persistence surface the engine needs: profiles,
// the append-only interaction log, and achievements for the persona
// context.
type UserStore interface {
	GetUser(username string) (*models.User, error)
	GetRecentInteractions(username string, limit int) ([]models.Interaction, error)
	GetAchievements(username string) ([]models.Achievement, error)
	InsertInteraction(record *models.Interaction) error
}

// Engine is the knowledge pipeline entry point: a time-bounded
// memoization layer over source aggregation, personalization and
// summary composition. Note there is no single-flight guard: two
// concurrent misses on the same key both compute and both store, which
// is accepted (staleness and duplicate work are bounded, consistency is
// not required).
type Engine struct {
	store         cache.Store
	aggregator    *knowledge.Aggregator
	ranker        *personalization.Ranker
	encyclopedia  EncyclopedicSource
	docs          DocSearcher
	users         UserStore
	cacheTTL      time.Duration
	keyQueryLimit int
}

type Request struct {
	Username  string
	Query     string
	SessionID string
}

type Response struct {
	Summary     string         `json:"summary"`
	Data        KnowledgeData  `json:"data"`
	UserContext PersonaContext `json:"user_context"`
}

// KnowledgeData carries both the raw aggregation and the personalized
// view. The ranker mutates relevance scores additively, so it runs
// exactly once per request, on the UserRelevant copy.
type KnowledgeData struct {
	knowledge.AggregatedResult
	UserRelevant knowledge.AggregatedResult `json:"user_relevant"`
}

// PersonaContext is the user-specific context block the voice agent
// feeds into its LLM prompt.
type PersonaContext struct {
	Preferences        knowledge.UserProfile `json:"preferences"`
	RecentInteractions []string              `json:"recent_interactions"`
	CurrentAchievement string                `json:"current_achievement,omitempty"`
}

func NewEngine(
	store cache.Store,
	aggregator *knowledge.Aggregator,
	ranker *personalization.Ranker,
	encyclopedia EncyclopedicSource,
	docs DocSearcher,
	users UserStore,
	cacheTTL time.Duration,
	keyQueryLimit int,
) *Engine {
	if cacheTTL == 0 {
		cacheTTL = defaultCacheTTL
	}
	if keyQueryLimit == 0 {
		keyQueryLimit = defaultKeyQueryLimit
	}
	return &Engine{
		store:         store,
		aggregator:    aggregator,
		ranker:        ranker,
		encyclopedia:  encyclopedia,
		docs:          docs,
		users:         users,
		cacheTTL:      cacheTTL,
		keyQueryLimit: keyQueryLimit,
	}
}

// Process serves a knowledge request from cache or computes it. Both
// paths append an interaction-log record; a logging failure is warned
// about but never fails the request.
func (e *Engine) Process(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	defer func() {
		metrics.KnowledgeDuration.Observe(time.Since(start).Seconds())
	}()

	key := e.cacheKey(req.Username, req.Query)

	var cached Response
	hit, err := e.store.Get(ctx, key, &cached)
	if err != nil {
		logger.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
	}
	if hit {
		metrics.CacheHits.WithLabelValues("knowledge").Inc()
		logger.Debug("Knowledge cache hit", zap.String("key", key))

		e.logInteraction(&models.Interaction{
			Username:  req.Username,
			SessionID: req.SessionID,
			InputText: fmt.Sprintf("Cached knowledge query: %s", req.Query),
			Metadata: map[string]interface{}{
				"type":  "cached_knowledge",
				"query": req.Query,
			},
		})

		return &cached, nil
	}
	metrics.CacheMisses.WithLabelValues("knowledge").Inc()

	profile := e.loadProfile(req.Username)

	summary := e.buildSummary(ctx, req.Query)
	summary = fmt.Sprintf("%s (Personalized for %s's preferences)", summary, req.Username)

	aggregated := e.aggregator.Aggregate(ctx, req.Query)
	metrics.AggregatedItems.Observe(float64(len(aggregated.Items)))

	personalized := e.ranker.Personalize(aggregated, profile)

	response := &Response{
		Summary: summary,
		Data: KnowledgeData{
			AggregatedResult: aggregated,
			UserRelevant:     personalized,
		},
		UserContext: e.personaContext(req.Username, profile),
	}

	if err := e.store.Set(ctx, key, response, e.cacheTTL); err != nil {
		logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}

	e.logInteraction(&models.Interaction{
		Username:      req.Username,
		SessionID:     req.SessionID,
		InputText:     fmt.Sprintf("New knowledge query: %s", req.Query),
		AgentResponse: truncate(summary, responseLogMaxLen),
		Metadata: map[string]interface{}{
			"type":      "knowledge_query",
			"query":     req.Query,
			"cache_key": key,
		},
	})

	logger.Info("Knowledge request processed",
		zap.String("username", req.Username),
		zap.String("query", req.Query),
		zap.Int("items", len(personalized.Items)),
		zap.Duration("latency", time.Since(start)),
	)

	return response, nil
}

func (e *Engine) cacheKey(username, query string) string {
	return "knowledge:" + utils.HashString(fmt.Sprintf("%s:%s", username, truncate(query, e.keyQueryLimit)))
}

// buildSummary composes the spoken summary: encyclopedic extract first,
// then the top internal-doc matches, then a no-results message. Source
// failures degrade to the next tier rather than erroring.
func (e *Engine) buildSummary(ctx context.Context, query string) string {
	extract, _, err := e.encyclopedia.Summarize(ctx, query)
	if err != nil {
		logger.Warn("Encyclopedic lookup failed", zap.String("query", query), zap.Error(err))
	}
	if extract != "" {
		return truncate(extract, summaryMaxLen)
	}

	results := e.docs.Search(ctx, query, false)
	if len(results) > 0 {
		if len(results) > fallbackDocResults {
			results = results[:fallbackDocResults]
		}
		lines := ""
		for i, r := range results {
			if i > 0 {
				lines += "\n"
			}
			lines += fmt.Sprintf("- %s: %s", r.Title, r.Excerpt)
		}
		return lines
	}

	return "No information found"
}

func (e *Engine) loadProfile(username string) knowledge.UserProfile {
	user, err := e.users.GetUser(username)
	if err != nil {
		logger.Warn("Failed to load user profile", zap.String("username", username), zap.Error(err))
	}
	if user == nil {
		return knowledge.UserProfile{Username: username, KnowledgeLevel: "beginner"}
	}

	return knowledge.UserProfile{
		Username:         user.Username,
		PreferredSources: user.PreferredSources,
		KnowledgeLevel:   user.KnowledgeLevel,
		Interests:        user.Interests,
	}
}

func (e *Engine) personaContext(username string, profile knowledge.UserProfile) PersonaContext {
	pc := PersonaContext{Preferences: profile, RecentInteractions: []string{}}

	recent, err := e.users.GetRecentInteractions(username, personaRecentWindow)
	if err != nil {
		logger.Warn("Failed to load recent interactions", zap.String("username", username), zap.Error(err))
	}
	for _, interaction := range recent {
		pc.RecentInteractions = append(pc.RecentInteractions, interaction.AgentResponse)
	}

	achievements, err := e.users.GetAchievements(username)
	if err != nil {
		logger.Warn("Failed to load achievements", zap.String("username", username), zap.Error(err))
	}
	if len(achievements) > 0 {
		pc.CurrentAchievement = achievements[0].Title
	}

	return pc
}

func (e *Engine) logInteraction(record *models.Interaction) {
	record.ID = uuid.New().String()
	record.Timestamp = time.Now()

	if err := e.users.InsertInteraction(record); err != nil {
		logger.Warn("Failed to log interaction",
			zap.String("username", record.Username),
			zap.Error(err),
		)
		return
	}

	recordType := "interaction"
	if t, ok := record.Metadata["type"].(string); ok {
		recordType = t
	}
	metrics.InteractionsLogged.WithLabelValues(recordType).Inc()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
