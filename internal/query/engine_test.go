package query

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicetutor/backend/internal/knowledge"
	"github.com/voicetutor/backend/internal/knowledge/sources/internaldocs"
	"github.com/voicetutor/backend/internal/personalization"
	"github.com/voicetutor/backend/internal/storage/models"
)

type countingAdapter struct {
	mu    sync.Mutex
	calls int
	items []knowledge.KnowledgeItem
}

func (a *countingAdapter) Name() string { return "counting" }

func (a *countingAdapter) Fetch(ctx context.Context, query string) ([]knowledge.KnowledgeItem, error) {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()
	return a.items, nil
}

func (a *countingAdapter) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type fakeEncyclopedia struct {
	extract string
	url     string
	err     error
}

func (f *fakeEncyclopedia) Summarize(ctx context.Context, term string) (string, string, error) {
	return f.extract, f.url, f.err
}

type fakeDocSearcher struct {
	results []internaldocs.SearchResult
}

func (f *fakeDocSearcher) Search(ctx context.Context, query string, refresh bool) []internaldocs.SearchResult {
	return f.results
}

type fakeUserStore struct {
	mu           sync.Mutex
	user         *models.User
	recent       []models.Interaction
	achievements []models.Achievement
	logged       []models.Interaction
}

func (f *fakeUserStore) GetUser(username string) (*models.User, error) {
	return f.user, nil
}

func (f *fakeUserStore) GetRecentInteractions(username string, limit int) ([]models.Interaction, error) {
	return f.recent, nil
}

func (f *fakeUserStore) GetAchievements(username string) ([]models.Achievement, error) {
	return f.achievements, nil
}

func (f *fakeUserStore) InsertInteraction(record *models.Interaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logged = append(f.logged, *record)
	return nil
}

func (f *fakeUserStore) loggedTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	types := make([]string, 0, len(f.logged))
	for _, rec := range f.logged {
		if t, ok := rec.Metadata["type"].(string); ok {
			types = append(types, t)
		}
	}
	return types
}

type mapStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMapStore() *mapStore {
	return &mapStore{data: make(map[string][]byte)}
}

func (s *mapStore) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data[key] = data
	s.mu.Unlock()
	return nil
}

func (s *mapStore) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	s.mu.Lock()
	raw, ok := s.data[key]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

type failingStore struct{}

func (failingStore) Set(context.Context, string, interface{}, time.Duration) error {
	return errors.New("store unavailable")
}

func (failingStore) Get(context.Context, string, interface{}) (bool, error) {
	return false, errors.New("store unavailable")
}

func newTestEngine(store *mapStore, adapter *countingAdapter, users *fakeUserStore, enc *fakeEncyclopedia, docs *fakeDocSearcher) *Engine {
	if enc == nil {
		enc = &fakeEncyclopedia{}
	}
	if docs == nil {
		docs = &fakeDocSearcher{}
	}
	return NewEngine(
		store,
		knowledge.NewAggregator([]knowledge.SourceAdapter{adapter}),
		personalization.NewRanker(),
		enc,
		docs,
		users,
		time.Hour,
		100,
	)
}

func TestProcessCachesSecondRequest(t *testing.T) {
	adapter := &countingAdapter{items: []knowledge.KnowledgeItem{
		{Title: "Loops", URL: "u1", Source: "counting", Complexity: knowledge.LevelBeginner},
	}}
	users := &fakeUserStore{}
	engine := newTestEngine(newMapStore(), adapter, users, &fakeEncyclopedia{extract: "Loops repeat."}, nil)

	req := Request{Username: "dana", Query: "loops"}

	first, err := engine.Process(context.Background(), req)
	require.NoError(t, err)
	second, err := engine.Process(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, adapter.count(), "second request is served from cache")
	assert.Equal(t, first.Summary, second.Summary)
	assert.Equal(t, []string{"knowledge_query", "cached_knowledge"}, users.loggedTypes())
}

func TestProcessDifferentUsersDoNotShareCache(t *testing.T) {
	adapter := &countingAdapter{}
	engine := newTestEngine(newMapStore(), adapter, &fakeUserStore{}, nil, nil)

	_, err := engine.Process(context.Background(), Request{Username: "dana", Query: "loops"})
	require.NoError(t, err)
	_, err = engine.Process(context.Background(), Request{Username: "sam", Query: "loops"})
	require.NoError(t, err)

	assert.Equal(t, 2, adapter.count())
}

func TestProcessLongQueriesShareCacheKey(t *testing.T) {
	adapter := &countingAdapter{}
	engine := newTestEngine(newMapStore(), adapter, &fakeUserStore{}, nil, nil)

	long := strings.Repeat("x", 100)

	_, err := engine.Process(context.Background(), Request{Username: "dana", Query: long + "tail one"})
	require.NoError(t, err)
	_, err = engine.Process(context.Background(), Request{Username: "dana", Query: long + "different tail"})
	require.NoError(t, err)

	assert.Equal(t, 1, adapter.count(), "only the first 100 characters of the query participate in the key")
}

func TestProcessSummaryFromEncyclopedia(t *testing.T) {
	engine := newTestEngine(newMapStore(), &countingAdapter{}, &fakeUserStore{},
		&fakeEncyclopedia{extract: "A loop repeats a block of code."}, nil)

	resp, err := engine.Process(context.Background(), Request{Username: "dana", Query: "loops"})
	require.NoError(t, err)

	assert.Equal(t, "A loop repeats a block of code. (Personalized for dana's preferences)", resp.Summary)
}

func TestProcessSummaryTruncatesLongExtract(t *testing.T) {
	engine := newTestEngine(newMapStore(), &countingAdapter{}, &fakeUserStore{},
		&fakeEncyclopedia{extract: strings.Repeat("a", 600)}, nil)

	resp, err := engine.Process(context.Background(), Request{Username: "dana", Query: "loops"})
	require.NoError(t, err)

	assert.Equal(t, strings.Repeat("a", 500)+" (Personalized for dana's preferences)", resp.Summary)
}

func TestProcessSummaryFallsBackToDocs(t *testing.T) {
	docs := &fakeDocSearcher{results: []internaldocs.SearchResult{
		{Title: "Loops", Excerpt: "loops repeat"},
		{Title: "For loops", Excerpt: "counted iteration"},
		{Title: "While loops", Excerpt: "conditional iteration"},
		{Title: "Fourth", Excerpt: "never included"},
	}}
	engine := newTestEngine(newMapStore(), &countingAdapter{}, &fakeUserStore{}, nil, docs)

	resp, err := engine.Process(context.Background(), Request{Username: "dana", Query: "loops"})
	require.NoError(t, err)

	want := "- Loops: loops repeat\n- For loops: counted iteration\n- While loops: conditional iteration (Personalized for dana's preferences)"
	assert.Equal(t, want, resp.Summary)
}

func TestProcessSummaryNoInformation(t *testing.T) {
	engine := newTestEngine(newMapStore(), &countingAdapter{}, &fakeUserStore{}, nil, nil)

	resp, err := engine.Process(context.Background(), Request{Username: "dana", Query: "unheard-of"})
	require.NoError(t, err)

	assert.Equal(t, "No information found (Personalized for dana's preferences)", resp.Summary)
}

func TestProcessEncyclopediaFailureFallsThrough(t *testing.T) {
	docs := &fakeDocSearcher{results: []internaldocs.SearchResult{
		{Title: "Loops", Excerpt: "loops repeat"},
	}}
	engine := newTestEngine(newMapStore(), &countingAdapter{}, &fakeUserStore{},
		&fakeEncyclopedia{err: errors.New("upstream down")}, docs)

	resp, err := engine.Process(context.Background(), Request{Username: "dana", Query: "loops"})
	require.NoError(t, err)

	assert.Contains(t, resp.Summary, "- Loops: loops repeat")
}

func TestProcessReturnsRawAndPersonalized(t *testing.T) {
	adapter := &countingAdapter{items: []knowledge.KnowledgeItem{
		{Title: "Advanced loops", URL: "u1", Source: "counting", Complexity: knowledge.LevelAdvanced, RelevanceScore: 5},
	}}
	users := &fakeUserStore{user: &models.User{
		Username:       "dana",
		KnowledgeLevel: "beginner",
	}}
	engine := newTestEngine(newMapStore(), adapter, users, nil, nil)

	resp, err := engine.Process(context.Background(), Request{Username: "dana", Query: "loops"})
	require.NoError(t, err)

	require.Len(t, resp.Data.Items, 1)
	require.Len(t, resp.Data.UserRelevant.Items, 1)
	assert.Equal(t, 5.0, resp.Data.Items[0].RelevanceScore, "raw aggregation is untouched")
	assert.Equal(t, 3.0, resp.Data.UserRelevant.Items[0].RelevanceScore)
}

func TestProcessPersonaContext(t *testing.T) {
	users := &fakeUserStore{
		recent: []models.Interaction{
			{AgentResponse: "first answer"},
			{AgentResponse: "second answer"},
		},
		achievements: []models.Achievement{
			{Title: "Completed loops module"},
			{Title: "Older achievement"},
		},
	}
	engine := newTestEngine(newMapStore(), &countingAdapter{}, users, nil, nil)

	resp, err := engine.Process(context.Background(), Request{Username: "dana", Query: "loops"})
	require.NoError(t, err)

	assert.Equal(t, []string{"first answer", "second answer"}, resp.UserContext.RecentInteractions)
	assert.Equal(t, "Completed loops module", resp.UserContext.CurrentAchievement)
	assert.Equal(t, "dana", resp.UserContext.Preferences.Username)
	assert.Equal(t, "beginner", resp.UserContext.Preferences.KnowledgeLevel, "missing profile defaults to beginner")
}

func TestProcessLogsTruncatedResponse(t *testing.T) {
	users := &fakeUserStore{}
	engine := newTestEngine(newMapStore(), &countingAdapter{}, users,
		&fakeEncyclopedia{extract: strings.Repeat("a", 400)}, nil)

	_, err := engine.Process(context.Background(), Request{Username: "dana", Query: "loops", SessionID: "s1"})
	require.NoError(t, err)

	require.Len(t, users.logged, 1)
	rec := users.logged[0]
	assert.Len(t, rec.AgentResponse, 200)
	assert.Equal(t, "s1", rec.SessionID)
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.Timestamp.IsZero())
}

func TestProcessSurvivesCacheOutage(t *testing.T) {
	adapter := &countingAdapter{}
	engine := NewEngine(
		failingStore{},
		knowledge.NewAggregator([]knowledge.SourceAdapter{adapter}),
		personalization.NewRanker(),
		&fakeEncyclopedia{extract: "Loops repeat."},
		&fakeDocSearcher{},
		&fakeUserStore{},
		time.Hour,
		100,
	)

	resp, err := engine.Process(context.Background(), Request{Username: "dana", Query: "loops"})
	require.NoError(t, err)
	assert.Contains(t, resp.Summary, "Loops repeat.")
}
