package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicetutor/backend/internal/cache/memory"
	"github.com/voicetutor/backend/internal/knowledge"
	"github.com/voicetutor/backend/internal/knowledge/sources/internaldocs"
	"github.com/voicetutor/backend/internal/knowledge/sources/wikipedia"
	"github.com/voicetutor/backend/internal/llm"
	"github.com/voicetutor/backend/internal/personalization"
	"github.com/voicetutor/backend/internal/query"
	"github.com/voicetutor/backend/internal/storage/sqlite"
	"github.com/voicetutor/backend/internal/summary"
)

type stubGenerator struct {
	text string
	err  error
}

func (s *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.text, nil
}

func newTestDB(t *testing.T) *sqlite.Client {
	t.Helper()

	db, err := sqlite.NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.InitSchema())

	return db
}

func newTestEngine(t *testing.T, db *sqlite.Client) *query.Engine {
	t.Helper()

	// Offline encyclopedic source; lookups fail soft.
	wiki := wikipedia.NewClient("http://127.0.0.1:1", "en", "test", 50*time.Millisecond)

	docStore := internaldocs.NewStore([]internaldocs.Fetcher{
		internaldocs.NewLocalFetcher("local_docs", db),
	}, time.Minute)
	searcher := internaldocs.NewSearcher(docStore, 10)

	aggregator := knowledge.NewAggregator([]knowledge.SourceAdapter{
		internaldocs.NewAdapter(searcher),
	})

	return query.NewEngine(
		memory.NewStore(time.Minute),
		aggregator,
		personalization.NewRanker(),
		wiki,
		searcher,
		db,
		time.Minute,
		100,
	)
}

func doRequest(t *testing.T, app *fiber.App, method, target string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, 5000)
	require.NoError(t, err)

	var parsed map[string]interface{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &parsed))
	}

	return resp, parsed
}

func TestHandleKnowledgeValidation(t *testing.T) {
	db := newTestDB(t)
	app := fiber.New()
	app.Get("/knowledge", NewKnowledgeHandler(newTestEngine(t, db)).HandleKnowledge)

	resp, body := doRequest(t, app, http.MethodGet, "/knowledge?username=dana", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "'q' is required")

	resp, body = doRequest(t, app, http.MethodGet, "/knowledge?q=loops", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "'username' is required")
}

func TestHandleKnowledgeEndToEnd(t *testing.T) {
	db := newTestDB(t)
	app := fiber.New()
	app.Get("/knowledge", NewKnowledgeHandler(newTestEngine(t, db)).HandleKnowledge)

	resp, body := doRequest(t, app, http.MethodGet, "/knowledge?q=loops&username=dana", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "No information found (Personalized for dana's preferences)", body["summary"])
	require.Contains(t, body, "data")
	require.Contains(t, body, "user_context")

	// The request itself lands in the interaction log.
	records, err := db.GetRecentInteractions("dana", 5)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "knowledge_query", records[0].Metadata["type"])
}

func TestCreateInteraction(t *testing.T) {
	db := newTestDB(t)
	app := fiber.New()
	h := NewHistoryHandler(db)
	app.Post("/interactions", h.CreateInteraction)
	app.Get("/interactions/recent", h.RecentInteractions)

	resp, _ := doRequest(t, app, http.MethodPost, "/interactions", map[string]interface{}{
		"username": "dana",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := doRequest(t, app, http.MethodPost, "/interactions", map[string]interface{}{
		"username":       "dana",
		"session_id":     "s1",
		"input_text":     "what are loops",
		"agent_response": "Loops repeat a block of code.",
		"metadata":       map[string]interface{}{"type": "voice"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, body["id"])
	assert.NotZero(t, body["timestamp"], "timestamp is server-assigned")

	resp, body = doRequest(t, app, http.MethodGet, "/interactions/recent?username=dana", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	interactions, ok := body["interactions"].([]interface{})
	require.True(t, ok)
	require.Len(t, interactions, 1)

	first := interactions[0].(map[string]interface{})
	assert.Equal(t, "Loops repeat a block of code.", first["agent_response"])
}

func TestRecentInteractionsLimitValidation(t *testing.T) {
	db := newTestDB(t)
	app := fiber.New()
	app.Get("/interactions/recent", NewHistoryHandler(db).RecentInteractions)

	resp, _ := doRequest(t, app, http.MethodGet, "/interactions/recent?username=dana&limit=500", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doRequest(t, app, http.MethodGet, "/interactions/recent?username=dana&limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWeeklySummaryNoInteractions(t *testing.T) {
	db := newTestDB(t)
	orchestrator := summary.NewOrchestrator(db, &stubGenerator{text: "digest"})

	app := fiber.New()
	app.Get("/summaries/weekly/:username", NewSummaryHandler(orchestrator).WeeklySummary)

	resp, body := doRequest(t, app, http.MethodGet, "/summaries/weekly/dana", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "No interactions found for the user.", body["message"])
}

func TestWeeklySummaryGeneratorUnavailable(t *testing.T) {
	db := newTestDB(t)
	seedInteraction(t, db, "dana")

	failed := fmt.Errorf("%w: connection refused", llm.ErrUnavailable)
	orchestrator := summary.NewOrchestrator(db, &stubGenerator{err: failed})

	app := fiber.New()
	app.Get("/summaries/weekly/:username", NewSummaryHandler(orchestrator).WeeklySummary)

	resp, body := doRequest(t, app, http.MethodGet, "/summaries/weekly/dana", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, body["error"], "temporarily unavailable")
}

func TestWeeklySummarySuccess(t *testing.T) {
	db := newTestDB(t)
	seedInteraction(t, db, "dana")

	orchestrator := summary.NewOrchestrator(db, &stubGenerator{text: "This week covered loops."})

	app := fiber.New()
	app.Get("/summaries/weekly/:username", NewSummaryHandler(orchestrator).WeeklySummary)

	resp, body := doRequest(t, app, http.MethodGet, "/summaries/weekly/dana", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "This week covered loops.", body["summary"])
	assert.Equal(t, "dana", body["username"])
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}$`, body["period_start"])
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}$`, body["period_end"])
}

func TestProfileUpsertAndGet(t *testing.T) {
	db := newTestDB(t)
	h := NewProfileHandler(db)

	app := fiber.New()
	app.Post("/users", h.UpsertProfile)
	app.Get("/users/:username", h.GetProfile)

	resp, _ := doRequest(t, app, http.MethodPost, "/users", map[string]interface{}{
		"username":        "dana",
		"knowledge_level": "wizard",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "unknown knowledge level is rejected")

	resp, _ = doRequest(t, app, http.MethodPost, "/users", map[string]interface{}{
		"username":          "dana",
		"knowledge_level":   "intermediate",
		"preferred_sources": []string{"internal_docs"},
		"interests":         []string{"loops"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doRequest(t, app, http.MethodGet, "/users/dana", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "intermediate", body["knowledge_level"])

	resp, _ = doRequest(t, app, http.MethodGet, "/users/nobody", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUploadDocument(t *testing.T) {
	db := newTestDB(t)
	app := fiber.New()
	app.Post("/documents", NewDocumentHandler(db).UploadDocument)

	resp, _ := doRequest(t, app, http.MethodPost, "/documents", map[string]interface{}{
		"title": "no url or content",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := doRequest(t, app, http.MethodPost, "/documents", map[string]interface{}{
		"title":   "Loops",
		"content": "loops repeat a block",
		"url":     "https://docs.example.com/loops",
		"tags":    []string{"basics"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, body["id"])

	docs, err := db.ListDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Loops", docs[0].Title)
}

func seedInteraction(t *testing.T, db *sqlite.Client, username string) {
	t.Helper()

	app := fiber.New()
	app.Post("/interactions", NewHistoryHandler(db).CreateInteraction)

	resp, _ := doRequest(t, app, http.MethodPost, "/interactions", map[string]interface{}{
		"username":       username,
		"agent_response": "Loops repeat a block of code.",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}
