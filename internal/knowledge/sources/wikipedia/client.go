package wikipedia

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/voicetutor/backend/internal/knowledge"
	"github.com/voicetutor/backend/pkg/logger"
)

// Client wraps the Wikipedia REST API page-summary endpoint. Lookups
// fail fast (short timeout) and fail soft: any error yields an empty
// summary so the rest of the pipeline keeps going.
type Client struct {
	baseURL    string
	language   string
	userAgent  string
	httpClient *http.Client
}

type summaryResponse struct {
	Title       string `json:"title"`
	Extract     string `json:"extract"`
	ContentURLs struct {
		Desktop struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}

func NewClient(baseURL, language, userAgent string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 2 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		language:  language,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Name() string {
	return "wikipedia"
}

// Summarize fetches the encyclopedic summary for a term. It returns
// ("", nil) when no page matches; transport errors are logged and also
// reported as an empty summary.
func (c *Client) Summarize(ctx context.Context, term string) (string, string, error) {
	endpoint := fmt.Sprintf("%s/page/summary/%s", c.baseURL, url.PathEscape(term))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Warn("Wikipedia query failed", zap.String("term", term), zap.Error(err))
		return "", "", nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		// Disambiguation pages surface as 404 with a hint in the body.
		if strings.Contains(string(body), "may refer to") {
			return fmt.Sprintf("Multiple topics match '%s'. Please be more specific.", term), "", nil
		}
		return "", "", nil
	}

	if resp.StatusCode != http.StatusOK {
		logger.Warn("Wikipedia returned non-success status",
			zap.String("term", term),
			zap.Int("status", resp.StatusCode),
		)
		return "", "", nil
	}

	var parsed summaryResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", "", fmt.Errorf("failed to parse response: %w", err)
	}

	pageURL := parsed.ContentURLs.Desktop.Page
	if pageURL == "" {
		pageURL = fmt.Sprintf("https://%s.wikipedia.org/wiki/%s", c.language, url.PathEscape(term))
	}

	return parsed.Extract, pageURL, nil
}

// Fetch implements knowledge.SourceAdapter: a matching page becomes a
// single knowledge item keyed by its page URL.
func (c *Client) Fetch(ctx context.Context, query string) ([]knowledge.KnowledgeItem, error) {
	extract, pageURL, err := c.Summarize(ctx, query)
	if err != nil {
		return nil, err
	}
	if extract == "" || pageURL == "" {
		return nil, nil
	}

	return []knowledge.KnowledgeItem{
		{
			Title:      query,
			Content:    extract,
			Excerpt:    extract,
			Source:     c.Name(),
			URL:        pageURL,
			Complexity: knowledge.LevelIntermediate,
		},
	}, nil
}
