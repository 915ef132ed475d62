package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/voicetutor/backend/internal/knowledge"
)

// Client queries one third-party business system (a SharePoint site, a
// Salesforce knowledge base, an Azure search index) through a generic
// search endpoint: GET {base}/search?q=... returning a JSON result
// list. The vendor-specific shape is flattened server-side by the
// integration proxy; this client only speaks the common format.
type Client struct {
	name       string
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type searchResponse struct {
	Results []struct {
		Title      string   `json:"title"`
		Content    string   `json:"content"`
		URL        string   `json:"url"`
		Tags       []string `json:"tags"`
		Complexity int      `json:"complexity"`
	} `json:"results"`
}

func NewClient(name, baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		name:    name,
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Name() string {
	return c.name
}

func (c *Client) Fetch(ctx context.Context, query string) ([]knowledge.KnowledgeItem, error) {
	params := url.Values{}
	params.Add("q", query)

	endpoint := fmt.Sprintf("%s/search?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", c.name, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", c.name, err)
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse %s response: %w", c.name, err)
	}

	items := make([]knowledge.KnowledgeItem, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		complexity := r.Complexity
		if complexity == 0 {
			complexity = knowledge.LevelBeginner
		}
		items = append(items, knowledge.KnowledgeItem{
			Title:      r.Title,
			Content:    r.Content,
			Source:     c.name,
			URL:        r.URL,
			Tags:       r.Tags,
			Complexity: complexity,
		})
	}

	return items, nil
}
