package internaldocs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// JSONFetcher pulls documents from an internal export endpoint that
// serves the whole corpus as a JSON array (a wiki export, a CMS dump).
type JSONFetcher struct {
	name       string
	endpoint   string
	httpClient *http.Client
}

type jsonDocument struct {
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	Tags       []string `json:"tags"`
	Source     string   `json:"source"`
	URL        string   `json:"url"`
	Complexity int      `json:"complexity"`
	UpdatedAt  string   `json:"updated_at"`
}

func NewJSONFetcher(name, endpoint string) *JSONFetcher {
	return &JSONFetcher{
		name:     name,
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (f *JSONFetcher) Name() string {
	return f.name
}

func (f *JSONFetcher) FetchAll(ctx context.Context) ([]Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch documents: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("document endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var raw []jsonDocument
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse documents: %w", err)
	}

	docs := make([]Document, 0, len(raw))
	for _, d := range raw {
		source := d.Source
		if source == "" {
			source = f.name
		}
		docs = append(docs, Document{
			Title:      d.Title,
			Content:    d.Content,
			Tags:       d.Tags,
			Source:     source,
			URL:        d.URL,
			Complexity: d.Complexity,
			UpdatedAt:  d.UpdatedAt,
		})
	}

	return docs, nil
}
