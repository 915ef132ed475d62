package internaldocs

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/voicetutor/backend/pkg/logger"
)

const maxScrapedPages = 50

// WebFetcher scrapes a documentation site: it reads an index page for
// article links, then pulls each linked page into a document. Pages
// that fail to scrape are skipped.
type WebFetcher struct {
	name       string
	indexURL   string
	httpClient *http.Client
}

func NewWebFetcher(name, indexURL string) *WebFetcher {
	return &WebFetcher{
		name:     name,
		indexURL: indexURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (f *WebFetcher) Name() string {
	return f.name
}

func (f *WebFetcher) FetchAll(ctx context.Context) ([]Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.indexURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch index: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("index returned status %d", resp.StatusCode)
	}

	index, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse index HTML: %w", err)
	}

	base, err := url.Parse(f.indexURL)
	if err != nil {
		return nil, fmt.Errorf("invalid index URL: %w", err)
	}

	links := make([]string, 0)
	seen := make(map[string]bool)
	index.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Host != base.Host {
			return
		}
		abs.Fragment = ""
		link := abs.String()
		if link == f.indexURL || seen[link] {
			return
		}
		seen[link] = true
		links = append(links, link)
	})

	if len(links) > maxScrapedPages {
		links = links[:maxScrapedPages]
	}

	docs := make([]Document, 0, len(links))
	for _, link := range links {
		doc, err := f.scrapePage(ctx, link)
		if err != nil {
			logger.Warn("Failed to scrape doc page",
				zap.String("source", f.name),
				zap.String("url", link),
				zap.Error(err),
			)
			continue
		}
		docs = append(docs, doc)
	}

	logger.Debug("Web doc source fetched",
		zap.String("source", f.name),
		zap.Int("documents", len(docs)),
	)

	return docs, nil
}

func (f *WebFetcher) scrapePage(ctx context.Context, pageURL string) (Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return Document{}, err
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return Document{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Document{}, fmt.Errorf("page returned status %d", resp.StatusCode)
	}

	page, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return Document{}, err
	}

	title := strings.TrimSpace(page.Find("h1").First().Text())
	if title == "" {
		title = strings.TrimSpace(page.Find("title").Text())
	}

	page.Find("script, style, nav, footer, header").Remove()
	text := strings.TrimSpace(page.Find("body").Text())
	if len(text) > 5000 {
		text = text[:5000]
	}

	tags := make([]string, 0)
	page.Find(`meta[name="keywords"]`).Each(func(_ int, s *goquery.Selection) {
		if content, ok := s.Attr("content"); ok {
			for _, tag := range strings.Split(content, ",") {
				if tag = strings.TrimSpace(tag); tag != "" {
					tags = append(tags, tag)
				}
			}
		}
	})

	return Document{
		Title:   title,
		Content: text,
		Tags:    tags,
		Source:  f.name,
		URL:     pageURL,
	}, nil
}
