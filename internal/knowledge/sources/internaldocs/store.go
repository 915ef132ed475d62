package internaldocs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/voicetutor/backend/pkg/logger"
)

// Document is a raw internal document as delivered by a fetcher, before
// any search scoring.
type Document struct {
	Title      string
	Content    string
	Tags       []string
	Source     string
	URL        string
	Complexity int
	UpdatedAt  string
}

// Fetcher retrieves the full document set from one internal sub-source
// (a wiki export endpoint, a scraped doc site, the local document
// table). Each fetcher is independently fallible.
type Fetcher interface {
	Name() string
	FetchAll(ctx context.Context) ([]Document, error)
}

// Store caches the combined document set from all fetchers. The set is
// considered stale after ttl (default 900s) or on explicit refresh; a
// refresh re-fetches every sub-source, skips the ones that fail, and
// atomically swaps the whole snapshot so readers never observe a
// partially updated set.
type Store struct {
	fetchers []Fetcher
	ttl      time.Duration

	mu        sync.RWMutex
	docs      []Document
	fetchedAt time.Time
}

func NewStore(fetchers []Fetcher, ttl time.Duration) *Store {
	if ttl == 0 {
		ttl = 15 * time.Minute
	}
	return &Store{
		fetchers: fetchers,
		ttl:      ttl,
	}
}

// Documents returns the cached set, refreshing it first when stale or
// when forced.
func (s *Store) Documents(ctx context.Context, refresh bool) []Document {
	s.mu.RLock()
	fresh := !refresh && time.Since(s.fetchedAt) < s.ttl
	docs := s.docs
	s.mu.RUnlock()

	if fresh {
		return docs
	}

	return s.Refresh(ctx)
}

// Refresh re-fetches from all sub-sources and swaps the snapshot.
func (s *Store) Refresh(ctx context.Context) []Document {
	combined := make([]Document, 0)

	for _, fetcher := range s.fetchers {
		docs, err := fetcher.FetchAll(ctx)
		if err != nil {
			logger.Error("Internal doc source fetch failed",
				zap.String("source", fetcher.Name()),
				zap.Error(err),
			)
			continue
		}
		combined = append(combined, docs...)
	}

	s.mu.Lock()
	s.docs = combined
	s.fetchedAt = time.Now()
	s.mu.Unlock()

	logger.Debug("Internal doc cache refreshed", zap.Int("documents", len(combined)))

	return combined
}
