package internaldocs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreCachesWithinTTL(t *testing.T) {
	fetcher := &staticFetcher{name: "static", docs: []Document{{Title: "Loops", URL: "u1"}}}
	store := NewStore([]Fetcher{fetcher}, time.Minute)

	first := store.Documents(context.Background(), false)
	second := store.Documents(context.Background(), false)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, 1, fetcher.calls, "second read within ttl is served from cache")
}

func TestStoreForcedRefresh(t *testing.T) {
	fetcher := &staticFetcher{name: "static", docs: []Document{{Title: "Loops", URL: "u1"}}}
	store := NewStore([]Fetcher{fetcher}, time.Minute)

	store.Documents(context.Background(), false)
	store.Documents(context.Background(), true)

	assert.Equal(t, 2, fetcher.calls)
}

func TestStoreRefreshesAfterTTL(t *testing.T) {
	fetcher := &staticFetcher{name: "static", docs: []Document{{Title: "Loops", URL: "u1"}}}
	store := NewStore([]Fetcher{fetcher}, 10*time.Millisecond)

	store.Documents(context.Background(), false)
	time.Sleep(20 * time.Millisecond)
	store.Documents(context.Background(), false)

	assert.Equal(t, 2, fetcher.calls)
}

func TestStoreSkipsFailedFetchers(t *testing.T) {
	healthy := &staticFetcher{name: "healthy", docs: []Document{{Title: "Loops", URL: "u1"}}}
	broken := &staticFetcher{name: "broken", err: errors.New("export endpoint down")}
	store := NewStore([]Fetcher{broken, healthy}, time.Minute)

	docs := store.Documents(context.Background(), false)

	require.Len(t, docs, 1)
	assert.Equal(t, "Loops", docs[0].Title)
}

func TestStoreCombinesSources(t *testing.T) {
	a := &staticFetcher{name: "a", docs: []Document{{Title: "A", URL: "u1"}}}
	b := &staticFetcher{name: "b", docs: []Document{{Title: "B", URL: "u2"}}}
	store := NewStore([]Fetcher{a, b}, time.Minute)

	docs := store.Documents(context.Background(), false)

	require.Len(t, docs, 2)
	assert.Equal(t, "A", docs[0].Title)
	assert.Equal(t, "B", docs[1].Title)
}
