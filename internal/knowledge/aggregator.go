package knowledge

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/voicetutor/backend/internal/metrics"
	"github.com/voicetutor/backend/pkg/logger"
)

const (
	// MaxItems caps the aggregated result after deduplication.
	MaxItems = 20

	defaultAdapterTimeout = 5 * time.Second
	defaultOverallTimeout = 15 * time.Second
)

// Aggregator fans a query out to every configured source adapter,
// merges their items in adapter-configuration order, deduplicates by
// URL and caps the result. Adapter failures are isolated: each call
// runs in its own goroutine under its own timeout.
type Aggregator struct {
	adapters       []SourceAdapter
	adapterTimeout time.Duration
	overallTimeout time.Duration
}

type AggregatorOption func(*Aggregator)

func WithAdapterTimeout(d time.Duration) AggregatorOption {
	return func(a *Aggregator) { a.adapterTimeout = d }
}

func WithOverallTimeout(d time.Duration) AggregatorOption {
	return func(a *Aggregator) { a.overallTimeout = d }
}

func NewAggregator(adapters []SourceAdapter, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		adapters:       adapters,
		adapterTimeout: defaultAdapterTimeout,
		overallTimeout: defaultOverallTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate blocks until every adapter returns or times out. A source
// that fails contributes zero items; only when all sources fail is the
// result annotated with an error string, and even then the caller is
// expected to degrade to an empty response rather than fail.
func (a *Aggregator) Aggregate(ctx context.Context, query string) AggregatedResult {
	ctx, cancel := context.WithTimeout(ctx, a.overallTimeout)
	defer cancel()

	type fetchOutcome struct {
		items []KnowledgeItem
		err   error
	}

	outcomes := make([]fetchOutcome, len(a.adapters))
	sources := make([]string, len(a.adapters))

	var wg sync.WaitGroup
	for i, adapter := range a.adapters {
		sources[i] = adapter.Name()

		wg.Add(1)
		go func(i int, adapter SourceAdapter) {
			defer wg.Done()

			callCtx, callCancel := context.WithTimeout(ctx, a.adapterTimeout)
			defer callCancel()

			items, err := adapter.Fetch(callCtx, query)
			outcomes[i] = fetchOutcome{items: items, err: err}
		}(i, adapter)
	}
	wg.Wait()

	seen := make(map[string]bool)
	combined := make([]KnowledgeItem, 0)
	failures := 0

	for i, outcome := range outcomes {
		if outcome.err != nil {
			failures++
			metrics.SourceFailures.WithLabelValues(sources[i]).Inc()
			logger.Warn("Source fetch failed",
				zap.String("source", sources[i]),
				zap.String("query", query),
				zap.Error(outcome.err),
			)
			continue
		}

		for _, item := range outcome.items {
			if seen[item.URL] {
				continue
			}
			seen[item.URL] = true
			combined = append(combined, item)
		}
	}

	if len(combined) > MaxItems {
		combined = combined[:MaxItems]
	}

	result := AggregatedResult{
		Query:          query,
		Items:          combined,
		SourcesQueried: sources,
	}

	if len(a.adapters) > 0 && failures == len(a.adapters) {
		result.Err = "failed to query all knowledge sources"
	}

	logger.Debug("Aggregation complete",
		zap.String("query", query),
		zap.Int("items", len(combined)),
		zap.Int("failed_sources", failures),
	)

	return result
}
