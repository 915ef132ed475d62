// Package cache defines the time-bounded store behind the knowledge
// pipeline's memoization layer. Entries expire by TTL only; there is no
// invalidation hook from writers elsewhere, so staleness is bounded by
// the TTL and nothing else. There is also no single-flight guard:
// concurrent requests for the same key may recompute redundantly, which
// is accepted as a duplicate-work window under load.
package cache

import (
	"context"
	"time"
)

// Store is a TTL-keyed byte store. Get reports a miss for both absent
// and expired keys. Implementations marshal values to JSON so cached
// payloads are byte-identical across reads.
type Store interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}
