package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Store is the in-process cache store, the default for single-instance
// deployments. Values are stored as marshaled JSON so reads behave the
// same as the Redis store.
type Store struct {
	cache *gocache.Cache
}

func NewStore(defaultTTL time.Duration) *Store {
	return &Store{
		cache: gocache.New(defaultTTL, 10*time.Minute),
	}
}

func (s *Store) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	s.cache.Set(key, data, ttl)
	return nil
}

func (s *Store) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	raw, found := s.cache.Get(key)
	if !found {
		return false, nil
	}

	data, ok := raw.([]byte)
	if !ok {
		return false, fmt.Errorf("unexpected cache value type %T", raw)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}

	return true, nil
}
