package quiz

import (
	"context"
	"errors"

	"github.com/gokatarajesh/thinkb-quiz/internal/kv"
)

// CacheKeyPrefix namespaces raw provider responses in the store.
const CacheKeyPrefix = "quiz-cache-"

// ResponseCache keeps raw provider text by content key. Entries never expire;
// a newer generation for the same key overwrites the old one.
type ResponseCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, raw string) error
}

// StoreCache is the ResponseCache backed by the key-value store.
type StoreCache struct {
	store kv.Store
}

var _ ResponseCache = (*StoreCache)(nil)

func NewStoreCache(store kv.Store) *StoreCache {
	return &StoreCache{store: store}
}

func (c *StoreCache) Get(ctx context.Context, key string) (string, bool, error) {
	raw, err := c.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	if raw == "" {
		return "", false, nil
	}
	return raw, true, nil
}

func (c *StoreCache) Set(ctx context.Context, key, raw string) error {
	return c.store.Set(ctx, key, raw)
}
