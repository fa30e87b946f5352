package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const (
	modelCachePrefix = "models:"
	modelCacheTTL    = 5 * time.Minute
)

// ModelCache caches per-provider model listings. Live listing calls
// against provider APIs are slow and rate-limited; the UI polls the
// model list far more often than it changes.
type ModelCache struct {
	client *Client
}

// NewModelCache creates a new model list cache
func NewModelCache(client *Client) *ModelCache {
	return &ModelCache{client: client}
}

// Get retrieves the cached model list for a provider
func (c *ModelCache) Get(ctx context.Context, providerKey string) ([]string, error) {
	key := fmt.Sprintf("%s%s", modelCachePrefix, providerKey)

	data, err := c.client.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, nil // Cache miss
	}

	var models []string
	if err := json.Unmarshal(data, &models); err != nil {
		return nil, fmt.Errorf("failed to unmarshal model list: %w", err)
	}

	return models, nil
}

// Set caches the model list for a provider
func (c *ModelCache) Set(ctx context.Context, providerKey string, models []string) error {
	key := fmt.Sprintf("%s%s", modelCachePrefix, providerKey)

	data, err := json.Marshal(models)
	if err != nil {
		return fmt.Errorf("failed to marshal model list: %w", err)
	}

	return c.client.rdb.Set(ctx, key, data, modelCacheTTL).Err()
}

// Invalidate removes the cached model list for a provider
func (c *ModelCache) Invalidate(ctx context.Context, providerKey string) error {
	key := fmt.Sprintf("%s%s", modelCachePrefix, providerKey)
	return c.client.rdb.Del(ctx, key).Err()
}
