package bizengine

import (
	"context"
	"sync"
	"time"
)

// CategoryCache is an in-memory cache of the category list with TTL.
// Categories change only when a post write creates one, so the public
// categories endpoint can serve from memory and be invalidated on writes.
type CategoryCache struct {
	mu      sync.RWMutex
	cats    []Category
	fetched time.Time
	ttl     time.Duration
	store   *Store
}

// NewCategoryCache creates a CategoryCache backed by the given Store.
func NewCategoryCache(s *Store, ttl time.Duration) *CategoryCache {
	return &CategoryCache{store: s, ttl: ttl}
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *CategoryCache) Invalidate() {
	c.mu.Lock()
	c.cats = nil
	c.mu.Unlock()
}

// List returns the cached categories, reloading from the store when stale.
func (c *CategoryCache) List(ctx context.Context) ([]Category, error) {
	c.mu.RLock()
	if c.cats != nil && time.Since(c.fetched) < c.ttl {
		cats := c.cats
		c.mu.RUnlock()
		return cats, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cats != nil && time.Since(c.fetched) < c.ttl {
		return c.cats, nil
	}
	cats, err := c.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	c.cats = cats
	c.fetched = time.Now()
	return cats, nil
}
