package storage

import (
	"context"
	"strings"
	"sync"

	"github.com/impostorwatch/impostorwatch/pkg/similarity"
)

// BrandCache holds the brand list in memory for username lookups during
// a sweep. Callers refresh it explicitly at the start of each run;
// there is no implicit process-lifetime memoization.
type BrandCache struct {
	db *DB

	mu     sync.RWMutex
	brands []Brand
}

func NewBrandCache(db *DB) *BrandCache {
	return &BrandCache{db: db}
}

// Refresh reloads the brand list from the store.
func (c *BrandCache) Refresh(ctx context.Context) error {
	brands, err := c.db.Brands(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.brands = brands
	c.mu.Unlock()
	return nil
}

// All returns the cached brand list.
func (c *BrandCache) All() []Brand {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Brand, len(c.brands))
	copy(out, c.brands)
	return out
}

// ByID returns the cached brand with the given id.
func (c *BrandCache) ByID(id int64) (Brand, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, b := range c.brands {
		if b.ID == id {
			return b, true
		}
	}
	return Brand{}, false
}

// FindByUsername matches a scammer username to a brand: exact official
// username match first, then the brand whose name is most similar.
func (c *BrandCache) FindByUsername(username string) (Brand, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, b := range c.brands {
		if b.HasAccount && strings.EqualFold(b.Username, username) {
			return b, true
		}
	}

	names := make([]string, len(c.brands))
	for i, b := range c.brands {
		names[i] = b.Name
	}
	idx, _ := similarity.BestMatch(username, names)
	if idx < 0 {
		return Brand{}, false
	}
	return c.brands[idx], true
}
