// ABOUTME: LRU cache in front of the catalog's per-resource listings
// ABOUTME: Entries for a resource are dropped whenever that resource is written

package snapshot

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nainya/mementod/pkg/memento"
)

// DefaultCacheSize is used when a non-positive size is requested
const DefaultCacheSize = 1024

// Cached memoizes ByResource listings of a Store
type Cached struct {
	*Store
	listings *lru.Cache[string, [][]memento.Snapshot]

	// generation counts completed writes; a listing read across a write is not cached
	mu         sync.Mutex
	generation uint64
}

// NewCached wraps store with an LRU holding up to size resources
func NewCached(store *Store, size int) (*Cached, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	listings, err := lru.New[string, [][]memento.Snapshot](size)
	if err != nil {
		return nil, fmt.Errorf("create listing cache: %w", err)
	}
	return &Cached{Store: store, listings: listings}, nil
}

// ByResource serves from the cache, falling back to the store
func (c *Cached) ByResource(ctx context.Context, resourceID string) ([][]memento.Snapshot, error) {
	if groups, ok := c.listings.Get(resourceID); ok {
		return groups, nil
	}
	gen := c.currentGeneration()
	groups, err := c.Store.ByResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	c.addIfCurrent(resourceID, groups, gen)
	return groups, nil
}

// Put writes through and invalidates the resource's listing
func (c *Cached) Put(ctx context.Context, r *Record) error {
	defer c.invalidate(r.ResourceID)
	return c.Store.Put(ctx, r)
}

func (c *Cached) currentGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

func (c *Cached) addIfCurrent(resourceID string, groups [][]memento.Snapshot, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen == c.generation {
		c.listings.Add(resourceID, groups)
	}
}

func (c *Cached) invalidate(resourceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.listings.Remove(resourceID)
}

// Len reports how many resources are cached
func (c *Cached) Len() int {
	return c.listings.Len()
}
