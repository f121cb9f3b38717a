// Package cache holds prepared road datasets in memory so repeated density
// runs over the same source skip loading, projection and index building.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/density-cli/internal/density"
)

// LoadFunc produces the prepared dataset for a key on a cache miss.
type LoadFunc func(ctx context.Context) (*density.Prepared, error)

// DatasetCache is a concurrent-safe LRU cache of prepared datasets with TTL
// expiration, keyed by source identifier.
type DatasetCache struct {
	mu         sync.RWMutex
	entries    map[string]*datasetEntry
	order      []string // LRU order: front=oldest, back=newest
	maxEntries int
	ttl        time.Duration
	hits       atomic.Int64
	misses     atomic.Int64
	loads      singleflight.Group
	now        func() time.Time
}

type datasetEntry struct {
	data     *density.Prepared
	loadedAt time.Time
}

// Stats contains cache performance statistics.
type Stats struct {
	Entries    int      `json:"entries"`
	MaxEntries int      `json:"max_entries"`
	Keys       []string `json:"keys"`
	Hits       int64    `json:"hits"`
	Misses     int64    `json:"misses"`
	HitRate    float64  `json:"hit_rate"`
}

// New creates a DatasetCache. maxEntries below 1 is treated as 1; a ttl of
// zero or less disables expiry.
func New(maxEntries int, ttl time.Duration) *DatasetCache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &DatasetCache{
		entries:    make(map[string]*datasetEntry),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Get returns the cached dataset for key, or nil on miss or expiry.
func (c *DatasetCache) Get(key string) *density.Prepared {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return nil
	}

	if c.expired(entry) {
		delete(c.entries, key)
		c.removeFromOrder(key)
		c.misses.Add(1)
		return nil
	}

	c.removeFromOrder(key)
	c.order = append(c.order, key)
	c.hits.Add(1)
	return entry.data
}

// Put stores a dataset, evicting the least recently used entry at capacity.
func (c *DatasetCache) Put(key string, data *density.Prepared) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.entries[key] = &datasetEntry{data: data, loadedAt: c.now()}
		c.removeFromOrder(key)
		c.order = append(c.order, key)
		return
	}

	for len(c.entries) >= c.maxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
		zap.L().Debug("cache: evicted dataset", zap.String("key", oldest))
	}

	c.entries[key] = &datasetEntry{data: data, loadedAt: c.now()}
	c.order = append(c.order, key)
}

// GetOrLoad returns the cached dataset for key, calling load on a miss.
// Concurrent misses for the same key share one load, which outlives the
// cancellation of whichever caller started it. Errors are not cached.
func (c *DatasetCache) GetOrLoad(ctx context.Context, key string, load LoadFunc) (*density.Prepared, error) {
	if data := c.Get(key); data != nil {
		return data, nil
	}

	v, err, shared := c.loads.Do(key, func() (interface{}, error) {
		// Another caller may have filled the entry while we waited.
		c.mu.RLock()
		entry, ok := c.entries[key]
		c.mu.RUnlock()
		if ok && !c.expired(entry) {
			return entry.data, nil
		}

		start := c.now()
		data, err := load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.Put(key, data)
		zap.L().Info("cache: dataset loaded",
			zap.String("key", key),
			zap.Int("features", data.Features.Len()),
			zap.Duration("elapsed", c.now().Sub(start)),
		)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		zap.L().Debug("cache: shared in-flight load", zap.String("key", key))
	}
	return v.(*density.Prepared), nil
}

// Invalidate removes a single key. It reports whether the key was present.
func (c *DatasetCache) Invalidate(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return false
	}
	delete(c.entries, key)
	c.removeFromOrder(key)
	return true
}

// InvalidateAll empties the cache and returns how many entries were dropped.
func (c *DatasetCache) InvalidateAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	c.entries = make(map[string]*datasetEntry)
	c.order = nil
	return n
}

// Stats returns cache performance statistics.
func (c *DatasetCache) Stats() Stats {
	c.mu.RLock()
	entries := len(c.entries)
	keys := append([]string{}, c.order...)
	maxEntries := c.maxEntries
	c.mu.RUnlock()

	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Entries:    entries,
		MaxEntries: maxEntries,
		Keys:       keys,
		Hits:       hits,
		Misses:     misses,
		HitRate:    hitRate,
	}
}

func (c *DatasetCache) expired(e *datasetEntry) bool {
	return c.ttl > 0 && c.now().Sub(e.loadedAt) > c.ttl
}

// removeFromOrder removes a key from the LRU order slice.
func (c *DatasetCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
