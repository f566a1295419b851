// Package cache memoises prediction results keyed by a hash of the derived
// feature vector. MemoryCache serves a single process; RedisCache shares
// results between replicas.
package cache

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"credit-scoring/internal/features"

	"github.com/cespare/xxhash/v2"
)

// Cache stores prediction results by key.
type Cache interface {
	Get(ctx context.Context, key string) (float64, bool, error)
	Set(ctx context.Context, key string, value float64) error
}

// Key hashes fv into a cache key namespaced by model. Map iteration order
// does not affect the result.
func Key(model string, fv features.FeatureVector) string {
	d := xxhash.New()
	var buf [8]byte

	num := make([]string, 0, len(fv.Numeric))
	for k := range fv.Numeric {
		num = append(num, k)
	}
	sort.Strings(num)
	for _, k := range num {
		d.WriteString(k)
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(fv.Numeric[k]))
		d.Write(buf[:])
	}

	d.WriteString("|")

	cat := make([]string, 0, len(fv.Categorical))
	for k := range fv.Categorical {
		cat = append(cat, k)
	}
	sort.Strings(cat)
	for _, k := range cat {
		d.WriteString(k)
		binary.LittleEndian.PutUint64(buf[:], uint64(fv.Categorical[k]))
		d.Write(buf[:])
	}

	return fmt.Sprintf("%s:%016x", model, d.Sum64())
}

type cachedPrediction struct {
	value     float64
	timestamp time.Time
}

// MemoryCache caches recent predictions in process. Entries expire after
// ttl; when full, the oldest entry is evicted.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]cachedPrediction
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryCache creates a cache holding at most maxSize entries.
func NewMemoryCache(maxSize int, ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]cachedPrediction, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns a live cached value.
func (c *MemoryCache) Get(_ context.Context, key string) (float64, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if e, ok := c.entries[key]; ok && c.now().Sub(e.timestamp) < c.ttl {
		return e.value, true, nil
	}
	return 0, false, nil
}

// Set stores value, evicting the oldest entry if the cache is full.
func (c *MemoryCache) Set(_ context.Context, key string, value float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		var oldestKey string
		var oldestTime time.Time
		for k, e := range c.entries {
			if oldestTime.IsZero() || e.timestamp.Before(oldestTime) {
				oldestKey = k
				oldestTime = e.timestamp
			}
		}
		delete(c.entries, oldestKey)
	}

	c.entries[key] = cachedPrediction{value: value, timestamp: c.now()}
	return nil
}

// Len reports the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Sweep removes expired entries.
func (c *MemoryCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, e := range c.entries {
		if now.Sub(e.timestamp) >= c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every ttl/2 until ctx is done.
func (c *MemoryCache) RunSweeper(ctx context.Context) {
	interval := c.ttl / 2
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}
