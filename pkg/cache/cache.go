// Package cache provides an in-memory LRU cache with per-entry TTL, used to
// avoid redundant round-trips to the upstream API.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sync"
	"time"

	"github.com/Yash-Kavaiya/data-gov-in-mcp/pkg/models"
)

// entry is one cached value with its absolute expiry instant.
type entry struct {
	key    string
	value  any
	expiry time.Time
}

// Cache is a thread-safe LRU cache with TTL support. Expiry is lazy: entries
// are checked only when read, never swept in the background, so a stale entry
// keeps occupying a slot until LRU pressure or Clear removes it.
//
// Recency is tracked with a doubly-linked list: the front element is the
// least recently used, the back element the most recently used. Both reads
// and writes count as access.
type Cache struct {
	mu         sync.Mutex
	maxSize    int
	defaultTTL time.Duration
	items      map[string]*list.Element
	order      *list.List
	hits       int64
	misses     int64

	now func() time.Time // swapped out in tests
}

// New creates a Cache holding at most maxSize entries, each expiring
// defaultTTL after insertion unless SetTTL overrides it.
func New(maxSize int, defaultTTL time.Duration) *Cache {
	return &Cache{
		maxSize:    maxSize,
		defaultTTL: defaultTTL,
		items:      make(map[string]*list.Element),
		order:      list.New(),
		now:        time.Now,
	}
}

// MakeKey derives a deterministic cache key from a resource id and its query
// parameters. url.Values.Encode sorts by parameter name, so two parameter
// sets that differ only in insertion order produce the same key.
func MakeKey(resourceID string, params url.Values) string {
	sum := sha256.Sum256([]byte(resourceID + "?" + params.Encode()))
	return hex.EncodeToString(sum[:])
}

// Get returns the value stored under key if it is present and unexpired. An
// expired entry is evicted on the spot and counted as a miss; a hit marks the
// entry most recently used.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	ent := el.Value.(*entry)
	if c.now().After(ent.expiry) {
		c.order.Remove(el)
		delete(c.items, key)
		c.misses++
		return nil, false
	}
	c.order.MoveToBack(el)
	c.hits++
	return ent.value, true
}

// Set stores value under key with the default TTL.
func (c *Cache) Set(key string, value any) {
	c.SetTTL(key, value, c.defaultTTL)
}

// SetTTL stores value under key with an explicit TTL. Replacing an existing
// key removes and reinserts it, making it most recently used. Inserting a new
// key when the cache is full evicts the least recently used entry first.
func (c *Cache) SetTTL(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.order.Remove(el)
		delete(c.items, key)
	} else if len(c.items) >= c.maxSize {
		if oldest := c.order.Front(); oldest != nil {
			delete(c.items, oldest.Value.(*entry).key)
			c.order.Remove(oldest)
		}
	}

	ent := &entry{key: key, value: value, expiry: c.now().Add(ttl)}
	c.items[key] = c.order.PushBack(ent)
}

// Clear drops all entries and resets the hit/miss counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.order.Init()
	c.hits, c.misses = 0, 0
}

// Stats reports current cache metrics. HitRate is 0 when no lookups have
// happened yet.
func (c *Cache) Stats() models.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := models.CacheStats{
		Size:    len(c.items),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	return stats
}
