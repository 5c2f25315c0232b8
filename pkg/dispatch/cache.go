package dispatch

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type cacheEntry struct {
	value     any
	expiresAt time.Time
}

// resultCache is a bounded, TTL-expiring cache over an LRU eviction
// policy: hashicorp/golang-lru/v2 handles capacity, expiry is checked on
// read so a stale-but-still-resident entry is treated as a miss.
type resultCache struct {
	ttl time.Duration
	mu  sync.Mutex
	lru *lru.Cache[string, cacheEntry]
}

func newResultCache(size int, ttl time.Duration) *resultCache {
	c, _ := lru.New[string, cacheEntry](size)
	return &resultCache{ttl: ttl, lru: c}
}

func (c *resultCache) get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		c.lru.Remove(key)
		return nil, false
	}
	return entry.value, true
}

func (c *resultCache) put(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, cacheEntry{value: value, expiresAt: time.Now().Add(c.ttl)})
}

// argsDigest computes a stable hash of a task's arguments, independent
// of Go map iteration order, for use as part of the dispatch cache key.
func argsDigest(args map[string]any) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make([]any, 0, len(keys)*2)
	for _, k := range keys {
		ordered = append(ordered, k, args[k])
	}

	data, _ := json.Marshal(ordered)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:16])
}
