// Package cache memoizes full retrieval results per query and context
// key. The cache sits in front of the whole pipeline; it is never
// consulted between the hops of a single query.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/skirmishlab/rulehound/internal/core/domain"
)

type RetrievalCache struct {
	store      *gocache.Cache
	maxEntries int

	mu    sync.Mutex
	order []string // insertion order, oldest first
}

func New(ttl time.Duration, maxEntries int) *RetrievalCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if maxEntries <= 0 {
		maxEntries = 128
	}
	return &RetrievalCache{
		store:      gocache.New(ttl, ttl),
		maxEntries: maxEntries,
	}
}

func (c *RetrievalCache) Get(query, contextKey string) (*domain.RetrievalResult, bool) {
	value, ok := c.store.Get(cacheKey(query, contextKey))
	if !ok {
		return nil, false
	}
	result, ok := value.(*domain.RetrievalResult)
	return result, ok
}

func (c *RetrievalCache) Set(query, contextKey string, result *domain.RetrievalResult) {
	if result == nil {
		return
	}
	key := cacheKey(query, contextKey)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropFromOrderLocked(key)
	c.evictOldestLocked()
	c.store.SetDefault(key, result)
	c.order = append(c.order, key)
}

// dropFromOrderLocked removes a key's previous position so an overwrite
// does not leave a stale duplicate in the eviction order.
func (c *RetrievalCache) dropFromOrderLocked(key string) {
	for i, existing := range c.order {
		if existing == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// Invalidate drops every cached result that references the given document
// source.
func (c *RetrievalCache) Invalidate(documentSource string) {
	if documentSource == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, item := range c.store.Items() {
		result, ok := item.Object.(*domain.RetrievalResult)
		if !ok {
			continue
		}
		if resultReferences(result, documentSource) {
			c.store.Delete(key)
		}
	}
}

// evictOldestLocked makes room for one more entry. Keys in the order list
// may already have expired; those are skipped for free.
func (c *RetrievalCache) evictOldestLocked() {
	for c.store.ItemCount() >= c.maxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		c.store.Delete(oldest)
	}
}

func resultReferences(result *domain.RetrievalResult, source string) bool {
	for _, chunk := range result.Context.Chunks {
		if chunk.Source == source {
			return true
		}
	}
	return false
}

func cacheKey(query, contextKey string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	sum := sha256.Sum256([]byte(normalized + "||" + contextKey))
	return hex.EncodeToString(sum[:])
}
