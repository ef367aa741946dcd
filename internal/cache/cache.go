// internal/cache/cache.go
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Cache stores the product links discovered on a listing page.
//
// Keys are listing URLs plus the selection that produced them, see Key.
type Cache interface {
	// Get returns the cached links for key and whether they were found.
	Get(ctx context.Context, key string) ([]string, bool)

	// Set stores links under key for ttl. Existing entries are replaced.
	Set(ctx context.Context, key string, links []string, ttl time.Duration) error

	// Delete removes key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// Close stops background work held by the cache.
	Close()
}

// Key builds a cache key for a listing URL. Full listings (after clicking
// "load more") are cached separately from the first page.
func Key(listingURL string, loadAll bool) string {
	if loadAll {
		return listingURL + "::all"
	}
	return listingURL
}

type cacheEntry struct {
	Links     []string
	ExpiresAt time.Time
	Key       string
}

// MemoryCache is an in-process LRU cache bounded by entry count
type MemoryCache struct {
	store      map[string]*list.Element
	lruList    *list.List
	mu         sync.Mutex
	maxEntries int
	defaultTTL time.Duration
	now        func() time.Time
	ctx        context.Context
	cancel     context.CancelFunc
	hits       uint64
	misses     uint64
}

// NewMemoryCache creates a MemoryCache holding at most maxEntries listings
func NewMemoryCache(maxEntries int, defaultTTL time.Duration) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = 256
	}
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())

	mc := &MemoryCache{
		store:      make(map[string]*list.Element),
		lruList:    list.New(),
		maxEntries: maxEntries,
		defaultTTL: defaultTTL,
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
	}

	go mc.cleanupExpired()

	return mc
}

// Get moves a live entry to the front of the LRU list
func (mc *MemoryCache) Get(_ context.Context, key string) ([]string, bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	element, exists := mc.store[key]
	if !exists {
		mc.misses++
		return nil, false
	}

	entry := element.Value.(*cacheEntry)
	if mc.now().After(entry.ExpiresAt) {
		mc.misses++
		mc.removeElement(element)
		return nil, false
	}

	mc.lruList.MoveToFront(element)
	mc.hits++

	log.Debug().Str("key", key).Int("links", len(entry.Links)).Msg("Listing cache hit")
	return append([]string(nil), entry.Links...), true
}

// Set stores links, evicting the least recently used entry when full
func (mc *MemoryCache) Set(_ context.Context, key string, links []string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = mc.defaultTTL
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	entry := &cacheEntry{
		Links:     append([]string(nil), links...),
		ExpiresAt: mc.now().Add(ttl),
		Key:       key,
	}

	if element, exists := mc.store[key]; exists {
		element.Value = entry
		mc.lruList.MoveToFront(element)
		return nil
	}

	for mc.lruList.Len() >= mc.maxEntries {
		mc.evictLRU()
	}

	mc.store[key] = mc.lruList.PushFront(entry)

	log.Debug().
		Str("key", key).
		Dur("ttl", ttl).
		Int("links", len(links)).
		Msg("Cached listing")

	return nil
}

// Delete removes a cached listing
func (mc *MemoryCache) Delete(_ context.Context, key string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if element, exists := mc.store[key]; exists {
		mc.removeElement(element)
	}
	return nil
}

// Close stops the background cleanup goroutine
func (mc *MemoryCache) Close() {
	mc.cancel()
}

// Len returns the number of cached listings, expired ones included
func (mc *MemoryCache) Len() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.lruList.Len()
}

// Stats is a snapshot of cache effectiveness
type Stats struct {
	Entries    int
	MaxEntries int
	Hits       uint64
	Misses     uint64
}

// HitRate is the share of lookups served from the cache, 0 when unused
func (s Stats) HitRate() float64 {
	if total := s.Hits + s.Misses; total > 0 {
		return float64(s.Hits) / float64(total)
	}
	return 0
}

// Stats returns hit and miss counters since creation
func (mc *MemoryCache) Stats() Stats {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return Stats{
		Entries:    mc.lruList.Len(),
		MaxEntries: mc.maxEntries,
		Hits:       mc.hits,
		Misses:     mc.misses,
	}
}

// must be called with lock held
func (mc *MemoryCache) evictLRU() {
	element := mc.lruList.Back()
	if element == nil {
		return
	}
	log.Debug().Str("key", element.Value.(*cacheEntry).Key).Msg("Evicted listing (LRU)")
	mc.removeElement(element)
}

// must be called with lock held
func (mc *MemoryCache) removeElement(element *list.Element) {
	entry := element.Value.(*cacheEntry)
	mc.lruList.Remove(element)
	delete(mc.store, entry.Key)
}

func (mc *MemoryCache) purgeExpired() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	now := mc.now()
	var next *list.Element
	for element := mc.lruList.Front(); element != nil; element = next {
		next = element.Next()
		if now.After(element.Value.(*cacheEntry).ExpiresAt) {
			mc.removeElement(element)
		}
	}
}

func (mc *MemoryCache) cleanupExpired() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			mc.purgeExpired()
		case <-mc.ctx.Done():
			return
		}
	}
}
