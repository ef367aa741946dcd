// internal/ratelimit/limiter.go
package ratelimit

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter paces requests toward a scraped origin.
//
// Implementations key their buckets by host so that listing pages and
// product pages on the same shop share one budget.
type RateLimiter interface {
	// Wait blocks until a request for the given URL can proceed.
	// If the context is cancelled first, its error is returned.
	Wait(ctx context.Context, urlStr string) error

	// Allow reports whether a request for the given URL can proceed now.
	Allow(urlStr string) bool
}

// DomainLimiter provides per-host token buckets toward scraped origins
type DomainLimiter struct {
	keys *KeyedLimiter
}

// NewDomainLimiter creates a limiter allowing requestsPerSecond per host
func NewDomainLimiter(requestsPerSecond float64, burst int) *DomainLimiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 2.0
	}
	if burst <= 0 {
		burst = 5
	}
	return &DomainLimiter{keys: NewKeyedLimiter(requestsPerSecond, burst)}
}

// Wait blocks until the request for the given URL can proceed
func (dl *DomainLimiter) Wait(ctx context.Context, urlStr string) error {
	host := extractHost(urlStr)
	if host == "" {
		// Invalid URL, navigation will fail on its own
		return nil
	}
	return dl.keys.Get(host).Wait(ctx)
}

// Allow checks if a request can proceed immediately without blocking
func (dl *DomainLimiter) Allow(urlStr string) bool {
	host := extractHost(urlStr)
	if host == "" {
		return true
	}
	return dl.keys.Allow(host)
}

// SetLimit overrides the rate for a single host
func (dl *DomainLimiter) SetLimit(host string, requestsPerSecond float64, burst int) {
	l := dl.keys.Get(host)
	l.SetLimit(rate.Limit(requestsPerSecond))
	l.SetBurst(burst)
}

type keyedEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedLimiter holds one token bucket per key (API key, client IP, host).
// Idle entries are removed by Sweep.
type KeyedLimiter struct {
	mu       sync.Mutex
	limiters map[string]*keyedEntry
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

// NewKeyedLimiter creates a KeyedLimiter with the given per-key rate and burst
func NewKeyedLimiter(requestsPerSecond float64, burst int) *KeyedLimiter {
	return &KeyedLimiter{
		limiters: make(map[string]*keyedEntry),
		limit:    rate.Limit(requestsPerSecond),
		burst:    burst,
		now:      time.Now,
	}
}

// Get returns the bucket for key, creating it on first use
func (kl *KeyedLimiter) Get(key string) *rate.Limiter {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	entry, ok := kl.limiters[key]
	if !ok {
		entry = &keyedEntry{limiter: rate.NewLimiter(kl.limit, kl.burst)}
		kl.limiters[key] = entry
	}
	entry.lastSeen = kl.now()
	return entry.limiter
}

// Allow consumes one token for key if available
func (kl *KeyedLimiter) Allow(key string) bool {
	return kl.Get(key).Allow()
}

// Len returns the number of tracked keys
func (kl *KeyedLimiter) Len() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.limiters)
}

// Sweep drops entries not used within idle and returns how many were removed
func (kl *KeyedLimiter) Sweep(idle time.Duration) int {
	cutoff := kl.now().Add(-idle)

	kl.mu.Lock()
	defer kl.mu.Unlock()

	removed := 0
	for key, entry := range kl.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(kl.limiters, key)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep every interval until ctx is done
func (kl *KeyedLimiter) StartSweeper(ctx context.Context, interval, idle time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				kl.Sweep(idle)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func extractHost(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return u.Host
}
