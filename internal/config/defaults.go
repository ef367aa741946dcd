package config

import "time"

// Default constants for application configuration
const (
	DefaultLogLevel    = "info"
	DefaultJSONLog     = false
	DefaultUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	DefaultHTTPTimeout = 5 * time.Minute
	DefaultEnvFile     = ".env"
	DefaultBaseURL     = "https://www.asos.com"

	// Browser pool
	DefaultBrowserHeadless      = true
	DefaultPoolMin              = 2
	DefaultPoolMax              = 5
	DefaultMaxPoolMax           = 20
	DefaultAcquireTimeout       = 30 * time.Second
	DefaultAcquireRetryInterval = 1 * time.Second

	// Page timeouts
	DefaultNavigationTimeout = 60 * time.Second
	DefaultSelectorTimeout   = 15 * time.Second
	DefaultLoadMoreClicks    = 10
	DefaultSettleMin         = 1 * time.Second
	DefaultSettleMax         = 2 * time.Second

	// Batch runs
	DefaultBatchDelayMin  = 2 * time.Second
	DefaultBatchDelayMax  = 4 * time.Second
	DefaultConcurrency    = 5
	DefaultMaxConcurrency = 10
	DefaultLimit          = 5
	DefaultMaxLimit       = 50

	// Politeness toward the scraped origin
	DefaultOriginRateLimitRPS   = 2.0
	DefaultOriginRateLimitBurst = 5

	// HTTP API
	DefaultListenAddr        = ":3000"
	DefaultAPIRateLimitRPS   = 100.0 / (15 * 60)
	DefaultAPIRateLimitBurst = 100
	DefaultShutdownTimeout   = 30 * time.Second

	// Redis progress stream
	DefaultRedisStream       = "shopscrape:progress"
	DefaultRedisStreamMaxLen = 10000

	// Listing cache
	DefaultListingCacheTTL        = 10 * time.Minute
	DefaultListingCacheMaxEntries = 256

	// Persistence
	DefaultPersistAttempts = 2
)
