package config

import (
	"fmt"
	"net/url"
)

func validate(c *Config) error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log level must be one of debug, info, warn, error")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be > 0")
	}
	if c.PoolMax <= 0 || c.PoolMax > DefaultMaxPoolMax {
		return fmt.Errorf("pool max must be between 1 and %d", DefaultMaxPoolMax)
	}
	if c.PoolMin < 0 || c.PoolMin > c.PoolMax {
		return fmt.Errorf("pool min must be between 0 and pool max (%d)", c.PoolMax)
	}
	if c.AcquireTimeout <= 0 {
		return fmt.Errorf("acquire timeout must be > 0")
	}
	if c.NavigationTimeout <= 0 || c.SelectorTimeout <= 0 {
		return fmt.Errorf("navigation and selector timeouts must be > 0")
	}
	if c.BatchDelayMin < 0 || c.BatchDelayMax < c.BatchDelayMin {
		return fmt.Errorf("batch delay range is invalid (%s..%s)", c.BatchDelayMin, c.BatchDelayMax)
	}
	if c.MaxConcurrency < 1 || c.MaxLimit < 1 {
		return fmt.Errorf("max concurrency and max limit must be >= 1")
	}
	if c.Concurrency < 1 || c.Concurrency > c.MaxConcurrency {
		return fmt.Errorf("concurrency must be between 1 and %d", c.MaxConcurrency)
	}
	if c.Limit < 1 || c.Limit > c.MaxLimit {
		return fmt.Errorf("limit must be between 1 and %d", c.MaxLimit)
	}
	if c.OriginRateLimitRPS <= 0 || c.OriginRateLimitBurst < 1 {
		return fmt.Errorf("origin rate limit must be > 0 with burst >= 1")
	}
	if c.APIRateLimitRPS <= 0 || c.APIRateLimitBurst < 1 {
		return fmt.Errorf("api rate limit must be > 0 with burst >= 1")
	}
	if c.PersistAttempts < 1 {
		return fmt.Errorf("persist attempts must be >= 1")
	}
	if c.ListingCacheMaxEntries < 0 {
		return fmt.Errorf("listing cache size must be >= 0")
	}
	if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base url %q must be absolute", c.BaseURL)
	}
	return nil
}
