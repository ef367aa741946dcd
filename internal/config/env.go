package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// EnvPrefix prefixes every environment variable the loader reads
const EnvPrefix = "SHOPSCRAPE_"

// loadEnvFile loads path into the process environment without overriding
// variables that are already set. A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	log.Debug().Str("path", path).Msg("Loaded environment file")
	return nil
}

func applyEnv(cfg *Config) error {
	var errs []error
	str := func(name string, dst *string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	integer := func(name string, dst *int) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	float := func(name string, dst *float64) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = f
		}
	}
	boolean := func(name string, dst *bool) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}
	duration := func(name string, dst *time.Duration) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}

	str("LOG_LEVEL", &cfg.LogLevel)
	boolean("JSON_LOG", &cfg.JSONLog)
	str("USER_AGENT", &cfg.UserAgent)
	str("CHROME_PATH", &cfg.ChromePath)
	boolean("HEADLESS", &cfg.BrowserHeadless)
	str("BASE_URL", &cfg.BaseURL)
	integer("POOL_MIN", &cfg.PoolMin)
	integer("POOL_MAX", &cfg.PoolMax)
	duration("ACQUIRE_TIMEOUT", &cfg.AcquireTimeout)
	duration("NAVIGATION_TIMEOUT", &cfg.NavigationTimeout)
	duration("SELECTOR_TIMEOUT", &cfg.SelectorTimeout)
	integer("LOAD_MORE_CLICKS", &cfg.LoadMoreClicks)
	duration("BATCH_DELAY_MIN", &cfg.BatchDelayMin)
	duration("BATCH_DELAY_MAX", &cfg.BatchDelayMax)
	integer("CONCURRENCY", &cfg.Concurrency)
	integer("MAX_CONCURRENCY", &cfg.MaxConcurrency)
	integer("LIMIT", &cfg.Limit)
	integer("MAX_LIMIT", &cfg.MaxLimit)
	float("ORIGIN_RPS", &cfg.OriginRateLimitRPS)
	integer("ORIGIN_BURST", &cfg.OriginRateLimitBurst)
	str("LISTEN_ADDR", &cfg.ListenAddr)
	duration("HTTP_TIMEOUT", &cfg.HTTPTimeout)
	str("API_KEY", &cfg.APIKey)
	float("API_RPS", &cfg.APIRateLimitRPS)
	integer("API_BURST", &cfg.APIRateLimitBurst)
	str("DATABASE_DSN", &cfg.DatabaseDSN)
	integer("PERSIST_ATTEMPTS", &cfg.PersistAttempts)
	str("REDIS_URL", &cfg.RedisURL)
	str("REDIS_STREAM", &cfg.RedisStream)
	duration("LISTING_CACHE_TTL", &cfg.ListingCacheTTL)
	integer("LISTING_CACHE_MAX_ENTRIES", &cfg.ListingCacheMaxEntries)

	// header values may contain commas
	if v := os.Getenv(EnvPrefix + "HEADERS"); v != "" {
		for _, h := range strings.Split(v, "|") {
			if h = strings.TrimSpace(h); h != "" {
				cfg.Headers = append(cfg.Headers, h)
			}
		}
	}
	if v := os.Getenv(EnvPrefix + "CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitList(v)
	}
	if v := os.Getenv(EnvPrefix + "REDIS_STREAM_MAXLEN"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sREDIS_STREAM_MAXLEN: %w", EnvPrefix, err))
		} else {
			cfg.RedisStreamMaxLen = n
		}
	}

	return errors.Join(errs...)
}
