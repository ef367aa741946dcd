package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/law-makers/shopscrape/internal/credentials"
	"github.com/spf13/cobra"
)

// Config holds application configuration values
type Config struct {
	// Logging
	LogLevel string
	JSONLog  bool

	// Browser
	UserAgent       string
	ChromePath      string
	BrowserHeadless bool
	BaseURL         string
	// Headers are "Key: Value" lines sent with every page request
	Headers         []string

	// Browser pool
	PoolMin        int
	PoolMax        int
	AcquireTimeout time.Duration

	// Page timeouts
	NavigationTimeout time.Duration
	SelectorTimeout   time.Duration
	LoadMoreClicks    int

	// Batch runs
	BatchDelayMin  time.Duration
	BatchDelayMax  time.Duration
	Concurrency    int
	MaxConcurrency int
	Limit          int
	MaxLimit       int

	// Rate limiting toward the scraped origin
	OriginRateLimitRPS   float64
	OriginRateLimitBurst int

	// HTTP API
	ListenAddr        string
	HTTPTimeout       time.Duration
	APIKey            string
	APIRateLimitRPS   float64
	APIRateLimitBurst int
	CORSOrigins       []string

	// Persistence and fan-out
	DatabaseDSN       string
	PersistAttempts   int
	RedisURL          string
	RedisStream       string
	RedisStreamMaxLen int64

	// Listing cache
	ListingCacheTTL        time.Duration
	ListingCacheMaxEntries int
}

// SecretSource resolves named secrets, e.g. from the OS keyring
type SecretSource interface {
	Lookup(name string) string
}

// Default returns a Config populated with defaults only
func Default() *Config {
	return &Config{
		LogLevel:               DefaultLogLevel,
		JSONLog:                DefaultJSONLog,
		UserAgent:              DefaultUserAgent,
		BrowserHeadless:        DefaultBrowserHeadless,
		BaseURL:                DefaultBaseURL,
		PoolMin:                DefaultPoolMin,
		PoolMax:                DefaultPoolMax,
		AcquireTimeout:         DefaultAcquireTimeout,
		NavigationTimeout:      DefaultNavigationTimeout,
		SelectorTimeout:        DefaultSelectorTimeout,
		LoadMoreClicks:         DefaultLoadMoreClicks,
		BatchDelayMin:          DefaultBatchDelayMin,
		BatchDelayMax:          DefaultBatchDelayMax,
		Concurrency:            DefaultConcurrency,
		MaxConcurrency:         DefaultMaxConcurrency,
		Limit:                  DefaultLimit,
		MaxLimit:               DefaultMaxLimit,
		OriginRateLimitRPS:     DefaultOriginRateLimitRPS,
		OriginRateLimitBurst:   DefaultOriginRateLimitBurst,
		ListenAddr:             DefaultListenAddr,
		HTTPTimeout:            DefaultHTTPTimeout,
		APIRateLimitRPS:        DefaultAPIRateLimitRPS,
		APIRateLimitBurst:      DefaultAPIRateLimitBurst,
		CORSOrigins:            []string{"*"},
		PersistAttempts:        DefaultPersistAttempts,
		RedisStream:            DefaultRedisStream,
		RedisStreamMaxLen:      DefaultRedisStreamMaxLen,
		ListingCacheTTL:        DefaultListingCacheTTL,
		ListingCacheMaxEntries: DefaultListingCacheMaxEntries,
	}
}

// Load builds a Config by combining defaults, an optional .env file,
// SHOPSCRAPE_* environment variables, stored credentials and CLI flags.
// Caller should pass the root *cobra.Command so flags can be read.
func Load(cmd *cobra.Command) (*Config, error) {
	return LoadWith(cmd, credentials.NewStore())
}

// LoadWith is Load with an explicit secret source. secrets may be nil.
func LoadWith(cmd *cobra.Command, secrets SecretSource) (*Config, error) {
	cfg := Default()

	envFile := DefaultEnvFile
	if cmd != nil {
		if f := cmd.Flags().Lookup("env-file"); f != nil && f.Value.String() != "" {
			envFile = f.Value.String()
		}
	}
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}

	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	if secrets != nil {
		if cfg.DatabaseDSN == "" {
			cfg.DatabaseDSN = secrets.Lookup(credentials.DatabaseDSN)
		}
		if cfg.APIKey == "" {
			cfg.APIKey = secrets.Lookup(credentials.APIKey)
		}
		if cfg.RedisURL == "" {
			cfg.RedisURL = secrets.Lookup(credentials.RedisURL)
		}
	}

	if cmd != nil {
		if err := applyFlags(cmd, cfg); err != nil {
			return nil, fmt.Errorf("invalid flag: %w", err)
		}
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func applyFlags(cmd *cobra.Command, cfg *Config) error {
	flags := cmd.Flags()

	if f := flags.Lookup("user-agent"); f != nil && f.Value.String() != "" {
		cfg.UserAgent = f.Value.String()
	}
	if f := flags.Lookup("chrome-path"); f != nil && f.Value.String() != "" {
		cfg.ChromePath = f.Value.String()
	}
	if f := flags.Lookup("headful"); f != nil && f.Value.String() == "true" {
		cfg.BrowserHeadless = false
	}
	if f := flags.Lookup("json"); f != nil && f.Value.String() == "true" {
		cfg.JSONLog = true
	}
	if f := flags.Lookup("verbose"); f != nil && f.Value.String() == "true" {
		cfg.LogLevel = "debug"
	}
	if f := flags.Lookup("quiet"); f != nil && f.Value.String() == "true" {
		cfg.LogLevel = "error"
	}

	if f := flags.Lookup("timeout"); f != nil && f.Changed {
		d, err := time.ParseDuration(f.Value.String())
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		cfg.HTTPTimeout = d
	}
	if f := flags.Lookup("pool-min"); f != nil && f.Changed {
		n, err := flags.GetInt("pool-min")
		if err != nil {
			return err
		}
		cfg.PoolMin = n
	}
	if f := flags.Lookup("pool-max"); f != nil && f.Changed {
		n, err := flags.GetInt("pool-max")
		if err != nil {
			return err
		}
		cfg.PoolMax = n
	}
	if f := flags.Lookup("header"); f != nil && f.Changed {
		hdrs, err := flags.GetStringArray("header")
		if err != nil {
			return err
		}
		cfg.Headers = append(cfg.Headers, hdrs...)
	}
	return nil
}

// splitList splits a comma-separated value, dropping empty entries
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
