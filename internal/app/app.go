// Package app provides the core application initialization and lifecycle management.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/law-makers/shopscrape/internal/browser"
	"github.com/law-makers/shopscrape/internal/cache"
	"github.com/law-makers/shopscrape/internal/catalog"
	"github.com/law-makers/shopscrape/internal/config"
	"github.com/law-makers/shopscrape/internal/engine/batch"
	"github.com/law-makers/shopscrape/internal/extract"
	"github.com/law-makers/shopscrape/internal/progress"
	"github.com/law-makers/shopscrape/internal/ratelimit"
	"github.com/law-makers/shopscrape/internal/scraper"
	"github.com/law-makers/shopscrape/internal/store"
	"github.com/law-makers/shopscrape/internal/utils/headers"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Version is reported by the CLI and the health endpoint
const Version = "1.0.0"

const redisPingTimeout = 5 * time.Second

// Application holds all application dependencies and manages their lifecycle.
//
// It is created once per CLI command (or once for the server) and shared by
// the handlers. Use Close() to release browsers and connections.
type Application struct {
	Config      *config.Config
	Logger      *zerolog.Logger
	Cache       cache.Cache
	BrowserPool *browser.Pool
	RateLimiter ratelimit.RateLimiter
	Listing     *catalog.ListingScraper
	Extractor   *extract.ProductExtractor
	Store       *store.Postgres
	Hub         *progress.Hub
	Scraper     *scraper.Service

	redis     *redis.Client
	redisSink *progress.RedisSink
	startTime time.Time
}

// New creates an Application with all dependencies wired.
//
// Browsers are not launched here; the pool starts on WarmUp or on the first
// scrape. Redis and Postgres are optional: when configured but unreachable a
// warning is logged and the application runs without them.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	extraHeaders, err := headers.Parse(cfg.Headers)
	if err != nil {
		return nil, err
	}

	logger := SetupLogging(cfg, os.Stderr)

	a := &Application{
		Config:    cfg,
		Logger:    &logger,
		Hub:       progress.NewHub(),
		startTime: time.Now(),
	}

	if cfg.RedisURL != "" {
		client, err := connectRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("Redis unavailable, using in-memory cache and no progress stream")
		} else {
			a.redis = client
			a.redisSink = progress.NewRedisSink(client, cfg.RedisStream, cfg.RedisStreamMaxLen)
			logger.Debug().Str("stream", cfg.RedisStream).Msg("Redis connected")
		}
	}

	if a.redis != nil {
		a.Cache = cache.NewRedisCache(a.redis, "", cfg.ListingCacheTTL)
	} else {
		a.Cache = cache.NewMemoryCache(cfg.ListingCacheMaxEntries, cfg.ListingCacheTTL)
	}
	logger.Debug().
		Bool("redis", a.redis != nil).
		Dur("ttl", cfg.ListingCacheTTL).
		Msg("Listing cache initialized")

	a.RateLimiter = ratelimit.NewDomainLimiter(cfg.OriginRateLimitRPS, cfg.OriginRateLimitBurst)
	logger.Debug().
		Float64("origin_rps", cfg.OriginRateLimitRPS).
		Int("origin_burst", cfg.OriginRateLimitBurst).
		Msg("Rate limiter initialized")

	launcher := browser.NewChromeLauncher(browser.ChromeOptions{
		ExecPath:  cfg.ChromePath,
		Headless:  cfg.BrowserHeadless,
		UserAgent: cfg.UserAgent,
	})
	a.BrowserPool = browser.NewPool(launcher, browser.PoolOptions{
		Min:            cfg.PoolMin,
		Max:            cfg.PoolMax,
		AcquireTimeout: cfg.AcquireTimeout,
	})

	a.Listing = catalog.NewListingScraper(catalog.ListingOptions{
		NavigationTimeout: cfg.NavigationTimeout,
		SelectorTimeout:   cfg.SelectorTimeout,
		LoadMoreClicks:    cfg.LoadMoreClicks,
		CacheTTL:          cfg.ListingCacheTTL,
		SettleMin:         config.DefaultSettleMin,
		SettleMax:         config.DefaultSettleMax,
		Headers:           extraHeaders,
	}, a.Cache, a.RateLimiter)

	a.Extractor = extract.New(extract.Options{
		NavigationTimeout: cfg.NavigationTimeout,
		SelectorTimeout:   cfg.SelectorTimeout,
		SettleMin:         config.DefaultSettleMin,
		SettleMax:         config.DefaultSettleMax,
		Headers:           extraHeaders,
	}, a.RateLimiter)

	var persister store.Persister
	if cfg.DatabaseDSN != "" {
		pg, err := store.Open(ctx, cfg.DatabaseDSN, cfg.PersistAttempts)
		if err != nil {
			logger.Warn().Err(err).Msg("Database unavailable, products will not be saved")
		} else {
			a.Store = pg
			persister = pg
			logger.Debug().Msg("Database connected")
		}
	}

	a.Scraper = scraper.New(a.BrowserPool, a.Listing, a.Extractor, persister, catalog.Default, scraper.Options{
		BaseURL:            cfg.BaseURL,
		DefaultLimit:       cfg.Limit,
		MaxLimit:           cfg.MaxLimit,
		DefaultConcurrency: cfg.Concurrency,
		MaxConcurrency:     cfg.MaxConcurrency,
		Batch: batch.Options{
			DelayMin: cfg.BatchDelayMin,
			DelayMax: cfg.BatchDelayMax,
		},
	})

	logger.Info().
		Int("pool_min", cfg.PoolMin).
		Int("pool_max", cfg.PoolMax).
		Bool("persistence", a.Store != nil).
		Msg("Application initialized successfully")
	return a, nil
}

// SetupLogging configures the global zerolog logger from cfg and returns it.
// Console output is used unless JSON logging is enabled.
func SetupLogging(cfg *config.Config, w io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel
	switch cfg.LogLevel {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)

	if !cfg.JSONLog {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()

	log.Logger.Debug().
		Str("level", cfg.LogLevel).
		Bool("json", cfg.JSONLog).
		Msg("Logger initialized")
	return log.Logger
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// Sink returns the progress sink for a run: structured logs, WebSocket
// clients, the Redis stream when connected, plus any extra sinks.
func (a *Application) Sink(extra ...progress.Sink) progress.Sink {
	sinks := progress.Multi{progress.LogSink{}, a.Hub}
	if a.redisSink != nil {
		sinks = append(sinks, a.redisSink)
	}
	return append(sinks, extra...)
}

// WarmUp launches the pool's minimum browsers
func (a *Application) WarmUp(ctx context.Context) error {
	return a.BrowserPool.Initialize(ctx)
}

// Close gracefully shuts down the application and all its resources.
//
// It performs the following cleanup steps in order:
//   - Disconnects WebSocket clients
//   - Closes every browser in the pool
//   - Flushes the Redis progress stream
//   - Closes the cache, Redis and the database
//
// Any errors during shutdown are logged but do not prevent other shutdown steps.
func (a *Application) Close(ctx context.Context) error {
	a.Logger.Info().Msg("Shutting down application")

	if a.Hub != nil {
		a.Hub.Close()
	}

	done := make(chan error, 1)
	go func() { done <- a.BrowserPool.Teardown() }()
	select {
	case err := <-done:
		if err != nil {
			a.Logger.Warn().Err(err).Msg("Error closing browser pool")
		}
	case <-ctx.Done():
		a.Logger.Warn().Err(ctx.Err()).Msg("Browser pool did not close in time")
	}

	if a.redisSink != nil {
		_ = a.redisSink.Close()
	}
	if mc, ok := a.Cache.(*cache.MemoryCache); ok {
		st := mc.Stats()
		a.Logger.Debug().
			Int("entries", st.Entries).
			Uint64("hits", st.Hits).
			Uint64("misses", st.Misses).
			Float64("hit_rate", st.HitRate()).
			Msg("Listing cache stats")
	}
	if a.Cache != nil {
		a.Cache.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Error closing redis client")
		}
	}
	if a.Store != nil {
		a.Store.Close()
	}

	a.Logger.Info().Dur("uptime", a.Uptime()).Msg("Application shutdown complete")
	return nil
}

// Uptime returns how long the application has been running.
func (a *Application) Uptime() time.Duration {
	return time.Since(a.startTime)
}
