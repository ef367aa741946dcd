// Package api exposes scraping over HTTP and streams progress over WebSocket
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/law-makers/shopscrape/internal/catalog"
	"github.com/law-makers/shopscrape/internal/config"
	"github.com/law-makers/shopscrape/internal/progress"
	"github.com/law-makers/shopscrape/internal/ratelimit"
	"github.com/law-makers/shopscrape/internal/scraper"
	"github.com/law-makers/shopscrape/pkg/models"
	"github.com/rs/zerolog/log"
)

// APIVersion is the path segment every route is mounted under
const APIVersion = "v1"

const (
	// scrape routes get a much tighter budget than the rest of the API
	scrapeRateRPS = 10.0 / (5 * 60)
	scrapeBurst   = 10

	limiterSweepInterval = 5 * time.Minute
	limiterIdle          = time.Hour
)

// Scraper runs search and category scrapes
type Scraper interface {
	Search(ctx context.Context, term string, opts models.ScrapeOptions, sink progress.Sink) (*scraper.Result, error)
	Category(ctx context.Context, path string, opts models.ScrapeOptions, sink progress.Sink) (*scraper.Result, error)
	Tree() catalog.Tree
	CanPersist() bool
}

// PoolStatter reports browser pool occupancy
type PoolStatter interface {
	Stats() models.PoolStats
}

// Options configures a Server
type Options struct {
	Version        string
	APIKey         string
	RateLimitRPS   float64
	RateLimitBurst int
	CORSOrigins    []string
	// RequestTimeout bounds a single scrape request
	RequestTimeout time.Duration
}

// Server is the HTTP API
type Server struct {
	handlers *Handlers
	general  *ratelimit.KeyedLimiter
	scrape   *ratelimit.KeyedLimiter
	router   chi.Router
	opts     Options
}

// New builds the router. ws serves the WebSocket progress stream and sink
// receives the progress of every scrape started through the API.
func New(s Scraper, pool PoolStatter, ws http.Handler, sink progress.Sink, opts Options) *Server {
	if opts.RateLimitRPS <= 0 {
		opts.RateLimitRPS = config.DefaultAPIRateLimitRPS
	}
	if opts.RateLimitBurst < 1 {
		opts.RateLimitBurst = config.DefaultAPIRateLimitBurst
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = config.DefaultHTTPTimeout
	}

	srv := &Server{
		handlers: NewHandlers(s, pool, sink, opts.Version),
		general:  ratelimit.NewKeyedLimiter(opts.RateLimitRPS, opts.RateLimitBurst),
		scrape:   ratelimit.NewKeyedLimiter(scrapeRateRPS, scrapeBurst),
		opts:     opts,
	}
	srv.router = srv.routes(ws)
	return srv
}

func (s *Server) routes(ws http.Handler) chi.Router {
	h := s.handlers
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestContext)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-RapidAPI-Key"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))
	r.Use(rateLimit(s.general, "Too many requests from this IP, please try again later.", "15 minutes"))

	r.Get("/", h.Index)
	if ws != nil {
		r.Handle("/ws", ws)
	}

	r.Route("/api/"+APIVersion, func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/categories", h.Categories)
		if ws != nil {
			r.Handle("/ws", ws)
		}

		r.Route("/products", func(r chi.Router) {
			r.Use(rateLimit(s.scrape, "Scraping rate limit exceeded. Please try again later.", "5 minutes"))
			r.Use(apiKeyAuth(s.opts.APIKey))
			r.Use(middleware.Timeout(s.opts.RequestTimeout))
			r.Post("/search", h.SearchProducts)
			r.Post("/category", h.CategoryProducts)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(apiKeyAuth(s.opts.APIKey))
			r.Get("/pool-stats", h.PoolStats)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.respondJSON(w, http.StatusNotFound, errorResponse{Success: false, Error: "not found"})
	})

	return r
}

// Handler returns the router
func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	s.general.StartSweeper(ctx, limiterSweepInterval, limiterIdle)
	s.scrape.StartSweeper(ctx, limiterSweepInterval, limiterIdle)

	server := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Str("version", s.opts.Version).Msg("API server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.DefaultShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Msg("API server stopped")
	return nil
}
