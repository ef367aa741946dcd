// Package scraper runs search and category scrapes: it leases a browser,
// discovers product links on the listing page, selects the ones to scrape and
// hands them to the batch orchestrator.
package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/law-makers/shopscrape/internal/browser"
	"github.com/law-makers/shopscrape/internal/catalog"
	"github.com/law-makers/shopscrape/internal/config"
	"github.com/law-makers/shopscrape/internal/engine"
	"github.com/law-makers/shopscrape/internal/engine/batch"
	"github.com/law-makers/shopscrape/internal/extract"
	"github.com/law-makers/shopscrape/internal/progress"
	"github.com/law-makers/shopscrape/internal/reqctx"
	"github.com/law-makers/shopscrape/internal/retry"
	"github.com/law-makers/shopscrape/internal/store"
	urlutil "github.com/law-makers/shopscrape/internal/utils/url"
	"github.com/law-makers/shopscrape/pkg/models"
	"github.com/rs/zerolog/log"
)

// Pool leases browsers for the duration of a run
type Pool interface {
	With(ctx context.Context, fn func(browser.Handle) error) error
}

// LinkSource discovers product links on a listing page
type LinkSource interface {
	Links(ctx context.Context, h browser.Handle, listingURL string, loadAll bool, sink progress.Sink) ([]string, error)
}

// Extractor scrapes a single product page
type Extractor interface {
	Scrape(ctx context.Context, h browser.Handle, item models.WorkItem) (*models.Product, error)
}

// Options configures a Service
type Options struct {
	BaseURL            string
	DefaultLimit       int
	MaxLimit           int
	DefaultConcurrency int
	MaxConcurrency     int
	// DiscoveryAttempts bounds retries of a listing page that timed out
	DiscoveryAttempts int
	Batch             batch.Options
}

// Service runs scrapes end to end
type Service struct {
	pool      Pool
	links     LinkSource
	extractor Extractor
	store     store.Persister
	tree      catalog.Tree
	orch      *batch.Orchestrator[*models.Product]
	opts      Options
}

// Result is the outcome of one scrape run
type Result struct {
	RunID        string               `json:"runId"`
	Mode         models.SelectionMode `json:"mode"`
	SearchTerm   string               `json:"searchTerm,omitempty"`
	CategoryPath string               `json:"categoryPath,omitempty"`
	CategoryName string               `json:"categoryName,omitempty"`
	Products     []*models.Product    `json:"products"`
	Summary      models.RunSummary    `json:"summary"`
	Duration     time.Duration        `json:"-"`
	Category     *models.CategoryInfo `json:"-"`
	Options      models.ScrapeOptions `json:"-"`
}

// New creates a Service. persister may be nil, in which case SaveToDB is ignored.
func New(pool Pool, links LinkSource, extractor Extractor, persister store.Persister, tree catalog.Tree, opts Options) *Service {
	if opts.BaseURL == "" {
		opts.BaseURL = config.DefaultBaseURL
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = config.DefaultMaxLimit
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = min(config.DefaultLimit, opts.MaxLimit)
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = config.DefaultMaxConcurrency
	}
	if opts.DefaultConcurrency <= 0 {
		opts.DefaultConcurrency = min(config.DefaultConcurrency, opts.MaxConcurrency)
	}
	if opts.DiscoveryAttempts <= 0 {
		opts.DiscoveryAttempts = 2
	}
	if tree == nil {
		tree = catalog.Default
	}

	return &Service{
		pool:      pool,
		links:     links,
		extractor: extractor,
		store:     persister,
		tree:      tree,
		orch:      batch.New[*models.Product](opts.Batch),
		opts:      opts,
	}
}

// Tree returns the category tree the service resolves paths against
func (s *Service) Tree() catalog.Tree { return s.tree }

// CanPersist reports whether a persister is configured
func (s *Service) CanPersist() bool { return s.store != nil }

// NormalizeOptions fills defaults and applies the service caps. Invalid
// ranges and modes are rejected with an ErrCodeValidation error.
func (s *Service) NormalizeOptions(opts models.ScrapeOptions) (models.ScrapeOptions, error) {
	if opts.Mode == "" {
		opts.Mode = models.ModeLimit
	}

	switch opts.Mode {
	case models.ModeLimit:
		if opts.Limit <= 0 {
			opts.Limit = s.opts.DefaultLimit
		}
		opts.Limit = min(opts.Limit, s.opts.MaxLimit)
	case models.ModeRange:
		if opts.StartIndex < 0 {
			return opts, engine.NewEngineError(engine.ErrCodeValidation, "startIndex must be >= 0", nil)
		}
		if opts.EndIndex != 0 && opts.EndIndex <= opts.StartIndex {
			return opts, engine.NewEngineError(engine.ErrCodeValidation, "endIndex must be greater than startIndex", nil).
				WithDetail("startIndex", opts.StartIndex).
				WithDetail("endIndex", opts.EndIndex)
		}
	case models.ModeFull:
	default:
		return opts, engine.NewEngineError(engine.ErrCodeValidation,
			fmt.Sprintf("unknown mode %q (want limit, range or full)", opts.Mode), nil)
	}

	if opts.Concurrency <= 0 {
		opts.Concurrency = s.opts.DefaultConcurrency
	}
	opts.Concurrency = batch.EffectiveConcurrency(opts.Concurrency, s.opts.MaxConcurrency)
	return opts, nil
}

// SelectLinks picks the links a run scrapes. Range mode takes [StartIndex,
// EndIndex) with EndIndex 0 meaning the end; indices past the end are clamped.
func SelectLinks(links []string, opts models.ScrapeOptions) []string {
	switch opts.Mode {
	case models.ModeFull:
		return links
	case models.ModeRange:
		start := min(max(opts.StartIndex, 0), len(links))
		end := len(links)
		if opts.EndIndex > 0 {
			end = min(opts.EndIndex, len(links))
		}
		if end < start {
			end = start
		}
		return links[start:end]
	default:
		return links[:min(max(opts.Limit, 0), len(links))]
	}
}

// Search scrapes the products listed for a search term
func (s *Service) Search(ctx context.Context, term string, opts models.ScrapeOptions, sink progress.Sink) (*Result, error) {
	if term == "" {
		return nil, engine.NewEngineError(engine.ErrCodeValidation, "search term is required", nil)
	}
	res := &Result{SearchTerm: term}
	return s.run(ctx, urlutil.SearchURL(s.opts.BaseURL, term), nil, opts, sink, res)
}

// Category scrapes the products listed under a dotted category path such as
// "women.clothing.tops.t-shirts"
func (s *Service) Category(ctx context.Context, path string, opts models.ScrapeOptions, sink progress.Sink) (*Result, error) {
	listingURL, info, err := s.tree.Resolve(s.opts.BaseURL, path)
	if err != nil {
		return nil, err
	}
	res := &Result{CategoryPath: path, Category: info}
	if node, err := s.tree.Lookup(path); err == nil {
		res.CategoryName = node.Name
	}
	return s.run(ctx, listingURL, info, opts, sink, res)
}

func (s *Service) run(ctx context.Context, listingURL string, category *models.CategoryInfo, opts models.ScrapeOptions, sink progress.Sink, res *Result) (*Result, error) {
	if sink == nil {
		sink = progress.Discard
	}
	opts, err := s.NormalizeOptions(opts)
	if err != nil {
		return nil, err
	}

	ctx, runID := reqctx.WithRunID(ctx)
	res.RunID = runID
	res.Mode = opts.Mode
	res.Options = opts
	start := time.Now()

	logger := log.With().
		Str("run_id", runID).
		Str("request_id", reqctx.GetRequestContext(ctx).RequestID).
		Str("listing", listingURL).
		Str("mode", string(opts.Mode)).
		Logger()
	logger.Info().Int("concurrency", opts.Concurrency).Msg("Scrape run started")

	progress.Notify(ctx, sink, models.EventInfo, models.KindPoolInit, "Acquiring browser from pool")

	err = s.pool.With(ctx, func(h browser.Handle) error {
		progress.Notify(ctx, sink, models.EventSuccess, models.KindPoolInit,
			fmt.Sprintf("Using browser %s", h.ID()))

		links, err := s.discover(ctx, h, listingURL, opts.Mode != models.ModeLimit, sink)
		if err != nil {
			return engine.NewRunAbortError("product discovery failed", err)
		}
		if len(links) == 0 {
			return engine.NewRunAbortError("listing has no product links", engine.ErrNoProducts)
		}

		selected := SelectLinks(links, opts)
		progress.Notify(ctx, sink, models.EventInfo, models.KindDiscovery,
			fmt.Sprintf("Selected %d of %d product links (%s mode)", len(selected), len(links), opts.Mode))

		items := make([]models.WorkItem, len(selected))
		for i, u := range selected {
			items[i] = models.WorkItem{URL: u, Index: i, Total: len(selected), Category: category}
		}

		scrapeOne := func(ctx context.Context, item models.WorkItem) (*models.Product, error) {
			p, err := s.extractor.Scrape(ctx, h, item)
			if err != nil || p == nil {
				return p, err
			}
			if opts.SaveToDB && s.store != nil {
				s.persist(ctx, p, sink)
			}
			return p, nil
		}

		products, summary, err := s.orch.RunWithFound(ctx, items, len(links), opts.Concurrency, scrapeOne, sink)
		res.Products = products
		res.Summary = summary
		return err
	})

	res.Duration = time.Since(start)
	if res.Products == nil {
		res.Products = []*models.Product{}
	}

	if err != nil {
		progress.Notify(ctx, sink, models.EventError, models.KindError, fmt.Sprintf("Scraping failed: %v", err))
		logger.Error().Err(err).Dur("duration", res.Duration).Msg("Scrape run failed")
		return res, err
	}

	logger.Info().
		Int("found", res.Summary.TotalFound).
		Int("successful", res.Summary.TotalSuccessful).
		Int("failed", res.Summary.TotalFailed).
		Dur("duration", res.Duration).
		Msg("Scrape run finished")
	return res, nil
}

// discover retries listing pages that failed with a retryable error
func (s *Service) discover(ctx context.Context, h browser.Handle, listingURL string, loadAll bool, sink progress.Sink) ([]string, error) {
	var links []string
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = s.opts.DiscoveryAttempts
	cfg.Retryable = engine.IsRetryable
	cfg.Sleeper = s.opts.Batch.Sleeper
	cfg.Op = "discover"

	err := retry.WithRetry(ctx, cfg, func(ctx context.Context) error {
		var err error
		links, err = s.links.Links(ctx, h, listingURL, loadAll, sink)
		return err
	})
	if err != nil {
		return nil, err
	}
	return links, nil
}

// persist saves p; failures are reported and never affect the run
func (s *Service) persist(ctx context.Context, p *models.Product, sink progress.Sink) {
	if err := s.store.Save(ctx, p); err != nil {
		err = engine.NewEngineError(engine.ErrCodePersistFailure, "failed to save product", err).
			WithDetail("url", p.ProductURL)
		log.Warn().Err(err).Str("url", p.ProductURL).Msg("Product not saved")
		progress.Notify(ctx, sink, models.EventWarning, models.KindPersist,
			fmt.Sprintf("Failed to save %s: %v", p.Name, err))
		return
	}
	progress.Notify(ctx, sink, models.EventInfo, models.KindPersist, fmt.Sprintf("Saved %s", p.Name))
}

var (
	_ Extractor  = (*extract.ProductExtractor)(nil)
	_ LinkSource = (*catalog.ListingScraper)(nil)
	_ Pool       = (*browser.Pool)(nil)
)
