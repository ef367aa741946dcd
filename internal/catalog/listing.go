package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/law-makers/shopscrape/internal/browser"
	"github.com/law-makers/shopscrape/internal/cache"
	"github.com/law-makers/shopscrape/internal/config"
	"github.com/law-makers/shopscrape/internal/engine"
	"github.com/law-makers/shopscrape/internal/progress"
	"github.com/law-makers/shopscrape/internal/ratelimit"
	urlutil "github.com/law-makers/shopscrape/internal/utils/url"
	"github.com/law-makers/shopscrape/pkg/models"
	"github.com/rs/zerolog/log"
)

// Product tile selectors, most specific first
var tileSelectors = []string{
	"li.productTile_U0clN",
	`[data-testid="product-tile"]`,
	".product-tile",
	`article[data-testid="product-tile"]`,
	".product",
	`[data-auto-id="productTile"]`,
}

// Link selectors relative to a product tile
var tileLinkSelectors = []string{
	"a.productLink_KM4PI",
	`a[href*="/prd/"]`,
	`a[data-testid="product-link"]`,
	"a",
}

// StealthScript hides the most common automation fingerprints
const StealthScript = `Object.defineProperty(navigator, 'webdriver', {get: () => false});
delete window.cdc_adoQpoasnfa76pfcZLmcfl_Array;
delete window.cdc_adoQpoasnfa76pfcZLmcfl_Promise;
delete window.cdc_adoQpoasnfa76pfcZLmcfl_Symbol;`

// PrepareTab installs the stealth script and any extra request headers
// before the tab's first navigation.
func PrepareTab(headers map[string]string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if _, err := page.AddScriptToEvaluateOnNewDocument(StealthScript).Do(ctx); err != nil {
			return err
		}
		if len(headers) == 0 {
			return nil
		}
		extra := make(network.Headers, len(headers))
		for k, v := range headers {
			extra[k] = v
		}
		if err := network.Enable().Do(ctx); err != nil {
			return err
		}
		return network.SetExtraHTTPHeaders(extra).Do(ctx)
	})
}

// clicks the first visible "load more" control, reporting whether one was found
const clickLoadMoreJS = `(() => {
  let btn = document.querySelector("a.loadButton_wWQ3F, [data-testid='load-more-button']");
  if (!btn) {
    btn = Array.from(document.querySelectorAll("a, button"))
      .find(el => /load more/i.test(el.textContent || ""));
  }
  if (!btn) return false;
  btn.click();
  return true;
})()`

// ListingOptions configures listing page discovery
type ListingOptions struct {
	NavigationTimeout time.Duration
	SelectorTimeout   time.Duration
	LoadMoreClicks    int
	CacheTTL          time.Duration
	// SettleMin and SettleMax bound the random pause after navigation and
	// after each "load more" click.
	SettleMin time.Duration
	SettleMax time.Duration
	// Headers are sent with every request from the tab
	Headers map[string]string
}

// ListingScraper collects product links from search and category pages
type ListingScraper struct {
	opts    ListingOptions
	cache   cache.Cache
	limiter ratelimit.RateLimiter
}

// NewListingScraper creates a ListingScraper. cache and limiter may be nil.
func NewListingScraper(opts ListingOptions, c cache.Cache, lim ratelimit.RateLimiter) *ListingScraper {
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = config.DefaultNavigationTimeout
	}
	if opts.SelectorTimeout <= 0 {
		opts.SelectorTimeout = config.DefaultSelectorTimeout
	}
	if opts.LoadMoreClicks <= 0 {
		opts.LoadMoreClicks = config.DefaultLoadMoreClicks
	}
	if opts.SettleMax < opts.SettleMin {
		opts.SettleMax = opts.SettleMin
	}
	return &ListingScraper{opts: opts, cache: c, limiter: lim}
}

// Links opens listingURL in a new tab of h and returns the product links on
// it. With loadAll the "load more" control is clicked until the tile count
// stops growing or LoadMoreClicks is reached.
func (s *ListingScraper) Links(ctx context.Context, h browser.Handle, listingURL string, loadAll bool, sink progress.Sink) ([]string, error) {
	key := cache.Key(listingURL, loadAll)
	if s.cache != nil {
		if links, ok := s.cache.Get(ctx, key); ok {
			progress.Notify(ctx, sink, models.EventInfo, models.KindDiscovery,
				fmt.Sprintf("Using %d cached product links for %s", len(links), listingURL))
			return links, nil
		}
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx, listingURL); err != nil {
			return nil, err
		}
	}

	tabCtx, cancel := chromedp.NewContext(h.Context())
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	// create the tab before any timeout is applied so expiry doesn't close it
	if err := chromedp.Run(tabCtx); err != nil {
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}

	progress.Notify(ctx, sink, models.EventInfo, models.KindDiscovery,
		fmt.Sprintf("Navigating to listing page %s", listingURL))

	navCtx, navCancel := context.WithTimeout(tabCtx, s.opts.NavigationTimeout)
	defer navCancel()

	var location string
	err := chromedp.Run(navCtx,
		PrepareTab(s.opts.Headers),
		chromedp.Navigate(listingURL),
		chromedp.Location(&location),
	)
	if err != nil {
		return nil, engine.NewEngineError(engine.ErrCodeTimeout, "listing navigation failed", err).WithRetry()
	}
	if strings.Contains(location, "blocked") || strings.Contains(location, "captcha") {
		return nil, fmt.Errorf("listing page %s appears to be blocked", location)
	}

	if err := engine.RandomDelay(ctx, s.opts.SettleMin, s.opts.SettleMax); err != nil {
		return nil, err
	}

	selCtx, selCancel := context.WithTimeout(tabCtx, s.opts.SelectorTimeout)
	err = chromedp.Run(selCtx, chromedp.WaitReady(strings.Join(tileSelectors, ", "), chromedp.ByQuery))
	selCancel()
	if err != nil {
		progress.Notify(ctx, sink, models.EventWarning, models.KindDiscovery,
			"No product tiles appeared, falling back to a broad link search")
	} else if loadAll {
		if err := s.loadAll(ctx, tabCtx, sink); err != nil {
			return nil, err
		}
	}

	var doc string
	if err := chromedp.Run(tabCtx, chromedp.Location(&location), chromedp.OuterHTML("html", &doc, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("failed to read listing page: %w", err)
	}

	links, err := ExtractLinks(doc, location)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("url", listingURL).
		Bool("load_all", loadAll).
		Int("links", len(links)).
		Msg("Listing scraped")

	if len(links) > 0 {
		progress.Notify(ctx, sink, models.EventSuccess, models.KindDiscovery,
			fmt.Sprintf("Found %d product links", len(links)))
		if s.cache != nil {
			if err := s.cache.Set(ctx, key, links, s.opts.CacheTTL); err != nil {
				log.Warn().Err(err).Str("url", listingURL).Msg("Failed to cache listing")
			}
		}
	}
	return links, nil
}

func (s *ListingScraper) loadAll(ctx, tabCtx context.Context, sink progress.Sink) error {
	countJS := fmt.Sprintf("document.querySelectorAll(%q).length", strings.Join(tileSelectors[:2], ", "))

	last := -1
	for clicks := 0; clicks < s.opts.LoadMoreClicks; clicks++ {
		var count int
		if err := chromedp.Run(tabCtx, chromedp.Evaluate(countJS, &count)); err != nil {
			return fmt.Errorf("failed to count product tiles: %w", err)
		}
		if count == last {
			break
		}
		last = count

		var clicked bool
		if err := chromedp.Run(tabCtx, chromedp.Evaluate(clickLoadMoreJS, &clicked)); err != nil || !clicked {
			break
		}

		progress.Notify(ctx, sink, models.EventProgress, models.KindDiscovery,
			fmt.Sprintf("Loading more products... (click %d, %d visible)", clicks+1, count))

		if err := engine.RandomDelay(ctx, s.opts.SettleMin, s.opts.SettleMax); err != nil {
			return err
		}
	}

	progress.Notify(ctx, sink, models.EventSuccess, models.KindDiscovery,
		fmt.Sprintf("Finished loading products (%d visible)", last))
	return nil
}

// ExtractLinks returns the unique absolute product links in a listing page.
// Tile-scoped selectors are tried first, then every anchor on the page.
func ExtractLinks(html, pageURL string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing page: %w", err)
	}

	collect := func(sel *goquery.Selection) []string {
		var links []string
		sel.Each(func(_ int, a *goquery.Selection) {
			href, ok := a.Attr("href")
			if !ok || !urlutil.IsProductLink(href) {
				return
			}
			links = append(links, urlutil.ResolveURL(pageURL, strings.TrimSpace(href)))
		})
		return urlutil.Unique(links)
	}

	for _, tile := range tileSelectors {
		tiles := doc.Find(tile)
		if tiles.Length() == 0 {
			continue
		}
		for _, linkSel := range tileLinkSelectors {
			if links := collect(tiles.Find(linkSel)); len(links) > 0 {
				return links, nil
			}
		}
	}

	return collect(doc.Find("a[href]")), nil
}
