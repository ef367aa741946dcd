// Package extract turns product detail pages into product records
package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/law-makers/shopscrape/internal/browser"
	"github.com/law-makers/shopscrape/internal/catalog"
	"github.com/law-makers/shopscrape/internal/config"
	"github.com/law-makers/shopscrape/internal/engine"
	"github.com/law-makers/shopscrape/internal/ratelimit"
	"github.com/law-makers/shopscrape/pkg/models"
	"github.com/rs/zerolog/log"
)

// expands the collapsed description sections so their text is in the DOM
const expandAccordionsJS = `(() => {
  const ids = ["productDescriptionDetails", "productDescriptionBrand",
               "productDescriptionCareInfo", "productDescriptionAboutMe"];
  let clicked = 0;
  for (const id of ids) {
    const btn = document.querySelector("button[aria-controls='" + id + "']");
    if (btn && btn.getAttribute("aria-expanded") === "false") {
      btn.click();
      clicked++;
    }
  }
  return clicked;
})()`

const productReadySelector = "h1[data-testid='product-title'], #core-product"

// Options configures a ProductExtractor
type Options struct {
	NavigationTimeout time.Duration
	SelectorTimeout   time.Duration
	// SettleMin and SettleMax bound the random pause after navigation
	SettleMin time.Duration
	SettleMax time.Duration
	Headers   map[string]string
}

// ProductExtractor scrapes one product page per call in its own tab
type ProductExtractor struct {
	opts    Options
	limiter ratelimit.RateLimiter
}

// New creates a ProductExtractor. limiter may be nil.
func New(opts Options, limiter ratelimit.RateLimiter) *ProductExtractor {
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = config.DefaultNavigationTimeout
	}
	if opts.SelectorTimeout <= 0 {
		opts.SelectorTimeout = config.DefaultSelectorTimeout
	}
	if opts.SettleMax < opts.SettleMin {
		opts.SettleMax = opts.SettleMin
	}
	return &ProductExtractor{opts: opts, limiter: limiter}
}

// Scrape opens item.URL in a new tab of h, extracts the product and closes
// the tab on every path
func (e *ProductExtractor) Scrape(ctx context.Context, h browser.Handle, item models.WorkItem) (*models.Product, error) {
	if !h.Connected() {
		return nil, engine.NewEngineError(engine.ErrCodeBrowserCrash, "browser disconnected", nil)
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx, item.URL); err != nil {
			return nil, err
		}
	}

	start := time.Now()

	tabCtx, cancel := chromedp.NewContext(h.Context())
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(tabCtx); err != nil {
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}

	navCtx, navCancel := context.WithTimeout(tabCtx, e.opts.NavigationTimeout)
	defer navCancel()

	err := chromedp.Run(navCtx,
		catalog.PrepareTab(e.opts.Headers),
		chromedp.Navigate(item.URL),
	)
	if err != nil {
		return nil, engine.NewEngineError(engine.ErrCodeItemFailure, "product navigation failed", err).
			WithDetail("url", item.URL)
	}

	if err := engine.RandomDelay(ctx, e.opts.SettleMin, e.opts.SettleMax); err != nil {
		return nil, err
	}

	selCtx, selCancel := context.WithTimeout(tabCtx, e.opts.SelectorTimeout)
	if err := chromedp.Run(selCtx, chromedp.WaitReady(productReadySelector, chromedp.ByQuery)); err != nil {
		log.Debug().Err(err).Str("url", item.URL).Msg("Product title did not appear, parsing what loaded")
	}
	selCancel()

	var expanded int
	if err := chromedp.Run(tabCtx, chromedp.Evaluate(expandAccordionsJS, &expanded)); err != nil {
		log.Debug().Err(err).Str("url", item.URL).Msg("Failed to expand description sections")
	} else if expanded > 0 {
		_ = engine.ContextSleeper.Sleep(ctx, 500*time.Millisecond)
	}

	var html, location string
	if err := chromedp.Run(tabCtx,
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return nil, engine.NewEngineError(engine.ErrCodeItemFailure, "failed to read product page", err).
			WithDetail("url", item.URL)
	}
	if location == "" {
		location = item.URL
	}

	product, err := Parse(html, location, item)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("url", item.URL).
		Str("name", product.Name).
		Dur("elapsed", time.Since(start)).
		Msg("Product extracted")

	return product, nil
}
