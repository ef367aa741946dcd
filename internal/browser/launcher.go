// internal/browser/launcher.go
package browser

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"github.com/law-makers/shopscrape/internal/config"
	"github.com/law-makers/shopscrape/internal/engine"
	"github.com/rs/zerolog/log"
)

// closeTimeout bounds a graceful browser shutdown before the process is killed
const closeTimeout = 10 * time.Second

// ChromeOptions configures how browsers are launched
type ChromeOptions struct {
	ExecPath  string
	Headless  bool
	UserAgent string
	ExtraArgs []chromedp.ExecAllocatorOption
}

// ChromeLauncher starts one Chrome process per handle via chromedp
type ChromeLauncher struct {
	allocOpts []chromedp.ExecAllocatorOption
}

// NewChromeLauncher builds a launcher with a hardened headless flag set
func NewChromeLauncher(opts ChromeOptions) *ChromeLauncher {
	if opts.UserAgent == "" {
		opts.UserAgent = config.DefaultUserAgent
	}
	chromePath := opts.ExecPath
	if chromePath == "" {
		chromePath = FindChrome()
	}

	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-breakpad", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-hang-monitor", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("log-level", "3"),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(opts.UserAgent),
	}
	if chromePath != "" {
		allocOpts = append([]chromedp.ExecAllocatorOption{chromedp.ExecPath(chromePath)}, allocOpts...)
	}
	if opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", "new"))
	} else {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}
	allocOpts = append(allocOpts, opts.ExtraArgs...)

	return &ChromeLauncher{allocOpts: allocOpts}
}

// Launch starts a browser and waits until it answers. ctx bounds startup only;
// the browser outlives it.
func (l *ChromeLauncher) Launch(ctx context.Context) (Handle, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), l.allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	started := make(chan error, 1)
	go func() {
		started <- chromedp.Run(browserCtx, chromedp.Navigate("about:blank"))
	}()

	select {
	case err := <-started:
		if err != nil {
			browserCancel()
			allocCancel()
			return nil, engine.NewEngineError(engine.ErrCodeLaunchFailure, "failed to start browser", err)
		}
	case <-ctx.Done():
		browserCancel()
		allocCancel()
		return nil, ctx.Err()
	}

	h := &chromeHandle{
		id:          uuid.NewString(),
		ctx:         browserCtx,
		cancel:      browserCancel,
		allocCancel: allocCancel,
		connected:   true,
	}
	var lost <-chan struct{}
	if c := chromedp.FromContext(browserCtx); c != nil && c.Browser != nil {
		lost = c.Browser.LostConnection
	}
	go h.watch(lost)

	log.Debug().Str("browser_id", h.id).Msg("Browser started")
	return h, nil
}

type chromeHandle struct {
	id          string
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc

	mu        sync.Mutex
	connected bool
	observers []func()
	closeOnce sync.Once
	closeErr  error
}

func (h *chromeHandle) ID() string { return h.id }

func (h *chromeHandle) Context() context.Context { return h.ctx }

func (h *chromeHandle) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connected
}

func (h *chromeHandle) OnDisconnect(fn func()) {
	h.mu.Lock()
	if !h.connected {
		h.mu.Unlock()
		fn()
		return
	}
	h.observers = append(h.observers, fn)
	h.mu.Unlock()
}

// watch fires the disconnect observers once the websocket drops or the
// browser context ends. A nil lost channel blocks forever.
func (h *chromeHandle) watch(lost <-chan struct{}) {
	select {
	case <-lost:
	case <-h.ctx.Done():
	}

	h.mu.Lock()
	h.connected = false
	observers := h.observers
	h.observers = nil
	h.mu.Unlock()

	for _, fn := range observers {
		fn()
	}
}

func (h *chromeHandle) Close() error {
	h.closeOnce.Do(func() {
		gone := h.ctx.Err() != nil
		ctx, cancel := context.WithTimeout(h.ctx, closeTimeout)
		defer cancel()
		if err := chromedp.Cancel(ctx); err != nil && !gone && !errors.Is(err, context.Canceled) {
			h.closeErr = err
		}
		h.cancel()
		h.allocCancel()
	})
	return h.closeErr
}
