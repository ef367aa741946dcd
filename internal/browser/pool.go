// internal/browser/pool.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/law-makers/shopscrape/internal/config"
	"github.com/law-makers/shopscrape/internal/engine"
	"github.com/law-makers/shopscrape/pkg/models"
	"github.com/rs/zerolog/log"
)

// Handle is a running browser instance managed by the pool
type Handle interface {
	ID() string
	Connected() bool
	// Context is the chromedp browser context; tabs are derived from it
	Context() context.Context
	// OnDisconnect registers fn to be called once when the browser goes away
	OnDisconnect(fn func())
	Close() error
}

// Launcher starts new browser handles
type Launcher interface {
	Launch(ctx context.Context) (Handle, error)
}

// LauncherFunc adapts a function to the Launcher interface
type LauncherFunc func(ctx context.Context) (Handle, error)

// Launch calls f(ctx)
func (f LauncherFunc) Launch(ctx context.Context) (Handle, error) {
	return f(ctx)
}

// PoolOptions configures the browser pool
type PoolOptions struct {
	Min            int
	Max            int
	AcquireTimeout time.Duration
	// RetryInterval is how often a waiting Acquire re-checks for room to grow
	RetryInterval time.Duration
}

// Pool is a bounded, elastic set of reusable browser handles.
// A handle is in exactly one of available, leased, or removed.
type Pool struct {
	launcher Launcher
	opts     PoolOptions

	mu          sync.Mutex
	all         []Handle
	available   []Handle
	leased      map[string]Handle
	pending     int
	initialized bool
	initWait    chan struct{}
	notify      chan struct{}
	gen         uint64
}

// NewPool creates a pool. Nothing is launched until Initialize or Acquire.
func NewPool(launcher Launcher, opts PoolOptions) *Pool {
	if opts.Max <= 0 {
		opts.Max = config.DefaultPoolMax
	}
	if opts.Min < 0 {
		opts.Min = 0
	}
	if opts.Min > opts.Max {
		opts.Min = opts.Max
	}
	if opts.AcquireTimeout <= 0 {
		opts.AcquireTimeout = config.DefaultAcquireTimeout
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = config.DefaultAcquireRetryInterval
	}

	return &Pool{
		launcher: launcher,
		opts:     opts,
		leased:   make(map[string]Handle),
		notify:   make(chan struct{}),
	}
}

// Initialize launches the minimum number of handles. It is idempotent and
// concurrent callers share one in-flight initialization. Launch failures are
// logged and skipped.
func (p *Pool) Initialize(ctx context.Context) error {
	p.mu.Lock()
	if p.initialized {
		p.mu.Unlock()
		return nil
	}
	wait := p.initWait
	if wait == nil {
		wait = make(chan struct{})
		p.initWait = wait
		gen := p.gen
		// Detached so one caller giving up does not fail the others
		go p.initialize(context.WithoutCancel(ctx), gen, wait)
	}
	p.mu.Unlock()

	select {
	case <-wait:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) initialize(ctx context.Context, gen uint64, done chan struct{}) {
	start := time.Now()
	log.Info().Int("min", p.opts.Min).Int("max", p.opts.Max).Msg("Initializing browser pool")

	launched := 0
	for i := 0; i < p.opts.Min; i++ {
		if !p.reserve() {
			break
		}
		h, err := p.launcher.Launch(ctx)
		if err != nil {
			p.unreserve()
			log.Error().Err(err).Int("browser", i+1).Msg("Failed to launch browser")
			continue
		}
		if p.track(h, gen, false) {
			launched++
			log.Debug().Str("browser_id", h.ID()).Int("browser", i+1).Msg("Browser launched")
		}
	}

	p.mu.Lock()
	if p.gen == gen {
		p.initialized = true
	}
	if p.initWait == done {
		p.initWait = nil
	}
	p.mu.Unlock()
	close(done)

	log.Info().
		Int("launched", launched).
		Int("requested", p.opts.Min).
		Dur("duration", time.Since(start)).
		Msg("Browser pool ready")
}

// reserve claims a growth slot so concurrent growers never exceed Max
func (p *Pool) reserve() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.all)+p.pending >= p.opts.Max {
		return false
	}
	p.pending++
	return true
}

func (p *Pool) unreserve() {
	p.mu.Lock()
	p.pending--
	p.signal()
	p.mu.Unlock()
}

// track adds a freshly launched handle, either as available or directly leased.
// It returns false when the pool was torn down while the launch was in flight.
func (p *Pool) track(h Handle, gen uint64, lease bool) bool {
	h.OnDisconnect(func() { p.onDisconnect(h) })

	p.mu.Lock()
	p.pending--
	if p.gen != gen || !h.Connected() {
		p.signal()
		p.mu.Unlock()
		if err := h.Close(); err != nil {
			log.Debug().Err(err).Str("browser_id", h.ID()).Msg("Failed to close discarded browser")
		}
		return false
	}
	p.all = append(p.all, h)
	if lease {
		p.leased[h.ID()] = h
	} else {
		p.available = append(p.available, h)
	}
	p.signal()
	p.mu.Unlock()
	return true
}

// Acquire leases a handle, growing the pool when it has room. When the pool is
// at capacity it waits for a release, bounded by AcquireTimeout, then fails
// with *engine.PoolExhaustedError.
func (p *Pool) Acquire(ctx context.Context) (Handle, error) {
	if err := p.Initialize(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	timeout := time.NewTimer(p.opts.AcquireTimeout)
	defer timeout.Stop()
	tick := time.NewTicker(p.opts.RetryInterval)
	defer tick.Stop()

	for {
		p.mu.Lock()
		if n := len(p.available); n > 0 {
			h := p.available[0]
			p.available = p.available[1:]
			p.leased[h.ID()] = h
			p.mu.Unlock()
			log.Debug().Str("browser_id", h.ID()).Msg("Browser acquired from pool")
			return h, nil
		}

		if len(p.all)+p.pending < p.opts.Max {
			p.pending++
			gen := p.gen
			p.mu.Unlock()

			h, err := p.launcher.Launch(ctx)
			if err != nil {
				p.unreserve()
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				log.Error().Err(err).Msg("Failed to grow browser pool")
			} else if p.track(h, gen, true) {
				log.Debug().Str("browser_id", h.ID()).Msg("Browser pool grew")
				return h, nil
			}
			p.mu.Lock()
		}
		wait := p.notify
		p.mu.Unlock()

		select {
		case <-wait:
		case <-tick.C:
		case <-timeout.C:
			waited := time.Since(start)
			log.Warn().Dur("waited", waited).Int("max", p.opts.Max).Msg("Browser pool exhausted")
			return nil, &engine.PoolExhaustedError{Waited: waited, MaxCapacity: p.opts.Max}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Release returns a leased handle to the pool. Handles that are not currently
// leased are ignored.
func (p *Pool) Release(h Handle) {
	if h == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.leased[h.ID()]; !ok {
		return
	}
	delete(p.leased, h.ID())
	p.available = append(p.available, h)
	p.signal()
	log.Debug().Str("browser_id", h.ID()).Msg("Browser released to pool")
}

// With leases a handle for the duration of fn and always releases it
func (p *Pool) With(ctx context.Context, fn func(Handle) error) error {
	h, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release(h)
	return fn(h)
}

// onDisconnect drops a dead handle from every set. It is not replaced until a
// later Acquire finds the pool short.
func (p *Pool) onDisconnect(h Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()

	removed := false
	for i, x := range p.all {
		if x.ID() == h.ID() {
			p.all = append(p.all[:i], p.all[i+1:]...)
			removed = true
			break
		}
	}
	for i, x := range p.available {
		if x.ID() == h.ID() {
			p.available = append(p.available[:i], p.available[i+1:]...)
			break
		}
	}
	delete(p.leased, h.ID())

	if removed {
		p.signal()
		log.Warn().Str("browser_id", h.ID()).Int("remaining", len(p.all)).Msg("Browser disconnected, removed from pool")
	}
}

// Teardown closes every tracked handle and resets the pool. A failure to close
// one handle does not stop the rest; all failures are returned joined.
func (p *Pool) Teardown() error {
	p.mu.Lock()
	handles := p.all
	p.all = nil
	p.available = nil
	p.leased = make(map[string]Handle)
	p.initialized = false
	p.initWait = nil
	p.gen++
	p.signal()
	p.mu.Unlock()

	log.Debug().Int("count", len(handles)).Msg("Closing browser pool")

	var errs []error
	for _, h := range handles {
		if err := h.Close(); err != nil {
			log.Error().Err(err).Str("browser_id", h.ID()).Msg("Failed to close browser")
			errs = append(errs, fmt.Errorf("close %s: %w", h.ID(), err))
		}
	}

	log.Info().Int("closed", len(handles)-len(errs)).Msg("Browser pool closed")
	return errors.Join(errs...)
}

// Stats returns a snapshot of pool occupancy
func (p *Pool) Stats() models.PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return models.PoolStats{
		Total:       len(p.all),
		Available:   len(p.available),
		Busy:        len(p.leased),
		MaxCapacity: p.opts.Max,
	}
}

// signal wakes every goroutine waiting in Acquire. Callers hold p.mu.
func (p *Pool) signal() {
	close(p.notify)
	p.notify = make(chan struct{})
}
