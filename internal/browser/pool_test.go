package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/law-makers/shopscrape/internal/engine"
	"github.com/law-makers/shopscrape/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandle struct {
	id string

	mu        sync.Mutex
	connected bool
	closed    bool
	closeErr  error
	observers []func()
}

func newFakeHandle(id string) *fakeHandle {
	return &fakeHandle{id: id, connected: true}
}

func (h *fakeHandle) ID() string               { return h.id }
func (h *fakeHandle) Context() context.Context { return context.Background() }

func (h *fakeHandle) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connected
}

func (h *fakeHandle) OnDisconnect(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.observers = append(h.observers, fn)
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return h.closeErr
}

func (h *fakeHandle) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// crash simulates the browser process going away
func (h *fakeHandle) crash() {
	h.mu.Lock()
	h.connected = false
	observers := h.observers
	h.observers = nil
	h.mu.Unlock()
	for _, fn := range observers {
		fn()
	}
}

type fakeLauncher struct {
	launches atomic.Int32
	delay    time.Duration
	fail     func(n int) bool

	mu      sync.Mutex
	handles []*fakeHandle
}

func (l *fakeLauncher) Launch(ctx context.Context) (Handle, error) {
	n := int(l.launches.Add(1))
	if l.delay > 0 {
		select {
		case <-time.After(l.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if l.fail != nil && l.fail(n) {
		return nil, fmt.Errorf("launch %d failed", n)
	}
	h := newFakeHandle(fmt.Sprintf("browser-%d", n))
	l.mu.Lock()
	l.handles = append(l.handles, h)
	l.mu.Unlock()
	return h, nil
}

func (l *fakeLauncher) all() []*fakeHandle {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*fakeHandle(nil), l.handles...)
}

func testPool(l Launcher, min, max int) *Pool {
	return NewPool(l, PoolOptions{
		Min:            min,
		Max:            max,
		AcquireTimeout: 200 * time.Millisecond,
		RetryInterval:  10 * time.Millisecond,
	})
}

func TestPoolInitializeWarmsMinimum(t *testing.T) {
	p := testPool(&fakeLauncher{}, 2, 5)
	require.NoError(t, p.Initialize(context.Background()))

	assert.Equal(t, models.PoolStats{Total: 2, Available: 2, Busy: 0, MaxCapacity: 5}, p.Stats())
}

func TestPoolInitializeConcurrentCallersShareOneRun(t *testing.T) {
	l := &fakeLauncher{delay: 20 * time.Millisecond}
	p := testPool(l, 3, 5)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, p.Initialize(context.Background()))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(3), l.launches.Load())
	assert.Equal(t, 3, p.Stats().Total)

	require.NoError(t, p.Initialize(context.Background()))
	assert.Equal(t, int32(3), l.launches.Load(), "second initialize must not relaunch")
}

func TestPoolInitializeToleratesLaunchFailures(t *testing.T) {
	l := &fakeLauncher{fail: func(n int) bool { return n == 1 }}
	p := testPool(l, 2, 5)

	require.NoError(t, p.Initialize(context.Background()))
	assert.Equal(t, 1, p.Stats().Total)

	// still initialized, Acquire does not rerun the warm-up
	h, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "browser-2", h.ID())
	assert.Equal(t, int32(2), l.launches.Load())
}

func TestPoolAcquireLazyInitAndFIFO(t *testing.T) {
	p := testPool(&fakeLauncher{}, 2, 2)

	h1, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "browser-1", h1.ID())
	assert.Equal(t, models.PoolStats{Total: 2, Available: 1, Busy: 1, MaxCapacity: 2}, p.Stats())

	p.Release(h1)
	h2, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "browser-2", h2.ID(), "released handle goes to the back of the queue")
}

func TestPoolReleaseUnleasedIsNoop(t *testing.T) {
	p := testPool(&fakeLauncher{}, 1, 2)
	h, err := p.Acquire(context.Background())
	require.NoError(t, err)

	p.Release(h)
	before := p.Stats()

	p.Release(h)
	p.Release(newFakeHandle("stranger"))
	p.Release(nil)

	assert.Equal(t, before, p.Stats())
	assert.Equal(t, 1, before.Available)
}

func TestPoolExhaustion(t *testing.T) {
	l := &fakeLauncher{}
	p := testPool(l, 1, 2)

	h1, err := p.Acquire(context.Background())
	require.NoError(t, err)
	h2, err := p.Acquire(context.Background())
	require.NoError(t, err, "second acquire grows the pool")
	assert.NotEqual(t, h1.ID(), h2.ID())

	start := time.Now()
	_, err = p.Acquire(context.Background())
	require.Error(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)

	var exhausted *engine.PoolExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 2, exhausted.MaxCapacity)
	assert.ErrorIs(t, err, engine.ErrPoolExhausted)
	assert.Equal(t, int32(2), l.launches.Load())
	assert.Equal(t, 2, p.Stats().Total)
}

func TestPoolReleaseWakesWaiter(t *testing.T) {
	p := NewPool(&fakeLauncher{}, PoolOptions{Min: 1, Max: 1, AcquireTimeout: 5 * time.Second, RetryInterval: time.Second})

	h, err := p.Acquire(context.Background())
	require.NoError(t, err)

	go func() {
		time.Sleep(30 * time.Millisecond)
		p.Release(h)
	}()

	start := time.Now()
	got, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, h.ID(), got.ID())
	assert.Less(t, time.Since(start), time.Second, "waiter should be woken by release, not the retry tick")
}

func TestPoolAcquireHonorsContext(t *testing.T) {
	p := NewPool(&fakeLauncher{}, PoolOptions{Min: 1, Max: 1, AcquireTimeout: 5 * time.Second})
	_, err := p.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPoolConcurrentAcquireNeverExceedsMax(t *testing.T) {
	l := &fakeLauncher{delay: 5 * time.Millisecond}
	p := NewPool(l, PoolOptions{Min: 1, Max: 3, AcquireTimeout: 5 * time.Second, RetryInterval: 5 * time.Millisecond})

	var (
		mu      sync.Mutex
		inUse   = make(map[string]bool)
		errs    atomic.Int32
		maxSeen atomic.Int32
	)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				h, err := p.Acquire(context.Background())
				if err != nil {
					errs.Add(1)
					return
				}

				mu.Lock()
				if inUse[h.ID()] {
					t.Errorf("handle %s leased twice", h.ID())
				}
				inUse[h.ID()] = true
				mu.Unlock()

				s := p.Stats()
				if int32(s.Total) > maxSeen.Load() {
					maxSeen.Store(int32(s.Total))
				}
				if s.Available+s.Busy > s.Total {
					t.Errorf("inconsistent stats %+v", s)
				}

				time.Sleep(time.Millisecond)

				mu.Lock()
				delete(inUse, h.ID())
				mu.Unlock()
				p.Release(h)
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, errs.Load())
	assert.LessOrEqual(t, l.launches.Load(), int32(3))
	assert.LessOrEqual(t, maxSeen.Load(), int32(3))
	s := p.Stats()
	assert.LessOrEqual(t, s.Total, 3)
	assert.Equal(t, s.Total, s.Available)
	assert.Zero(t, s.Busy)
}

func TestPoolDisconnectRemovesHandle(t *testing.T) {
	l := &fakeLauncher{}
	p := testPool(l, 2, 2)

	h, err := p.Acquire(context.Background())
	require.NoError(t, err)

	h.(*fakeHandle).crash()
	assert.Equal(t, models.PoolStats{Total: 1, Available: 1, Busy: 0, MaxCapacity: 2}, p.Stats())

	// releasing a removed handle must not resurrect it
	p.Release(h)
	assert.Equal(t, 1, p.Stats().Total)

	idle := l.all()[1]
	idle.crash()
	assert.Equal(t, 0, p.Stats().Total)

	// shortfall is made up lazily by the next acquire
	got, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "browser-3", got.ID())
	assert.Equal(t, 1, p.Stats().Total)
}

func TestPoolTeardownClosesEverything(t *testing.T) {
	l := &fakeLauncher{}
	p := testPool(l, 2, 3)

	leased, err := p.Acquire(context.Background())
	require.NoError(t, err)
	_, err = p.Acquire(context.Background())
	require.NoError(t, err)
	_, err = p.Acquire(context.Background())
	require.NoError(t, err)

	handles := l.all()
	require.Len(t, handles, 3)
	handles[0].closeErr = errors.New("boom")

	err = p.Teardown()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	for _, h := range handles {
		assert.True(t, h.isClosed(), "handle %s not closed", h.ID())
	}
	assert.Equal(t, models.PoolStats{MaxCapacity: 3}, p.Stats())

	p.Release(leased)
	assert.Equal(t, 0, p.Stats().Available)

	// the pool can be initialized again after teardown
	require.NoError(t, p.Initialize(context.Background()))
	assert.Equal(t, 2, p.Stats().Total)
	assert.Equal(t, int32(5), l.launches.Load())
}

func TestPoolWithReleasesOnError(t *testing.T) {
	p := testPool(&fakeLauncher{}, 1, 1)
	sentinel := errors.New("scrape failed")

	err := p.With(context.Background(), func(h Handle) error {
		assert.Equal(t, 1, p.Stats().Busy)
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, models.PoolStats{Total: 1, Available: 1, Busy: 0, MaxCapacity: 1}, p.Stats())
}

func TestNewPoolClampsOptions(t *testing.T) {
	p := NewPool(&fakeLauncher{}, PoolOptions{Min: 9, Max: 4})
	assert.Equal(t, 4, p.opts.Min)
	assert.Equal(t, 4, p.Stats().MaxCapacity)
	assert.Positive(t, p.opts.AcquireTimeout)
	assert.Positive(t, p.opts.RetryInterval)
}
