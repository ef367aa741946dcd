package engine

import (
	"context"
	"math/rand/v2"
	"time"
)

// Sleeper pauses between units of work. Implementations must return early
// with ctx.Err() when the context is cancelled.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to the Sleeper interface
type SleeperFunc func(ctx context.Context, d time.Duration) error

// Sleep calls f(ctx, d)
func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error {
	return f(ctx, d)
}

// ContextSleeper is the default Sleeper backed by a timer
var ContextSleeper Sleeper = SleeperFunc(func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
})

// RandomDuration draws uniformly from [min, max). If max <= min, min is returned.
func RandomDuration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int64N(int64(max-min)))
}

// RandomDelay sleeps for a random duration in [min, max)
func RandomDelay(ctx context.Context, min, max time.Duration) error {
	return ContextSleeper.Sleep(ctx, RandomDuration(min, max))
}
