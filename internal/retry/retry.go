// internal/retry/retry.go
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/law-makers/shopscrape/internal/engine"
	"github.com/rs/zerolog/log"
)

// Config controls exponential backoff between attempts
type Config struct {
	MaxAttempts    int           // including the first
	InitialBackoff time.Duration // pause after the first failure
	MaxBackoff     time.Duration // 0 means uncapped
	Multiplier     float64
	// Jitter spreads each pause over [backoff*(1-Jitter), backoff]; 0 disables it
	Jitter float64

	// Retryable classifies errors. Nil retries everything except
	// cancellation and EngineErrors not marked WithRetry.
	Retryable func(error) bool
	// Sleeper waits between attempts; nil uses engine.ContextSleeper
	Sleeper engine.Sleeper
	// Op names the operation in logs
	Op string
}

// DefaultConfig returns the backoff used for listing pages and database writes
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2,
	}
}

// ExhaustedError reports that every attempt failed
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("operation failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// WithRetry runs fn until it succeeds, fails with an error the classifier
// rejects, ctx ends, or MaxAttempts is reached. Non-retryable errors are
// returned unwrapped; exhaustion returns an *ExhaustedError.
func WithRetry(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	attempts := max(cfg.MaxAttempts, 1)
	retryable := cfg.Retryable
	if retryable == nil {
		retryable = defaultRetryable
	}
	sleeper := cfg.Sleeper
	if sleeper == nil {
		sleeper = engine.ContextSleeper
	}

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil {
			if attempt > 1 {
				log.Debug().Str("op", cfg.Op).Int("attempts", attempt).Msg("Succeeded after retry")
			}
			return nil
		}
		if ctx.Err() != nil || !retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		pause := Backoff(attempt, cfg)
		log.Debug().
			Err(err).
			Str("op", cfg.Op).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Dur("backoff", pause).
			Msg("Retrying")
		if serr := sleeper.Sleep(ctx, pause); serr != nil {
			return serr
		}
	}

	log.Warn().Err(err).Str("op", cfg.Op).Int("attempts", attempts).Msg("Giving up")
	return &ExhaustedError{Attempts: attempts, Err: err}
}

// Backoff is the pause after the given failed attempt (1-based):
// InitialBackoff * Multiplier^(attempt-1), capped at MaxBackoff, then jittered.
func Backoff(attempt int, cfg Config) time.Duration {
	mult := cfg.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(cfg.InitialBackoff) * math.Pow(mult, float64(attempt-1))
	if cfg.MaxBackoff > 0 {
		d = math.Min(d, float64(cfg.MaxBackoff))
	}
	pause := time.Duration(d)
	if cfg.Jitter > 0 && pause > 0 {
		floor := time.Duration(float64(pause) * (1 - math.Min(cfg.Jitter, 1)))
		pause = engine.RandomDuration(floor, pause)
	}
	return pause
}

func defaultRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var ee *engine.EngineError
	if errors.As(err, &ee) {
		return ee.Retry
	}
	return true
}
