package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEngineErrorMatching(t *testing.T) {
	cause := errors.New("net::ERR_TIMED_OUT")
	err := fmt.Errorf("discover: %w", NewEngineError(ErrCodeTimeout, "listing navigation failed", cause).WithRetry())

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, &EngineError{Code: ErrCodeTimeout})
	assert.NotErrorIs(t, err, &EngineError{Code: ErrCodeValidation})
	assert.True(t, IsRetryable(err))
	assert.False(t, IsRetryable(NewEngineError(ErrCodeValidation, "bad", nil)))
	assert.False(t, IsRetryable(cause))
}

func TestRunAbortError(t *testing.T) {
	err := NewRunAbortError("listing has no product links", ErrNoProducts)
	assert.ErrorIs(t, err, ErrRunAborted)
	assert.ErrorIs(t, err, ErrNoProducts)
	assert.Contains(t, err.Error(), "no product links found")

	bare := NewRunAbortError("stopped", nil)
	assert.ErrorIs(t, bare, ErrRunAborted)
	assert.Equal(t, "scrape run aborted: stopped", bare.Error())

	assert.ErrorIs(t, fmt.Errorf("search: %w", err), &EngineError{Code: ErrCodeRunAbort})
	assert.NotErrorIs(t, err, &EngineError{Code: ErrCodePoolExhausted})
}

func TestPoolExhaustedError(t *testing.T) {
	err := &PoolExhaustedError{Waited: 30 * time.Second, MaxCapacity: 5}
	assert.ErrorIs(t, err, ErrPoolExhausted)
	assert.Contains(t, err.Error(), "max capacity 5")
	assert.Contains(t, err.Error(), "try again later")

	assert.ErrorIs(t, fmt.Errorf("acquire: %w", err), &EngineError{Code: ErrCodePoolExhausted})
	assert.NotErrorIs(t, err, &EngineError{Code: ErrCodeRunAbort})
}

func TestRandomDuration(t *testing.T) {
	assert.Equal(t, time.Second, RandomDuration(time.Second, time.Second))
	assert.Equal(t, time.Second, RandomDuration(time.Second, 0))
	for i := 0; i < 100; i++ {
		d := RandomDuration(2*time.Second, 5*time.Second)
		assert.GreaterOrEqual(t, d, 2*time.Second)
		assert.Less(t, d, 5*time.Second)
	}
}

func TestContextSleeperCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := ContextSleeper.Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)

	assert.NoError(t, ContextSleeper.Sleep(context.Background(), 0))
}
