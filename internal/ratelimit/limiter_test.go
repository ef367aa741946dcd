package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedLimiterBurst(t *testing.T) {
	kl := NewKeyedLimiter(0.001, 2)

	assert.True(t, kl.Allow("a"))
	assert.True(t, kl.Allow("a"))
	assert.False(t, kl.Allow("a"))

	// other keys have their own bucket
	assert.True(t, kl.Allow("b"))
	assert.Equal(t, 2, kl.Len())
}

func TestKeyedLimiterSweep(t *testing.T) {
	kl := NewKeyedLimiter(1, 1)
	now := time.Unix(1_700_000_000, 0)
	kl.now = func() time.Time { return now }

	kl.Get("old")
	now = now.Add(2 * time.Hour)
	kl.Get("fresh")

	assert.Equal(t, 1, kl.Sweep(time.Hour))
	assert.Equal(t, 1, kl.Len())
}

func TestDomainLimiterSharesHost(t *testing.T) {
	dl := NewDomainLimiter(0.001, 1)

	assert.True(t, dl.Allow("https://www.asos.com/search/?q=shirt"))
	assert.False(t, dl.Allow("https://www.asos.com/prd/123"))
	assert.True(t, dl.Allow("https://images.asos-media.com/x.jpg"))
	assert.True(t, dl.Allow("::not a url"))
}

func TestDomainLimiterWaitCancelled(t *testing.T) {
	dl := NewDomainLimiter(0.001, 1)
	require.NoError(t, dl.Wait(context.Background(), "https://www.asos.com/a"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, dl.Wait(ctx, "https://www.asos.com/b"))
}
