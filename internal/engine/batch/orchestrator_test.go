package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/law-makers/shopscrape/internal/engine"
	"github.com/law-makers/shopscrape/internal/progress"
	"github.com/law-makers/shopscrape/internal/reqctx"
	"github.com/law-makers/shopscrape/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func workItems(n int) []models.WorkItem {
	items := make([]models.WorkItem, n)
	for i := range items {
		items[i] = models.WorkItem{URL: fmt.Sprintf("u%d", i+1), Index: i, Total: n}
	}
	return items
}

type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func newTestOrchestrator(s engine.Sleeper) *Orchestrator[string] {
	return New[string](Options{
		DelayMin: 2 * time.Second,
		DelayMax: 4 * time.Second,
		Sleeper:  s,
	})
}

func echo(_ context.Context, item models.WorkItem) (string, error) {
	return item.URL, nil
}

func TestRunAllSucceed(t *testing.T) {
	sleeper := &recordingSleeper{}
	rec := &progress.Recorder{}

	results, summary, err := newTestOrchestrator(sleeper).Run(context.Background(), workItems(10), 3, echo, rec)
	require.NoError(t, err)

	assert.Len(t, results, 10)
	assert.Equal(t, models.RunSummary{TotalFound: 10, TotalAttempted: 10, TotalSuccessful: 10, TotalFailed: 0}, summary)

	completes := rec.OfKind(models.KindBatchComplete)
	require.Len(t, completes, 4)
	wantCurrent := []int{3, 6, 9, 10}
	for i, ev := range completes {
		assert.Equal(t, wantCurrent[i], ev.Progress.Current)
		assert.Equal(t, 10, ev.Progress.Total)
	}
	assert.Equal(t, 100.0, completes[3].Progress.Percentage)

	starts := rec.OfKind(models.KindBatchStart)
	require.Len(t, starts, 4)
	wantSizes := []int{3, 3, 3, 1}
	for i, ev := range starts {
		assert.Equal(t, wantSizes[i], ev.Data.(map[string]int)["size"])
	}
	assert.Len(t, rec.OfKind(models.KindItemStart), 10)

	final := rec.OfKind(models.KindRunComplete)
	require.Len(t, final, 1)
	assert.Equal(t, summary, final[0].Data)
	assert.Equal(t, models.EventSuccess, final[0].Type)

	// delays only between batches, drawn from the configured range
	require.Len(t, sleeper.delays, 3)
	for _, d := range sleeper.delays {
		assert.GreaterOrEqual(t, d, 2*time.Second)
		assert.Less(t, d, 4*time.Second)
	}
}

func TestRunIsolatesFailuresAndKeepsOrder(t *testing.T) {
	rec := &progress.Recorder{}
	scrape := func(_ context.Context, item models.WorkItem) (string, error) {
		if item.URL == "u2" {
			return "", errors.New("navigation timeout")
		}
		return item.URL, nil
	}

	results, summary, err := newTestOrchestrator(&recordingSleeper{}).Run(context.Background(), workItems(3), 3, scrape, rec)
	require.NoError(t, err)

	assert.Equal(t, []string{"u1", "u3"}, results)
	assert.Equal(t, 1, summary.TotalFailed)
	assert.Equal(t, 2, summary.TotalSuccessful)
	assert.Equal(t, summary.TotalAttempted-summary.TotalFailed, len(results))
}

func TestRunBatchOfFiveWithPanicAndEmptyRecord(t *testing.T) {
	var calls atomic.Int32
	scrape := func(_ context.Context, item models.WorkItem) (string, error) {
		calls.Add(1)
		switch item.URL {
		case "u3":
			panic("selector exploded")
		}
		return item.URL, nil
	}

	results, summary, err := newTestOrchestrator(&recordingSleeper{}).Run(context.Background(), workItems(5), 5, scrape, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(5), calls.Load())
	assert.Equal(t, []string{"u1", "u2", "u4", "u5"}, results)
	assert.Equal(t, 1, summary.TotalFailed)

	empty := func(_ context.Context, item models.WorkItem) (string, error) {
		if item.URL == "u2" {
			return "", nil
		}
		return item.URL, nil
	}
	results, summary, err = newTestOrchestrator(&recordingSleeper{}).Run(context.Background(), workItems(3), 2, empty, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u3"}, results)
	assert.Equal(t, models.RunSummary{TotalFound: 3, TotalAttempted: 3, TotalSuccessful: 2, TotalFailed: 1}, summary)
}

func TestRunResultCardinality(t *testing.T) {
	for _, tc := range []struct {
		n, concurrency, failEvery int
	}{
		{1, 1, 0},
		{7, 2, 3},
		{12, 5, 2},
		{9, 10, 1},
	} {
		t.Run(fmt.Sprintf("n=%d/c=%d", tc.n, tc.concurrency), func(t *testing.T) {
			scrape := func(_ context.Context, item models.WorkItem) (string, error) {
				if tc.failEvery > 0 && (item.Index+1)%tc.failEvery == 0 {
					return "", errors.New("fail")
				}
				return item.URL, nil
			}
			results, summary, err := newTestOrchestrator(&recordingSleeper{}).Run(context.Background(), workItems(tc.n), tc.concurrency, scrape, nil)
			require.NoError(t, err)
			assert.Equal(t, summary.TotalAttempted-summary.TotalFailed, len(results))
			assert.Equal(t, tc.n, summary.TotalAttempted)
		})
	}
}

func TestRunBatchBarrier(t *testing.T) {
	var seq atomic.Int64
	type span struct{ start, end int64 }
	spans := make([]span, 8)

	scrape := func(_ context.Context, item models.WorkItem) (string, error) {
		start := seq.Add(1)
		// uneven durations so a sliding window would interleave batches
		time.Sleep(time.Duration(5+(item.Index%3)*10) * time.Millisecond)
		spans[item.Index] = span{start: start, end: seq.Add(1)}
		return item.URL, nil
	}

	_, _, err := newTestOrchestrator(&recordingSleeper{}).Run(context.Background(), workItems(8), 3, scrape, nil)
	require.NoError(t, err)

	batches := [][]int{{0, 1, 2}, {3, 4, 5}, {6, 7}}
	for b := 0; b < len(batches)-1; b++ {
		var lastEnd int64
		for _, i := range batches[b] {
			lastEnd = max(lastEnd, spans[i].end)
		}
		for _, i := range batches[b+1] {
			assert.Greater(t, spans[i].start, lastEnd, "item %d started before batch %d settled", i, b+1)
		}
	}
}

func TestRunEmptyItemsAborts(t *testing.T) {
	rec := &progress.Recorder{}
	called := false
	scrape := func(context.Context, models.WorkItem) (string, error) {
		called = true
		return "x", nil
	}

	results, summary, err := newTestOrchestrator(&recordingSleeper{}).Run(context.Background(), nil, 3, scrape, rec)
	require.Error(t, err)
	assert.False(t, called)
	assert.Empty(t, results)
	assert.Zero(t, summary.TotalAttempted)

	var abort *engine.RunAbortError
	assert.ErrorAs(t, err, &abort)
	assert.ErrorIs(t, err, engine.ErrRunAborted)
	assert.ErrorIs(t, err, engine.ErrNoProducts)
	assert.Empty(t, rec.OfKind(models.KindBatchStart))
	assert.Len(t, rec.OfKind(models.KindError), 1)
}

func TestRunConcurrencyFloor(t *testing.T) {
	rec := &progress.Recorder{}
	_, _, err := newTestOrchestrator(&recordingSleeper{}).Run(context.Background(), workItems(3), 0, echo, rec)
	require.NoError(t, err)
	assert.Len(t, rec.OfKind(models.KindBatchComplete), 3)
}

func TestRunCancelledBetweenBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx, runID := reqctx.WithRunID(ctx)

	sleeper := engine.SleeperFunc(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	})
	rec := &progress.Recorder{}

	results, summary, err := newTestOrchestrator(sleeper).Run(ctx, workItems(6), 2, echo, rec)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"u1", "u2"}, results)
	assert.Equal(t, 2, summary.TotalAttempted)
	assert.Equal(t, 6, summary.TotalFound)

	assert.Empty(t, rec.OfKind(models.KindRunComplete))
	errs := rec.OfKind(models.KindError)
	require.Len(t, errs, 1)
	assert.Equal(t, runID, errs[0].RunID)
}

func TestPartition(t *testing.T) {
	assert.Empty(t, Partition(nil, 3))

	got := Partition(workItems(7), 3)
	require.Len(t, got, 3)
	assert.Len(t, got[0], 3)
	assert.Len(t, got[2], 1)
	assert.Equal(t, "u7", got[2][0].URL)

	assert.Len(t, Partition(workItems(2), 0), 2)
}

func TestEffectiveConcurrency(t *testing.T) {
	assert.Equal(t, 1, EffectiveConcurrency(0, 10))
	assert.Equal(t, 1, EffectiveConcurrency(-4, 10))
	assert.Equal(t, 10, EffectiveConcurrency(50, 10))
	assert.Equal(t, 3, EffectiveConcurrency(3, 10))
	assert.Equal(t, 10, EffectiveConcurrency(10, 10))
	assert.Equal(t, 40, EffectiveConcurrency(40, 0))
}

func TestRunWithFoundReportsDiscoveredTotal(t *testing.T) {
	rec := &progress.Recorder{}

	results, summary, err := newTestOrchestrator(&recordingSleeper{}).RunWithFound(context.Background(), workItems(3), 20, 2, echo, rec)
	require.NoError(t, err)
	assert.Len(t, results, 3)

	want := models.RunSummary{TotalFound: 20, TotalAttempted: 3, TotalSuccessful: 3}
	assert.Equal(t, want, summary)

	final := rec.OfKind(models.KindRunComplete)
	require.Len(t, final, 1)
	assert.Equal(t, want, final[0].Data)
	assert.Equal(t, 3, final[0].Progress.Total, "progress counts selected items")

	_, summary, err = newTestOrchestrator(&recordingSleeper{}).RunWithFound(context.Background(), workItems(3), 1, 2, echo, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.TotalFound, "found never drops below the selection")
}
