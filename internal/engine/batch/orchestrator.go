// internal/engine/batch/orchestrator.go
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/law-makers/shopscrape/internal/config"
	"github.com/law-makers/shopscrape/internal/engine"
	"github.com/law-makers/shopscrape/internal/progress"
	"github.com/law-makers/shopscrape/internal/reqctx"
	"github.com/law-makers/shopscrape/pkg/models"
	"github.com/rs/zerolog/log"
)

// ScrapeFunc extracts one record for a work item. Returning an error or the
// zero value of T marks the item as failed.
type ScrapeFunc[T comparable] func(ctx context.Context, item models.WorkItem) (T, error)

// Options tunes the orchestrator
type Options struct {
	DelayMin time.Duration
	DelayMax time.Duration
	Sleeper  engine.Sleeper
	// Delay picks the pause between batches; defaults to engine.RandomDuration
	Delay func(min, max time.Duration) time.Duration
}

// Orchestrator runs work items in sequential batches of concurrent scrapes.
// No item of batch i+1 starts before every item of batch i has settled.
type Orchestrator[T comparable] struct {
	opts Options
}

// New creates an orchestrator, filling unset options with defaults
func New[T comparable](opts Options) *Orchestrator[T] {
	if opts.DelayMin <= 0 && opts.DelayMax <= 0 {
		opts.DelayMin = config.DefaultBatchDelayMin
		opts.DelayMax = config.DefaultBatchDelayMax
	}
	if opts.DelayMax < opts.DelayMin {
		opts.DelayMax = opts.DelayMin
	}
	if opts.Sleeper == nil {
		opts.Sleeper = engine.ContextSleeper
	}
	if opts.Delay == nil {
		opts.Delay = engine.RandomDuration
	}
	return &Orchestrator[T]{opts: opts}
}

type outcome[T comparable] struct {
	value T
	ok    bool
}

// Run scrapes items in batches of concurrency. It returns the successful
// records in submission order together with the run tallies. An empty item
// list aborts with *engine.RunAbortError. If ctx is cancelled between batches
// the records gathered so far are returned along with ctx.Err().
func (o *Orchestrator[T]) Run(ctx context.Context, items []models.WorkItem, concurrency int, scrapeOne ScrapeFunc[T], sink progress.Sink) ([]T, models.RunSummary, error) {
	return o.RunWithFound(ctx, items, len(items), concurrency, scrapeOne, sink)
}

// RunWithFound is Run for a selection out of a larger discovery: found is
// reported as TotalFound in every event and in the returned summary. Values
// below len(items) are raised to it.
func (o *Orchestrator[T]) RunWithFound(ctx context.Context, items []models.WorkItem, found, concurrency int, scrapeOne ScrapeFunc[T], sink progress.Sink) ([]T, models.RunSummary, error) {
	if sink == nil {
		sink = progress.Discard
	}
	if concurrency < 1 {
		concurrency = 1
	}

	runID := reqctx.RunID(ctx)
	summary := models.RunSummary{TotalFound: max(found, len(items))}

	emit := func(typ models.EventType, kind models.EventKind, msg string, p *models.Progress, data any) {
		sink.Emit(progress.Stamp(models.ProgressEvent{
			Type:     typ,
			Kind:     kind,
			RunID:    runID,
			Message:  msg,
			Progress: p,
			Data:     data,
		}))
	}

	if len(items) == 0 {
		err := engine.NewRunAbortError("no work items", engine.ErrNoProducts)
		emit(models.EventError, models.KindError, err.Error(), nil, nil)
		return nil, summary, err
	}

	batches := Partition(items, concurrency)
	start := time.Now()
	results := make([]T, 0, len(items))

	log.Info().
		Str("run_id", runID).
		Int("items", len(items)).
		Int("concurrency", concurrency).
		Int("batches", len(batches)).
		Msg("Starting batch run")

	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return o.abort(results, summary, len(items), err, emit)
		}

		emit(models.EventInfo, models.KindBatchStart,
			fmt.Sprintf("Processing batch %d/%d (%d items)", i+1, len(batches), len(batch)),
			models.NewProgress(summary.TotalAttempted, len(items)),
			map[string]int{"batch": i + 1, "batches": len(batches), "size": len(batch)})

		outcomes := runBatch(ctx, batch, scrapeOne, func(item models.WorkItem) {
			emit(models.EventInfo, models.KindItemStart,
				fmt.Sprintf("Scraping product %d/%d", item.Index+1, len(items)),
				nil, map[string]string{"url": item.URL})
		})

		for _, out := range outcomes {
			summary.TotalAttempted++
			if !out.ok {
				summary.TotalFailed++
				continue
			}
			summary.TotalSuccessful++
			results = append(results, out.value)
		}

		emit(models.EventProgress, models.KindBatchComplete,
			fmt.Sprintf("Completed batch %d/%d", i+1, len(batches)),
			models.NewProgress(summary.TotalAttempted, len(items)),
			summary)

		log.Debug().
			Str("run_id", runID).
			Int("batch", i+1).
			Int("successful", summary.TotalSuccessful).
			Int("failed", summary.TotalFailed).
			Msg("Batch settled")

		if i < len(batches)-1 {
			delay := o.opts.Delay(o.opts.DelayMin, o.opts.DelayMax)
			if err := o.opts.Sleeper.Sleep(ctx, delay); err != nil {
				return o.abort(results, summary, len(items), err, emit)
			}
		}
	}

	emit(models.EventSuccess, models.KindRunComplete,
		fmt.Sprintf("Scraped %d of %d products", summary.TotalSuccessful, len(items)),
		models.NewProgress(summary.TotalAttempted, len(items)),
		summary)

	log.Info().
		Str("run_id", runID).
		Int("found", summary.TotalFound).
		Int("successful", summary.TotalSuccessful).
		Int("failed", summary.TotalFailed).
		Dur("duration", time.Since(start)).
		Msg("Batch run complete")

	return results, summary, nil
}

func (o *Orchestrator[T]) abort(results []T, summary models.RunSummary, total int, err error,
	emit func(models.EventType, models.EventKind, string, *models.Progress, any)) ([]T, models.RunSummary, error) {
	emit(models.EventError, models.KindError,
		fmt.Sprintf("Run cancelled after %d of %d items: %v", summary.TotalAttempted, total, err),
		models.NewProgress(summary.TotalAttempted, total),
		summary)
	log.Warn().Err(err).Int("attempted", summary.TotalAttempted).Msg("Batch run cancelled")
	return results, summary, err
}

// runBatch starts every item at once and waits for all of them. Outcomes are
// stored by position so submission order survives.
func runBatch[T comparable](ctx context.Context, batch []models.WorkItem, scrapeOne ScrapeFunc[T], onStart func(models.WorkItem)) []outcome[T] {
	outcomes := make([]outcome[T], len(batch))

	var wg sync.WaitGroup
	for i, item := range batch {
		wg.Add(1)
		go func(i int, item models.WorkItem) {
			defer wg.Done()
			onStart(item)
			outcomes[i] = scrapeIsolated(ctx, item, scrapeOne)
		}(i, item)
	}
	wg.Wait()

	return outcomes
}

func scrapeIsolated[T comparable](ctx context.Context, item models.WorkItem, scrapeOne ScrapeFunc[T]) (out outcome[T]) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("url", item.URL).
				Int("index", item.Index).
				Interface("panic", r).
				Msg("Item scrape panicked")
			out = outcome[T]{}
		}
	}()

	v, err := scrapeOne(ctx, item)
	if err != nil {
		log.Warn().
			Err(engine.NewEngineError(engine.ErrCodeItemFailure, "item failed", err)).
			Str("url", item.URL).
			Int("index", item.Index).
			Msg("Item scrape failed")
		return outcome[T]{}
	}

	var zero T
	if v == zero {
		log.Warn().
			Err(engine.ErrEmptyRecord).
			Str("url", item.URL).
			Int("index", item.Index).
			Msg("Item scrape returned no record")
		return outcome[T]{}
	}

	return outcome[T]{value: v, ok: true}
}
