package progress

import (
	"io"
	"sync"

	"github.com/law-makers/shopscrape/pkg/models"
	"github.com/schollz/progressbar/v3"
)

// BarSink renders batch progress as a terminal progress bar
type BarSink struct {
	w           io.Writer
	description string

	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

// NewBarSink creates a bar that draws to w once the first batch starts
func NewBarSink(w io.Writer, description string) *BarSink {
	return &BarSink{w: w, description: description}
}

func (b *BarSink) Emit(ev models.ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch ev.Kind {
	case models.KindBatchStart, models.KindBatchComplete:
		if ev.Progress == nil {
			return
		}
		if b.bar == nil {
			b.bar = progressbar.NewOptions(ev.Progress.Total,
				progressbar.OptionSetWriter(b.w),
				progressbar.OptionSetDescription(b.description),
				progressbar.OptionShowCount(),
				progressbar.OptionSetPredictTime(true),
				progressbar.OptionSetWidth(30),
				progressbar.OptionClearOnFinish(),
			)
		}
		_ = b.bar.Set(ev.Progress.Current)

	case models.KindRunComplete:
		if b.bar != nil {
			_ = b.bar.Finish()
			b.bar = nil
		}

	case models.KindError:
		if b.bar != nil {
			_ = b.bar.Exit()
			b.bar = nil
		}
	}
}
