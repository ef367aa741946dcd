// Package progress delivers scrape progress events to interested consumers.
// Sinks are fire-and-forget: Emit must not block the caller on delivery.
package progress

import (
	"context"
	"sync"
	"time"

	"github.com/law-makers/shopscrape/internal/reqctx"
	"github.com/law-makers/shopscrape/pkg/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Sink receives progress events
type Sink interface {
	Emit(ev models.ProgressEvent)
}

// Func adapts a function to the Sink interface
type Func func(ev models.ProgressEvent)

func (f Func) Emit(ev models.ProgressEvent) { f(ev) }

// Discard drops every event
var Discard Sink = Func(func(models.ProgressEvent) {})

// Multi fans an event out to several sinks
type Multi []Sink

func (m Multi) Emit(ev models.ProgressEvent) {
	for _, s := range m {
		if s != nil {
			s.Emit(ev)
		}
	}
}

// Stamp fills in the timestamp if it is unset
func Stamp(ev models.ProgressEvent) models.ProgressEvent {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	return ev
}

// Notify emits a message event tagged with the run ID carried by ctx
func Notify(ctx context.Context, sink Sink, typ models.EventType, kind models.EventKind, msg string) {
	if sink == nil {
		return
	}
	sink.Emit(Stamp(models.ProgressEvent{
		Type:    typ,
		Kind:    kind,
		RunID:   reqctx.RunID(ctx),
		Message: msg,
	}))
}

// LogSink writes events to the global zerolog logger
type LogSink struct{}

func (LogSink) Emit(ev models.ProgressEvent) {
	var e *zerolog.Event
	switch ev.Type {
	case models.EventError:
		e = log.Error()
	case models.EventWarning:
		e = log.Warn()
	case models.EventProgress:
		e = log.Debug()
	default:
		e = log.Info()
	}

	e = e.Str("kind", string(ev.Kind))
	if ev.RunID != "" {
		e = e.Str("run_id", ev.RunID)
	}
	if ev.Progress != nil {
		e = e.Int("current", ev.Progress.Current).
			Int("total", ev.Progress.Total).
			Float64("percentage", ev.Progress.Percentage)
	}
	e.Msg(ev.Message)
}

// Recorder keeps every event in memory. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []models.ProgressEvent
}

func (r *Recorder) Emit(ev models.ProgressEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []models.ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.ProgressEvent(nil), r.events...)
}

// OfKind returns the recorded events of one kind
func (r *Recorder) OfKind(kind models.EventKind) []models.ProgressEvent {
	var out []models.ProgressEvent
	for _, ev := range r.Events() {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}
