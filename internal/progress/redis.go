package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/law-makers/shopscrape/pkg/models"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const publishTimeout = 5 * time.Second

// StreamAdder is the subset of the redis client used by RedisSink
type StreamAdder interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
}

// RedisSink appends events to a Redis stream from a background goroutine so
// Emit never waits on the network. Events are dropped when the queue is full.
type RedisSink struct {
	client StreamAdder
	stream string
	maxLen int64

	mu     sync.Mutex
	closed bool
	events chan models.ProgressEvent
	done   chan struct{}
}

// NewRedisSink starts a sink publishing to stream, trimmed to roughly maxLen entries
func NewRedisSink(client StreamAdder, stream string, maxLen int64) *RedisSink {
	s := &RedisSink{
		client: client,
		stream: stream,
		maxLen: maxLen,
		events: make(chan models.ProgressEvent, 256),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *RedisSink) Emit(ev models.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- Stamp(ev):
	default:
		log.Warn().Str("stream", s.stream).Str("kind", string(ev.Kind)).Msg("Progress queue full, dropping event")
	}
}

// Close flushes queued events and stops the publisher
func (s *RedisSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.events)
	s.mu.Unlock()

	<-s.done
	return nil
}

func (s *RedisSink) run() {
	defer close(s.done)
	for ev := range s.events {
		if err := s.publish(ev); err != nil {
			log.Warn().Err(err).Str("stream", s.stream).Msg("Failed to publish progress event")
		}
	}
}

func (s *RedisSink) publish(ev models.ProgressEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	args := &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: s.maxLen > 0,
		Values: map[string]interface{}{
			"data":      string(data),
			"type":      string(ev.Type),
			"kind":      string(ev.Kind),
			"run_id":    ev.RunID,
			"timestamp": fmt.Sprintf("%d", ev.Timestamp.UnixNano()),
		},
	}
	if _, err := s.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}
	return nil
}
