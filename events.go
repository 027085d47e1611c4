package tokenkeep

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Event types emitted by the coordinator and scheduler.
const (
	EventRefreshStart      = "refresh_start"
	EventRefreshSuccess    = "refresh_success"
	EventRefreshFailure    = "refresh_failure"
	EventQueueRejected     = "queue_rejected"
	EventQueueTimeout      = "queue_timeout"
	EventSchedulerStarted  = "scheduler_started"
	EventSchedulerStopped  = "scheduler_stopped"
	EventSchedulerFailure  = "scheduler_failure"
	EventForegroundRefresh = "foreground_refresh"
	EventSignOutForced     = "sign_out_forced"
)

// Event is one observable occurrence in the refresh lifecycle.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	AttemptID string            `json:"attempt_id,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// EventSink receives events emitted by the coordinator. Emit must be safe for
// concurrent use; slow sinks only delay the dispatcher goroutine, never the
// refresh path.
type EventSink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink discards every event.
type NoOpSink struct{}

// Emit implements EventSink.
func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink forwards events to a channel for test and pipeline consumers.
type ChannelSink struct {
	events chan Event
}

// NewChannelSink returns a ChannelSink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Event, buffer),
	}
}

// Emit implements EventSink.
func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

// Events exposes the receiving side of the sink.
func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON line per event.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONWriterSink returns a sink writing to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

// Emit implements EventSink.
func (s *JSONWriterSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}
