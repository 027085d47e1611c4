package tokenkeep

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tokenkeep/tokenkeep/token"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, Event) {
	s.count.Add(1)
}

func (s *countingSink) Count() int64 {
	return s.count.Load()
}

type gateSink struct {
	gate chan struct{}
}

func newGateSink() *gateSink {
	return &gateSink{
		gate: make(chan struct{}),
	}
}

func (s *gateSink) Emit(context.Context, Event) {
	<-s.gate
}

func newEventTestCoordinator(t *testing.T, sink EventSink) (*Coordinator, *token.MemoryStore, *fakeExecutor) {
	t.Helper()

	exec := &fakeExecutor{}
	store := token.NewMemoryStore()
	c, err := New().
		WithConfig(testConfig()).
		WithStore(store).
		WithExecutor(exec).
		WithEventSink(sink).
		Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	t.Cleanup(c.Close)

	return c, store, exec
}

func TestEventsDisabledNoSinkCalls(t *testing.T) {
	sink := &countingSink{}
	exec := &fakeExecutor{}
	store := token.NewMemoryStore()

	cfg := testConfig()
	cfg.Events.Enabled = false

	// The sink is wired first; the later WithConfig turns events back off, so
	// the dispatcher is never created.
	c, err := New().
		WithEventSink(sink).
		WithConfig(cfg).
		WithStore(store).
		WithExecutor(exec).
		Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	t.Cleanup(c.Close)

	seedExpired(t, store)
	if err := c.ForceRefresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	if sink.Count() != 0 {
		t.Fatalf("expected no sink calls when events are disabled, got %d", sink.Count())
	}
}

func TestEventsRefreshLifecycle(t *testing.T) {
	sink := NewChannelSink(16)
	c, store, _ := newEventTestCoordinator(t, sink)
	seedExpired(t, store)

	if err := c.ForceRefresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	want := []string{EventRefreshStart, EventRefreshSuccess}
	for _, wantType := range want {
		select {
		case ev := <-sink.Events():
			if ev.EventType != wantType {
				t.Fatalf("expected %s, got %s", wantType, ev.EventType)
			}
			if wantType == EventRefreshSuccess {
				if !ev.Success {
					t.Fatal("success event must report Success=true")
				}
				if ev.AttemptID == "" {
					t.Fatal("settled event must carry an attempt id")
				}
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("did not receive %s", wantType)
		}
	}
}

func TestEventsRefreshFailureCarriesError(t *testing.T) {
	sink := NewChannelSink(16)
	c, store, exec := newEventTestCoordinator(t, sink)
	exec.fn = func(context.Context, string) (token.Token, error) {
		return token.Token{}, errors.New("connection refused")
	}
	seedExpired(t, store)

	if err := c.ForceRefresh(context.Background()); err == nil {
		t.Fatal("expected refresh failure")
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sink.Events():
			if ev.EventType != EventRefreshFailure {
				continue
			}
			if ev.Success {
				t.Fatal("failure event must report Success=false")
			}
			if ev.Error == "" {
				t.Fatal("failure event must carry the error text")
			}
			return
		case <-deadline:
			t.Fatal("did not receive refresh_failure")
		}
	}
}

func TestEventsBufferFullDropIfFullTrueDoesNotBlock(t *testing.T) {
	sink := newGateSink()
	dispatcher := newEventDispatcher(EventsConfig{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: true,
	}, sink)
	defer func() {
		close(sink.gate)
		dispatcher.Close()
	}()

	dispatcher.Emit(context.Background(), Event{EventType: "e1"})
	dispatcher.Emit(context.Background(), Event{EventType: "e2"})

	start := time.Now()
	dispatcher.Emit(context.Background(), Event{EventType: "e3"})
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("expected non-blocking emit when DropIfFull is true")
	}
	if dispatcher.Dropped() == 0 {
		t.Fatal("expected dropped counter to increment when queue is full")
	}
}

func TestEventsBufferFullDropIfFullFalseBlocksUntilSpace(t *testing.T) {
	sink := newGateSink()
	dispatcher := newEventDispatcher(EventsConfig{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: false,
	}, sink)
	defer func() {
		close(sink.gate)
		dispatcher.Close()
	}()

	dispatcher.Emit(context.Background(), Event{EventType: "e1"})
	dispatcher.Emit(context.Background(), Event{EventType: "e2"})

	done := make(chan struct{})
	go func() {
		dispatcher.Emit(context.Background(), Event{EventType: "e3"})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("expected emit to block while buffer is full")
	case <-time.After(150 * time.Millisecond):
	}

	sink.gate <- struct{}{}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected blocked emit to proceed after space is available")
	}
}

func TestEventsJSONWriterSinkWritesJSONLines(t *testing.T) {
	var buf syncBuffer
	sink := NewJSONWriterSink(&buf)
	event := Event{
		Timestamp: time.Now().UTC(),
		EventType: EventRefreshSuccess,
		AttemptID: "attempt-1",
		Success:   true,
	}
	sink.Emit(context.Background(), event)

	if !buf.Contains("refresh_success") {
		t.Fatal("expected JSON log line to contain event type")
	}
	if !buf.Contains("\"attempt_id\":\"attempt-1\"") {
		t.Fatal("expected JSON log line to contain attempt id")
	}
}

func TestEventDispatcherCloseIdempotentAndEmitAfterCloseSafe(t *testing.T) {
	dispatcher := newEventDispatcher(EventsConfig{
		Enabled:    true,
		BufferSize: 4,
		DropIfFull: true,
	}, &countingSink{})

	dispatcher.Emit(context.Background(), Event{EventType: "e1"})
	dispatcher.Close()
	dispatcher.Close()
	dispatcher.Emit(context.Background(), Event{EventType: "e2"})
}

func TestEventDispatcherDrainsBufferOnClose(t *testing.T) {
	sink := &countingSink{}
	dispatcher := newEventDispatcher(EventsConfig{
		Enabled:    true,
		BufferSize: 8,
		DropIfFull: true,
	}, sink)

	for i := 0; i < 5; i++ {
		dispatcher.Emit(context.Background(), Event{EventType: "e"})
	}
	dispatcher.Close()

	if got := sink.Count(); got != 5 {
		t.Fatalf("expected 5 delivered events after close, got %d", got)
	}
}

func TestEventsNoTokenMaterialInEvents(t *testing.T) {
	sink := NewChannelSink(32)
	c, store, _ := newEventTestCoordinator(t, sink)
	seedExpired(t, store)

	if err := c.ForceRefresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	secretNeedles := []string{"at-fresh", "at-old", "rt-1"}

	events := make([]Event, 0, 4)
	timeout := time.After(time.Second)
collectLoop:
	for len(events) < 4 {
		select {
		case ev := <-sink.Events():
			events = append(events, ev)
		case <-timeout:
			break collectLoop
		}
	}

	if len(events) == 0 {
		t.Fatal("expected at least one event")
	}
	for _, ev := range events {
		for _, needle := range secretNeedles {
			if stringContains(ev.Error, needle) {
				t.Fatalf("token material leaked in event error field: %q", needle)
			}
			for k, v := range ev.Metadata {
				if stringContains(k, needle) || stringContains(v, needle) {
					t.Fatalf("token material leaked in event metadata: %q", needle)
				}
			}
		}
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *syncBuffer) Contains(v string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return stringContains(string(b.buf), v)
}

func stringContains(s, sub string) bool {
	if len(sub) == 0 {
		return true
	}
	if len(sub) > len(s) {
		return false
	}
	for i := 0; i <= len(s)-len(sub); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
