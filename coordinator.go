package tokenkeep

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tokenkeep/tokenkeep/expiry"
	"github.com/tokenkeep/tokenkeep/internal/flows"
	"github.com/tokenkeep/tokenkeep/token"
)

// Coordinator is the single-flight refresh engine. It owns the in-flight
// state and the waiter queue; the token itself is owned by the store and
// re-read on every decision.
//
// Coordinator instances are intended to be configured during initialization
// and then treated as immutable unless documented otherwise. Construct one per
// credential through [Builder.Build] and pass it explicitly to consumers; it
// is deliberately not a package-level singleton.
type Coordinator struct {
	config         Config
	store          token.Store
	executor       Executor
	isInvalidGrant func(error) bool
	metrics        *Metrics
	events         *eventDispatcher
	scheduler      *backgroundScheduler
	warn           func(string, ...any)
	now            func() time.Time

	mu     sync.Mutex
	flight *refreshFlight
	queue  *waiterQueue
	closed bool

	sweepDone chan struct{}
	sweepWG   sync.WaitGroup
	closeOnce sync.Once
}

// refreshFlight is the shared handle every concurrent caller of one refresh
// cycle awaits: err is written once, then done is closed.
type refreshFlight struct {
	started time.Time
	done    chan struct{}
	err     error
}

// EnsureFresh re-reads the stored token, applies the expiration policy, and
// refreshes only when necessary. Fresh tokens return immediately with no state
// mutation. Any number of concurrent callers observing the same expiry
// converge on a single executor call.
func (c *Coordinator) EnsureFresh(ctx context.Context) error {
	if c == nil {
		return ErrCoordinatorNotReady
	}

	stored, ok, err := c.store.Read(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !ok {
		return ErrNoToken
	}

	if !expiry.IsExpired(stored.ExpiresAt, c.now(), c.config.Expiry.Buffer) {
		c.metricInc(MetricEnsureFreshHit)
		return nil
	}

	return c.refresh(ctx, true)
}

// ForceRefresh runs one refresh attempt. When an attempt is already in flight
// the caller joins it and receives its outcome; otherwise the caller becomes
// the owner and runs the attempt itself. All callers of one cycle settle to
// the identical outcome.
func (c *Coordinator) ForceRefresh(ctx context.Context) error {
	if c == nil {
		return ErrCoordinatorNotReady
	}
	return c.refresh(ctx, false)
}

// refresh is the shared entry behind EnsureFresh and ForceRefresh.
// skipIfFresh enables the double-checked freshness read inside the flight:
// an EnsureFresh caller that loses the race to another refresh must not buy a
// second network call, while a forced refresh (401 recovery) must go to the
// network even when the policy still calls the token fresh.
func (c *Coordinator) refresh(ctx context.Context, skipIfFresh bool) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrCoordinatorClosed
	}
	if f := c.flight; f != nil {
		c.mu.Unlock()
		c.metricInc(MetricFlightShared)
		return c.awaitFlight(ctx, f)
	}

	f := &refreshFlight{
		started: c.now(),
		done:    make(chan struct{}),
	}
	c.flight = f
	c.mu.Unlock()

	return c.runFlight(ctx, f, skipIfFresh)
}

// QueueForRefresh parks the caller until some refresh cycle settles. With an
// attempt in flight it joins that attempt; when idle it waits for a refresh
// triggered elsewhere (the 401-interceptor shape: the retried request must
// block until any refresh completes, not one it started). Rejects with
// ErrQueueFull at capacity; the sweep rejects waiters older than the queued
// request timeout.
func (c *Coordinator) QueueForRefresh(ctx context.Context) error {
	if c == nil {
		return ErrCoordinatorNotReady
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrCoordinatorClosed
	}
	if f := c.flight; f != nil {
		c.mu.Unlock()
		c.metricInc(MetricFlightShared)
		return c.awaitFlight(ctx, f)
	}

	w, ok := c.queue.enqueue(c.now())
	c.mu.Unlock()
	if !ok {
		c.metricInc(MetricQueueRejectedFull)
		c.emit(EventQueueRejected, "", ErrQueueFull)
		return ErrQueueFull
	}
	c.metricInc(MetricQueueEnqueued)

	select {
	case err := <-w.ch:
		return err
	case <-ctx.Done():
		c.mu.Lock()
		removed := c.queue.remove(w.id)
		c.mu.Unlock()
		if !removed {
			// Settlement raced the cancellation; the outcome is already
			// buffered and must win, or the caller would observe a refresh
			// it was never told about.
			return <-w.ch
		}
		return ctx.Err()
	}
}

// QueueLength reports the number of parked waiters. Introspection only.
func (c *Coordinator) QueueLength() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.len()
}

// IsRefreshInProgress reports whether an attempt is in flight. Introspection
// only.
func (c *Coordinator) IsRefreshInProgress() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flight != nil
}

// Status returns a point-in-time diagnostic snapshot.
func (c *Coordinator) Status() Status {
	if c == nil {
		return Status{}
	}

	c.mu.Lock()
	s := Status{
		InFlight:    c.flight != nil,
		QueueLength: c.queue.len(),
	}
	if c.flight != nil {
		s.FlightAge = c.now().Sub(c.flight.started)
		s.Stale = s.FlightAge > c.config.Refresh.StaleThreshold
	}
	c.mu.Unlock()

	s.SchedulerRunning = c.scheduler.isRunning()
	return s
}

// MetricsSnapshot copies the current counter values.
func (c *Coordinator) MetricsSnapshot() MetricsSnapshot {
	if c == nil || c.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return c.metrics.Snapshot()
}

// EventsDropped reports how many events the dispatcher shed under pressure.
func (c *Coordinator) EventsDropped() uint64 {
	if c == nil {
		return 0
	}
	return c.events.Dropped()
}

// OnSessionStart transitions the background scheduler to Running: one
// immediate EnsureFresh, then one per configured interval. Idempotent.
func (c *Coordinator) OnSessionStart() {
	if c == nil || c.scheduler == nil {
		return
	}
	c.scheduler.start()
}

// OnSessionEnd transitions the background scheduler to Stopped and waits for
// its loop to exit. No refresh attempts are triggered while stopped.
// Idempotent.
func (c *Coordinator) OnSessionEnd() {
	if c == nil || c.scheduler == nil {
		return
	}
	c.scheduler.stop()
}

// OnAppForeground reports an application background→active transition. While
// the scheduler is Running this triggers one EnsureFresh, synchronously and
// with all failures swallowed; a fresh token makes it a no-op. Ignored while
// Stopped.
func (c *Coordinator) OnAppForeground() {
	if c == nil || c.scheduler == nil {
		return
	}
	c.scheduler.foreground()
}

// Close releases the coordinator: stops the scheduler and the queue sweep,
// rejects parked waiters, and drains the event dispatcher. Idempotent.
func (c *Coordinator) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		c.scheduler.stop()

		c.mu.Lock()
		c.closed = true
		orphans := c.queue.takeAll()
		c.mu.Unlock()

		close(c.sweepDone)
		c.sweepWG.Wait()

		for _, w := range orphans {
			w.settle(ErrCoordinatorClosed)
		}

		c.events.Close()
	})
}

func (c *Coordinator) awaitFlight(ctx context.Context, f *refreshFlight) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		// The flight keeps running; its outcome still settles every other
		// caller of this cycle.
		return ctx.Err()
	}
}

// runFlight executes the attempt as its owner. The deferred block is the one
// place the coordinator transitions back to idle, so every exit path (success,
// failure, timeout, panic unwinding through the executor) releases the flight
// and drains the queue exactly once.
func (c *Coordinator) runFlight(ctx context.Context, f *refreshFlight, skipIfFresh bool) (err error) {
	defer func() {
		c.mu.Lock()
		drained := c.queue.takeAll()
		c.flight = nil
		c.mu.Unlock()

		f.err = err
		close(f.done)
		for _, w := range drained {
			w.settle(err)
		}
	}()

	c.emit(EventRefreshStart, "", nil)

	deps := flows.RefreshDeps{
		ReadToken:      c.store.Read,
		WriteToken:     c.store.Write,
		ClearToken:     c.store.Clear,
		Execute:        c.executor.Refresh,
		IsInvalidGrant: c.isInvalidGrant,
		NewAttemptID:   newAttemptID,
		Timeout:        c.config.Refresh.Timeout,
		Warn:           c.warn,
	}
	if skipIfFresh {
		deps.AlreadyFresh = func(tok token.Token) bool {
			return !expiry.IsExpired(tok.ExpiresAt, c.now(), c.config.Expiry.Buffer)
		}
	}

	res := flows.RunRefresh(ctx, deps)
	c.metrics.Observe(MetricRefreshLatency, res.Elapsed)

	if res.Failure == flows.RefreshFailureNone {
		if res.Skipped {
			c.metricInc(MetricEnsureFreshHit)
			return nil
		}
		c.metricInc(MetricRefreshSuccess)
		c.emit(EventRefreshSuccess, res.AttemptID, nil)
		return nil
	}

	c.metricInc(MetricRefreshFailure)
	err = c.mapRefreshFailure(res)
	c.emit(EventRefreshFailure, res.AttemptID, err)

	return err
}

func (c *Coordinator) mapRefreshFailure(res flows.RefreshResult) error {
	switch res.Failure {
	case flows.RefreshFailureReadStore, flows.RefreshFailureWriteStore:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, res.Err)
	case flows.RefreshFailureNoToken:
		return ErrNoToken
	case flows.RefreshFailureNoRefreshToken:
		return ErrNoRefreshToken
	case flows.RefreshFailureInvalidGrant:
		c.metricInc(MetricRefreshInvalidGrant)
		// Terminal credential death forces sign-out: the flow already
		// cleared the store; stop proactive refreshes too.
		c.scheduler.signalStop()
		c.emit(EventSignOutForced, res.AttemptID, res.Err)
		return fmt.Errorf("%w: %v", ErrRefreshInvalid, res.Err)
	case flows.RefreshFailureTimeout:
		c.metricInc(MetricRefreshTimeout)
		return fmt.Errorf("%w: %v", ErrRefreshTimeout, res.Err)
	default:
		return fmt.Errorf("%w: %v", ErrRefreshUnavailable, res.Err)
	}
}

func (c *Coordinator) sweepLoop() {
	defer c.sweepWG.Done()

	ticker := time.NewTicker(c.config.Queue.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweepQueue()
		case <-c.sweepDone:
			return
		}
	}
}

func (c *Coordinator) sweepQueue() {
	cutoff := c.now().Add(-c.config.Queue.RequestTimeout)

	c.mu.Lock()
	expired := c.queue.expire(cutoff)
	c.mu.Unlock()

	for _, w := range expired {
		w.settle(ErrQueuedRequestTimeout)
		c.metricInc(MetricQueueTimedOut)
		c.emit(EventQueueTimeout, "", ErrQueuedRequestTimeout)
	}
}

func (c *Coordinator) metricInc(id MetricID) {
	if c == nil || c.metrics == nil {
		return
	}
	c.metrics.Inc(id)
}

func (c *Coordinator) emit(eventType, attemptID string, cause error) {
	if c == nil || c.events == nil {
		return
	}
	event := Event{
		Timestamp: c.now(),
		EventType: eventType,
		AttemptID: attemptID,
		Success:   cause == nil,
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	c.events.Emit(context.Background(), event)
}
