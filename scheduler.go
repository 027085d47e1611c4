package tokenkeep

import (
	"context"
	"errors"
	"sync"
	"time"
)

// backgroundScheduler is a two-state machine (Stopped/Running) keyed to
// session presence. While Running it triggers EnsureFresh immediately on
// entry and then once per interval; a foreground transition triggers one
// extra EnsureFresh. Every failure is swallowed: a missed background refresh
// must never crash the host, the next tick or the next real request retries.
type backgroundScheduler struct {
	cfg     SchedulerConfig
	coord   *Coordinator
	warn    func(string, ...any)
	timeout time.Duration

	mu      sync.Mutex
	running bool
	done    chan struct{}
	wg      sync.WaitGroup
}

func newBackgroundScheduler(cfg SchedulerConfig, coord *Coordinator, warn func(string, ...any)) *backgroundScheduler {
	if !cfg.Enabled {
		return nil
	}
	return &backgroundScheduler{
		cfg:   cfg,
		coord: coord,
		warn:  warn,
		// A background attempt gets the refresh timeout plus slack for the
		// store round-trips; it must never hang the loop forever.
		timeout: coord.config.Refresh.Timeout + 5*time.Second,
	}
}

// start transitions Stopped→Running. Idempotent.
func (s *backgroundScheduler) start() {
	if s == nil {
		return
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	s.coord.emit(EventSchedulerStarted, "", nil)

	s.wg.Add(1)
	go s.run(done)
}

// stop transitions Running→Stopped and waits for the loop to exit.
// Idempotent. Must not be called from within the loop itself; the loop uses
// signalStop.
func (s *backgroundScheduler) stop() {
	if s == nil {
		return
	}
	if !s.signalStop() {
		return
	}
	s.wg.Wait()
}

// signalStop flips the state machine to Stopped without waiting for the loop,
// so it is safe to call from inside a refresh triggered by the loop itself
// (invalid-grant forced sign-out). Reports whether a transition happened.
func (s *backgroundScheduler) signalStop() bool {
	if s == nil {
		return false
	}

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return false
	}
	s.running = false
	close(s.done)
	s.mu.Unlock()

	s.coord.emit(EventSchedulerStopped, "", nil)
	return true
}

func (s *backgroundScheduler) isRunning() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// foreground triggers one EnsureFresh while Running. Synchronous; the
// coordinator's no-op-when-fresh behavior is the only debounce.
func (s *backgroundScheduler) foreground() {
	if s == nil || !s.cfg.RefreshOnForeground {
		return
	}
	if !s.isRunning() {
		return
	}
	s.coord.metricInc(MetricForegroundRefresh)
	s.coord.emit(EventForegroundRefresh, "", nil)
	s.refreshNow()
}

func (s *backgroundScheduler) run(done chan struct{}) {
	defer s.wg.Done()

	// Immediate refresh on entering Running, before the first tick.
	s.refreshNow()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			select {
			case <-done:
				return
			default:
			}
			s.coord.metricInc(MetricSchedulerTick)
			s.refreshNow()
		case <-done:
			return
		}
	}
}

// refreshNow runs one EnsureFresh and swallows the outcome. ErrNoToken is
// expected churn between sign-in and first token write; everything else is
// logged and counted.
func (s *backgroundScheduler) refreshNow() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	err := s.coord.EnsureFresh(ctx)
	if err == nil || errors.Is(err, ErrNoToken) {
		return
	}

	s.coord.metricInc(MetricSchedulerFailure)
	s.coord.emit(EventSchedulerFailure, "", err)
	if s.warn != nil {
		s.warn("tokenkeep: background refresh failed: %v", err)
	}
}
