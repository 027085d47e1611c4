package tokenkeep

import (
	"errors"
	"time"
)

// Config defines the coordinator's tunables. A zero Config is not usable;
// start from the defaults installed by [New] and override what you need.
//
// Config instances are intended to be configured during initialization and then
// treated as immutable unless documented otherwise.
type Config struct {
	Expiry    ExpiryConfig
	Refresh   RefreshConfig
	Queue     QueueConfig
	Scheduler SchedulerConfig
	Store     StoreConfig
	Events    EventsConfig
	Metrics   MetricsConfig
}

/*
====================================
EXPIRY CONFIG
====================================
*/

// ExpiryConfig tunes the expiration policy applied before every use.
type ExpiryConfig struct {
	// Buffer is the safety margin: a token is treated as expired once its
	// expiry falls within Buffer of now, so it is rotated before it dies
	// mid-request.
	Buffer time.Duration
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig tunes the refresh attempt itself and the caller-side retry
// knobs surfaced through [RetryRefresh].
type RefreshConfig struct {
	// Timeout bounds one executor call. An attempt exceeding it settles as
	// ErrRefreshTimeout; the late response is discarded.
	Timeout time.Duration
	// MaxRetries, RetryDelay and MaxRetryDelay drive RetryRefresh. The
	// coordinator itself never retries.
	MaxRetries    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	// StaleThreshold is the flight age past which Status reports the
	// in-flight refresh as stale.
	StaleThreshold time.Duration
}

/*
====================================
QUEUE CONFIG
====================================
*/

// QueueConfig bounds the waiter queue.
type QueueConfig struct {
	// MaxSize is the backpressure valve: enqueue attempts beyond it fail
	// fast with ErrQueueFull.
	MaxSize int
	// RequestTimeout is the maximum age of a parked waiter before the sweep
	// rejects it with ErrQueuedRequestTimeout.
	RequestTimeout time.Duration
	// CleanupInterval is how often the sweep runs.
	CleanupInterval time.Duration
}

/*
====================================
SCHEDULER CONFIG
====================================
*/

// SchedulerConfig drives the background refresh loop.
type SchedulerConfig struct {
	Enabled bool
	// Interval between proactive EnsureFresh calls while a session exists.
	Interval time.Duration
	// RefreshOnForeground enables the app-foreground trigger.
	RefreshOnForeground bool
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig configures the Redis-backed token store built by the Builder
// when no custom store is supplied.
type StoreConfig struct {
	RedisPrefix string
}

// EventsConfig configures the async event dispatcher.
type EventsConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig configures the lock-free counter set.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the configuration installed by [New]. Use it as the
// starting point when a few fields need overriding before WithConfig.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Expiry: ExpiryConfig{
			Buffer: 300 * time.Second,
		},
		Refresh: RefreshConfig{
			Timeout:        10 * time.Second,
			MaxRetries:     2,
			RetryDelay:     time.Second,
			MaxRetryDelay:  30 * time.Second,
			StaleThreshold: 5 * time.Second,
		},
		Queue: QueueConfig{
			MaxSize:         100,
			RequestTimeout:  30 * time.Second,
			CleanupInterval: 60 * time.Second,
		},
		Scheduler: SchedulerConfig{
			Enabled:             true,
			Interval:            30 * time.Minute,
			RefreshOnForeground: true,
		},
		Store: StoreConfig{
			RedisPrefix: "tk",
		},
		Events: EventsConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	return cfg
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the configuration for internally inconsistent or unusable
// values.
func (c *Config) Validate() error {
	if c.Expiry.Buffer < 0 {
		return errors.New("Expiry Buffer must be >= 0")
	}

	if c.Refresh.Timeout <= 0 {
		return errors.New("Refresh Timeout must be > 0")
	}
	if c.Refresh.MaxRetries < 0 {
		return errors.New("Refresh MaxRetries must be >= 0")
	}
	if c.Refresh.RetryDelay < 0 {
		return errors.New("Refresh RetryDelay must be >= 0")
	}
	if c.Refresh.MaxRetryDelay > 0 && c.Refresh.MaxRetryDelay < c.Refresh.RetryDelay {
		return errors.New("Refresh MaxRetryDelay must be >= RetryDelay")
	}
	if c.Refresh.StaleThreshold <= 0 {
		return errors.New("Refresh StaleThreshold must be > 0")
	}

	if c.Queue.MaxSize <= 0 {
		return errors.New("Queue MaxSize must be > 0")
	}
	if c.Queue.RequestTimeout <= 0 {
		return errors.New("Queue RequestTimeout must be > 0")
	}
	if c.Queue.CleanupInterval <= 0 {
		return errors.New("Queue CleanupInterval must be > 0")
	}

	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		return errors.New("Scheduler Interval must be > 0 when Scheduler is enabled")
	}

	if c.Events.Enabled && c.Events.BufferSize <= 0 {
		return errors.New("Events BufferSize must be > 0 when Events are enabled")
	}

	return nil
}
