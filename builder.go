package tokenkeep

import (
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tokenkeep/tokenkeep/refresher"
	"github.com/tokenkeep/tokenkeep/token"
)

// Builder assembles a Coordinator. Configure it during initialization, call
// Build once, and treat the result as immutable.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	store  token.Store

	executor       Executor
	isInvalidGrant func(error) bool
	eventSink      EventSink

	built bool
}

// New returns a Builder carrying the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the Redis client backing the default token store.
// Ignored when WithStore is also used.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore supplies a custom token store, overriding the Redis-backed
// default.
func (b *Builder) WithStore(store token.Store) *Builder {
	b.store = store
	return b
}

// WithExecutor supplies the collaborator performing the network refresh.
// Required.
func (b *Builder) WithExecutor(exec Executor) *Builder {
	b.executor = exec
	return b
}

// WithInvalidGrantClassifier overrides how executor errors are recognized as
// terminal invalid-refresh-token rejections. The default understands the
// refresher package's ErrInvalidGrant.
func (b *Builder) WithInvalidGrantClassifier(fn func(error) bool) *Builder {
	b.isInvalidGrant = fn
	return b
}

// WithEventSink supplies the sink receiving lifecycle events. Enables event
// dispatch implicitly.
func (b *Builder) WithEventSink(sink EventSink) *Builder {
	b.eventSink = sink
	b.config.Events.Enabled = true
	return b
}

// WithMetricsEnabled toggles the counter set.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the refresh latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithScheduler toggles the background scheduler and its interval.
func (b *Builder) WithScheduler(enabled bool, interval time.Duration) *Builder {
	b.config.Scheduler.Enabled = enabled
	if interval > 0 {
		b.config.Scheduler.Interval = interval
	}
	return b
}

// Build validates the configuration and wires the Coordinator. The returned
// Coordinator is idle; nothing refreshes until a caller or the scheduler asks.
func (b *Builder) Build() (*Coordinator, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.executor == nil {
		return nil, errors.New("executor required")
	}

	store := b.store
	if store == nil {
		if b.redis == nil {
			return nil, errors.New("redis client or custom store required")
		}
		store = token.NewRedisStore(b.redis, cfg.Store.RedisPrefix)
	}

	classify := b.isInvalidGrant
	if classify == nil {
		classify = func(err error) bool {
			return errors.Is(err, refresher.ErrInvalidGrant)
		}
	}

	c := &Coordinator{
		config:         cfg,
		store:          store,
		executor:       b.executor,
		isInvalidGrant: classify,
		metrics:        NewMetrics(cfg.Metrics),
		events:         newEventDispatcher(cfg.Events, b.eventSink),
		warn:           log.Printf,
		now:            time.Now,
		queue:          newWaiterQueue(cfg.Queue.MaxSize),
		sweepDone:      make(chan struct{}),
	}
	c.scheduler = newBackgroundScheduler(cfg.Scheduler, c, c.warn)

	c.sweepWG.Add(1)
	go c.sweepLoop()

	b.built = true

	return c, nil
}

func newAttemptID() string {
	return uuid.NewString()
}
