package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/tokenkeep/tokenkeep"
	"github.com/tokenkeep/tokenkeep/token"
)

// slowExecutor simulates the token endpoint: every call costs one network
// round-trip and hands back a token with a bounded lifetime.
type slowExecutor struct {
	latency time.Duration
	ttl     time.Duration
	calls   atomic.Int64
}

func (e *slowExecutor) Refresh(ctx context.Context, refreshToken string) (token.Token, error) {
	e.calls.Add(1)
	select {
	case <-time.After(e.latency):
	case <-ctx.Done():
		return token.Token{}, ctx.Err()
	}
	return token.Token{
		AccessToken:  fmt.Sprintf("at-%d", e.calls.Load()),
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(e.ttl).Unix(),
	}, nil
}

func main() {
	var (
		concurrency    = flag.Int("concurrency", 256, "number of concurrent workers")
		ops            = flag.Int("ops", 200000, "operations per phase")
		refreshLatency = flag.Duration("refresh-latency", 20*time.Millisecond, "simulated token endpoint round-trip")
		tokenTTL       = flag.Duration("token-ttl", 2*time.Second, "lifetime of each refreshed token")
		redisAddr      = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix         = flag.String("prefix", "tk", "token key prefix")
	)
	flag.Parse()

	if *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "concurrency and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	exec := &slowExecutor{latency: *refreshLatency, ttl: *tokenTTL}

	cfg := tokenkeep.DefaultConfig()
	cfg.Store.RedisPrefix = *prefix
	cfg.Scheduler.Enabled = false
	// The storm phase rotates tokens with very short lifetimes; the default
	// five-minute buffer would treat every one of them as already expired.
	cfg.Expiry.Buffer = 0

	coord, err := tokenkeep.New().
		WithConfig(cfg).
		WithRedis(client).
		WithExecutor(exec).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build failed: %v\n", err)
		os.Exit(1)
	}
	defer coord.Close()

	store := token.NewRedisStore(client, *prefix)
	seed := token.Token{
		AccessToken:  "at-seed",
		RefreshToken: "rt-seed",
		ExpiresAt:    time.Now().Add(time.Hour).Unix(),
	}
	if err := store.Write(ctx, seed); err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}

	freshStats := runPhase(ctx, coord, *ops, *concurrency)
	freshCalls := exec.calls.Load()

	// Age the seed so the second phase starts with a round of real refreshes.
	seed.ExpiresAt = time.Now().Add(-time.Minute).Unix()
	if err := store.Write(ctx, seed); err != nil {
		fmt.Fprintf(os.Stderr, "reseed failed: %v\n", err)
		os.Exit(1)
	}

	stormStats := runPhase(ctx, coord, *ops, *concurrency)
	stormCalls := exec.calls.Load() - freshCalls

	fmt.Println("---- results ----")
	printStats("fresh", freshStats)
	printStats("storm", stormStats)
	fmt.Printf("executor calls: fresh=%d storm=%d (storm coalescing %.0f ops/call)\n",
		freshCalls,
		stormCalls,
		safeRatio(stormStats.ops, stormCalls),
	)

	snap := coord.MetricsSnapshot()
	fmt.Printf("metrics: hits=%d shared=%d success=%d failure=%d\n",
		snap.Counters[tokenkeep.MetricEnsureFreshHit],
		snap.Counters[tokenkeep.MetricFlightShared],
		snap.Counters[tokenkeep.MetricRefreshSuccess],
		snap.Counters[tokenkeep.MetricRefreshFailure],
	)
}

func runPhase(ctx context.Context, coord *tokenkeep.Coordinator, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := coord.EnsureFresh(ctx)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

func safeRatio(ops int, calls int64) float64 {
	if calls == 0 {
		return 0
	}
	return float64(ops) / float64(calls)
}
