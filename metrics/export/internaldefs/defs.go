package internaldefs

import (
	"github.com/tokenkeep/tokenkeep"
)

// CounterDef defines a public type used by tokenkeep APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   tokenkeep.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by tokenkeep APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   tokenkeep.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the refresh coordinator.
var CounterDefs = []CounterDef{
	{ID: tokenkeep.MetricEnsureFreshHit, Name: "tokenkeep_ensure_fresh_hit_total", Help: "EnsureFresh calls that found the token fresh."},
	{ID: tokenkeep.MetricRefreshSuccess, Name: "tokenkeep_refresh_success_total", Help: "Successful refresh attempts."},
	{ID: tokenkeep.MetricRefreshFailure, Name: "tokenkeep_refresh_failure_total", Help: "Failed refresh attempts."},
	{ID: tokenkeep.MetricRefreshTimeout, Name: "tokenkeep_refresh_timeout_total", Help: "Refresh attempts that exceeded the timeout."},
	{ID: tokenkeep.MetricRefreshInvalidGrant, Name: "tokenkeep_refresh_invalid_grant_total", Help: "Terminal invalid-refresh-token rejections."},
	{ID: tokenkeep.MetricFlightShared, Name: "tokenkeep_flight_shared_total", Help: "Callers that joined an already in-flight refresh."},
	{ID: tokenkeep.MetricQueueEnqueued, Name: "tokenkeep_queue_enqueued_total", Help: "Waiters parked for a future refresh."},
	{ID: tokenkeep.MetricQueueRejectedFull, Name: "tokenkeep_queue_rejected_full_total", Help: "Enqueue attempts refused at capacity."},
	{ID: tokenkeep.MetricQueueTimedOut, Name: "tokenkeep_queue_timed_out_total", Help: "Waiters aged out by the sweep."},
	{ID: tokenkeep.MetricSchedulerTick, Name: "tokenkeep_scheduler_tick_total", Help: "Proactive refresh triggers from the interval timer."},
	{ID: tokenkeep.MetricSchedulerFailure, Name: "tokenkeep_scheduler_failure_total", Help: "Swallowed background refresh failures."},
	{ID: tokenkeep.MetricForegroundRefresh, Name: "tokenkeep_foreground_refresh_total", Help: "Refresh triggers from foreground transitions."},
}

// HistogramDefs is an exported constant or variable used by the refresh coordinator.
var HistogramDefs = []HistogramDef{
	{ID: tokenkeep.MetricRefreshLatency, Name: "tokenkeep_refresh_latency_seconds", Help: "Settled refresh attempt latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the refresh coordinator.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the refresh coordinator.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies a variable-length snapshot slice into the fixed
// bucket array, ignoring anything beyond the known bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into the cumulative form the
// Prometheus exposition format expects.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
