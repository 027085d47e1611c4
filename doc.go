// Package tokenkeep keeps a locally cached access token fresh for many
// concurrent consumers while guaranteeing that at most one network refresh is
// ever in flight.
//
// The package is designed for concurrent client workloads: Coordinator methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// tokenkeep is the public surface. It exposes [Coordinator], [Builder],
// [Config], and value types (Event, MetricsSnapshot, Status). The refresh flow
// body lives under internal/ and is never exported. Persistence is owned by
// [token.Store]; the network exchange is owned by the [Executor] collaborator
// (see the refresher package).
//
// # What this package must NOT do
//
//   - Cache a token across calls. Freshness is always decided on a fresh
//     store read, so a refresh performed elsewhere is observed, not repeated.
//   - Retry a failed refresh on its own. The single-flight queue deduplicates
//     concurrent demand; absorbing failures is the caller's policy
//     ([RetryRefresh] implements the default one).
//   - Issue tokens or establish identity.
//
// # Concurrency contract
//
// Any number of callers observing an expired token converge on the same
// refresh attempt and settle to the identical outcome. After every attempt,
// success or failure, the coordinator returns to idle; no exit path leaves it
// stuck believing a refresh is in flight.
package tokenkeep
