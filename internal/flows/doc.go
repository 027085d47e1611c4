// Package flows contains the pure-function orchestrator for the refresh
// attempt.
//
// RunRefresh accepts a typed dependency struct and returns a result without
// side-effects beyond those dependencies. This design enables exhaustive unit
// testing with mock dependencies and keeps the Coordinator type thin.
//
// # Architecture boundaries
//
// The flow coordinates calls to the token store and the refresh executor. It
// does NOT own either resource; ownership stays with the Coordinator.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import tokenkeep (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through dependency functions.
package flows
