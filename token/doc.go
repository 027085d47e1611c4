// Package token defines the credential record kept fresh by the coordinator and
// the Store contract that owns its persistence.
//
// # Architecture boundaries
//
// The coordinator never caches a Token across calls; it re-reads through Store
// before every freshness decision so that a refresh performed by another
// process is observed instead of overwritten.
//
// Two Store implementations ship with the package: RedisStore for deployments
// that share one credential across processes, and MemoryStore for single
// process CLIs and tests. Both are safe for concurrent use.
package token
