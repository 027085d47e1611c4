// Package expiry implements the pure expiration policy applied to stored access
// tokens before use.
//
// # Policy
//
// A token with a known expiry is treated as expired once its expiry falls inside
// the configured safety buffer, so it is rotated before it dies mid-request. A
// token with no known expiry is treated as not expired (fail-open): the policy
// cannot prove expiry and must not force refresh churn.
//
// # What this package must NOT do
//
//   - Access the token store or any I/O.
//   - Import tokenkeep or token.
//   - Read the wall clock; callers pass now explicitly.
package expiry
