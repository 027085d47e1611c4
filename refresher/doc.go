// Package refresher implements the network side of a token refresh: the single
// fallible call that exchanges a refresh token for a new credential.
//
// Manager speaks the OAuth2 refresh_token grant through golang.org/x/oauth2 and
// classifies failures into two kinds the coordinator cares about: an
// invalid_grant rejection (terminal, the refresh token is dead) and everything
// else (transient, the caller may retry).
//
// # Architecture boundaries
//
// This package performs exactly one exchange per Refresh call. Timeouts,
// retries, single-flight coordination, and persistence all belong to the
// coordinator and its collaborators.
package refresher
