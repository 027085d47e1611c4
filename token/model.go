package token

import (
	"context"
	"time"
)

// Token is the stored credential triple. ExpiresAt is epoch seconds; zero
// means the expiry is unknown.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
}

// HasAccess reports whether an access token is present.
func (t Token) HasAccess() bool {
	return t.AccessToken != ""
}

// HasRefresh reports whether the token can be refreshed at all.
func (t Token) HasRefresh() bool {
	return t.RefreshToken != ""
}

// TTL returns the remaining lifetime relative to now, and ok=false when the
// expiry is unknown.
func (t Token) TTL(now time.Time) (time.Duration, bool) {
	if t.ExpiresAt == 0 {
		return 0, false
	}
	return time.Unix(t.ExpiresAt, 0).Sub(now), true
}

// Store is the persistence contract consumed by the coordinator. Each call is
// atomic; failures are I/O errors only.
type Store interface {
	// Read returns the stored token. ok is false when no token is stored.
	Read(ctx context.Context) (Token, bool, error)
	// Write replaces the stored token.
	Write(ctx context.Context, tok Token) error
	// Clear removes the stored token. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}
