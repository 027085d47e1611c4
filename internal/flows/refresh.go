package flows

import (
	"context"
	"errors"
	"time"

	"github.com/tokenkeep/tokenkeep/token"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureReadStore
	RefreshFailureNoToken
	RefreshFailureNoRefreshToken
	RefreshFailureInvalidGrant
	RefreshFailureTimeout
	RefreshFailureExecute
	RefreshFailureWriteStore
)

// RefreshResult carries either the persisted token or failure metadata.
// Skipped means the fresh re-read made the exchange unnecessary.
type RefreshResult struct {
	Failure   RefreshFailureKind
	Err       error
	AttemptID string
	Token     token.Token
	Skipped   bool
	Elapsed   time.Duration
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	ReadToken func(ctx context.Context) (token.Token, bool, error)
	// AlreadyFresh, when set, short-circuits the exchange if the re-read
	// token no longer needs refreshing (another caller or process already
	// refreshed it). Forced refreshes leave it nil.
	AlreadyFresh   func(token.Token) bool
	WriteToken     func(ctx context.Context, tok token.Token) error
	ClearToken     func(ctx context.Context) error
	Execute        func(ctx context.Context, refreshToken string) (token.Token, error)
	IsInvalidGrant func(error) bool
	NewAttemptID   func() string
	Timeout        time.Duration
	Warn           func(string, ...any)
}

// RunRefresh executes one refresh attempt without root package dependencies:
// re-read the stored credential, exchange its refresh token under the attempt
// deadline, persist the result. An invalid-grant rejection also clears the
// store, since the stored credential can never succeed again.
func RunRefresh(ctx context.Context, deps RefreshDeps) RefreshResult {
	attemptID := deps.NewAttemptID()
	started := time.Now()

	fail := func(kind RefreshFailureKind, err error) RefreshResult {
		return RefreshResult{
			Failure:   kind,
			Err:       err,
			AttemptID: attemptID,
			Elapsed:   time.Since(started),
		}
	}

	// The store is the source of truth. Another process may have refreshed
	// since the caller observed expiry, so the decision is always made on a
	// fresh read.
	stored, ok, err := deps.ReadToken(ctx)
	if err != nil {
		return fail(RefreshFailureReadStore, err)
	}
	if !ok {
		return fail(RefreshFailureNoToken, errors.New("no stored token"))
	}
	if deps.AlreadyFresh != nil && deps.AlreadyFresh(stored) {
		return RefreshResult{
			Failure:   RefreshFailureNone,
			AttemptID: attemptID,
			Token:     stored,
			Skipped:   true,
			Elapsed:   time.Since(started),
		}
	}
	if !stored.HasRefresh() {
		return fail(RefreshFailureNoRefreshToken, errors.New("stored token has no refresh token"))
	}

	execCtx := ctx
	if deps.Timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, deps.Timeout)
		defer cancel()
	}

	fresh, err := deps.Execute(execCtx, stored.RefreshToken)
	if err != nil {
		switch {
		case execCtx.Err() != nil && ctx.Err() == nil:
			return fail(RefreshFailureTimeout, err)
		case deps.IsInvalidGrant != nil && deps.IsInvalidGrant(err):
			// Terminal: the refresh token is dead. Wipe it so no later
			// attempt burns a network call on the same corpse.
			if clearErr := deps.ClearToken(ctx); clearErr != nil && deps.Warn != nil {
				deps.Warn("tokenkeep: store clear after invalid grant failed")
			}
			return fail(RefreshFailureInvalidGrant, err)
		default:
			return fail(RefreshFailureExecute, err)
		}
	}

	if err := deps.WriteToken(ctx, fresh); err != nil {
		return fail(RefreshFailureWriteStore, err)
	}

	return RefreshResult{
		Failure:   RefreshFailureNone,
		AttemptID: attemptID,
		Token:     fresh,
		Elapsed:   time.Since(started),
	}
}
