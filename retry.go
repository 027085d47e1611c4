package tokenkeep

import (
	"context"
	"errors"
	"time"
)

// RetryRefresh is the caller-side retry wrapper around [Coordinator.ForceRefresh].
// It retries transient failures (network, timeout) up to Refresh.MaxRetries
// times with exponential backoff between Refresh.RetryDelay and
// Refresh.MaxRetryDelay. Terminal failures (invalid refresh token, missing
// token, closed coordinator) are returned immediately.
func RetryRefresh(ctx context.Context, c *Coordinator) error {
	if c == nil {
		return ErrCoordinatorNotReady
	}

	cfg := c.config.Refresh
	delay := cfg.RetryDelay

	var err error
	for attempt := 0; ; attempt++ {
		err = c.ForceRefresh(ctx)
		if err == nil || !isTransientRefreshError(err) {
			return err
		}
		if attempt >= cfg.MaxRetries {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}

		delay *= 2
		if cfg.MaxRetryDelay > 0 && delay > cfg.MaxRetryDelay {
			delay = cfg.MaxRetryDelay
		}
	}
}

func isTransientRefreshError(err error) bool {
	return errors.Is(err, ErrRefreshUnavailable) ||
		errors.Is(err, ErrRefreshTimeout) ||
		errors.Is(err, ErrStoreUnavailable)
}
