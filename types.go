package tokenkeep

import (
	"context"
	"time"

	"github.com/tokenkeep/tokenkeep/token"
)

// Executor is the external collaborator that performs the actual network
// refresh. It must reject a dead refresh token with an error the configured
// classifier recognizes as terminal (see [Builder.WithInvalidGrantClassifier]);
// every other failure is treated as transient.
//
// The refresher package ships the OAuth2 implementation.
type Executor interface {
	Refresh(ctx context.Context, refreshToken string) (token.Token, error)
}

// ExecutorFunc adapts a plain function to the [Executor] interface.
type ExecutorFunc func(ctx context.Context, refreshToken string) (token.Token, error)

// Refresh implements Executor.
func (f ExecutorFunc) Refresh(ctx context.Context, refreshToken string) (token.Token, error) {
	return f(ctx, refreshToken)
}

// Status is a point-in-time diagnostic snapshot of the coordinator.
type Status struct {
	// InFlight reports whether a refresh attempt is currently running.
	InFlight bool
	// Stale reports whether the running attempt has exceeded the configured
	// stale threshold. Always false when idle.
	Stale bool
	// FlightAge is how long the current attempt has been running.
	FlightAge time.Duration
	// QueueLength is the number of waiters parked for the next refresh.
	QueueLength int
	// SchedulerRunning reports whether the background scheduler is in its
	// Running state.
	SchedulerRunning bool
}
