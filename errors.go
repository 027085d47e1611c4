package tokenkeep

import "errors"

var (
	// ErrRefreshInvalid is an exported constant or variable used by the refresh coordinator.
	ErrRefreshInvalid = errors.New("refresh token invalid")
	// ErrRefreshTimeout is an exported constant or variable used by the refresh coordinator.
	ErrRefreshTimeout = errors.New("refresh attempt timed out")
	// ErrRefreshUnavailable is an exported constant or variable used by the refresh coordinator.
	ErrRefreshUnavailable = errors.New("refresh backend unavailable")
	// ErrQueueFull is an exported constant or variable used by the refresh coordinator.
	ErrQueueFull = errors.New("refresh waiter queue full")
	// ErrQueuedRequestTimeout is an exported constant or variable used by the refresh coordinator.
	ErrQueuedRequestTimeout = errors.New("queued refresh request timed out")
	// ErrNoToken is an exported constant or variable used by the refresh coordinator.
	ErrNoToken = errors.New("no stored token")
	// ErrNoRefreshToken is an exported constant or variable used by the refresh coordinator.
	ErrNoRefreshToken = errors.New("stored token cannot be refreshed")
	// ErrStoreUnavailable is an exported constant or variable used by the refresh coordinator.
	ErrStoreUnavailable = errors.New("token store unavailable")
	// ErrCoordinatorClosed is an exported constant or variable used by the refresh coordinator.
	ErrCoordinatorClosed = errors.New("coordinator closed")
	// ErrCoordinatorNotReady is an exported constant or variable used by the refresh coordinator.
	ErrCoordinatorNotReady = errors.New("coordinator not initialized")
)
