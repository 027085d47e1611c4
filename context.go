package tokenkeep

import "context"

type retriedRequestContextKey struct{}

// withRetriedRequest marks a request context as already retried after a 401,
// enforcing the retry-exactly-once discipline in [Transport].
func withRetriedRequest(ctx context.Context) context.Context {
	return context.WithValue(ctx, retriedRequestContextKey{}, true)
}

func isRetriedRequest(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	retried, _ := ctx.Value(retriedRequestContextKey{}).(bool)
	return retried
}
