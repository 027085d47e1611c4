package tokenkeep

import (
	"fmt"
	"io"
	"net/http"
)

// Transport is an http.RoundTripper for request-issuing code: it ensures the
// token is fresh before dispatch, injects the bearer header, and on a 401
// refreshes and retries the request exactly once. Wrap it around any client
// talking to the authenticated API.
type Transport struct {
	coord *Coordinator
	base  http.RoundTripper
}

// NewTransport wraps base (nil means http.DefaultTransport) with credential
// handling driven by c.
func NewTransport(c *Coordinator, base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{
		coord: c,
		base:  base,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	if err := t.coord.EnsureFresh(ctx); err != nil {
		return nil, fmt.Errorf("tokenkeep: ensure fresh before request: %w", err)
	}

	authed, err := t.authorize(req)
	if err != nil {
		return nil, err
	}

	resp, err := t.base.RoundTrip(authed)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized || isRetriedRequest(ctx) {
		return resp, nil
	}
	if req.GetBody == nil && req.Body != nil {
		// Cannot replay the body; the caller sees the 401.
		return resp, nil
	}

	// The server rejected a token the policy considered fresh. Force a
	// refresh (this transport owns the retry) and replay once.
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if err := t.coord.ForceRefresh(ctx); err != nil {
		return nil, fmt.Errorf("tokenkeep: refresh after 401: %w", err)
	}

	retry := req.Clone(withRetriedRequest(ctx))
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}

	authed, err = t.authorize(retry)
	if err != nil {
		return nil, err
	}
	return t.base.RoundTrip(authed)
}

// authorize clones req with the current access token attached.
func (t *Transport) authorize(req *http.Request) (*http.Request, error) {
	stored, ok, err := t.coord.store.Read(req.Context())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !ok || !stored.HasAccess() {
		return nil, ErrNoToken
	}

	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+stored.AccessToken)
	return clone, nil
}
