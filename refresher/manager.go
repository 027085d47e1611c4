package refresher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/tokenkeep/tokenkeep/token"
)

// ErrInvalidGrant is the terminal rejection: the refresh token itself was
// refused by the token endpoint. Callers must not retry it.
var ErrInvalidGrant = errors.New("refresh token rejected")

// ErrExchangeFailed wraps transient transport and server failures.
var ErrExchangeFailed = errors.New("token exchange failed")

// Config describes the token endpoint the Manager refreshes against.
type Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string

	// HTTPClient overrides the client used for the exchange. Nil means
	// http.DefaultClient. The per-call deadline always comes from the
	// caller's context, never from this client.
	HTTPClient *http.Client
}

// Manager performs OAuth2 refresh_token exchanges. It is stateless and safe
// for concurrent use.
type Manager struct {
	config Config
	oauth  oauth2.Config
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if strings.TrimSpace(cfg.TokenURL) == "" {
		return nil, errors.New("refresher requires TokenURL")
	}
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, errors.New("refresher requires ClientID")
	}

	return &Manager{
		config: cfg,
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       cfg.Scopes,
			Endpoint:     oauth2.Endpoint{TokenURL: cfg.TokenURL},
		},
	}, nil
}

// Refresh exchanges refreshToken for a new credential. The returned token
// keeps the previous refresh token when the endpoint does not rotate it, and
// falls back to the access token's JWT exp claim when the response carries no
// expires_in.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (token.Token, error) {
	if refreshToken == "" {
		return token.Token{}, ErrInvalidGrant
	}
	if m.config.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, m.config.HTTPClient)
	}

	src := m.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	fresh, err := src.Token()
	if err != nil {
		return token.Token{}, classifyExchangeError(err)
	}

	out := token.Token{
		AccessToken:  fresh.AccessToken,
		RefreshToken: fresh.RefreshToken,
	}
	if out.RefreshToken == "" {
		out.RefreshToken = refreshToken
	}
	if !fresh.Expiry.IsZero() {
		out.ExpiresAt = fresh.Expiry.Unix()
	} else {
		out.ExpiresAt = expiryFromJWT(fresh.AccessToken)
	}

	if out.AccessToken == "" {
		return token.Token{}, fmt.Errorf("%w: response carried no access token", ErrExchangeFailed)
	}
	return out, nil
}

func classifyExchangeError(err error) error {
	var retrieve *oauth2.RetrieveError
	if errors.As(err, &retrieve) {
		if retrieve.ErrorCode == "invalid_grant" ||
			retrieve.Response != nil && (retrieve.Response.StatusCode == http.StatusUnauthorized ||
				retrieve.Response.StatusCode == http.StatusForbidden) {
			return fmt.Errorf("%w: %v", ErrInvalidGrant, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrExchangeFailed, err)
}

// expiryFromJWT extracts the exp claim from a JWT access token without
// verifying its signature. Verification is the resource server's job; here the
// claim only seeds the local expiration policy. Returns 0 when the token is
// not a parseable JWT or carries no exp, which downstream treats as unknown
// expiry.
func expiryFromJWT(accessToken string) int64 {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err != nil {
		return 0
	}
	if claims.ExpiresAt == nil {
		return 0
	}
	return claims.ExpiresAt.Unix()
}
