package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/lestrrat-go/backoff/v2"
	"golang.org/x/oauth2"
)

var AccessTokenCookieName string = "access_token"

type Config struct {
	BaseUri     string
	JWKsURI     string
	LoginConfig oauth2.Config
}

// DiscoveryPolicy paces retries while the provider's discovery document is
// unavailable, e.g. while it is still starting next to the gateway.
var DiscoveryPolicy = backoff.Constant(
	backoff.WithInterval(10*time.Second),
	backoff.WithMaxRetries(4),
)

func BuildAuthConfig(ctx context.Context, clientID string, authProviderUrl string, redirectUrl string) (*Config, error) {
	provider, err := loadOIDCConfig(ctx, authProviderUrl)
	if err != nil {
		return nil, fmt.Errorf("could not load OIDC configuration: %w", err)
	}

	var claims struct {
		JWKsURI string `json:"jwks_uri"`
	}
	if err := provider.Claims(&claims); err != nil {
		return nil, fmt.Errorf("could not read OIDC discovery claims: %w", err)
	}

	config := &Config{
		LoginConfig: oauth2.Config{
			ClientID:    clientID,
			Endpoint:    provider.Endpoint(),
			RedirectURL: redirectUrl,
			Scopes:      []string{"profile", "email", oidc.ScopeOpenID},
		},
		BaseUri: authProviderUrl,
		JWKsURI: claims.JWKsURI,
	}
	return config, nil
}

func loadOIDCConfig(ctx context.Context, authProviderUrl string) (*oidc.Provider, error) {
	var provider *oidc.Provider
	var err error
	attempt := 0
	b := DiscoveryPolicy.Start(ctx)
	for backoff.Continue(b) {
		attempt++
		provider, err = oidc.NewProvider(ctx, authProviderUrl)
		if err == nil {
			return provider, nil
		}
		slog.Warn("could not load OIDC config", "attempt", attempt, "url", authProviderUrl, "err", err)
	}
	if err == nil {
		err = ctx.Err()
	}
	return nil, err
}
