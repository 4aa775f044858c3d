package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/jwk"
	"github.com/lestrrat-go/jwx/jwt"
)

// Identity is the caller a request acts for. Subject scopes every note the
// caller can see.
type Identity struct {
	Subject string
}

type TokenVerifier interface {
	Verify(ctx context.Context, tokenString string) (*Identity, error)
}

// JWKVerifier validates access tokens against the provider's published key
// set, refreshing the keys in the background.
type JWKVerifier struct {
	issuer  string
	jwksUri string
	keys    *jwk.AutoRefresh
}

func NewJWKVerifier(ctx context.Context, config *Config) (*JWKVerifier, error) {
	if config.JWKsURI == "" {
		return nil, errors.New("provider did not publish a jwks_uri")
	}
	ar := jwk.NewAutoRefresh(ctx)
	ar.Configure(config.JWKsURI, jwk.WithMinRefreshInterval(15*time.Minute))
	if _, err := ar.Refresh(ctx, config.JWKsURI); err != nil {
		return nil, fmt.Errorf("failed to fetch JWKs: %w", err)
	}
	return &JWKVerifier{
		issuer:  config.BaseUri,
		jwksUri: config.JWKsURI,
		keys:    ar,
	}, nil
}

func (v *JWKVerifier) Verify(ctx context.Context, tokenString string) (*Identity, error) {
	keys, err := v.keys.Fetch(ctx, v.jwksUri)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKs: %w", err)
	}
	token, err := ParseToken(tokenString, keys, v.issuer)
	if err != nil {
		return nil, err
	}
	return IdentityFromToken(token)
}

// ParseToken verifies the signature, expiry and issuer of tokenString.
// TODO: check the audience once the provider issues one per client.
func ParseToken(tokenString string, keys jwk.Set, issuer string) (jwt.Token, error) {
	return jwt.ParseString(tokenString,
		jwt.WithKeySet(keys),
		jwt.WithValidate(true),
		jwt.WithIssuer(issuer),
	)
}

func IdentityFromToken(token jwt.Token) (*Identity, error) {
	sub := token.Subject()
	if sub == "" {
		return nil, errors.New("token has no subject")
	}
	return &Identity{Subject: sub}, nil
}
