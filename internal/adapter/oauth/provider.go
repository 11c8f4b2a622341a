// Package oauth encapsulates outbound calls to the external identity
// provider: authorization URL construction, the authorization-code
// exchange, and verification of the returned identity assertion.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/sesto-dev/e2e-type-safety-templates/internal/domain"
)

const exchangeTimeout = 10 * time.Second

// Identity is the normalized profile extracted from a verified identity
// assertion.
type Identity struct {
	Subject       string
	Email         string
	Name          string
	Picture       string
	EmailVerified bool
}

// Provider drives the external authorization-code handshake. Exchange
// failures wrap domain.ErrUpstreamExchange; assertion verification
// failures wrap domain.ErrTokenVerification.
type Provider interface {
	AuthCodeURL(state, codeChallenge string) string
	Exchange(ctx context.Context, code, codeVerifier string) (*Identity, error)
}

// GoogleProvider implements Provider against Google's OIDC endpoints.
type GoogleProvider struct {
	oauthConfig *oauth2.Config
	verifier    *oidc.IDTokenVerifier
}

var _ Provider = (*GoogleProvider)(nil)

// NewGoogleProvider discovers Google's OIDC configuration and prepares a
// verifier bound to the configured client id.
func NewGoogleProvider(ctx context.Context, clientID, clientSecret, redirectURL string) (*GoogleProvider, error) {
	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil, errors.New("google oauth config missing required fields")
	}

	oidcProvider, err := oidc.NewProvider(ctx, "https://accounts.google.com")
	if err != nil {
		return nil, fmt.Errorf("init google oidc provider: %w", err)
	}

	return &GoogleProvider{
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     oidcProvider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		verifier: oidcProvider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

// AuthCodeURL builds the provider authorization URL with PKCE parameters.
func (p *GoogleProvider) AuthCodeURL(state, codeChallenge string) string {
	return p.oauthConfig.AuthCodeURL(
		state,
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

// Exchange redeems the authorization code with the stored verifier and
// verifies the returned ID token against the configured client id.
func (p *GoogleProvider) Exchange(ctx context.Context, code, codeVerifier string) (*Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, exchangeTimeout)
	defer cancel()

	token, err := p.oauthConfig.Exchange(ctx, code, oauth2.SetAuthURLParam("code_verifier", codeVerifier))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamExchange, err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, fmt.Errorf("%w: no id_token in response", domain.ErrUpstreamExchange)
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTokenVerification, err)
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: claims parse: %v", domain.ErrTokenVerification, err)
	}

	return &Identity{
		Subject:       idToken.Subject,
		Email:         claims.Email,
		Name:          claims.Name,
		Picture:       claims.Picture,
		EmailVerified: claims.EmailVerified,
	}, nil
}
