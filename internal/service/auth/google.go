package auth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"
)

// Identity is the verified subset of Google ID token claims.
type Identity struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

// Verifier validates an identity provider token for the expected audience.
type Verifier interface {
	Verify(ctx context.Context, rawIDToken string) (Identity, error)
}

// ValidateFunc matches idtoken.Validate.
type ValidateFunc func(ctx context.Context, idToken, audience string) (*idtoken.Payload, error)

// GoogleVerifier checks Google-issued ID tokens against the OAuth client id.
type GoogleVerifier struct {
	audience string
	validate ValidateFunc
}

// NewGoogleVerifier returns a verifier for audience backed by idtoken.Validate.
func NewGoogleVerifier(audience string) *GoogleVerifier {
	return &GoogleVerifier{audience: audience, validate: idtoken.Validate}
}

// Verify validates the token signature, expiry and audience.
func (v *GoogleVerifier) Verify(ctx context.Context, rawIDToken string) (Identity, error) {
	if rawIDToken == "" {
		return Identity{}, fmt.Errorf("%w: empty token", ErrUpstreamAuthFailed)
	}

	payload, err := v.validate(ctx, rawIDToken, v.audience)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUpstreamAuthFailed, err)
	}

	return Identity{
		Subject: payload.Subject,
		Email:   claimString(payload.Claims, "email"),
		Name:    claimString(payload.Claims, "name"),
		Picture: claimString(payload.Claims, "picture"),
	}, nil
}

func claimString(claims map[string]interface{}, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

// CodeExchanger drives the authorization code flow.
type CodeExchanger interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (string, error)
}

// GoogleOAuth exchanges authorization codes for Google ID tokens.
type GoogleOAuth struct {
	conf *oauth2.Config
}

// NewGoogleOAuth configures the openid/email/profile code flow.
func NewGoogleOAuth(clientID, clientSecret, redirectURL string) *GoogleOAuth {
	return &GoogleOAuth{conf: &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     google.Endpoint,
	}}
}

// AuthCodeURL builds the consent screen URL.
func (g *GoogleOAuth) AuthCodeURL(state string) string {
	return g.conf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
}

// Exchange trades code for tokens and returns the raw ID token.
func (g *GoogleOAuth) Exchange(ctx context.Context, code string) (string, error) {
	token, err := g.conf.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMissingIDToken, err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return "", ErrMissingIDToken
	}
	return rawIDToken, nil
}
