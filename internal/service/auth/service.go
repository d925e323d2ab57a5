// Package auth implements Google sign-in and token issuance.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/zhouzirui/realty-assistant/backend/internal/model/user"
)

var (
	// ErrUpstreamAuthFailed means the identity provider rejected the token.
	ErrUpstreamAuthFailed = errors.New("identity verification failed")
	// ErrMissingIDToken means the code exchange produced no ID token.
	ErrMissingIDToken = errors.New("unable to fetch Google ID token")
	// ErrMissingEmail means the verified identity carries no email.
	ErrMissingEmail = errors.New("google account has no email")
)

// Login is the outcome of a successful sign-in.
type Login struct {
	Identity Identity
	Tokens   TokenPair
}

// Service coordinates verification, user registration and token issuance.
type Service struct {
	verifier Verifier
	oauth    CodeExchanger
	issuer   *TokenIssuer
	users    user.Store
}

// NewService wires the sign-in flow. users may be nil when no database is reachable.
func NewService(verifier Verifier, oauth CodeExchanger, issuer *TokenIssuer, users user.Store) *Service {
	return &Service{verifier: verifier, oauth: oauth, issuer: issuer, users: users}
}

// AuthCodeURL returns the provider consent URL for state.
func (s *Service) AuthCodeURL(state string) string {
	return s.oauth.AuthCodeURL(state)
}

// LoginWithCode completes the authorization code flow.
func (s *Service) LoginWithCode(ctx context.Context, code string) (Login, error) {
	rawIDToken, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return Login{}, err
	}
	return s.LoginWithIDToken(ctx, rawIDToken)
}

// LoginWithIDToken verifies a Google credential, registers the user if needed and issues tokens.
func (s *Service) LoginWithIDToken(ctx context.Context, rawIDToken string) (Login, error) {
	identity, err := s.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return Login{}, err
	}
	if identity.Email == "" {
		return Login{}, ErrMissingEmail
	}

	if err := s.register(ctx, identity); err != nil {
		return Login{}, err
	}

	tokens, err := s.issuer.Issue(identity)
	if err != nil {
		return Login{}, fmt.Errorf("issue tokens: %w", err)
	}
	return Login{Identity: identity, Tokens: tokens}, nil
}

func (s *Service) register(ctx context.Context, identity Identity) error {
	if s.users == nil {
		log.Printf("[auth] no user store configured, skipping registration for %s", identity.Email)
		return nil
	}

	_, created, err := s.users.EnsureUser(ctx, user.Profile{
		Email:   identity.Email,
		Name:    identity.Name,
		Picture: identity.Picture,
	})
	if err != nil {
		return fmt.Errorf("register user: %w", err)
	}
	if created {
		log.Printf("[auth] registered new user %s", identity.Email)
	}
	return nil
}
