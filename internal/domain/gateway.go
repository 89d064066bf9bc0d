package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Credentials is a username/password pair presented at login.
type Credentials struct {
	Username string
	Password string
}

// Session is what a successful login hands back to the client.
type Session struct {
	Token     Token
	Principal Principal
}

// Verification is the answer to a token pre-check.
type Verification struct {
	Valid     bool
	ExpiresAt time.Time
	Principal Principal
}

// AuthGateway orchestrates login, logout and verify.
type AuthGateway struct {
	principals PrincipalStore
	tokens     *TokenStore
}

// NewAuthGateway creates a gateway.
func NewAuthGateway(principals PrincipalStore, tokens *TokenStore) *AuthGateway {
	return &AuthGateway{principals: principals, tokens: tokens}
}

// Login checks credentials and issues (or reuses) the principal's token.
func (g *AuthGateway) Login(ctx context.Context, creds Credentials) (Session, error) {
	if strings.TrimSpace(creds.Username) == "" || creds.Password == "" {
		return Session{}, ErrMissingCredentials
	}

	p, ok, err := g.principals.VerifyCredentials(ctx, creds.Username, creds.Password)
	if err != nil {
		return Session{}, fmt.Errorf("verify credentials: %w", err)
	}
	if !ok {
		return Session{}, ErrInvalidCredentials
	}
	if !p.Active {
		return Session{}, ErrAccountDisabled
	}

	tok, err := g.tokens.Issue(ctx, *p)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: tok, Principal: *p}, nil
}

// Logout revokes the principal's token. It is idempotent.
func (g *AuthGateway) Logout(ctx context.Context, p Principal) error {
	return g.tokens.Revoke(ctx, p.ID)
}

// Verify re-validates a token key. Rejections come back as Valid=false
// together with the internal reason; storage failures come back as errors
// with a zero Verification.
func (g *AuthGateway) Verify(ctx context.Context, key string) (Verification, error) {
	p, tok, err := g.tokens.Validate(ctx, key)
	if err != nil {
		return Verification{Valid: false}, err
	}
	return Verification{Valid: true, ExpiresAt: tok.ExpiresAt, Principal: p}, nil
}
