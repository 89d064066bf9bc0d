package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/textsync/internal/auth"
)

// TokenStore owns the token lifecycle: issue, validate, revoke.
// It keeps no state between calls; the repository is the only source of truth.
type TokenStore struct {
	tokens     TokenRepository
	principals PrincipalStore
	ttl        time.Duration
	now        func() time.Time
	newKey     func() (string, error)
}

// NewTokenStore creates a token store. A zero ttl falls back to TokenTTL and
// a nil clock to time.Now.
func NewTokenStore(tokens TokenRepository, principals PrincipalStore, ttl time.Duration, now func() time.Time) *TokenStore {
	if ttl <= 0 {
		ttl = TokenTTL
	}
	if now == nil {
		now = time.Now
	}
	return &TokenStore{
		tokens:     tokens,
		principals: principals,
		ttl:        ttl,
		now:        now,
		newKey:     auth.NewTokenKey,
	}
}

// TTL returns the lifetime given to newly issued tokens.
func (ts *TokenStore) TTL() time.Duration { return ts.ttl }

// Issue returns the principal's live token, or replaces an expired or missing
// one with a fresh token. Re-login within the TTL yields the same key.
func (ts *TokenStore) Issue(ctx context.Context, p Principal) (Token, error) {
	key, err := ts.newKey()
	if err != nil {
		return Token{}, fmt.Errorf("generate token key: %w", err)
	}

	// Stores keep millisecond precision; truncating keeps the issued token
	// identical to what a later lookup returns.
	now := ts.now().UTC().Truncate(time.Millisecond)
	candidate := Token{
		Key:         key,
		PrincipalID: p.ID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ts.ttl),
	}

	tok, err := ts.tokens.UpsertToken(ctx, candidate, now)
	if err != nil {
		return Token{}, fmt.Errorf("upsert token: %w", err)
	}
	return tok, nil
}

// Validate resolves a token key to its principal. It has no side effects:
// an expired token is left in place for the next Issue or sweep. Keys that
// NewTokenKey could not have produced are rejected without a lookup.
func (ts *TokenStore) Validate(ctx context.Context, key string) (Principal, Token, error) {
	if !auth.IsWellFormedKey(key) {
		return Principal{}, Token{}, ErrTokenNotFound
	}

	tok, ok, err := ts.tokens.FindToken(ctx, key)
	if err != nil {
		return Principal{}, Token{}, fmt.Errorf("find token: %w", err)
	}
	if !ok {
		return Principal{}, Token{}, ErrTokenNotFound
	}

	p, ok, err := ts.principals.FindPrincipal(ctx, tok.PrincipalID)
	if err != nil {
		return Principal{}, Token{}, fmt.Errorf("find principal: %w", err)
	}
	if !ok || !p.Active {
		return Principal{}, Token{}, ErrPrincipalInactive
	}

	if tok.Expired(ts.now()) {
		return Principal{}, Token{}, ErrTokenExpired
	}

	return *p, *tok, nil
}

// Revoke deletes the principal's token. Revoking without a token is a no-op.
func (ts *TokenStore) Revoke(ctx context.Context, principalID int64) error {
	if err := ts.tokens.DeleteToken(ctx, principalID); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

// Sweep removes every token that expired before now.
func (ts *TokenStore) Sweep(ctx context.Context) (int64, error) {
	n, err := ts.tokens.DeleteExpiredTokens(ctx, ts.now())
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	return n, nil
}
