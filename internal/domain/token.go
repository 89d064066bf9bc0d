package domain

import "time"

// TokenTTL is the fixed lifetime of a bearer token.
const TokenTTL = 180 * 24 * time.Hour

// Token is an expiring bearer credential. There is at most one live token
// per principal; tokens are replaced, never updated in place.
type Token struct {
	Key         string
	PrincipalID int64
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Expired reports whether now is past the expiry instant.
func (t Token) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
