package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// TokenKeyBytes is the entropy of a token key. Hex encoding yields the
// 40-character keys clients send in the Authorization header.
const TokenKeyBytes = 20

// NewTokenKey returns a random hex-encoded token key.
func NewTokenKey() (string, error) {
	b := make([]byte, TokenKeyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// IsWellFormedKey reports whether key has the shape NewTokenKey produces.
func IsWellFormedKey(key string) bool {
	if len(key) != 2*TokenKeyBytes {
		return false
	}
	_, err := hex.DecodeString(key)
	return err == nil
}
