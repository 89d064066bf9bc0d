package domain

import (
	"strings"
	"unicode"
)

// TokenKeyword is the Authorization scheme clients use.
const TokenKeyword = "Token"

// AuthHeaderError is a malformed Authorization header. Its message is safe
// to return to the client.
type AuthHeaderError struct {
	Kind string
	msg  string
}

func (e *AuthHeaderError) Error() string { return e.msg }

// Header malformations.
var (
	ErrNoAuthHeader = &AuthHeaderError{Kind: "missing", msg: "Authentication credentials were not provided."}
	ErrWrongScheme  = &AuthHeaderError{Kind: "wrong_scheme", msg: "Invalid token header. Expected 'Token <key>'."}
	ErrNoTokenValue = &AuthHeaderError{Kind: "no_credentials", msg: "Invalid token header. No credentials provided."}
	ErrTokenSpaces  = &AuthHeaderError{Kind: "spaces", msg: "Invalid token header. Token string should not contain spaces."}
	ErrTokenChars   = &AuthHeaderError{Kind: "invalid_characters", msg: "Invalid token header. Token string should not contain invalid characters."}
)

// ParseTokenHeader extracts the key from an "Authorization: Token <key>"
// header value. The scheme is matched case-insensitively. The key is not
// checked against the stored format; an unknown key is a lookup failure, not
// a header error.
func ParseTokenHeader(header string) (string, error) {
	parts := strings.Fields(header)
	if len(parts) == 0 {
		return "", ErrNoAuthHeader
	}
	if !strings.EqualFold(parts[0], TokenKeyword) {
		return "", ErrWrongScheme
	}

	switch {
	case len(parts) == 1:
		return "", ErrNoTokenValue
	case len(parts) > 2:
		return "", ErrTokenSpaces
	}

	key := parts[1]
	for _, r := range key {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) {
			return "", ErrTokenChars
		}
	}
	return key, nil
}
