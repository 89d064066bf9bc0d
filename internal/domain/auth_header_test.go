package domain_test

import (
	"errors"
	"testing"

	"github.com/MrSnakeDoc/textsync/internal/domain"
)

func TestParseTokenHeader(t *testing.T) {
	key := "0123456789abcdef0123456789abcdef01234567"

	tests := []struct {
		name    string
		header  string
		want    string
		wantErr error
	}{
		{"valid", "Token " + key, key, nil},
		{"scheme is case-insensitive", "token " + key, key, nil},
		{"extra outer whitespace", "  Token   " + key + " ", key, nil},
		{"missing", "", "", domain.ErrNoAuthHeader},
		{"bearer scheme", "Bearer " + key, "", domain.ErrWrongScheme},
		{"scheme only", "Token", "", domain.ErrNoTokenValue},
		{"two tokens", "Token " + key + " " + key, "", domain.ErrTokenSpaces},
		{"non-ascii", "Token cheie-ș", "", domain.ErrTokenChars},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := domain.ParseTokenHeader(tt.header)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ParseTokenHeader(%q) error = %v, want %v", tt.header, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseTokenHeader(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}

func TestAuthHeaderErrorIsNotTokenRejection(t *testing.T) {
	if domain.IsTokenRejection(domain.ErrTokenSpaces) {
		t.Error("header errors carry their own message and must not be folded into the generic rejection")
	}
}
