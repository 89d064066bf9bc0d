package mw

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrSnakeDoc/textsync/internal/domain"
	"github.com/MrSnakeDoc/textsync/internal/logger"
	"github.com/MrSnakeDoc/textsync/internal/metrics"
)

// InvalidTokenMessage is the single response for unknown, expired and
// inactive-owner tokens.
const InvalidTokenMessage = "Invalid token."

type ctxKey int

const (
	principalKey ctxKey = iota
	tokenKey
)

// WithPrincipal stores the authenticated principal and its token in ctx.
func WithPrincipal(ctx context.Context, p domain.Principal, tok domain.Token) context.Context {
	ctx = context.WithValue(ctx, principalKey, p)
	return context.WithValue(ctx, tokenKey, tok)
}

// PrincipalFrom returns the principal stored by RequireToken.
func PrincipalFrom(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(principalKey).(domain.Principal)
	return p, ok
}

// TokenFrom returns the token stored by RequireToken.
func TokenFrom(ctx context.Context) (domain.Token, bool) {
	t, ok := ctx.Value(tokenKey).(domain.Token)
	return t, ok
}

// Unauthorized writes a 401 with a {detail} body and the Token challenge.
func Unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", domain.TokenKeyword)
	writeDetail(w, http.StatusUnauthorized, detail)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}

// TokenOutcome classifies a token validation result for logs and metrics.
func TokenOutcome(err error) string {
	var headerErr *domain.AuthHeaderError
	switch {
	case err == nil:
		return metrics.TokenValid
	case errors.As(err, &headerErr):
		return metrics.TokenMalformed
	case errors.Is(err, domain.ErrTokenNotFound):
		return metrics.TokenNotFound
	case errors.Is(err, domain.ErrTokenExpired):
		return metrics.TokenExpired
	case errors.Is(err, domain.ErrPrincipalInactive):
		return metrics.TokenInactive
	default:
		return metrics.TokenError
	}
}

// RequireToken authenticates the request from its Authorization header.
// Header malformations get their specific message; every token rejection
// gets the same generic one.
func RequireToken(tokens *domain.TokenStore, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, tok, err := authenticate(r, tokens)
			outcome := TokenOutcome(err)
			metrics.IncTokenValidation(outcome)

			if err != nil {
				var headerErr *domain.AuthHeaderError
				switch {
				case errors.As(err, &headerErr):
					Unauthorized(w, headerErr.Error())
				case domain.IsTokenRejection(err):
					log.Info("token rejected",
						logger.String("reason", outcome),
						logger.String("path", r.URL.Path))
					Unauthorized(w, InvalidTokenMessage)
				default:
					log.Error("token validation failed", logger.Error(err))
					writeDetail(w, http.StatusInternalServerError, "Internal server error.")
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p, tok)))
		})
	}
}

func authenticate(r *http.Request, tokens *domain.TokenStore) (domain.Principal, domain.Token, error) {
	key, err := domain.ParseTokenHeader(r.Header.Get("Authorization"))
	if err != nil {
		return domain.Principal{}, domain.Token{}, err
	}
	return tokens.Validate(r.Context(), key)
}
