package handlers

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"github.com/MrSnakeDoc/textsync/internal/domain"
	"github.com/MrSnakeDoc/textsync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/textsync/internal/httpserver/mw"
	"github.com/MrSnakeDoc/textsync/internal/logger"
	"github.com/MrSnakeDoc/textsync/internal/metrics"
)

const maxLoginBody = 16 << 10

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string   `json:"token"`
	ExpiresAt string   `json:"expires_at"`
	User      userJSON `json:"user"`
}

type logoutResponse struct {
	Message string `json:"message"`
}

type verifyResponse struct {
	Valid     bool      `json:"valid"`
	ExpiresAt string    `json:"expires_at,omitempty"`
	User      *userJSON `json:"user,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// Login exchanges a username and password for the principal's token.
// The body may be JSON or form-encoded.
func Login(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		creds, err := readCredentials(w, r)
		if err != nil {
			metrics.IncLogin(metrics.LoginMissing)
			writeDetail(w, http.StatusBadRequest, "Malformed request body.")
			return
		}

		session, err := d.Gateway.Login(r.Context(), creds)
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrMissingCredentials):
			metrics.IncLogin(metrics.LoginMissing)
			writeDetail(w, http.StatusBadRequest, "Username and password are required.")
			return
		case errors.Is(err, domain.ErrInvalidCredentials):
			metrics.IncLogin(metrics.LoginInvalid)
			d.Logger.Info("login failed", logger.String("reason", "invalid_credentials"))
			writeDetail(w, http.StatusUnauthorized, "Unable to log in with provided credentials.")
			return
		case errors.Is(err, domain.ErrAccountDisabled):
			metrics.IncLogin(metrics.LoginDisabled)
			d.Logger.Info("login refused", logger.String("reason", "account_disabled"))
			writeDetail(w, http.StatusForbidden, "User account is disabled.")
			return
		default:
			metrics.IncLogin(metrics.LoginError)
			d.Logger.Error("login failed", logger.Error(err))
			writeInternalError(w)
			return
		}

		metrics.IncLogin(metrics.LoginSuccess)
		d.Logger.Info("login succeeded",
			logger.Int64("user_id", session.Principal.ID),
			logger.Time("expires_at", session.Token.ExpiresAt))

		writeJSON(w, http.StatusOK, loginResponse{
			Token:     session.Token.Key,
			ExpiresAt: formatTime(session.Token.ExpiresAt),
			User:      toUserJSON(session.Principal),
		})
	}
}

func readCredentials(w http.ResponseWriter, r *http.Request) (domain.Credentials, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxLoginBody)

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/x-www-form-urlencoded" || ct == "multipart/form-data" {
		if err := r.ParseForm(); err != nil {
			return domain.Credentials{}, err
		}
		return domain.Credentials{
			Username: r.PostForm.Get("username"),
			Password: r.PostForm.Get("password"),
		}, nil
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return domain.Credentials{}, err
	}
	return domain.Credentials{Username: req.Username, Password: req.Password}, nil
}

// Logout revokes the caller's token.
func Logout(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := mw.PrincipalFrom(r.Context())
		if !ok {
			mw.Unauthorized(w, domain.ErrNoAuthHeader.Error())
			return
		}
		if err := d.Gateway.Logout(r.Context(), p); err != nil {
			d.Logger.Error("logout failed", logger.Int64("user_id", p.ID), logger.Error(err))
			writeInternalError(w)
			return
		}
		fields := []logger.Field{logger.Int64("user_id", p.ID)}
		if tok, ok := mw.TokenFrom(r.Context()); ok {
			fields = append(fields, logger.Time("token_expires_at", tok.ExpiresAt))
		}
		d.Logger.Info("logout", fields...)
		writeJSON(w, http.StatusOK, logoutResponse{Message: "Successfully logged out."})
	}
}

// Verify reports whether the presented token is still valid. Rejected tokens
// get a 401 whose body also carries valid=false.
func Verify(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := domain.ParseTokenHeader(r.Header.Get("Authorization"))
		if err != nil {
			metrics.IncTokenValidation(metrics.TokenMalformed)
			mw.Unauthorized(w, err.Error())
			return
		}

		v, err := d.Gateway.Verify(r.Context(), key)
		outcome := mw.TokenOutcome(err)
		metrics.IncTokenValidation(outcome)

		switch {
		case err == nil:
			user := toUserJSON(v.Principal)
			writeJSON(w, http.StatusOK, verifyResponse{
				Valid:     true,
				ExpiresAt: formatTime(v.ExpiresAt),
				User:      &user,
			})
		case domain.IsTokenRejection(err):
			d.Logger.Info("token rejected", logger.String("reason", outcome), logger.String("path", r.URL.Path))
			w.Header().Set("WWW-Authenticate", domain.TokenKeyword)
			writeJSON(w, http.StatusUnauthorized, verifyResponse{Valid: false, Detail: mw.InvalidTokenMessage})
		default:
			d.Logger.Error("token verification failed", logger.Error(err))
			writeInternalError(w)
		}
	}
}
