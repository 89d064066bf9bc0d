package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/textsync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/textsync/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/textsync/internal/httpserver/mw"
	"github.com/MrSnakeDoc/textsync/internal/metrics"
)

func init() { RegisterAPI(registerAuth) }

func registerAuth(r chi.Router, d deps.Deps) {
	loginLimit := mw.RateLimit(mw.RateLimitConfig{
		Burst:             d.LoginBurst,
		RefillPerIPPerMin: d.LoginRefillPerMin,
		MaxEntries:        10000,
		TrustProxy:        d.TrustProxy,
		OnLimit:           func(*http.Request) { metrics.IncLogin(metrics.LoginLimited) },
	})

	r.With(loginLimit).Post("/auth/login", handlers.Login(d))
	r.With(mw.RequireToken(d.Tokens, d.Logger)).Post("/auth/logout", handlers.Logout(d))
	r.Get("/auth/verify", handlers.Verify(d))
}
