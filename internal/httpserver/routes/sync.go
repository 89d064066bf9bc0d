package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/textsync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/textsync/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/textsync/internal/httpserver/mw"
)

func init() { RegisterAPI(registerSync) }

func registerSync(r chi.Router, d deps.Deps) {
	authed := r.With(mw.RequireToken(d.Tokens, d.Logger))
	authed.Get("/sets", handlers.Sets(d))
	authed.Get("/shortcuts", handlers.Shortcuts(d))
}
