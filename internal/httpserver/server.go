package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/textsync/internal/config"
	"github.com/MrSnakeDoc/textsync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/textsync/internal/httpserver/mw"
	"github.com/MrSnakeDoc/textsync/internal/httpserver/routes"
	"github.com/MrSnakeDoc/textsync/internal/logger"
)

const defaultRequestTimeout = 5 * time.Second

// Server is the textsync HTTP API.
type Server struct {
	http   *http.Server
	logger logger.Logger
}

// New builds the router and the underlying http.Server. Nothing listens
// until Start.
func New(cfg *config.Config, loggerClient logger.Logger, d deps.Deps) *Server {
	return &Server{
		http: &http.Server{
			Addr:              cfg.ListenPort,
			Handler:           newRouter(cfg, loggerClient, d),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
		logger: loggerClient,
	}
}

func newRouter(cfg *config.Config, loggerClient logger.Logger, d deps.Deps) http.Handler {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	r := chi.NewRouter()
	r.Use(
		middleware.GetHead,
		middleware.StripSlashes, // the extension calls "/api/shortcuts/?sets=..."
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Timeout(timeout), // request context deadline reaches the stores
		mw.Log(loggerClient, d.TrustProxy),
		mw.CORS(d.CORSOrigins),
	)

	routes.RegisterAll(r, d)
	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start listens and serves until Stop. A graceful shutdown returns nil.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", logger.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop drains in-flight requests until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("HTTP server shutting down")
	return s.http.Shutdown(ctx)
}
