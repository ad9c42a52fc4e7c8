// Package httpserver is the hub's terminal-facing HTTP surface: chi
// routing, the shared middleware chain, request validation/response
// helpers, and the diagnostics and sync-admin routes. Domain handlers
// (sales, kitchen orders) are mounted onto APIRouter by internal/app.
package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/emberline/hubd/internal/config"
	"github.com/emberline/hubd/internal/pull"
	"github.com/emberline/hubd/internal/push"
	"github.com/emberline/hubd/internal/realtime"
	"github.com/emberline/hubd/internal/session"
	"github.com/emberline/hubd/internal/store"
)

// Server holds the HTTP server dependencies.
type Server struct {
	Router    *chi.Mux
	APIRouter chi.Router // session-authenticated /api sub-router

	Logger        *slog.Logger
	Store         *store.Store
	PushEngine    *push.Engine
	PullEngine    *pull.Engine
	SessionMgr    *session.Manager
	Authenticator *session.Authenticator
	RateLimiter   *session.LoginRateLimiter
	Realtime      *realtime.Hub
	Metrics       *prometheus.Registry

	startedAt time.Time
}

// NewServer creates an HTTP server with the middleware chain, health and
// metrics endpoints, session authentication, and the sync-admin surface
// wired in. Domain handlers should be mounted on APIRouter afterward.
func NewServer(
	cfg *config.Config,
	logger *slog.Logger,
	s *store.Store,
	pushEngine *push.Engine,
	pullEngine *pull.Engine,
	sessionMgr *session.Manager,
	authenticator *session.Authenticator,
	rateLimiter *session.LoginRateLimiter,
	hub *realtime.Hub,
	metricsReg *prometheus.Registry,
) *Server {
	srv := &Server{
		Router:        chi.NewRouter(),
		Logger:        logger,
		Store:         s,
		PushEngine:    pushEngine,
		PullEngine:    pullEngine,
		SessionMgr:    sessionMgr,
		Authenticator: authenticator,
		RateLimiter:   rateLimiter,
		Realtime:      hub,
		Metrics:       metricsReg,
		startedAt:     time.Now(),
	}

	srv.Router.Use(RequestID)
	srv.Router.Use(Logger(logger))
	srv.Router.Use(Metrics)
	srv.Router.Use(middleware.Recoverer)
	srv.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "x-session-id", "x-terminal-id", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Unauthenticated endpoints.
	srv.Router.Get("/health", srv.handleHealth)
	srv.Router.Get("/readyz", srv.handleReadyz)
	srv.Router.Handle("/metrics", promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{}))
	srv.Router.Post("/api/auth/login", srv.HandleLogin)
	srv.Router.Get("/ws", realtime.NewHandler(hub, s, logger).ServeHTTP)

	// Session-authenticated routes.
	srv.Router.Route("/api", func(r chi.Router) {
		r.Use(session.Middleware(sessionMgr, logger))

		r.Post("/auth/logout", srv.HandleLogout)

		r.Get("/diagnostics", srv.HandleDiagnostics)

		r.Route("/sync", func(r chi.Router) {
			r.Get("/status", srv.HandleSyncStatus)
			r.Post("/pull", srv.HandleSyncPull)
			r.Post("/push", srv.HandleSyncPush)
			r.Post("/reset-cursor/{entityType}", srv.HandleResetCursor)
			r.Post("/retry-dead-letters", srv.HandleRetryDeadLetters)
		})

		srv.APIRouter = r
	})

	return srv
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	Respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.DB().PingContext(r.Context()); err != nil {
		s.Logger.Error("readiness check: database ping failed", "error", err)
		RespondError(w, http.StatusServiceUnavailable, "unavailable", "database not ready")
		return
	}
	Respond(w, http.StatusOK, map[string]string{"status": "ready"})
}
