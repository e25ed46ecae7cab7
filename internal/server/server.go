// Package server exposes the HTTP API: REST endpoints plus the realtime
// websocket channel, with JWT-authenticated routes behind middleware.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/KIaudius/issues-insights-tracker/internal/auth"
	"github.com/KIaudius/issues-insights-tracker/internal/bootstrap/config"
	"github.com/KIaudius/issues-insights-tracker/internal/bootstrap/logging"
	"github.com/KIaudius/issues-insights-tracker/internal/errs"
	"github.com/KIaudius/issues-insights-tracker/internal/realtime"
	"github.com/KIaudius/issues-insights-tracker/internal/usecase/authn"
	"github.com/KIaudius/issues-insights-tracker/internal/usecase/issues"
	"github.com/KIaudius/issues-insights-tracker/internal/usecase/stats"
	"github.com/KIaudius/issues-insights-tracker/internal/usecase/users"
)

type Server struct {
	httpServer *http.Server
	cfg        config.Config

	tokens *auth.TokenManager
	hub    *realtime.Hub

	authn  *authn.Service
	issues *issues.Service
	users  *users.Service
	stats  *stats.Service
}

func New(
	cfg config.Config,
	tokens *auth.TokenManager,
	hub *realtime.Hub,
	authnSvc *authn.Service,
	issuesSvc *issues.Service,
	usersSvc *users.Service,
	statsSvc *stats.Service,
) *Server {
	s := &Server{
		cfg:    cfg,
		tokens: tokens,
		hub:    hub,
		authn:  authnSvc,
		issues: issuesSvc,
		users:  usersSvc,
		stats:  statsSvc,
	}

	s.httpServer = &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      s.routes(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/refresh", s.handleRefresh)
		r.Get("/auth/oauth/authorize", s.handleOAuthAuthorize)
		r.Get("/auth/oauth/callback", s.handleOAuthCallback)

		r.Group(func(r chi.Router) {
			r.Use(authenticate(s.tokens))

			r.Route("/issues", func(r chi.Router) {
				r.Get("/", s.handleListIssues)
				r.Post("/", s.handleCreateIssue)
				r.Get("/{issueID}", s.handleGetIssue)
				r.Patch("/{issueID}", s.handleUpdateIssue)
				r.Delete("/{issueID}", s.handleDeleteIssue)
				r.Post("/{issueID}/status", s.handleTransitionStatus)
				r.Get("/{issueID}/history", s.handleListHistory)

				r.Get("/{issueID}/comments", s.handleListComments)
				r.Post("/{issueID}/comments", s.handleAddComment)

				r.Get("/{issueID}/attachments", s.handleListAttachments)
				r.Post("/{issueID}/attachments", s.handleUploadAttachment)
			})
			r.Patch("/comments/{commentID}", s.handleUpdateComment)
			r.Delete("/comments/{commentID}", s.handleDeleteComment)

			r.Get("/attachments/{attachmentID}", s.handleDownloadAttachment)
			r.Delete("/attachments/{attachmentID}", s.handleDeleteAttachment)

			r.Route("/users", func(r chi.Router) {
				r.Get("/", s.handleListUsers)
				r.Post("/", s.handleCreateUser)
				r.Get("/me", s.handleGetSelf)
				r.Patch("/me", s.handleUpdateSelf)
				r.Get("/{userID}", s.handleGetUser)
				r.Patch("/{userID}", s.handleUpdateUser)
				r.Delete("/{userID}", s.handleDeleteUser)
			})

			r.Route("/stats", func(r chi.Router) {
				r.Get("/dashboard", s.handleDashboard)
				r.Get("/daily", s.handleListDailyStats)
				r.Get("/daily/{date}", s.handleGetDailyStats)
				r.Post("/daily/{date}/recompute", s.handleRecomputeDailyStats)
			})
		})
	})

	// The websocket route authenticates in-band with its handshake frame,
	// not with the Authorization header.
	r.Get("/ws/updates", s.handleWebsocket)

	return r
}

// Start binds the listener synchronously so an unusable address fails
// the caller, then serves in the background; failures after bind are
// logged.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return errs.Wrapf(err, "listen on %s", s.httpServer.Addr)
	}

	go func() {
		logging.Info(ctx, "http server started", slog.String("addr", listener.Addr().String()))
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error(ctx, "http server failed", slog.String("error", err.Error()))
		}
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	logging.Info(ctx, "http server stopping")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
