// Package httpserver provides the HTTP REST API server for the paper feed service.
package httpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/scholarstream/paper-feed-service/internal/database"
	"github.com/scholarstream/paper-feed-service/internal/domain"
	"github.com/scholarstream/paper-feed-service/internal/events"
	"github.com/scholarstream/paper-feed-service/internal/feed"
	"github.com/scholarstream/paper-feed-service/internal/observability"
	"github.com/scholarstream/paper-feed-service/internal/orchestrator"
	"github.com/scholarstream/paper-feed-service/internal/repository"
)

// FeedService is the feed façade the HTTP layer drives.
type FeedService interface {
	GetFeed(ctx context.Context, req feed.Request) (*orchestrator.Page, error)
	LoadMore(ctx context.Context, req feed.Request) (*orchestrator.Page, error)
	GetPaper(ctx context.Context, id string) (*domain.Paper, error)
}

var _ FeedService = (*feed.Service)(nil)

// Server is the HTTP REST API server.
type Server struct {
	router         chi.Router
	httpServer     *http.Server
	feed           FeedService
	profiles       repository.ProfileRepository
	feedback       repository.FeedbackRepository
	folders        repository.FolderRepository
	db             *database.DB
	events         *events.Publisher
	metrics        *observability.Metrics
	validate       *validator.Validate
	logger         zerolog.Logger
	authMiddleware func(http.Handler) http.Handler
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Deps are the server collaborators. Feed is required; Events and Metrics
// may be nil, which disables activity events and instrumentation. A nil
// AuthMiddleware serves every request as the anonymous user.
type Deps struct {
	Feed           FeedService
	Profiles       repository.ProfileRepository
	Feedback       repository.FeedbackRepository
	Folders        repository.FolderRepository
	DB             *database.DB
	Events         *events.Publisher
	Metrics        *observability.Metrics
	AuthMiddleware func(http.Handler) http.Handler
}

// NewServer creates a new HTTP server with all dependencies.
func NewServer(cfg Config, deps Deps, logger zerolog.Logger) *Server {
	s := &Server{
		feed:           deps.Feed,
		profiles:       deps.Profiles,
		feedback:       deps.Feedback,
		folders:        deps.Folders,
		db:             deps.DB,
		events:         deps.Events,
		metrics:        deps.Metrics,
		validate:       validator.New(),
		logger:         logger.With().Str("component", "http-server").Logger(),
		authMiddleware: deps.AuthMiddleware,
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(jsonContentTypeMiddleware)

	// Health endpoints (no auth)
	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	// API routes. Requests without a valid bearer token run as the
	// anonymous user, so auth never rejects feed reads.
	r.Route("/api/v1", func(r chi.Router) {
		if s.authMiddleware != nil {
			r.Use(s.authMiddleware)
		}

		r.Get("/feed", s.getFeed)
		r.Get("/feed/more", s.loadMore)

		// Qualified paper IDs carry DOIs with slashes, so the paper
		// route matches the rest of the path instead of one segment.
		r.Get("/papers/*", s.getPaper)

		r.Get("/profile", s.getProfile)
		r.Put("/profile", s.saveProfile)
		r.Delete("/profile", s.clearProfile)

		r.Get("/feedback", s.getFeedback)
		r.Post("/feedback", s.saveFeedback)
		r.Delete("/feedback", s.removeFeedback)

		r.Route("/folders", func(r chi.Router) {
			r.Post("/", s.createFolder)
			r.Get("/", s.listFolders)
			r.Get("/{folderID}", s.getFolder)
			r.Patch("/{folderID}", s.renameFolder)
			r.Delete("/{folderID}", s.deleteFolder)
			r.Post("/{folderID}/papers", s.addFolderPaper)
			r.Delete("/{folderID}/papers", s.removeFolderPaper)
		})
	})

	return r
}

// Router exposes the handler tree, primarily for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	health := s.db.Health(r.Context())
	if health.Status == "healthy" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": health.Status})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{
		"status":   "unhealthy",
		"database": health.Status,
		"error":    health.Error,
	})
}

// readinessHandler returns readiness status.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	health := s.db.Health(r.Context())
	if health.Status != "healthy" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "not_ready",
			"database": health.Status,
			"error":    health.Error,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"database": "healthy",
	})
}
