package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ha1tch/friendgraph/pkg/config"
	"github.com/ha1tch/friendgraph/pkg/dashboard"
	"github.com/ha1tch/friendgraph/pkg/metrics"
	"github.com/ha1tch/friendgraph/pkg/validation"
)

// Server represents the HTTP server
type Server struct {
	config    *config.Config
	dashboard *dashboard.Dashboard
	validator validation.Validator
	logger    zerolog.Logger
	router    *chi.Mux

	mu   sync.Mutex
	http *http.Server
}

// New creates a new server instance
func New(
	cfg *config.Config,
	dash *dashboard.Dashboard,
	validator validation.Validator,
	logger zerolog.Logger,
) *Server {
	s := &Server{
		config:    cfg,
		dashboard: dash,
		validator: validator,
		logger:    logger,
		router:    chi.NewRouter(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	if s.config.Debug {
		s.router.Use(middleware.Logger)
	}
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	s.router.Use(s.instrument)

	// Health check
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/version", s.handleVersion)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Post("/refresh", s.handleRefresh)

		// Users
		r.Post("/users", s.handleCreateUser)
		r.Put("/users/{id}", s.handleUpdateUser)
		r.Delete("/users/{id}", s.handleDeleteUser)

		// Friendships
		r.Post("/links", s.handleLink)
		r.Delete("/links", s.handleUnlink)

		// Selection
		r.Put("/selection", s.handleSelect)
		r.Delete("/selection", s.handleClearSelection)
		r.Post("/selection/tags", s.handleAddSelectedTag)
		r.Delete("/selection/tags/{tag}", s.handleRemoveSelectedTag)

		// Hobby tags
		r.Get("/tags", s.handleListTags)
		r.Post("/tags", s.handleAddTag)
		r.Delete("/tags/{tag}", s.handleRemoveTag)

		// Canvas
		r.Put("/nodes/{id}/position", s.handleMoveNode)

		// Notices
		r.Get("/notices", s.handleListNotices)
		r.Get("/notices/{id}", s.handleGetNotice)
		r.Delete("/notices/{id}", s.handleDismissNotice)
	})
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.mu.Lock()
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.http
	s.mu.Unlock()

	s.logger.Info().Str("addr", addr).Msg("Starting server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Handler returns the HTTP handler (useful for testing)
func (s *Server) Handler() http.Handler {
	return s.router
}

// instrument records request counts and latency by route pattern
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": config.Version,
	})
}

// handleVersion returns server version
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"version": config.Version,
	})
}
