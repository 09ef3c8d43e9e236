// Package server provides the HTTP API for ronbun.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/ronbun/internal/config"
	"github.com/hyperjump/ronbun/internal/service"
	"go.uber.org/zap"
)

// Server is the HTTP server for the ronbun API.
type Server struct {
	service  *service.PaperService
	keywords *LockedKeywords
	dbPath   string
	config   *config.ServerConfig
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies.
// dbPath is reported by the status endpoint.
func NewServer(
	svc *service.PaperService,
	keywords *LockedKeywords,
	cfg *config.ServerConfig,
	dbPath string,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		service:  svc,
		keywords: keywords,
		dbPath:   dbPath,
		config:   cfg,
		logger:   logger.Named("server"),
	}
}

// Routes returns the API router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/categories", s.handleCategories)
		r.Get("/search", s.handleSearch)
		r.Get("/watch", s.handleWatchList)
		r.Post("/watch", s.handleWatchAdd)
		r.Delete("/watch/{keyword}", s.handleWatchRemove)
		r.Get("/new-papers", s.handleNewPapers)
		r.Get("/email-config", s.handleGetEmailConfig)
		r.Post("/email-config", s.handleSaveEmailConfig)
		r.Post("/processing/pause", s.handlePause)
		r.Post("/processing/resume", s.handleResume)
		r.Get("/processing/status", s.handleProcessingStatus)
		r.Get("/status", s.handleStatus)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
