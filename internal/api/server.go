package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/amaumene/ytarr/internal/api/handlers"
	"github.com/amaumene/ytarr/internal/api/middleware"
	"github.com/amaumene/ytarr/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// JobManager submits, looks up and counts download jobs
type JobManager interface {
	handlers.JobService
	handlers.JobCounter
}

// Services are the components exposed over HTTP
type Services struct {
	Jobs     JobManager
	Status   handlers.StatusChecker
	Formats  handlers.FormatLister
	Muxer    handlers.MuxerLocator
	Gatherer prometheus.Gatherer
}

// Server represents the HTTP server
type Server struct {
	server    *http.Server
	services  Services
	outputDir string
	logger    *logrus.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, services Services, logger *logrus.Logger) *Server {
	s := &Server{
		services:  services,
		outputDir: cfg.OutputDir,
		logger:    logger,
	}

	s.server = &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute, // status and format lookups wait for the extractor
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the routed handler wrapped in the logging middleware
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.setupRoutes(mux)
	return middleware.Logging(mux, s.logger)
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(mux *http.ServeMux) {
	// Health check
	healthHandler := handlers.NewHealthHandler(s.services.Muxer, s.logger)
	mux.HandleFunc("/health", healthHandler.ServeHTTP)

	// Job counts
	statusHandler := handlers.NewStatusHandler(s.services.Jobs, s.logger)
	mux.HandleFunc("/status", statusHandler.ServeHTTP)

	// Download jobs
	downloadsHandler := handlers.NewDownloadsHandler(s.services.Jobs, s.outputDir, s.logger)
	mux.HandleFunc("/api/downloads", downloadsHandler.Create)
	mux.HandleFunc("/api/downloads/{id}", downloadsHandler.Get)

	// Media lookups
	mediaHandler := handlers.NewMediaHandler(s.services.Status, s.services.Formats, s.logger)
	mux.HandleFunc("/api/media/status", mediaHandler.Status)
	mux.HandleFunc("/api/media/formats", mediaHandler.Formats)

	if s.services.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.services.Gatherer, promhttp.HandlerOpts{}))
	}
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("port", s.server.Addr).Info("Starting HTTP server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}
