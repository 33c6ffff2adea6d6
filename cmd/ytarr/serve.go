package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/amaumene/ytarr/internal/api"
	"github.com/amaumene/ytarr/internal/config"
	"github.com/amaumene/ytarr/internal/controllers"
	"github.com/amaumene/ytarr/internal/models"
	"github.com/amaumene/ytarr/internal/scheduler"
	"github.com/amaumene/ytarr/internal/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and scheduled maintenance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}
}

func run() error {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Setup logger
	logger := utils.NewLogger(cfg.LogLevel)
	logger.Info("Starting ytarr")
	logger.WithFields(logrus.Fields{
		"config_dir": filepath.Dir(cfg.DatabaseFile),
		"output_dir": cfg.OutputDir,
	}).Info("Configuration loaded")

	// 3. Initialize database
	db, err := models.NewDatabase(cfg.DatabaseFile)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()
	logger.Info("Database initialized")

	// 4. Initialize components
	a := newApp(cfg, logger)
	jobs := controllers.NewJobController(db, a.downloads, logger)
	if err := jobs.FailInterruptedJobs(); err != nil {
		logger.WithError(err).Warn("Failed to mark interrupted jobs")
	}
	defer jobs.Shutdown()
	logger.Info("Controllers initialized")

	// 5. Initialize scheduler
	sched := scheduler.NewScheduler(cfg, jobs, a.downloads, a.catalog, a.resolver, logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	// 6. Initialize HTTP server
	server := api.NewServer(cfg, api.Services{
		Jobs:     jobs,
		Status:   a.status,
		Formats:  a.catalog,
		Muxer:    a.resolver,
		Gatherer: a.registry,
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverErrChan := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil {
			serverErrChan <- err
		}
	}()

	// 7. Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("ytarr is running")

	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		logger.WithField("signal", sig).Info("Received shutdown signal")
		cancel()
		if err := server.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Error("Error during server shutdown")
		}
	}

	logger.Info("ytarr stopped")
	return nil
}
