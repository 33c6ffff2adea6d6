package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/amaumene/ytarr/internal/config"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// JobMaintainer expires and prunes download jobs
type JobMaintainer interface {
	CheckStuckJobs(timeout time.Duration) error
	PruneFinishedJobs(olderThan time.Duration) (int, error)
}

// ExtractorUpdater updates the extractor binary
type ExtractorUpdater interface {
	UpdateExtractor(ctx context.Context) (bool, error)
}

// CatalogFlusher drops cached format listings
type CatalogFlusher interface {
	Flush()
}

// MuxerResolver locates or starts acquiring the muxer
type MuxerResolver interface {
	Resolve(ctx context.Context, nonBlocking bool, timeout time.Duration) (string, error)
}

// Scheduler manages scheduled tasks
type Scheduler struct {
	cron                   *cron.Cron
	jobs                   JobMaintainer
	updater                ExtractorUpdater
	catalog                CatalogFlusher
	muxer                  MuxerResolver
	updateSchedule         string
	downloadTimeoutMinutes int
	jobRetentionDays       int
	logger                 *logrus.Logger
}

// NewScheduler creates a new scheduler
func NewScheduler(
	cfg *config.Config,
	jobs JobMaintainer,
	updater ExtractorUpdater,
	catalog CatalogFlusher,
	muxer MuxerResolver,
	logger *logrus.Logger,
) *Scheduler {
	return &Scheduler{
		cron:                   cron.New(),
		jobs:                   jobs,
		updater:                updater,
		catalog:                catalog,
		muxer:                  muxer,
		updateSchedule:         cfg.ExtractorUpdateSchedule,
		downloadTimeoutMinutes: cfg.DownloadTimeoutMinutes,
		jobRetentionDays:       cfg.JobRetentionDays,
		logger:                 logger,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.logger.Info("Starting scheduler")

	// Every 10 minutes: Check for stuck downloads
	_, err := s.cron.AddFunc("*/10 * * * *", func() {
		s.runStuckJobCheck()
	})
	if err != nil {
		return fmt.Errorf("failed to add stuck job check: %w", err)
	}

	// Every hour: Prune finished jobs
	_, err = s.cron.AddFunc("0 * * * *", func() {
		s.runPrune()
	})
	if err != nil {
		return fmt.Errorf("failed to add prune job: %w", err)
	}

	if s.updateSchedule != "" {
		_, err = s.cron.AddFunc(s.updateSchedule, func() {
			s.runExtractorUpdate()
		})
		if err != nil {
			return fmt.Errorf("failed to add extractor update job: %w", err)
		}
	}

	s.cron.Start()
	s.logger.Info("Scheduler started")

	// Start fetching the muxer right away so the first download can merge
	go s.runMuxerWarmup()

	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	<-s.cron.Stop().Done()
}

// runStuckJobCheck executes the stuck job check
func (s *Scheduler) runStuckJobCheck() {
	s.logger.Debug("Running stuck job check")

	timeout := time.Duration(s.downloadTimeoutMinutes) * time.Minute
	if err := s.jobs.CheckStuckJobs(timeout); err != nil {
		s.logger.WithError(err).Error("Stuck job check failed")
	}
}

// runPrune deletes finished jobs past their retention
func (s *Scheduler) runPrune() {
	s.logger.Debug("Running job prune")

	retention := time.Duration(s.jobRetentionDays) * 24 * time.Hour
	if _, err := s.jobs.PruneFinishedJobs(retention); err != nil {
		s.logger.WithError(err).Error("Job prune failed")
	}
}

// runExtractorUpdate executes the scheduled extractor self-update
func (s *Scheduler) runExtractorUpdate() {
	s.logger.Info("Running scheduled extractor update")

	updated, err := s.updater.UpdateExtractor(context.Background())
	if err != nil {
		s.logger.WithError(err).Error("Extractor update failed")
		return
	}
	s.logger.WithField("updated", updated).Info("Extractor update completed")

	// A new extractor may list different formats
	if updated {
		s.catalog.Flush()
	}
}

// runMuxerWarmup starts resolving the muxer without waiting for it
func (s *Scheduler) runMuxerWarmup() {
	path, err := s.muxer.Resolve(context.Background(), true, 0)
	if err != nil {
		s.logger.WithError(err).Info("Muxer not available yet, acquiring in the background")
		return
	}
	s.logger.WithField("path", path).Info("Muxer available")
}
