package controllers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/amaumene/ytarr/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// progressFlushInterval throttles job progress writes
const progressFlushInterval = time.Second

// Downloader runs one download to completion
type Downloader interface {
	Download(ctx context.Context, req DownloadRequest) (*models.DownloadResult, error)
}

// JobController runs downloads in the background and tracks them as jobs
type JobController struct {
	db         *models.Database
	downloader Downloader
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    map[string]context.CancelFunc
	now        func() time.Time
	logger     *logrus.Logger
}

// NewJobController creates a new job controller
func NewJobController(db *models.Database, downloader Downloader, logger *logrus.Logger) *JobController {
	ctx, cancel := context.WithCancel(context.Background())
	return &JobController{
		db:         db,
		downloader: downloader,
		ctx:        ctx,
		cancel:     cancel,
		running:    make(map[string]context.CancelFunc),
		now:        time.Now,
		logger:     logger,
	}
}

// Submit persists a job for req and starts it in the background
func (c *JobController) Submit(req DownloadRequest) (*models.Job, error) {
	if req.URL == "" {
		return nil, fmt.Errorf("download URL is required")
	}

	now := time.Now()
	job := &models.Job{
		ID:        uuid.NewString(),
		URL:       req.URL,
		VideoID:   req.ID,
		OutputDir: req.OutputDir,
		Quality:   req.Quality,
		Container: req.Container,
		Status:    models.JobStatusPending,
		State:     models.StatePrimary,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if job.VideoID == "" {
		job.VideoID = job.ID
	}

	if err := c.db.CreateJob(job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"job_id": job.ID,
		"url":    job.URL,
	}).Info("Download job submitted")

	ctx, cancel := context.WithCancel(c.ctx)
	c.mu.Lock()
	c.running[job.ID] = cancel
	c.mu.Unlock()

	c.wg.Add(1)
	snapshot := *job
	go c.run(ctx, &snapshot)

	return job, nil
}

// run executes the download for job and records the outcome
func (c *JobController) run(ctx context.Context, job *models.Job) {
	defer c.wg.Done()
	defer c.forget(job.ID)

	job.Status = models.JobStatusDownloading
	job.UpdatedAt = time.Now()
	if err := c.db.UpdateJob(job); err != nil {
		c.logger.WithError(err).WithField("job_id", job.ID).Error("Failed to update job status")
	}

	progress := make(chan models.ProgressEvent, 32)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		c.drainProgress(job, progress)
	}()

	result, err := c.downloader.Download(ctx, DownloadRequest{
		URL:       job.URL,
		OutputDir: job.OutputDir,
		ID:        job.VideoID,
		Container: job.Container,
		Quality:   job.Quality,
		Progress:  progress,
	})
	close(progress)
	<-drained

	now := time.Now()
	job.UpdatedAt = now
	if err != nil {
		job.Status = models.JobStatusFailed
		job.State = models.StateFailed
		job.FailureReason = err.Error()
		if errors.Is(err, context.Canceled) {
			// A stuck job check may already have failed it
			if stored, getErr := c.db.GetJobByID(job.ID); getErr == nil && stored.Status == models.JobStatusFailed {
				return
			}
			job.FailureReason = "download cancelled"
		}
	} else {
		job.Status = models.JobStatusCompleted
		job.State = models.StateDone
		job.Progress = 100
		job.OutputPath = result.Path
		job.AcceptedQuality = result.AcceptedQuality
		job.QualitySubstituted = result.QualitySubstituted
		job.CompletedAt = &now
	}

	if err := c.db.UpdateJob(job); err != nil {
		c.logger.WithError(err).WithField("job_id", job.ID).Error("Failed to record job outcome")
		return
	}

	c.logger.WithFields(logrus.Fields{
		"job_id": job.ID,
		"status": job.Status,
		"path":   job.OutputPath,
	}).Info("Download job finished")
}

// drainProgress copies progress into the job, writing at most once per
// flush interval unless the tier changes
func (c *JobController) drainProgress(job *models.Job, progress <-chan models.ProgressEvent) {
	var lastFlush time.Time
	for event := range progress {
		stateChanged := event.State != "" && event.State != job.State && !event.State.IsTerminal()
		if !event.State.IsTerminal() && event.State != "" {
			job.State = event.State
		}
		if event.Percent > 0 {
			job.Progress = event.Percent
		}

		if !stateChanged && time.Since(lastFlush) < progressFlushInterval {
			continue
		}
		job.UpdatedAt = time.Now()
		if err := c.db.UpdateJob(job); err != nil {
			c.logger.WithError(err).WithField("job_id", job.ID).Debug("Failed to record job progress")
		}
		lastFlush = time.Now()
	}
}

func (c *JobController) forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cancel, ok := c.running[id]; ok {
		cancel()
		delete(c.running, id)
	}
}

// Get returns a job by id
func (c *JobController) Get(id string) (*models.Job, error) {
	return c.db.GetJobByID(id)
}

// Counts returns the number of jobs per status
func (c *JobController) Counts() (map[models.JobStatus]int, error) {
	jobs, err := c.db.GetAllJobs()
	if err != nil {
		return nil, fmt.Errorf("failed to get jobs: %w", err)
	}

	counts := map[models.JobStatus]int{
		models.JobStatusPending:     0,
		models.JobStatusDownloading: 0,
		models.JobStatusCompleted:   0,
		models.JobStatusFailed:      0,
	}
	for _, job := range jobs {
		counts[job.Status]++
	}
	return counts, nil
}

// CheckStuckJobs fails downloading jobs that made no progress within timeout
// and cancels their download if it is still running
func (c *JobController) CheckStuckJobs(timeout time.Duration) error {
	jobs, err := c.db.GetJobsByStatus(models.JobStatusDownloading)
	if err != nil {
		return fmt.Errorf("failed to get downloading jobs: %w", err)
	}

	if len(jobs) == 0 {
		c.logger.Debug("No downloading jobs to check")
		return nil
	}

	now := c.now()
	stuckCount := 0

	for _, job := range jobs {
		duration := now.Sub(job.UpdatedAt)
		if duration <= timeout {
			continue
		}

		stuckCount++
		c.logger.WithFields(logrus.Fields{
			"job_id":   job.ID,
			"url":      job.URL,
			"state":    job.State,
			"duration": duration,
			"timeout":  timeout,
		}).Warn("Download timeout detected, failing job")

		c.mu.Lock()
		if cancel, ok := c.running[job.ID]; ok {
			cancel()
		}
		c.mu.Unlock()

		job.Status = models.JobStatusFailed
		job.State = models.StateFailed
		job.FailureReason = fmt.Sprintf("Download timeout after %v", duration.Round(time.Second))
		job.UpdatedAt = now
		if err := c.db.UpdateJob(job); err != nil {
			c.logger.WithError(err).Error("Failed to update stuck job")
		}
	}

	if stuckCount > 0 {
		c.logger.WithField("count", stuckCount).Info("Stuck jobs handled")
	}
	return nil
}

// FailInterruptedJobs fails jobs left unfinished by a previous run
func (c *JobController) FailInterruptedJobs() error {
	for _, status := range []models.JobStatus{models.JobStatusPending, models.JobStatusDownloading} {
		jobs, err := c.db.GetJobsByStatus(status)
		if err != nil {
			return fmt.Errorf("failed to get %s jobs: %w", status, err)
		}
		for _, job := range jobs {
			job.Status = models.JobStatusFailed
			job.State = models.StateFailed
			job.FailureReason = "interrupted by restart"
			job.UpdatedAt = time.Now()
			if err := c.db.UpdateJob(job); err != nil {
				c.logger.WithError(err).WithField("job_id", job.ID).Error("Failed to fail interrupted job")
				continue
			}
			c.logger.WithField("job_id", job.ID).Warn("Marked interrupted job as failed")
		}
	}
	return nil
}

// PruneFinishedJobs deletes completed and failed jobs older than olderThan
func (c *JobController) PruneFinishedJobs(olderThan time.Duration) (int, error) {
	removed, err := c.db.DeleteFinishedJobsBefore(c.now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to prune jobs: %w", err)
	}

	if removed > 0 {
		c.logger.WithField("removed", removed).Info("Pruned finished jobs")
	}
	return removed, nil
}

// Wait blocks until every running job has finished
func (c *JobController) Wait() {
	c.wg.Wait()
}

// Shutdown cancels running downloads and waits for them to stop
func (c *JobController) Shutdown() {
	c.cancel()
	c.wg.Wait()
}
