package controllers

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/amaumene/ytarr/internal/config"
	"github.com/amaumene/ytarr/internal/models"
	"github.com/amaumene/ytarr/internal/services/limiter"
	"github.com/amaumene/ytarr/internal/services/ytdlp"
	"github.com/amaumene/ytarr/internal/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const fallbackQualityHeight = 1080

// MuxerResolver locates the muxer binary
type MuxerResolver interface {
	Resolve(ctx context.Context, nonBlocking bool, timeout time.Duration) (string, error)
	AcquireDirect(ctx context.Context) (string, error)
}

// Extractor runs downloads and maintenance through the extractor binary
type Extractor interface {
	Download(ctx context.Context, opts ytdlp.DownloadOptions, onProgress func(ytdlp.Progress)) error
	Update(ctx context.Context) (bool, error)
}

// FileVerifier checks produced files and removes partial artifacts
type FileVerifier interface {
	Verify(path string) models.VerificationResult
	CleanupPartials(path string)
}

// Recorder receives download outcomes
type Recorder interface {
	ObserveTier(tier, outcome string)
	ObserveDownload(result string)
}

// DownloadRequest describes one media download
type DownloadRequest struct {
	URL       string
	OutputDir string
	ID        string // output file base name
	Container string
	Quality   string // "best" or "<height>p"
	Progress  chan<- models.ProgressEvent
}

// DownloadController drives the tiered download state machine
type DownloadController struct {
	limiter          *limiter.Limiter
	extractor        Extractor
	catalog          FormatLister
	resolver         MuxerResolver
	verifier         FileVerifier
	recorder         Recorder
	outputDir        string
	defaultQuality   models.QualityRequest
	defaultContainer string
	primaryWait      time.Duration
	retryWait        time.Duration
	logger           *logrus.Logger
}

// NewDownloadController creates a new download controller
func NewDownloadController(cfg *config.Config, l *limiter.Limiter, extractor Extractor, catalog FormatLister, resolver MuxerResolver, verifier FileVerifier, recorder Recorder, logger *logrus.Logger) *DownloadController {
	quality, err := utils.ParseQuality(cfg.DefaultQuality)
	if err != nil {
		quality = models.HeightCeiling(fallbackQualityHeight)
	}

	return &DownloadController{
		limiter:          l,
		extractor:        extractor,
		catalog:          catalog,
		resolver:         resolver,
		verifier:         verifier,
		recorder:         recorder,
		outputDir:        cfg.OutputDir,
		defaultQuality:   quality,
		defaultContainer: cfg.DefaultContainer,
		primaryWait:      cfg.FFmpegPrimaryWait,
		retryWait:        cfg.FFmpegRetryWait,
		logger:           logger,
	}
}

// attempt carries the state shared by the tiers of one download
type attempt struct {
	req        DownloadRequest
	quality    models.QualityRequest
	container  string
	outputPath string
	muxerPath  string
	catalog    *models.FormatCatalogResult
	failures   []models.TierFailure
	logger     *logrus.Entry
}

// lastFailure returns the error of the most recent failed tier
func (a *attempt) lastFailure() error {
	if len(a.failures) == 0 {
		return nil
	}
	return a.failures[len(a.failures)-1].Err
}

// Download runs the tiers in order until one produces a verified file.
// When every tier fails the returned error is an *AllTiersExhaustedError.
func (c *DownloadController) Download(ctx context.Context, req DownloadRequest) (*models.DownloadResult, error) {
	a, err := c.newAttempt(req)
	if err != nil {
		return nil, err
	}

	a.logger.WithFields(logrus.Fields{
		"output":  a.outputPath,
		"quality": a.quality.String(),
	}).Info("Starting download")

	start := time.Now()
	for _, t := range c.tiers() {
		if err := ctx.Err(); err != nil {
			c.observeDownload("cancelled")
			return nil, err
		}

		c.emit(a, models.ProgressEvent{State: t.state, Message: "starting " + string(t.state)})

		plan, err := t.plan(ctx, a)
		if errors.Is(err, errSkipTier) {
			continue
		}
		if err == nil {
			err = c.execute(ctx, a, plan)
		}

		if err == nil {
			c.observeTier(t.state, "success")
			c.observeDownload("success")
			result := c.result(a, plan)
			c.emit(a, models.ProgressEvent{State: models.StateDone, Percent: 100, Message: "download complete"})
			a.logger.WithFields(logrus.Fields{
				"tier":     t.state,
				"path":     result.Path,
				"size":     result.Verification.SizeBytes,
				"accepted": result.AcceptedQuality,
				"duration": time.Since(start).Round(time.Millisecond),
			}).Info("Download completed")
			return result, nil
		}

		c.observeTier(t.state, "failure")
		a.failures = append(a.failures, models.TierFailure{State: t.state, Err: err})
		a.logger.WithError(err).WithField("tier", t.state).Warn("Download tier failed")

		target := a.outputPath
		if plan != nil && plan.OutputPath != "" {
			target = plan.OutputPath
		}
		c.verifier.CleanupPartials(target)
		if target != a.outputPath {
			c.verifier.CleanupPartials(a.outputPath)
		}

		if t.onFailure != nil {
			t.onFailure(ctx, a, err)
		}
	}

	c.observeDownload("failure")
	c.emit(a, models.ProgressEvent{State: models.StateFailed, Message: "all download attempts failed"})
	exhausted := &models.AllTiersExhaustedError{URL: a.req.URL, Failures: a.failures}
	a.logger.WithError(exhausted).Error("Download failed")
	return nil, exhausted
}

// newAttempt applies defaults and validates the request
func (c *DownloadController) newAttempt(req DownloadRequest) (*attempt, error) {
	if strings.TrimSpace(req.URL) == "" {
		return nil, fmt.Errorf("download URL is required")
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if err := ValidateDownloadID(req.ID); err != nil {
		return nil, err
	}
	if req.OutputDir == "" {
		req.OutputDir = c.outputDir
	}

	quality := c.defaultQuality
	if req.Quality != "" {
		q, err := utils.ParseQuality(req.Quality)
		if err != nil {
			return nil, fmt.Errorf("invalid quality %q: %w", req.Quality, err)
		}
		quality = q
	}

	container := req.Container
	if container == "" {
		container = c.defaultContainer
	}

	return &attempt{
		req:        req,
		quality:    quality,
		container:  container,
		outputPath: filepath.Join(req.OutputDir, req.ID+"."+container),
		logger: c.logger.WithFields(logrus.Fields{
			"download_id": req.ID,
			"url":         req.URL,
		}),
	}, nil
}

// ValidateDownloadID rejects ids that are not a plain file base name
func ValidateDownloadID(id string) error {
	if id == "." || strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) || filepath.Base(id) != id {
		return fmt.Errorf("invalid download id %q: must be a plain file name", id)
	}
	return nil
}

// ConfineDir resolves dir under base. Relative dirs are taken from base; the
// result must not leave base.
func ConfineDir(base, dir string) (string, error) {
	base = filepath.Clean(base)
	if dir == "" {
		return base, nil
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(base, dir)
	}
	dir = filepath.Clean(dir)

	rel, err := filepath.Rel(base, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("output directory %q is outside %s", dir, base)
	}
	return dir, nil
}

// execute runs one plan through the limiter and verifies its output
func (c *DownloadController) execute(ctx context.Context, a *attempt, plan *models.DownloadAttemptPlan) error {
	opts := ytdlp.DownloadOptions{
		URL:              a.req.URL,
		OutputPath:       plan.OutputPath,
		FormatExpression: plan.FormatExpression,
		Profile:          plan.ClientProfile,
		MuxerPath:        plan.MuxerPath,
		Container:        a.container,
		LastResort:       plan.LastResortArgs,
	}

	a.logger.WithFields(logrus.Fields{
		"tier":    plan.Tier,
		"format":  plan.FormatExpression,
		"profile": plan.ClientProfile,
		"muxer":   plan.HasMuxer(),
	}).Info("Attempting download")

	onProgress := func(p ytdlp.Progress) {
		c.emit(a, models.ProgressEvent{
			State:      plan.Tier,
			Percent:    p.Percent,
			SpeedBytes: p.SpeedBytes,
			ETA:        p.ETA,
		})
	}

	err := c.limiter.Do(ctx, ExtractorKey(a.req.URL), func(ctx context.Context) error {
		return c.extractor.Download(ctx, opts, onProgress)
	})
	if err != nil {
		return err
	}

	verification := c.verifier.Verify(plan.OutputPath)
	if !verification.Passed {
		return fmt.Errorf("%w: %s is %d bytes", models.ErrVerificationFailure, plan.OutputPath, verification.SizeBytes)
	}
	return nil
}

// result builds the success value, flagging any quality substitution
func (c *DownloadController) result(a *attempt, plan *models.DownloadAttemptPlan) *models.DownloadResult {
	accepted, substituted := utils.AcceptedQuality(a.quality, plan.AcceptedHeight, plan.AudioOnly)
	if substituted {
		a.logger.WithFields(logrus.Fields{
			"requested": a.quality.String(),
			"accepted":  accepted,
		}).Warn("Downloaded a lower quality than requested")
	}

	return &models.DownloadResult{
		Path:               plan.OutputPath,
		State:              plan.Tier,
		FormatExpression:   plan.FormatExpression,
		RequestedQuality:   a.quality.String(),
		AcceptedQuality:    accepted,
		QualitySubstituted: substituted,
		Verification:       c.verifier.Verify(plan.OutputPath),
	}
}

// emit forwards a progress event without ever blocking the download
func (c *DownloadController) emit(a *attempt, event models.ProgressEvent) {
	if a.req.Progress == nil {
		return
	}
	event.DownloadID = a.req.ID
	select {
	case a.req.Progress <- event:
	default:
	}
}

func (c *DownloadController) observeTier(state models.DownloadState, outcome string) {
	if c.recorder != nil {
		c.recorder.ObserveTier(string(state), outcome)
	}
}

func (c *DownloadController) observeDownload(result string) {
	if c.recorder != nil {
		c.recorder.ObserveDownload(result)
	}
}
