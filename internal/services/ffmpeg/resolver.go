package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/amaumene/ytarr/internal/config"
	"github.com/amaumene/ytarr/internal/models"
	"github.com/amaumene/ytarr/internal/services/process"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"
)

// PathSentinel is returned when the muxer is found on PATH
const PathSentinel = models.MuxerOnPath

const (
	acquireKey = "acquire"
	directKey  = "direct"
)

// ErrMuxerPending is returned by a non-blocking resolution while an
// acquisition is still running
var ErrMuxerPending = fmt.Errorf("%w: acquisition in progress", models.ErrDependencyUnavailable)

// Recorder receives muxer resolution outcomes
type Recorder interface {
	ObserveMuxer(source, outcome string)
}

// AcquisitionState is the process-wide memo of the muxer location. At most
// one acquisition per kind is in flight at any time.
type AcquisitionState struct {
	mu           sync.Mutex
	resolvedPath string
	initialized  bool // PATH probe already failed once
	inFlight     singleflight.Group
}

func (s *AcquisitionState) path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolvedPath
}

func (s *AcquisitionState) setPath(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolvedPath = path
	s.initialized = true
}

func (s *AcquisitionState) pathProbed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

func (s *AcquisitionState) markProbed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = true
}

// Resolver locates the ffmpeg muxer, acquiring it when absent
type Resolver struct {
	runner          process.Runner
	fs              afero.Fs
	fetcher         Fetcher
	binDir          string
	goos            string
	primary         Source
	direct          Source
	probeTimeout    time.Duration
	downloadTimeout time.Duration
	state           *AcquisitionState
	recorder        Recorder
	logger          *logrus.Logger
}

// NewResolver creates a new muxer resolver
func NewResolver(cfg *config.Config, runner process.Runner, fs afero.Fs, fetcher Fetcher, recorder Recorder, logger *logrus.Logger) *Resolver {
	primary, direct := sourcesFromConfig(cfg, runtime.GOOS, runtime.GOARCH)

	return &Resolver{
		runner:          runner,
		fs:              fs,
		fetcher:         fetcher,
		binDir:          cfg.BinDir,
		goos:            runtime.GOOS,
		primary:         primary,
		direct:          direct,
		probeTimeout:    cfg.FFmpegProbeTimeout,
		downloadTimeout: cfg.FFmpegDownloadTimeout,
		state:           &AcquisitionState{},
		recorder:        recorder,
		logger:          logger,
	}
}

// Path returns the memoized muxer location, empty when not resolved yet
func (r *Resolver) Path() string {
	return r.state.path()
}

// Resolve returns a usable muxer location. A non-blocking call starts an
// acquisition if needed and returns ErrMuxerPending without waiting. A
// blocking call waits up to timeout; on timeout the pending acquisition is
// forgotten so the next caller starts afresh.
func (r *Resolver) Resolve(ctx context.Context, nonBlocking bool, timeout time.Duration) (string, error) {
	if path := r.state.path(); path != "" {
		return path, nil
	}

	if path, ok := r.probe(ctx); ok {
		return path, nil
	}

	ch := r.state.inFlight.DoChan(acquireKey, func() (interface{}, error) {
		return r.acquire(r.primary, "download")
	})

	if nonBlocking {
		r.logger.Debug("ffmpeg acquisition in progress, not waiting")
		return "", ErrMuxerPending
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", fmt.Errorf("%w: %v", models.ErrDependencyUnavailable, res.Err)
		}
		return res.Val.(string), nil
	case <-timer.C:
		r.state.inFlight.Forget(acquireKey)
		r.logger.WithField("timeout", timeout).Warn("Timed out waiting for ffmpeg acquisition")
		return "", fmt.Errorf("%w: timed out after %s", models.ErrDependencyUnavailable, timeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// AcquireDirect downloads the muxer from the direct source, bypassing the
// platform archives. Concurrent callers share one download.
func (r *Resolver) AcquireDirect(ctx context.Context) (string, error) {
	if path := r.state.path(); path != "" {
		return path, nil
	}

	ch := r.state.inFlight.DoChan(directKey, func() (interface{}, error) {
		return r.acquire(r.direct, "direct")
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", fmt.Errorf("%w: %v", models.ErrDependencyUnavailable, res.Err)
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// probe checks PATH and the bundled location
func (r *Resolver) probe(ctx context.Context) (string, bool) {
	if !r.state.pathProbed() {
		_, err := r.runner.Run(ctx, process.Command{
			Name:    "ffmpeg",
			Args:    []string{"-version"},
			Timeout: r.probeTimeout,
		})
		if err == nil {
			r.logger.Info("Using ffmpeg from PATH")
			r.state.setPath(PathSentinel)
			r.observe("path", "success")
			return PathSentinel, true
		}
		r.logger.WithError(err).Debug("ffmpeg not found on PATH")
		r.state.markProbed()
	}

	bundled := r.bundledPath()
	if info, err := r.fs.Stat(bundled); err == nil && !info.IsDir() && info.Size() > minBinarySize {
		r.logger.WithField("path", bundled).Info("Using bundled ffmpeg")
		r.state.setPath(bundled)
		r.observe("bundled", "success")
		return bundled, true
	}

	return "", false
}

func (r *Resolver) binaryName() string {
	if r.goos == "windows" {
		return "ffmpeg.exe"
	}
	return "ffmpeg"
}

func (r *Resolver) bundledPath() string {
	return filepath.Join(r.binDir, r.binaryName())
}

// acquire downloads and installs the muxer from source. It runs detached from
// any caller's context so that a timed-out waiter does not abort it.
func (r *Resolver) acquire(source Source, kind string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.downloadTimeout)
	defer cancel()

	start := time.Now()
	var lastErr error = fmt.Errorf("no %s source configured", kind)

	for _, url := range source.URLs() {
		logger := r.logger.WithFields(logrus.Fields{
			"url":  url,
			"kind": kind,
		})
		logger.Info("Downloading ffmpeg")

		path, err := r.downloadAndInstall(ctx, url)
		if err != nil {
			logger.WithError(err).Warn("ffmpeg acquisition from source failed")
			lastErr = err
			continue
		}

		r.state.setPath(path)
		r.observe(kind, "success")
		logger.WithFields(logrus.Fields{
			"path":     path,
			"duration": time.Since(start).Round(time.Millisecond),
		}).Info("ffmpeg installed")
		return path, nil
	}

	r.observe(kind, "failure")
	return "", fmt.Errorf("failed to acquire ffmpeg: %w", lastErr)
}

// downloadAndInstall fetches one archive, extracts it and installs the binary.
// The temporary directory is always removed.
func (r *Resolver) downloadAndInstall(ctx context.Context, url string) (string, error) {
	tmpDir, err := afero.TempDir(r.fs, "", "ytarr-ffmpeg-")
	if err != nil {
		return "", fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() {
		if err := r.fs.RemoveAll(tmpDir); err != nil {
			r.logger.WithError(err).WithField("dir", tmpDir).Warn("Failed to remove ffmpeg temp directory")
		}
	}()

	archivePath := filepath.Join(tmpDir, "archive")
	var archive afero.File
	reset := func() (io.Writer, error) {
		if archive != nil {
			archive.Close()
		}
		f, err := r.fs.Create(archivePath)
		if err != nil {
			return nil, fmt.Errorf("failed to create archive file: %w", err)
		}
		archive = f
		return f, nil
	}

	size, err := fetchWithRetry(ctx, r.fetcher, url, reset, r.logger)
	if archive != nil {
		archive.Close()
	}
	if err != nil {
		return "", err
	}
	r.logger.WithFields(logrus.Fields{
		"url":   url,
		"bytes": size,
	}).Debug("ffmpeg archive downloaded")

	extractDir := filepath.Join(tmpDir, "extract")
	if err := extractArchive(r.fs, archivePath, extractDir); err != nil {
		return "", err
	}

	exe, err := findExecutable(r.fs, extractDir, r.binaryName())
	if err != nil {
		return "", err
	}

	return install(r.fs, exe, r.binDir, r.binaryName())
}

func (r *Resolver) observe(source, outcome string) {
	if r.recorder != nil {
		r.recorder.ObserveMuxer(source, outcome)
	}
}
