package controllers

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/amaumene/ytarr/internal/models"
	"github.com/amaumene/ytarr/internal/services/ytdlp"
	"github.com/spf13/afero"
)

var errExtraction = &ytdlp.ExtractorError{
	Operation: "download",
	ExitCode:  1,
	Output:    "ERROR: unable to download video data: HTTP Error 403: Forbidden",
	Kind:      models.ErrExtractionFailure,
	Err:       errors.New("exit status 1"),
}

var errMuxerMissing = &ytdlp.ExtractorError{
	Operation: "download",
	ExitCode:  1,
	Output:    "ERROR: ffmpeg not found. Please install or provide the path using --ffmpeg-location",
	Kind:      models.ErrDependencyUnavailable,
	Err:       errors.New("exit status 1"),
}

// fakeResolver returns queued results, then its steady state
type fakeResolver struct {
	mu          sync.Mutex
	queue       []string // "" means a failed resolution
	path        string
	directPath  string
	resolves    int
	directCalls int
}

func (r *fakeResolver) Resolve(ctx context.Context, nonBlocking bool, timeout time.Duration) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolves++

	path := r.path
	if len(r.queue) > 0 {
		path, r.queue = r.queue[0], r.queue[1:]
	}
	if path == "" {
		return "", models.ErrDependencyUnavailable
	}
	return path, nil
}

func (r *fakeResolver) AcquireDirect(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.directCalls++
	if r.directPath == "" {
		return "", models.ErrDependencyUnavailable
	}
	return r.directPath, nil
}

// outcome scripts what one extractor invocation does
type outcome struct {
	size     int      // bytes written to the output path, 0 for none
	partials []string // artifact names left in the output directory
	err      error
}

type fakeExtractor struct {
	mu       sync.Mutex
	fs       afero.Fs
	outcomes map[models.ClientProfile]outcome
	script   []outcome // consumed in order before outcomes
	calls    []ytdlp.DownloadOptions
	updates  int
	updated  bool
}

func (e *fakeExtractor) Download(ctx context.Context, opts ytdlp.DownloadOptions, onProgress func(ytdlp.Progress)) error {
	e.mu.Lock()
	e.calls = append(e.calls, opts)
	o := e.outcomes[opts.Profile]
	if len(e.script) > 0 {
		o, e.script = e.script[0], e.script[1:]
	}
	e.mu.Unlock()

	if onProgress != nil {
		onProgress(ytdlp.Progress{Percent: 42.5, SpeedBytes: 1 << 20})
	}

	dir := filepath.Dir(opts.OutputPath)
	for _, name := range o.partials {
		if err := afero.WriteFile(e.fs, filepath.Join(dir, name), bytes.Repeat([]byte{1}, 4096), 0644); err != nil {
			return err
		}
	}
	if o.size > 0 {
		if err := afero.WriteFile(e.fs, opts.OutputPath, bytes.Repeat([]byte{1}, o.size), 0644); err != nil {
			return err
		}
	}
	return o.err
}

func (e *fakeExtractor) Update(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.updates++
	return e.updated, nil
}

func (e *fakeExtractor) profiles() []models.ClientProfile {
	e.mu.Lock()
	defer e.mu.Unlock()
	profiles := make([]models.ClientProfile, 0, len(e.calls))
	for _, c := range e.calls {
		profiles = append(profiles, c.Profile)
	}
	return profiles
}

type fakeCatalog struct {
	mu          sync.Mutex
	catalog     *models.FormatCatalogResult
	lists       int
	invalidated int
}

func (c *fakeCatalog) List(ctx context.Context, url string) *models.FormatCatalogResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lists++
	if c.catalog == nil {
		return models.EmptyCatalog()
	}
	return c.catalog
}

func (c *fakeCatalog) Invalidate(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated++
}

// fakeDownloader stands in for the orchestrator in job tests
type fakeDownloader struct {
	result  *models.DownloadResult
	err     error
	block   chan struct{}
	started chan struct{}
}

func (d *fakeDownloader) Download(ctx context.Context, req DownloadRequest) (*models.DownloadResult, error) {
	if d.started != nil {
		close(d.started)
	}
	if req.Progress != nil {
		req.Progress <- models.ProgressEvent{State: models.StateFallback, Percent: 10}
	}
	if d.block != nil {
		select {
		case <-d.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return d.result, d.err
}
