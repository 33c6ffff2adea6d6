package ytdlp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/amaumene/ytarr/internal/config"
	"github.com/amaumene/ytarr/internal/models"
	"github.com/amaumene/ytarr/internal/services/process"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

const (
	defaultBinary = "yt-dlp"
	queryTimeout  = 2 * time.Minute
	updateTimeout = 2 * time.Minute

	// lastResortUserAgent mimics a desktop browser
	lastResortUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
	lastResortReferer   = "https://www.youtube.com/"
	convertorArgs       = "FFmpegVideoConvertor:-c:v libx264 -crf 18 -preset medium -c:a aac -b:a 192k"
)

// hardeningArgs are passed to every extractor invocation
var hardeningArgs = []string{"--no-check-certificate", "--geo-bypass", "--force-ipv4", "--no-cache-dir"}

// Recorder receives extractor invocation outcomes
type Recorder interface {
	ObserveExtractorRun(operation, outcome string)
}

// Client drives the yt-dlp binary
type Client struct {
	runner       process.Runner
	fs           afero.Fs
	overridePath string
	binDir       string
	goos         string
	recorder     Recorder
	logger       *logrus.Logger
}

// NewClient creates a new extractor client
func NewClient(cfg *config.Config, runner process.Runner, fs afero.Fs, recorder Recorder, logger *logrus.Logger) *Client {
	return &Client{
		runner:       runner,
		fs:           fs,
		overridePath: cfg.YtDlpPath,
		binDir:       cfg.BinDir,
		goos:         runtime.GOOS,
		recorder:     recorder,
		logger:       logger,
	}
}

// Binary returns the extractor to run: the configured override, then the
// bundled copy, then whatever is on PATH
func (c *Client) Binary() string {
	if c.overridePath != "" {
		if exists, _ := afero.Exists(c.fs, c.overridePath); exists {
			return c.overridePath
		}
		c.logger.WithField("path", c.overridePath).Warn("Configured yt-dlp path does not exist, ignoring it")
	}

	if c.binDir != "" {
		name := defaultBinary
		if c.goos == "windows" {
			name += ".exe"
		}
		bundled := filepath.Join(c.binDir, name)
		if exists, _ := afero.Exists(c.fs, bundled); exists {
			return bundled
		}
	}

	return defaultBinary
}

// ListFormats returns the raw --list-formats output for a media URL
func (c *Client) ListFormats(ctx context.Context, url string) (string, error) {
	args := []string{"--list-formats", "--no-playlist", "--extractor-args", profileArg(models.ProfileAndroid)}
	args = append(args, hardeningArgs...)
	args = append(args, url)

	res, err := c.run(ctx, "list_formats", process.Command{Args: args, Timeout: queryTimeout})
	if err != nil {
		return "", err
	}
	return res.Stdout, nil
}

// Metadata is the subset of --dump-json output the service uses
type Metadata struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	WebpageURL string  `json:"webpage_url"`
	URL        string  `json:"url"`
	Thumbnail  string  `json:"thumbnail"`
	Duration   float64 `json:"duration"`
	Channel    string  `json:"channel"`
	Uploader   string  `json:"uploader"`
	Height     int     `json:"height"`
}

// DumpJSON fetches single-item metadata for a media URL
func (c *Client) DumpJSON(ctx context.Context, url string) (*Metadata, error) {
	args := []string{"--dump-json", "--no-playlist", "--extractor-args", profileArg(models.ProfileAndroid)}
	args = append(args, hardeningArgs...)
	args = append(args, url)

	res, err := c.run(ctx, "dump_json", process.Command{Args: args, Timeout: queryTimeout})
	if err != nil {
		return nil, err
	}

	// Only the first JSON document matters
	firstLine := strings.TrimSpace(res.Stdout)
	if i := strings.IndexByte(firstLine, '\n'); i >= 0 {
		firstLine = firstLine[:i]
	}

	var meta Metadata
	if err := json.Unmarshal([]byte(firstLine), &meta); err != nil {
		return nil, fmt.Errorf("%w: failed to decode metadata: %v", models.ErrExtractionFailure, err)
	}
	return &meta, nil
}

// DownloadOptions describes one download invocation
type DownloadOptions struct {
	URL              string
	OutputPath       string
	FormatExpression string
	Profile          models.ClientProfile
	MuxerPath        string // enables merging, conversion and thumbnail embedding
	Container        string // merge output container, defaults to mp4
	LastResort       bool   // adds compatibility headers and disables .part files
}

// Args builds the extractor argument list
func (o DownloadOptions) Args() []string {
	args := []string{
		"-o", o.OutputPath,
		"--no-playlist",
		"--progress",
		"--newline",
		"--add-metadata",
		"--no-write-thumbnail",
		"--ignore-errors",
		"--skip-unavailable-fragments",
	}
	args = append(args, hardeningArgs...)

	if o.Profile != "" {
		args = append(args, "--extractor-args", profileArg(o.Profile))
	}
	if o.FormatExpression != "" {
		args = append(args, "-f", o.FormatExpression)
	}

	if o.MuxerPath != "" {
		container := o.Container
		if container == "" {
			container = "mp4"
		}
		// yt-dlp checks --ffmpeg-location as a file path, so PATH lookups omit it
		if o.MuxerPath != models.MuxerOnPath {
			args = append(args, "--ffmpeg-location", o.MuxerPath)
		}
		args = append(args,
			"--merge-output-format", container,
			"--embed-thumbnail",
			"--prefer-ffmpeg",
			"--postprocessor-args", convertorArgs,
		)
	}

	if o.LastResort {
		args = append(args,
			"--no-part",
			"--prefer-insecure",
			"--user-agent", lastResortUserAgent,
			"--referer", lastResortReferer,
		)
	}

	return append(args, o.URL)
}

// Download runs the extractor and forwards progress lines to onProgress
func (c *Client) Download(ctx context.Context, opts DownloadOptions, onProgress func(Progress)) error {
	cmd := process.Command{
		Args: opts.Args(),
		OnLine: func(line string) {
			if onProgress == nil {
				return
			}
			if p, ok := ParseProgress(line); ok {
				onProgress(p)
			}
		},
	}

	_, err := c.run(ctx, "download", cmd)
	return err
}

// Update asks the extractor to update itself. It reports whether a new
// version was installed.
func (c *Client) Update(ctx context.Context) (bool, error) {
	res, err := c.run(ctx, "update", process.Command{Args: []string{"-U"}, Timeout: updateTimeout})
	if err != nil {
		return false, err
	}
	updated := strings.Contains(res.Stdout, "Updated to version") || strings.Contains(res.Stdout, "Updated yt-dlp to")
	return updated, nil
}

// run invokes the extractor and classifies failures
func (c *Client) run(ctx context.Context, operation string, cmd process.Command) (*process.Result, error) {
	cmd.Name = c.Binary()

	start := time.Now()
	res, err := c.runner.Run(ctx, cmd)
	if err != nil {
		extErr := newExtractorError(operation, res, err)
		c.observe(operation, "failure")
		c.logger.WithFields(logrus.Fields{
			"operation": operation,
			"duration":  time.Since(start).Round(time.Millisecond),
			"kind":      extErr.Kind,
		}).WithError(err).Debug("yt-dlp invocation failed")
		return res, extErr
	}

	c.observe(operation, "success")
	return res, nil
}

func (c *Client) observe(operation, outcome string) {
	if c.recorder != nil {
		c.recorder.ObserveExtractorRun(operation, outcome)
	}
}

// profileArg renders the extractor-args value for a client profile
func profileArg(p models.ClientProfile) string {
	return "youtube:player_client=" + string(p)
}

// ExtractorError describes a failed extractor invocation
type ExtractorError struct {
	Operation string
	ExitCode  int
	Output    string
	Kind      error // one of the models error kinds
	Err       error
}

func (e *ExtractorError) Error() string {
	return fmt.Sprintf("yt-dlp %s failed (%v): %s", e.Operation, e.Kind, tail(e.Output, 3))
}

// Unwrap exposes both the error kind and the underlying process error
func (e *ExtractorError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// IsMuxerMissing reports whether a failure was caused by an absent muxer
func IsMuxerMissing(err error) bool {
	return errors.Is(err, models.ErrDependencyUnavailable)
}

var muxerMissingMarkers = []string{
	"ffmpeg not found",
	"ffmpeg is not installed",
	"ffprobe and ffmpeg not found",
	"ffmpeg could not be found",
}

// newExtractorError classifies a failure by the extractor's output
func newExtractorError(operation string, res *process.Result, err error) *ExtractorError {
	extErr := &ExtractorError{
		Operation: operation,
		ExitCode:  -1,
		Kind:      models.ErrExtractionFailure,
		Err:       err,
	}
	if res == nil {
		extErr.Output = err.Error()
		return extErr
	}

	extErr.ExitCode = res.ExitCode
	extErr.Output = res.Output()

	lower := strings.ToLower(extErr.Output)
	for _, marker := range muxerMissingMarkers {
		if strings.Contains(lower, marker) {
			extErr.Kind = models.ErrDependencyUnavailable
			return extErr
		}
	}
	if strings.Contains(lower, "requested format is not available") {
		extErr.Kind = models.ErrFormatUnavailable
	}
	return extErr
}

// tail returns the last n non-empty lines of s
func tail(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
