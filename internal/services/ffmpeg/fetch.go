package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

const (
	userAgent        = "ytarr"
	progressInterval = 2 * time.Second
	progressStep     = 10.0
	maxFetchRetries  = 2
)

// Fetcher downloads an archive into w
type Fetcher interface {
	Fetch(ctx context.Context, url string, w io.Writer) (int64, error)
}

// HTTPFetcher downloads archives over HTTP, following redirects
type HTTPFetcher struct {
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewHTTPFetcher creates a new archive fetcher
func NewHTTPFetcher(timeout time.Duration, logger *logrus.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Fetch streams url into w and logs progress while doing so
func (f *HTTPFetcher) Fetch(ctx context.Context, url string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch archive: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("archive fetch returned status %d", resp.StatusCode)
		// Client errors will not change on retry
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return 0, backoff.Permanent(err)
		}
		return 0, err
	}

	reader := &progressReader{
		r:      resp.Body,
		total:  resp.ContentLength,
		url:    url,
		last:   time.Now(),
		logger: f.logger,
	}

	n, err := io.Copy(w, reader)
	if err != nil {
		return n, fmt.Errorf("failed to read archive body: %w", err)
	}
	return n, nil
}

// progressReader logs download progress every few seconds or every 10 percent
type progressReader struct {
	r           io.Reader
	total       int64
	read        int64
	url         string
	last        time.Time
	lastPercent float64
	logger      *logrus.Logger
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	p.read += int64(n)

	percent := -1.0
	if p.total > 0 {
		percent = float64(p.read) * 100 / float64(p.total)
	}

	if time.Since(p.last) >= progressInterval || (percent >= 0 && percent-p.lastPercent >= progressStep) {
		fields := logrus.Fields{
			"url":   p.url,
			"bytes": p.read,
		}
		if percent >= 0 {
			fields["percent"] = fmt.Sprintf("%.1f", percent)
			p.lastPercent = percent
		}
		p.logger.WithFields(fields).Info("Downloading ffmpeg")
		p.last = time.Now()
	}

	return n, err
}

// fetchWithRetry retries transient fetch failures with exponential backoff
func fetchWithRetry(ctx context.Context, fetcher Fetcher, url string, reset func() (io.Writer, error), logger *logrus.Logger) (int64, error) {
	var size int64
	attempt := 0

	op := func() error {
		attempt++
		w, err := reset()
		if err != nil {
			return backoff.Permanent(err)
		}
		size, err = fetcher.Fetch(ctx, url, w)
		return err
	}

	notify := func(err error, wait time.Duration) {
		logger.WithFields(logrus.Fields{
			"url":     url,
			"attempt": attempt,
			"retry":   wait.Round(time.Millisecond),
		}).WithError(err).Warn("ffmpeg archive download failed, retrying")
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxFetchRetries), ctx)
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return 0, err
	}
	return size, nil
}
