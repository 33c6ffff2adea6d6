package controllers

import (
	"context"

	"github.com/amaumene/ytarr/internal/models"
	"github.com/amaumene/ytarr/internal/services/limiter"
	"github.com/amaumene/ytarr/internal/services/ytdlp"
	"github.com/amaumene/ytarr/internal/utils"
	"github.com/sirupsen/logrus"
)

// defaultQualityLabel is reported when no height can be determined
const defaultQualityLabel = "720p"

// MetadataSource fetches single-item metadata for a media URL
type MetadataSource interface {
	DumpJSON(ctx context.Context, url string) (*ytdlp.Metadata, error)
}

// StatusController reports whether a media URL can be downloaded
type StatusController struct {
	limiter *limiter.Limiter
	source  MetadataSource
	catalog FormatLister
	logger  *logrus.Logger
}

// NewStatusController creates a new status controller
func NewStatusController(l *limiter.Limiter, source MetadataSource, catalog FormatLister, logger *logrus.Logger) *StatusController {
	return &StatusController{
		limiter: l,
		source:  source,
		catalog: catalog,
		logger:  logger,
	}
}

// CheckStatus fetches the media metadata and a coarse quality label. Errors
// are reported in the result rather than returned.
func (c *StatusController) CheckStatus(ctx context.Context, url string) *models.StatusResult {
	meta, err := limiter.Run(ctx, c.limiter, ExtractorKey(url), func(ctx context.Context) (*ytdlp.Metadata, error) {
		return c.source.DumpJSON(ctx, url)
	})
	if err != nil {
		c.logger.WithError(err).WithField("url", url).Warn("Status check failed")
		return &models.StatusResult{Available: false, Error: err.Error()}
	}

	// The catalog takes the same limiter key, so it must run after DumpJSON
	// has released it.
	catalog := c.catalog.List(ctx, url)

	height := catalog.MaxHeightPx
	if len(catalog.Formats) == 0 && meta.Height > 0 {
		height = meta.Height
	}
	label := defaultQualityLabel
	if height > 0 {
		label = utils.ClassifyHeight(height)
	}

	pageURL := meta.WebpageURL
	if pageURL == "" {
		pageURL = meta.URL
	}
	channel := meta.Channel
	if channel == "" {
		channel = meta.Uploader
	}

	c.logger.WithFields(logrus.Fields{
		"url":         url,
		"id":          meta.ID,
		"max_quality": label,
	}).Debug("Status check completed")

	return &models.StatusResult{
		Available: true,
		Info: &models.MediaInfo{
			ID:         meta.ID,
			Title:      meta.Title,
			URL:        pageURL,
			Thumbnail:  meta.Thumbnail,
			Duration:   meta.Duration,
			Channel:    channel,
			MaxQuality: label,
		},
	}
}
