package controllers

import (
	"context"
	"time"

	"github.com/amaumene/ytarr/internal/models"
	"github.com/amaumene/ytarr/internal/services/limiter"
	"github.com/amaumene/ytarr/internal/services/ytdlp"
	"github.com/amaumene/ytarr/internal/utils"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// ExtractorKey is the limiter key shared by every extractor call for a URL
func ExtractorKey(url string) string {
	return "yt-dlp:" + url
}

// FormatLister returns the format catalog of a media URL
type FormatLister interface {
	List(ctx context.Context, url string) *models.FormatCatalogResult
	Invalidate(url string)
}

// FormatSource produces the raw format listing of a media URL
type FormatSource interface {
	ListFormats(ctx context.Context, url string) (string, error)
}

// CatalogController lists and caches the formats offered for a media URL
type CatalogController struct {
	limiter   *limiter.Limiter
	source    FormatSource
	blacklist *utils.Blacklist
	cache     *cache.Cache
	logger    *logrus.Logger
}

// NewCatalogController creates a new catalog controller
func NewCatalogController(l *limiter.Limiter, source FormatSource, blacklist *utils.Blacklist, ttl time.Duration, logger *logrus.Logger) *CatalogController {
	return &CatalogController{
		limiter:   l,
		source:    source,
		blacklist: blacklist,
		cache:     cache.New(ttl, 2*ttl),
		logger:    logger,
	}
}

// List returns the formats available for url. It never fails: when the
// listing cannot be obtained an empty catalog is returned.
func (c *CatalogController) List(ctx context.Context, url string) *models.FormatCatalogResult {
	if cached, ok := c.cache.Get(url); ok {
		return cached.(*models.FormatCatalogResult)
	}

	output, err := limiter.Run(ctx, c.limiter, ExtractorKey(url), func(ctx context.Context) (string, error) {
		return c.source.ListFormats(ctx, url)
	})
	if err != nil {
		c.logger.WithError(err).WithField("url", url).Warn("Failed to list formats, using an empty catalog")
		return models.EmptyCatalog()
	}

	catalog := ytdlp.ParseFormatListing(output, c.blacklist)
	if len(catalog.Formats) > 0 {
		c.cache.SetDefault(url, catalog)
	}

	c.logger.WithFields(logrus.Fields{
		"url":        url,
		"formats":    len(catalog.Formats),
		"max_height": catalog.MaxHeightPx,
		"segmented":  catalog.HasSegmentedTransport,
		"combined":   catalog.HasCombinedFormats,
	}).Debug("Format catalog fetched")

	return catalog
}

// Invalidate drops the cached catalog of url
func (c *CatalogController) Invalidate(url string) {
	c.cache.Delete(url)
}

// Flush drops every cached catalog
func (c *CatalogController) Flush() {
	c.cache.Flush()
}
