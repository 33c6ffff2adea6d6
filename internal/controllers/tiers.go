package controllers

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/amaumene/ytarr/internal/models"
	"github.com/amaumene/ytarr/internal/services/ytdlp"
	"github.com/amaumene/ytarr/internal/utils"
)

// updateKey serializes extractor self-updates
const updateKey = "yt-dlp:update"

// lastResortMaxHeight caps the quality of the most compatible tier
const lastResortMaxHeight = models.DefaultMaxHeight

// errSkipTier makes the driver move on without recording a failure
var errSkipTier = errors.New("tier not applicable")

// tier is one stage of the download state machine
type tier struct {
	state     models.DownloadState
	plan      func(ctx context.Context, a *attempt) (*models.DownloadAttemptPlan, error)
	onFailure func(ctx context.Context, a *attempt, err error)
}

// tiers returns the stages in the order they are tried
func (c *DownloadController) tiers() []tier {
	return []tier{
		{state: models.StatePrimary, plan: c.planPrimary},
		{state: models.StateFFmpegWaitRetry, plan: c.planFFmpegWaitRetry, onFailure: c.acquireDirect},
		{state: models.StateFallback, plan: c.planFallback},
		{state: models.StateLastResort, plan: c.planLastResort},
	}
}

// catalogFor fetches the catalog once per download
func (c *DownloadController) catalogFor(ctx context.Context, a *attempt) *models.FormatCatalogResult {
	if a.catalog == nil {
		a.catalog = c.catalog.List(ctx, a.req.URL)
	}
	return a.catalog
}

func (c *DownloadController) planPrimary(ctx context.Context, a *attempt) (*models.DownloadAttemptPlan, error) {
	muxer, err := c.resolver.Resolve(ctx, true, 0)
	if err != nil {
		muxer, err = c.resolver.Resolve(ctx, false, c.primaryWait)
		if err != nil {
			a.logger.WithError(err).Info("Muxer not available, downloading without merging")
		}
	}
	a.muxerPath = muxer

	return c.primaryPlan(ctx, a, models.StatePrimary), nil
}

// primaryPlan builds the preferred invocation. Without a muxer only formats
// that need no merging are requested.
func (c *DownloadController) primaryPlan(ctx context.Context, a *attempt, state models.DownloadState) *models.DownloadAttemptPlan {
	catalog := c.catalogFor(ctx, a)
	plan := &models.DownloadAttemptPlan{
		Tier:          state,
		ClientProfile: models.ProfileAndroid,
		MuxerPath:     a.muxerPath,
		OutputPath:    a.outputPath,
	}

	switch {
	case plan.HasMuxer():
		plan.FormatExpression = utils.BuildFormatExpression(a.quality)
		plan.AcceptedHeight = expectedHeight(catalog, a.quality)
	case catalog.HasSegmentedTransport && catalog.HasCombinedFormats:
		id := utils.BestFallbackFormatID(catalog, a.quality)
		plan.FormatExpression = id
		plan.AcceptedHeight = utils.FormatHeight(catalog, id)
	case catalog.HasSegmentedTransport:
		plan.FormatExpression = "best"
	default:
		plan.FormatExpression = "b"
	}

	return plan
}

func (c *DownloadController) planFFmpegWaitRetry(ctx context.Context, a *attempt) (*models.DownloadAttemptPlan, error) {
	if !ytdlp.IsMuxerMissing(a.lastFailure()) {
		return nil, errSkipTier
	}

	a.logger.WithField("wait", c.retryWait).Info("Waiting for the muxer before retrying")
	muxer, err := c.resolver.Resolve(ctx, false, c.retryWait)
	if err != nil {
		return nil, err
	}
	a.muxerPath = muxer

	return c.primaryPlan(ctx, a, models.StateFFmpegWaitRetry), nil
}

// acquireDirect is the last attempt at getting a muxer for the later tiers
func (c *DownloadController) acquireDirect(ctx context.Context, a *attempt, _ error) {
	path, err := c.resolver.AcquireDirect(ctx)
	if err != nil {
		a.logger.WithError(err).Warn("Direct muxer acquisition failed")
		return
	}
	a.logger.WithField("path", path).Info("Muxer acquired directly")
	a.muxerPath = path
}

func (c *DownloadController) planFallback(ctx context.Context, a *attempt) (*models.DownloadAttemptPlan, error) {
	catalog := c.catalogFor(ctx, a)
	plan := &models.DownloadAttemptPlan{
		Tier:          models.StateFallback,
		ClientProfile: models.ProfileIOS,
		MuxerPath:     a.muxerPath,
		OutputPath:    a.outputPath,
	}

	if catalog.IsSegmentedOnly() {
		a.logger.Warn("Only segmented formats are offered, the fallback download may fail")
	}

	if f, ok := utils.BestAtOrBelow(catalog, a.quality, !plan.HasMuxer()); ok {
		plan.FormatExpression = f.ID
		if f.IsVideoOnly {
			plan.FormatExpression = f.ID + "+bestaudio/" + utils.BestFallbackFormatID(catalog, a.quality)
		}
		plan.AcceptedHeight = f.HeightPx
		return plan, nil
	}

	id := utils.BestFallbackFormatID(catalog, a.quality)
	plan.FormatExpression = id
	plan.AcceptedHeight = utils.FormatHeight(catalog, id)
	return plan, nil
}

func (c *DownloadController) planLastResort(ctx context.Context, a *attempt) (*models.DownloadAttemptPlan, error) {
	if c.selfUpdate(ctx, a) {
		c.catalog.Invalidate(a.req.URL)
		a.catalog = nil
	}

	catalog := c.catalogFor(ctx, a)
	legacy := strings.Join(utils.LegacyFormats, "/")
	plan := &models.DownloadAttemptPlan{
		Tier:           models.StateLastResort,
		ClientProfile:  models.ProfileTV,
		MuxerPath:      a.muxerPath,
		OutputPath:     a.outputPath,
		LastResortArgs: true,
	}

	if catalog.IsSegmentedOnly() {
		if f, ok := utils.BestAudioOnly(catalog); ok {
			plan.FormatExpression = f.ID
			plan.AudioOnly = true
			if f.Container != "" {
				plan.OutputPath = withExtension(a.outputPath, f.Container)
			}
			return plan, nil
		}
		plan.FormatExpression = legacy
		return plan, nil
	}

	if f, ok := utils.LowestQuality(catalog); ok && f.HeightPx <= lastResortMaxHeight && (f.IsCombined() || plan.HasMuxer()) {
		expr := f.ID
		if f.IsVideoOnly {
			expr += "+bestaudio"
		}
		plan.FormatExpression = expr + "/" + legacy
		plan.AcceptedHeight = f.HeightPx
		return plan, nil
	}

	plan.FormatExpression = fmt.Sprintf("best[height<=%d]/best/%s", lastResortMaxHeight, legacy)
	return plan, nil
}

// UpdateExtractor runs the extractor self-update under its own limiter key.
// It reports whether a new version was installed.
func (c *DownloadController) UpdateExtractor(ctx context.Context) (bool, error) {
	var updated bool
	err := c.limiter.Do(ctx, updateKey, func(ctx context.Context) error {
		var err error
		updated, err = c.extractor.Update(ctx)
		return err
	})
	return updated, err
}

// selfUpdate is the best-effort update run before the last resort
func (c *DownloadController) selfUpdate(ctx context.Context, a *attempt) bool {
	updated, err := c.UpdateExtractor(ctx)
	if err != nil {
		a.logger.WithError(err).Warn("Extractor self-update failed, continuing")
		return false
	}

	a.logger.WithField("updated", updated).Info("Extractor self-update finished")
	return updated
}

// expectedHeight estimates the height a merged download will have
func expectedHeight(catalog *models.FormatCatalogResult, q models.QualityRequest) int {
	if len(catalog.Formats) == 0 {
		return 0
	}
	if q.Best || catalog.MaxHeightPx < q.Height {
		return catalog.MaxHeightPx
	}
	return q.Height
}

// withExtension swaps the extension of path
func withExtension(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + "." + ext
}
