package utils

import (
	"fmt"
	"strings"

	"github.com/amaumene/ytarr/internal/models"
)

// Well-known combined format ids that never need a muxer
const (
	Format720Combined = "22"
	Format360Combined = "18"
)

// LegacyFormats are old, widely served format codes tried by the last resort
var LegacyFormats = []string{"18", "17", "36", "13", "5"}

// BuildFormatExpression turns a quality request into an extractor format expression
func BuildFormatExpression(q models.QualityRequest) string {
	if q.Best {
		return "bestvideo+bestaudio/best"
	}

	h := q.Height
	clauses := []string{
		fmt.Sprintf("bestvideo[height=%d]+bestaudio", h),
		fmt.Sprintf("bestvideo[height<=%d]+bestaudio", h),
		fmt.Sprintf("best[height<=%d]", h),
		fmt.Sprintf("bestvideo[height<=%d]", h),
		"bestvideo+bestaudio",
		"best",
	}
	return strings.Join(clauses, "/")
}

// BestFallbackFormatID picks a combined format id usable without a muxer
func BestFallbackFormatID(catalog *models.FormatCatalogResult, q models.QualityRequest) string {
	if q.AtLeast(720) && catalog.HasFormat(Format720Combined) {
		return Format720Combined
	}
	if catalog.HasFormat(Format360Combined) {
		return Format360Combined
	}
	return Format360Combined + "/" + Format720Combined + "/best"
}

// BestAudioOnly returns the audio-only format with the lowest numeric id
func BestAudioOnly(catalog *models.FormatCatalogResult) (models.MediaFormat, bool) {
	var best models.MediaFormat
	found := false

	for _, f := range catalog.Formats {
		if !f.IsAudioOnly || f.NumericID() < 0 {
			continue
		}
		if !found || f.NumericID() < best.NumericID() {
			best = f
			found = true
		}
	}

	return best, found
}

// LowestQuality returns the format with the smallest nonzero height
func LowestQuality(catalog *models.FormatCatalogResult) (models.MediaFormat, bool) {
	var lowest models.MediaFormat
	found := false

	for _, f := range catalog.Formats {
		if f.HeightPx <= 0 {
			continue
		}
		if !found || f.HeightPx < lowest.HeightPx {
			lowest = f
			found = true
		}
	}

	return lowest, found
}

// BestAtOrBelow returns the highest video format within the ceiling.
// With combinedOnly, video-only formats are skipped.
func BestAtOrBelow(catalog *models.FormatCatalogResult, q models.QualityRequest, combinedOnly bool) (models.MediaFormat, bool) {
	var best models.MediaFormat
	found := false

	for _, f := range catalog.Formats {
		if f.IsAudioOnly || f.HeightPx <= 0 {
			continue
		}
		if combinedOnly && f.IsVideoOnly {
			continue
		}
		if !q.Best && f.HeightPx > q.Height {
			continue
		}
		if !found || f.HeightPx > best.HeightPx {
			best = f
			found = true
		}
	}

	return best, found
}

// FormatHeight returns the height of a catalog format id, or 0 if unknown
func FormatHeight(catalog *models.FormatCatalogResult, id string) int {
	for _, f := range catalog.Formats {
		if f.ID == id {
			return f.HeightPx
		}
	}
	return 0
}
