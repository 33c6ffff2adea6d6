package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/amaumene/ytarr/internal/models"
)

// heightLabels maps minimum heights to coarse quality labels, highest first
var heightLabels = []struct {
	minHeight int
	label     string
}{
	{8000, "8K"},
	{4000, "4K"},
	{2160, "2160p"},
	{1440, "1440p"},
	{1080, "1080p"},
	{720, "720p"},
	{480, "480p"},
	{360, "360p"},
}

// ClassifyHeight turns a pixel height into a coarse quality label
func ClassifyHeight(height int) string {
	for _, hl := range heightLabels {
		if height >= hl.minHeight {
			return hl.label
		}
	}
	return fmt.Sprintf("%dp", height)
}

var qualityRegex = regexp.MustCompile(`^(\d+)p?$`)

// ParseQuality parses "best", "1080p" or "1080" into a quality request
func ParseQuality(quality string) (models.QualityRequest, error) {
	q := strings.ToLower(strings.TrimSpace(quality))
	if q == "best" {
		return models.BestQuality(), nil
	}

	matches := qualityRegex.FindStringSubmatch(q)
	if len(matches) < 2 {
		return models.QualityRequest{}, fmt.Errorf("invalid quality %q", quality)
	}

	height, err := strconv.Atoi(matches[1])
	if err != nil || height <= 0 {
		return models.QualityRequest{}, fmt.Errorf("invalid quality %q", quality)
	}

	return models.HeightCeiling(height), nil
}

// AcceptedQuality reports the label actually obtained and whether it is lower
// than the request
func AcceptedQuality(requested models.QualityRequest, acceptedHeight int, audioOnly bool) (string, bool) {
	if audioOnly {
		return "audio", true
	}
	if acceptedHeight <= 0 {
		return requested.String(), false
	}

	label := fmt.Sprintf("%dp", acceptedHeight)
	if requested.Best {
		return label, false
	}
	return label, acceptedHeight < requested.Height
}
